package repo

import (
	"errors"
	"fmt"

	"kiosk/internal/domain"
	"kiosk/internal/infra"
)

// Stores is the history and voice registry selected by HISTORY_DRIVER.
// Registry is nil for the "none" driver.
type Stores struct {
	History  domain.HistoryRecorder
	Registry domain.VoiceRegistry
	closer   func() error
}

func (s *Stores) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}

// Open builds the stores for cfg.HistoryDriver. sql is only used by the
// postgres driver.
func Open(cfg *infra.Config, sql infra.SQLExecutor, logger *infra.Logger) (*Stores, error) {
	switch cfg.HistoryDriver {
	case infra.HistorySupabase:
		s, err := NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey)
		if errors.Is(err, domain.ErrConfiguration) {
			infra.LoggerOrNop(logger).Warn().Err(err).Msg("supabase not configured, history writes will fail")
			u := Unconfigured{Err: err}
			return &Stores{History: u, Registry: u}, nil
		}
		if err != nil {
			return nil, err
		}
		return &Stores{History: s, Registry: s}, nil
	case infra.HistoryPostgres:
		if sql == nil {
			return nil, fmt.Errorf("repo: postgres driver needs a database connection")
		}
		s := NewPostgresStore(sql)
		return &Stores{History: s, Registry: s}, nil
	case infra.HistorySQLite:
		s, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Stores{History: s, Registry: s, closer: s.Close}, nil
	case infra.HistoryNone:
		return &Stores{History: NopHistory{Logger: logger}}, nil
	default:
		return nil, fmt.Errorf("repo: unsupported history driver %q", cfg.HistoryDriver)
	}
}
