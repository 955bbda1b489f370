package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"kiosk/internal/adapter/repo"
	"kiosk/internal/infra"
	"kiosk/internal/middleware"
)

const usage = `usage:
  voicereg add -name NAME -voice-id ID
  voicereg list
  voicereg token -operator NAME [-ttl 12h]`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		exitWithError(errors.New(usage))
	}
	cmd, args := os.Args[1], os.Args[2:]

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}

	switch cmd {
	case "token":
		runToken(cfg, args)
	case "add", "list":
		runRegistry(cfg, cmd, args)
	default:
		exitWithError(fmt.Errorf("unknown command %q\n%s", cmd, usage))
	}
}

func runToken(cfg *infra.Config, args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	operator := fs.String("operator", "", "operator name recorded with registrations")
	ttl := fs.Duration("ttl", 12*time.Hour, "token lifetime")
	_ = fs.Parse(args)

	if strings.TrimSpace(*operator) == "" {
		exitWithError(errors.New("-operator is required"))
	}
	if cfg.OperatorSecret == "" {
		exitWithError(errors.New("OPERATOR_SECRET is required"))
	}
	token, err := middleware.SignJWT(cfg.OperatorSecret, middleware.TokenClaims{
		Sub:    strings.TrimSpace(*operator),
		Role:   middleware.RoleOperator,
		Exp:    time.Now().Add(*ttl).Unix(),
		Issuer: "voicereg",
	})
	if err != nil {
		exitWithError(fmt.Errorf("sign token: %w", err))
	}
	fmt.Println(token)
}

func runRegistry(cfg *infra.Config, cmd string, args []string) {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	name := fs.String("name", "", "display name shown at the kiosk")
	voiceID := fs.String("voice-id", "", "ElevenLabs voice id")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger := infra.NewLogger("cli").With().Str("cmd", "voicereg").Logger()

	var sql infra.SQLExecutor
	if cfg.HistoryDriver == infra.HistoryPostgres {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			exitWithError(err)
		}
		defer pool.Close()
		sql = infra.NewSQLRunner(pool, logger)
	}
	stores, err := repo.Open(cfg, sql, &logger)
	if err != nil {
		exitWithError(err)
	}
	defer stores.Close()
	if stores.Registry == nil {
		exitWithError(fmt.Errorf("HISTORY_DRIVER=%s has no voice registry", cfg.HistoryDriver))
	}

	switch cmd {
	case "add":
		n, id := strings.TrimSpace(*name), strings.TrimSpace(*voiceID)
		if n == "" || id == "" {
			exitWithError(errors.New("-name and -voice-id are required"))
		}
		v, err := stores.Registry.RegisterVoice(ctx, n, id)
		if err != nil {
			exitWithError(err)
		}
		printJSON(v)
	case "list":
		items, err := stores.Registry.ListVoices(ctx)
		if err != nil {
			exitWithError(err)
		}
		printJSON(items)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
