// Package locale holds the user-facing kiosk messages in German and English.
package locale

import (
	"embed"
	"encoding/json"
	"fmt"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Message ids.
const (
	ImageFailed          = "image_failed"
	VideoFailed          = "video_failed"
	ConfigurationMissing = "configuration_missing"
	VideoTimeout         = "video_timeout"
	PersistenceFailed    = "persistence_failed"
	CatalogUnfiltered    = "catalog_unfiltered"
	VoicesUnavailable    = "voices_unavailable"
)

//go:embed locales/*.json
var files embed.FS

var supported = []language.Tag{language.German, language.English}

type Translator struct {
	bundle   *goi18n.Bundle
	fallback string
	matcher  language.Matcher
}

// New loads the embedded message files. defaultLang is used whenever a
// request carries no usable language preference.
func New(defaultLang string) (*Translator, error) {
	bundle := goi18n.NewBundle(language.German)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)
	for _, name := range []string{"locales/de.json", "locales/en.json"} {
		if _, err := bundle.LoadMessageFileFS(files, name); err != nil {
			return nil, fmt.Errorf("locale: load %s: %w", name, err)
		}
	}

	t := &Translator{bundle: bundle, matcher: language.NewMatcher(supported)}
	t.fallback = t.Match(defaultLang)
	return t, nil
}

// Default is the configured fallback language ("de" or "en").
func (t *Translator) Default() string {
	return t.fallback
}

// Match maps an Accept-Language value (or a bare tag) to a supported
// language. Unparseable input yields the configured default.
func (t *Translator) Match(accept string) string {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		if t.fallback != "" {
			return t.fallback
		}
		return "de"
	}
	_, idx, conf := t.matcher.Match(tags...)
	if conf == language.No {
		if t.fallback != "" {
			return t.fallback
		}
		return "de"
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// Message returns the text for id in lang. Unknown ids come back verbatim.
func (t *Translator) Message(lang, id string) string {
	if lang == "" {
		lang = t.fallback
	}
	localizer := goi18n.NewLocalizer(t.bundle, lang, t.fallback)
	msg, err := localizer.Localize(&goi18n.LocalizeConfig{MessageID: id})
	if err != nil {
		return id
	}
	return msg
}
