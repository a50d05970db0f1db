package taskstatus

import (
	"fmt"
	"strings"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/de"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/fr"
	ut "github.com/go-playground/universal-translator"
)

// Translation keys.
const (
	keyWaiting   = "status_waiting"
	keyFailed    = "status_failed"
	keyStarted   = "status_started"
	keyFinished  = "status_finished"
	keyEnded     = "status_ended"
	keyCancelled = "status_cancelled"
	keyUnknown   = "status_unknown"
	keySystem    = "user_system"
	keyDays      = "duration_days"
)

type catalog struct {
	texts   map[string]string
	dayOne  string
	dayMany string
}

var catalogs = map[string]catalog{
	"en": {
		texts: map[string]string{
			keyWaiting: "Waiting", keyFailed: "Failed", keyStarted: "Started",
			keyFinished: "Finished", keyEnded: "Ended", keyCancelled: "Cancelled",
			keyUnknown: "Unknown Status", keySystem: "System",
		},
		dayOne:  "{0} day",
		dayMany: "{0} days",
	},
	"de": {
		texts: map[string]string{
			keyWaiting: "Wartend", keyFailed: "Fehlgeschlagen", keyStarted: "Gestartet",
			keyFinished: "Beendet", keyEnded: "Abgeschlossen", keyCancelled: "Abgebrochen",
			keyUnknown: "Unbekannter Status", keySystem: "System",
		},
		dayOne:  "{0} Tag",
		dayMany: "{0} Tage",
	},
	"fr": {
		texts: map[string]string{
			keyWaiting: "En attente", keyFailed: "Échoué", keyStarted: "Commencé",
			keyFinished: "Terminé", keyEnded: "Clos", keyCancelled: "Annulé",
			keyUnknown: "Statut inconnu", keySystem: "Système",
		},
		dayOne:  "{0} jour",
		dayMany: "{0} jours",
	},
}

// Translators holds the localized status vocabulary for every bundled locale.
type Translators struct {
	uni *ut.UniversalTranslator
}

// NewTranslators registers the bundled en, de and fr catalogs.
func NewTranslators() (*Translators, error) {
	fallback := en.New()
	uni := ut.New(fallback, fallback, de.New(), fr.New())

	for locale, cat := range catalogs {
		trans, ok := uni.GetTranslator(locale)
		if !ok {
			return nil, fmt.Errorf("locale %s not registered", locale)
		}
		for key, text := range cat.texts {
			if err := trans.Add(key, text, false); err != nil {
				return nil, fmt.Errorf("failed to add %s/%s: %w", locale, key, err)
			}
		}
		// every plural rule of the locale needs a form
		for _, rule := range trans.PluralsCardinal() {
			text := cat.dayMany
			if rule == locales.PluralRuleOne {
				text = cat.dayOne
			}
			if err := trans.AddCardinal(keyDays, text, rule, false); err != nil {
				return nil, fmt.Errorf("failed to add %s day plural %s: %w", locale, rule, err)
			}
		}
	}

	if err := uni.VerifyTranslations(); err != nil {
		return nil, fmt.Errorf("incomplete translations: %w", err)
	}

	return &Translators{uni: uni}, nil
}

// For returns the translator for a locale such as "de" or "fr-CA". Unknown
// locales fall back to English.
func (t *Translators) For(locale string) ut.Translator {
	locale = strings.ToLower(strings.TrimSpace(locale))
	candidates := []string{strings.ReplaceAll(locale, "-", "_")}
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		candidates = append(candidates, locale[:i])
	}

	trans, _ := t.uni.FindTranslator(candidates...)
	return trans
}
