package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"

	"golang.org/x/text/language"
)

//go:embed locales/*.json
var locales embed.FS

var DefaultLang = "en"

// Supported languages, in matcher preference order. The first entry is the
// fallback.
var (
	langs   = []string{"en", "zh"}
	tags    = []language.Tag{language.English, language.Chinese}
	matcher = language.NewMatcher(tags)
)

var translations = make(map[string]map[string]string)

func init() {
	if err := LoadTranslations(locales); err != nil {
		panic(err)
	}
}

// LoadTranslations reads locales/<lang>.json for every supported language
// from fsys.
func LoadTranslations(fsys fs.FS) error {
	loaded := make(map[string]map[string]string, len(langs))
	for _, lang := range langs {
		data, err := fs.ReadFile(fsys, fmt.Sprintf("locales/%s.json", lang))
		if err != nil {
			return err
		}
		var t map[string]string
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("invalid translations for %s: %w", lang, err)
		}
		loaded[lang] = t
	}
	translations = loaded
	return nil
}

func T(lang, key string) string {
	if t, ok := translations[lang]; ok {
		if val, ok := t[key]; ok {
			return val
		}
	}
	// Fallback to English
	if lang != DefaultLang {
		return T(DefaultLang, key)
	}
	return key
}

// DetectLanguage picks the best supported language for the request's
// Accept-Language header.
func DetectLanguage(r *http.Request) string {
	accept := r.Header.Get("Accept-Language")
	if accept == "" {
		return DefaultLang
	}
	prefs, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(prefs) == 0 {
		return DefaultLang
	}
	_, idx, conf := matcher.Match(prefs...)
	if conf == language.No {
		return DefaultLang
	}
	return langs[idx]
}
