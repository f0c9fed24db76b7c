// Package locale handles the /{lang}/{page} URL scheme.
package locale

import (
	"context"
	"log"
	"net/url"
	"strings"

	"luxio/storage"

	"golang.org/x/text/language"
)

const Default = "en"

var Supported = []string{"en", "fr", "es", "pt", "pl", "it", "hu"}

var matcher = language.NewMatcher([]language.Tag{
	language.English,
	language.French,
	language.Spanish,
	language.Portuguese,
	language.Polish,
	language.Italian,
	language.Hungarian,
})

func IsSupported(lang string) bool {
	for _, l := range Supported {
		if l == lang {
			return true
		}
	}
	return false
}

// FromPath splits a leading language segment off path. rest always starts with "/".
func FromPath(path string) (lang, rest string, ok bool) {
	trimmed := strings.TrimPrefix(path, "/")
	seg, tail, _ := strings.Cut(trimmed, "/")
	if !IsSupported(seg) {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return "", path, false
	}
	return seg, "/" + tail, true
}

// Localize rewrites target so its path starts with /lang, replacing any existing
// language prefix. Path escaping, query and fragment are kept as they are.
func Localize(lang, target string) string {
	if !IsSupported(lang) {
		lang = Default
	}
	u, err := url.Parse(target)
	if err != nil {
		return "/" + lang
	}
	_, rest, _ := FromPath(u.EscapedPath())
	path := "/" + lang
	if rest != "/" {
		path += rest
	}
	out := path
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		out += "#" + u.EscapedFragment()
	}
	return out
}

// MatchAcceptLanguage picks the best supported language for an Accept-Language
// header value.
func MatchAcceptLanguage(header string) (string, bool) {
	if strings.TrimSpace(header) == "" {
		return "", false
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return "", false
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return "", false
	}
	return Supported[idx], true
}

// Detect resolves the active language: path prefix, then ?lang=, then the stored
// preference, then Accept-Language, then Default.
func Detect(path, queryLang, stored, acceptLanguage string) string {
	return DetectOr(Default, path, queryLang, stored, acceptLanguage)
}

// DetectOr is Detect with a configurable last resort. An unsupported fallback
// falls back to Default.
func DetectOr(fallback, path, queryLang, stored, acceptLanguage string) string {
	if lang, _, ok := FromPath(path); ok {
		return lang
	}
	if IsSupported(queryLang) {
		return queryLang
	}
	if IsSupported(stored) {
		return stored
	}
	if lang, ok := MatchAcceptLanguage(acceptLanguage); ok {
		return lang
	}
	if IsSupported(fallback) {
		return fallback
	}
	return Default
}

// LoginPromptURL is where a torn-down session lands: the home page of the current
// language with the login dialog open.
func LoginPromptURL(currentPath string, expired bool) string {
	lang, _, ok := FromPath(currentPath)
	if !ok {
		lang = Default
	}
	target := "/" + lang + "?login=true"
	if expired {
		target += "&expired=true"
	}
	return target
}

// Preference stores the chosen language under luxio-language.
type Preference struct {
	store storage.Store
}

func NewPreference(store storage.Store) *Preference {
	return &Preference{store: store}
}

func (p *Preference) Get(ctx context.Context) string {
	v, ok, err := p.store.GetItem(ctx, storage.KeyLanguage)
	if err != nil || !ok || !IsSupported(v) {
		return ""
	}
	return v
}

func (p *Preference) Set(ctx context.Context, lang string) bool {
	if !IsSupported(lang) {
		return false
	}
	if err := p.store.SetItem(ctx, storage.KeyLanguage, lang); err != nil {
		log.Printf("locale: failed to save language: %v", err)
		return false
	}
	return true
}
