package i18n

import (
	"strings"
	"sync/atomic"
)

// Translator retrieves localized remediation text for rule codes.
// data provides values substituted into {placeholders} (for example
// "field" or "limit"). An empty return means no text is known.
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	dict := catalogEN
	if t.lang == "ja" {
		dict = catalogJA
	}
	tmpl, ok := dict[code]
	if !ok {
		return ""
	}
	return expand(tmpl, data)
}

func expand(tmpl string, data map[string]string) string {
	if len(data) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

type holder struct{ tr Translator }

var current atomic.Pointer[holder]

func init() { current.Store(&holder{tr: dictTranslator{lang: "en"}}) }

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	current.Store(&holder{tr: dictTranslator{lang: lang}})
}

// SetTranslator replaces the Translator implementation. nil restores the
// English dictionary.
func SetTranslator(tr Translator) {
	if tr == nil {
		tr = dictTranslator{lang: "en"}
	}
	current.Store(&holder{tr: tr})
}

// T fetches the text for code, falling back to the code itself.
func T(code string, data map[string]string) string {
	if s := current.Load().tr.Message(code, data); s != "" {
		return s
	}
	return code
}

// Hint fetches the remediation text for code, or "" when none is known.
func Hint(code string, data map[string]string) string {
	return current.Load().tr.Message(code, data)
}
