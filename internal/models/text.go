package models

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// FallbackLanguage is used when a translated field lacks the requested language.
const FallbackLanguage = "en"

type textKind uint8

const (
	textAbsent textKind = iota
	textPlain
	textTranslated
	textOpaque
)

// Text is a localizable field: plain (untranslated) text, a language-keyed
// mapping, or any other JSON value carried through untouched.
type Text struct {
	kind         textKind
	plain        string
	translations map[string]string
	opaque       any
}

// PlainText wraps untranslated content.
func PlainText(s string) Text {
	return Text{kind: textPlain, plain: s}
}

// TranslatedText wraps a language code -> text mapping. The map is copied.
func TranslatedText(m map[string]string) Text {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Text{kind: textTranslated, translations: cp}
}

// ParseText converts a decoded JSON value into a Text. Non-string entries of
// a language map degrade to empty strings.
func ParseText(v any) Text {
	switch val := v.(type) {
	case nil:
		return Text{}
	case string:
		return PlainText(val)
	case map[string]any:
		m := make(map[string]string, len(val))
		for lang, raw := range val {
			s, _ := raw.(string)
			m[lang] = s
		}
		return TranslatedText(m)
	default:
		return Text{kind: textOpaque, opaque: val}
	}
}

// IsZero reports whether the field was absent.
func (t Text) IsZero() bool { return t.kind == textAbsent }

// IsTranslated reports whether the field is a language-keyed mapping.
func (t Text) IsTranslated() bool { return t.kind == textTranslated }

// Plain returns the untranslated content when the field is plain text.
func (t Text) Plain() (string, bool) {
	return t.plain, t.kind == textPlain
}

// Lookup returns the text stored for lang in a translated field.
func (t Text) Lookup(lang string) (string, bool) {
	if t.kind != textTranslated {
		return "", false
	}
	s, ok := t.translations[lang]
	return s, ok
}

// Languages returns the number of languages held by a translated field.
func (t Text) Languages() int {
	return len(t.translations)
}

// Localize projects a translated field onto lang, falling back to English and
// then to "". Language keys match case-insensitively when there is no exact
// entry. The result holds a single entry keyed by lang as requested. Plain
// and opaque values are returned unchanged.
func (t Text) Localize(lang string) Text {
	if t.kind != textTranslated {
		return t
	}
	s, ok := t.resolve(lang)
	if !ok {
		s, _ = t.resolve(FallbackLanguage)
	}
	return Text{kind: textTranslated, translations: map[string]string{lang: s}}
}

func (t Text) resolve(lang string) (string, bool) {
	if s, ok := t.translations[lang]; ok {
		return s, true
	}
	keys := make([]string, 0, len(t.translations))
	for k := range t.translations {
		if strings.EqualFold(k, lang) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", false
	}
	sort.Strings(keys)
	return t.translations[keys[0]], true
}

func (t Text) MarshalJSON() ([]byte, error) {
	switch t.kind {
	case textPlain:
		return json.Marshal(t.plain)
	case textTranslated:
		if t.translations == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(t.translations)
	case textOpaque:
		return json.Marshal(t.opaque)
	default:
		return []byte("null"), nil
	}
}

func (t *Text) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = ParseText(v)
	return nil
}

// Choice is one answer option. Plain choices use their text as the answer
// key; object choices carry a key next to their translations.
type Choice struct {
	Key    any
	Text   Text
	object bool
}

// ParseChoice converts a decoded JSON value into a Choice.
func ParseChoice(v any) Choice {
	switch val := v.(type) {
	case string:
		return Choice{Key: val, Text: PlainText(val)}
	case map[string]any:
		m := make(map[string]string, len(val))
		for k, raw := range val {
			if k == "key" {
				continue
			}
			s, _ := raw.(string)
			m[k] = s
		}
		return Choice{Key: val["key"], Text: TranslatedText(m), object: true}
	default:
		return Choice{Text: ParseText(val)}
	}
}

// ParseChoices converts a decoded JSON array. Anything else yields nil.
func ParseChoices(v any) []Choice {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Choice, 0, len(list))
	for _, raw := range list {
		out = append(out, ParseChoice(raw))
	}
	return out
}

// IsObject reports whether the choice was stored as {key, <lang>: text}.
func (c Choice) IsObject() bool { return c.object }

// Localize resolves the choice text to lang; the key is kept verbatim.
func (c Choice) Localize(lang string) Choice {
	if !c.object {
		return c
	}
	return Choice{Key: c.Key, Text: c.Text.Localize(lang), object: true}
}

func (c Choice) MarshalJSON() ([]byte, error) {
	if !c.object {
		return json.Marshal(c.Text)
	}
	out := make(map[string]any, len(c.Text.translations)+1)
	for lang, s := range c.Text.translations {
		out[lang] = s
	}
	key := c.Key
	if key == nil {
		key = ""
	}
	out["key"] = key
	return json.Marshal(out)
}

func (c *Choice) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = ParseChoice(v)
	return nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
