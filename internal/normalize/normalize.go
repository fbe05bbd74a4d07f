// Package normalize turns raw feed values into comparable tokens. All
// normalization happens exactly once, at record construction; re-normalizing
// an already normalized value is a no-op.
package normalize

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Kind declares how a raw field value should be normalized.
type Kind string

// Known field kinds.
const (
	KindName Kind = "name" // person or team names
	KindCode Kind = "code" // abbreviations, positions, league codes
	KindText Kind = "text" // free text such as venue names
	KindDate Kind = "date" // date/time strings
)

// Error reports a malformed input field. It is fatal for the record the
// field belongs to but never aborts a batch.
type Error struct {
	Field string
	Kind  Kind
	Value string
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalizing %s field %q: unusable value %q", e.Kind, e.Field, e.Value)
}

// Table maps a normalized source form to its canonical form, e.g. a known
// nickname to the canonical given name, or a historical team abbreviation
// to the current one. Keys and values must already be in normalized form.
type Table map[string]string

// Aliases groups alias tables by the field kind they apply to.
type Aliases map[Kind]Table

// LoadAliases reads an alias file in YAML form:
//
//	name:
//	  pat: patrick
//	code:
//	  nwe: ne
func LoadAliases(path string) (Aliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading alias file: %w", err)
	}
	var a Aliases
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing alias file: %w", err)
	}
	return a, nil
}

// Normalizer applies deterministic text normalization plus a configurable
// alias table. It is a pure function of its inputs and safe for concurrent
// use.
type Normalizer struct {
	aliases Aliases
}

// New creates a Normalizer with no aliases.
func New() *Normalizer {
	return &Normalizer{}
}

// NewWithAliases creates a Normalizer that expands the given aliases after
// text normalization. Name aliases are applied per token, code aliases to
// the whole value.
func NewWithAliases(aliases Aliases) *Normalizer {
	return &Normalizer{aliases: aliases}
}

// foldAccents strips diacritics to their base letter. The original value is
// retained on the record for display; only the comparison form is folded.
var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Name suffixes dropped during name normalization.
var nameSuffixes = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true, "v": true,
}

// Normalize returns the comparison form of value for the declared kind.
// The field name is only used for error reporting.
func (n *Normalizer) Normalize(field, value string, kind Kind) (string, error) {
	switch kind {
	case KindName:
		return n.normalizeName(field, value)
	case KindCode:
		return n.normalizeCode(field, value)
	case KindText:
		return n.normalizeText(field, value)
	case KindDate:
		return n.normalizeDate(field, value)
	default:
		return "", &Error{Field: field, Kind: kind, Value: value}
	}
}

func (n *Normalizer) normalizeName(field, value string) (string, error) {
	folded, err := fold(value)
	if err != nil {
		return "", &Error{Field: field, Kind: KindName, Value: value}
	}

	tokens := tokenize(folded)
	out := tokens[:0]
	for _, tok := range tokens {
		if nameSuffixes[tok] {
			continue
		}
		out = append(out, n.expand(KindName, tok))
	}
	result := strings.Join(out, " ")
	if result == "" && strings.TrimSpace(value) != "" {
		return "", &Error{Field: field, Kind: KindName, Value: value}
	}
	return result, nil
}

func (n *Normalizer) normalizeCode(field, value string) (string, error) {
	folded, err := fold(value)
	if err != nil {
		return "", &Error{Field: field, Kind: KindCode, Value: value}
	}
	result := strings.Join(tokenize(folded), "")
	if result == "" && strings.TrimSpace(value) != "" {
		return "", &Error{Field: field, Kind: KindCode, Value: value}
	}
	return n.expand(KindCode, result), nil
}

// normalizeDate canonicalizes a parseable date to RFC3339 in UTC. Record
// constructors that need the instant itself use ParseTime directly.
func (n *Normalizer) normalizeDate(field, value string) (string, error) {
	t, err := ParseTime(field, value)
	if err != nil {
		return "", err
	}
	return t.Format(time.RFC3339), nil
}

func (n *Normalizer) normalizeText(field, value string) (string, error) {
	folded, err := fold(value)
	if err != nil {
		return "", &Error{Field: field, Kind: KindText, Value: value}
	}
	return strings.Join(tokenize(folded), " "), nil
}

// expand applies the alias table for the kind, if one is configured.
func (n *Normalizer) expand(kind Kind, s string) string {
	if t, ok := n.aliases[kind]; ok {
		if canonical, ok := t[s]; ok {
			return canonical
		}
	}
	return s
}

// fold lower-cases and strips diacritics.
func fold(s string) (string, error) {
	out, _, err := transform.String(foldAccents, strings.ToLower(s))
	if err != nil {
		return "", err
	}
	return out, nil
}

// tokenize splits on anything that is not a letter or digit, which also
// collapses whitespace runs and drops punctuation such as periods in
// abbreviations.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Date layouts accepted for KindDate values, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
}

// ParseTime parses a KindDate field into UTC. Malformed input is reported
// as an Error, never silently coerced.
func ParseTime(field, value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &Error{Field: field, Kind: KindDate, Value: value}
}
