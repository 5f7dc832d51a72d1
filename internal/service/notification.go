package service

import (
	"fmt"
	"html"

	"github.com/dlclark/regexp2"

	"github.com/vietanh2810/certcheck-api/internal/render"
)

// placeholderPattern matches {{ key }}; keys may contain dots and dashes for
// custom answer ids.
var placeholderPattern = regexp2.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`, regexp2.None)

// Substitute replaces every placeholder with its resolved value. Keys the
// resolver does not know become the empty string.
func Substitute(text string, fields render.FieldResolver) (string, error) {
	return substitute(text, fields, func(v string) string { return v })
}

// SubstituteHTML is Substitute for HTML bodies: resolved values are escaped,
// the surrounding markup is kept as written.
func SubstituteHTML(text string, fields render.FieldResolver) (string, error) {
	return substitute(text, fields, html.EscapeString)
}

func substitute(text string, fields render.FieldResolver, escape func(string) string) (string, error) {
	out, err := placeholderPattern.ReplaceFunc(text, func(m regexp2.Match) string {
		return escape(fields.Resolve(render.ParseFieldKey(m.GroupByNumber(1).String())))
	}, -1, -1)
	if err != nil {
		return "", fmt.Errorf("placeholderPattern.ReplaceFunc -> %w", err)
	}
	return out, nil
}

// overlayFields resolves from extra first and falls back to base.
type overlayFields struct {
	extra render.MapFields
	base  render.FieldResolver
}

func (f overlayFields) Resolve(key render.FieldKey) string {
	if v, ok := f.extra[key.String()]; ok {
		return v
	}
	return f.base.Resolve(key)
}
