/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package prompt renders model prompts from templates with {{name}} placeholders.
//
// Placeholders are filled with Values. Text is inserted verbatim; JSON, YAML,
// and XML values are marshaled first, so structured data such as review
// findings or file contents never has to be formatted by hand:
//
//	tmpl := prompt.Must(prompt.Parse(`Fix this finding:
//	{{finding}}
//
//	Current file:
//	{{file}}`))
//
//	text, err := tmpl.Render(prompt.Values{
//		"finding": prompt.JSON(finding),
//		"file":    prompt.Text(content),
//	})
//
// Render fails when a placeholder has no value or a value has no placeholder.
package prompt

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// segment is either literal text or a placeholder name.
type segment struct {
	text        string
	placeholder string
}

// Template is a parsed prompt. It is immutable and safe for concurrent use.
type Template struct {
	segments []segment
	names    []string
}

// Parse splits text into literal segments and placeholders.
func Parse(text string) (*Template, error) {
	t := &Template{}
	for len(text) > 0 {
		start := strings.Index(text, "{{")
		if start < 0 {
			t.segments = append(t.segments, segment{text: text})
			break
		}
		if start > 0 {
			t.segments = append(t.segments, segment{text: text[:start]})
		}

		end := strings.Index(text[start:], "}}")
		if end < 0 {
			return nil, errors.New("unclosed placeholder: missing '}}'")
		}
		name := strings.TrimSpace(text[start+2 : start+end])
		if !validName(name) {
			return nil, fmt.Errorf("invalid placeholder name %q", name)
		}
		t.segments = append(t.segments, segment{placeholder: name})
		if !slices.Contains(t.names, name) {
			t.names = append(t.names, name)
		}
		text = text[start+end+2:]
	}
	return t, nil
}

// Must panics if err is non-nil. It is meant for package-level templates.
func Must(t *Template, err error) *Template {
	if err != nil {
		panic(err)
	}
	return t
}

// Placeholders returns the distinct placeholder names in order of first use.
func (t *Template) Placeholders() []string {
	return slices.Clone(t.names)
}

// Values maps placeholder names to their values.
type Values map[string]Value

// Render fills every placeholder.
func (t *Template) Render(values Values) (string, error) {
	rendered := make(map[string]string, len(values))
	for name, v := range values {
		if !slices.Contains(t.names, name) {
			return "", fmt.Errorf("value %q has no placeholder in template", name)
		}
		s, err := v.render()
		if err != nil {
			return "", fmt.Errorf("rendering %q: %w", name, err)
		}
		rendered[name] = s
	}

	var b strings.Builder
	for _, seg := range t.segments {
		if seg.placeholder == "" {
			b.WriteString(seg.text)
			continue
		}
		s, ok := rendered[seg.placeholder]
		if !ok {
			return "", fmt.Errorf("placeholder %q has no value", seg.placeholder)
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// Value is something that can fill a placeholder.
type Value interface {
	render() (string, error)
}

type textValue string

func (v textValue) render() (string, error) { return string(v), nil }

// Text inserts s verbatim.
func Text(s string) Value { return textValue(s) }

type marshalValue struct {
	data    any
	marshal func(any) ([]byte, error)
	format  string
}

func (v marshalValue) render() (string, error) {
	b, err := v.marshal(v.data)
	if err != nil {
		return "", fmt.Errorf("marshaling %s: %w", v.format, err)
	}
	return strings.TrimRight(string(b), "\n"), nil
}

// JSON inserts data as indented JSON.
func JSON(data any) Value {
	return marshalValue{data: data, format: "JSON", marshal: func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}}
}

// YAML inserts data as YAML.
func YAML(data any) Value {
	return marshalValue{data: data, format: "YAML", marshal: yaml.Marshal}
}

// XML inserts data as indented XML.
func XML(data any) Value {
	return marshalValue{data: data, format: "XML", marshal: func(v any) ([]byte, error) {
		return xml.MarshalIndent(v, "", "  ")
	}}
}

// validName accepts a letter followed by letters, digits, or underscores.
func validName(s string) bool {
	for i, r := range s {
		switch {
		case unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || r == '_'):
		default:
			return false
		}
	}
	return s != ""
}
