// Package template renders text with positional placeholders.
//
// Every unescaped '%' in the source is a placeholder. A literal '%' is
// written as `\%` and a literal backslash as `\\`; any other escape is an
// error. Each source line is emitted preceded by "\r\n".
package template

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrUnsupportedEscape = errors.New("template: unsupported escape sequence")
	ErrDanglingEscape    = errors.New("template: backslash at end of line")
	ErrParameterCount    = errors.New("template: wrong number of parameters")
)

type Template struct {
	name  string
	parts []string
}

func ParseFile(path string) (*Template, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, string(content))
}

func Parse(name, text string) (*Template, error) {
	parts := []string{""}
	var b strings.Builder

	text = strings.TrimSuffix(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if text == "" {
		return &Template{name: name, parts: parts}, nil
	}

	for number, line := range strings.Split(text, "\n") {
		b.WriteString("\r\n")

		for i := 0; i < len(line); i++ {
			switch c := line[i]; c {
			case '\\':
				if i+1 == len(line) {
					return nil, fmt.Errorf("%w: %s:%d", ErrDanglingEscape, name, number+1)
				}
				i++
				switch next := line[i]; next {
				case '\\', '%':
					b.WriteByte(next)
				default:
					return nil, fmt.Errorf(`%w \%c: %s:%d`, ErrUnsupportedEscape, next, name, number+1)
				}
			case '%':
				parts[len(parts)-1] = b.String()
				parts = append(parts, "")
				b.Reset()
			default:
				b.WriteByte(c)
			}
		}
	}
	parts[len(parts)-1] = b.String()

	return &Template{name: name, parts: parts}, nil
}

func (t *Template) Name() string {
	return t.name
}

// Placeholders is the number of parameters Render expects.
func (t *Template) Placeholders() int {
	return len(t.parts) - 1
}

func (t *Template) Render(params ...string) (string, error) {
	if len(params) != t.Placeholders() {
		return "", fmt.Errorf("%w: %s wants %d, got %d", ErrParameterCount, t.name, t.Placeholders(), len(params))
	}

	size := 0
	for _, part := range t.parts {
		size += len(part)
	}
	for _, param := range params {
		size += len(param)
	}

	var b strings.Builder
	b.Grow(size)
	for i, part := range t.parts {
		b.WriteString(part)
		if i < len(params) {
			b.WriteString(params[i])
		}
	}
	return b.String(), nil
}
