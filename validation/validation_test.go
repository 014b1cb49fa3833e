package validation

import (
	"testing"

	"github.com/freekieb7/ember/test"
)

var linkRules = map[string][]string{
	"link": {"required", "min:5", "max:2048", "url", "suffix:.jpg|.png", "basename"},
}

func TestValidateMap(t *testing.T) {
	tests := []struct {
		name  string
		data  map[string]string
		valid bool
	}{
		{"png", map[string]string{"link": "https://example.com/img/cat.png"}, true},
		{"jpg", map[string]string{"link": "http://example.com/dog.jpg"}, true},
		{"missing", map[string]string{}, false},
		{"empty", map[string]string{"link": ""}, false},
		{"gif", map[string]string{"link": "https://example.com/cat.gif"}, false},
		{"no scheme", map[string]string{"link": "example.com/cat.png"}, false},
		{"ftp", map[string]string{"link": "ftp://example.com/cat.png"}, false},
		{"only suffix", map[string]string{"link": "https://example.com/.png"}, false},
		{"unknown field", map[string]string{"link": "https://example.com/a.png", "other": "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := ValidateMap(tt.data, linkRules)
			test.Equal(t, tt.valid, violations.IsEmpty())
		})
	}
}

func TestViolationsError(t *testing.T) {
	violations := ValidateMap(map[string]string{"link": ""}, map[string][]string{"link": {"required"}})
	test.Equal(t, "link is required", violations.Error())
}

func TestInvalidRule(t *testing.T) {
	violations := ValidateMap(map[string]string{"a": "x"}, map[string][]string{"a": {"min:x", "nope"}})
	test.Equal(t, 2, len(violations.Errors["a"]))
}

func TestValidateBasename(t *testing.T) {
	test.True(t, ValidateBasename("https://a/b.png"), "expected basename")
	test.True(t, !ValidateBasename("b.png"), "no slash means no basename")
	test.True(t, !ValidateBasename("https://a/"), "empty basename")
	test.True(t, !ValidateBasename("https://a/.."), "dot-dot basename")
}
