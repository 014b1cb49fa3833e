package validation

import (
	"fmt"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"
)

type Violations struct {
	Errors map[string][]error
}

func (violations Violations) IsEmpty() bool {
	return len(violations.Errors) == 0
}

func (violations Violations) Error() string {
	names := make([]string, 0, len(violations.Errors))
	for name := range violations.Errors {
		names = append(names, name)
	}
	slices.Sort(names)

	var b strings.Builder
	for _, name := range names {
		for _, err := range violations.Errors[name] {
			if b.Len() > 0 {
				b.WriteString("; ")
			}
			b.WriteString(err.Error())
		}
	}
	return b.String()
}

// ValidateMap checks every attribute against its rules. Rules are written as
// "name" or "name:argument", for example "min:10" or "suffix:.jpg|.png".
func ValidateMap(data map[string]string, rules map[string][]string) Violations {
	var violations Violations
	violations.Errors = make(map[string][]error)

	for attributeName, attributeRules := range rules {
		attributeValue, present := data[attributeName]

		var errorCollection []error
		for _, attributeRule := range attributeRules {
			if !present && attributeRule != "required" {
				continue
			}
			if err := validate(attributeRule, attributeName, attributeValue); err != nil {
				errorCollection = append(errorCollection, err)
			}
		}

		if len(errorCollection) != 0 {
			violations.Errors[attributeName] = errorCollection
		}
	}

	for attributeName := range data {
		if _, ok := rules[attributeName]; !ok {
			violations.Errors[attributeName] = append(violations.Errors[attributeName], fmt.Errorf("validation: no rules found :: %s", attributeName))
		}
	}

	return violations
}

func validate(rule string, name string, value string) error {
	rule, argument, _ := strings.Cut(rule, ":")

	switch rule {
	case "required":
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	case "min":
		size, err := strconv.Atoi(argument)
		if err != nil {
			return fmt.Errorf("invalid validation rule :: %s:%s", rule, argument)
		}
		if len(value) < size {
			return fmt.Errorf("%s must be at least %d characters", name, size)
		}
	case "max":
		size, err := strconv.Atoi(argument)
		if err != nil {
			return fmt.Errorf("invalid validation rule :: %s:%s", rule, argument)
		}
		if len(value) > size {
			return fmt.Errorf("%s must be at most %d characters", name, size)
		}
	case "url":
		if !ValidateURL(value) {
			return fmt.Errorf("%s must be an absolute http(s) url", name)
		}
	case "suffix":
		if !ValidateSuffix(value, strings.Split(argument, "|")...) {
			return fmt.Errorf("%s must end with one of %s", name, argument)
		}
	case "basename":
		if !ValidateBasename(value) {
			return fmt.Errorf("%s must contain a file name after the last slash", name)
		}
	default:
		return fmt.Errorf("invalid validation rule :: %s", rule)
	}

	return nil
}

func ValidateSuffix(value string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if suffix != "" && strings.HasSuffix(value, suffix) {
			return true
		}
	}
	return false
}

func ValidateURL(value string) bool {
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidateBasename reports whether value has a path separator followed by a
// usable, non-hidden file name.
func ValidateBasename(value string) bool {
	i := strings.LastIndexByte(value, '/')
	if i < 0 {
		return false
	}
	name := value[i+1:]
	return name != "" && !strings.HasPrefix(name, ".") && name == path.Base(name)
}
