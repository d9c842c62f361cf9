// Package rules compiles the declarative constraints of a field into an
// ordered list of checks.
package rules

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"

	"github.com/mbolis/quick-form/model"
)

const (
	NameRequired  = "required"
	NameMinLength = "minLength"
	NameMaxLength = "maxLength"
	NameMin       = "min"
	NameMax       = "max"
	NamePattern   = "pattern"
)

// Rule is one predicate with the message reported when it fails.
type Rule struct {
	Name    string
	Check   func(v any) bool
	Message string
}

// Violation is a failed rule on a given field.
type Violation struct {
	FieldID string
	Rule    string
	Message string
}

func (v *Violation) Error() string {
	return v.Message
}

// RuleSet holds the compiled rules of one field, in evaluation order.
type RuleSet struct {
	FieldID string
	Rules   []Rule
}

// Build compiles every constraint of the field: required, length bounds,
// numeric bounds and pattern. A pattern that does not compile is skipped.
func Build(field *model.Field) RuleSet {
	rs := RuleSet{FieldID: field.ID}
	if field.Required {
		rs.Rules = append(rs.Rules, requiredRule(field))
	}
	v := field.Validation
	if v == nil {
		return rs
	}
	if v.MinLength != nil && *v.MinLength > 0 {
		n := *v.MinLength
		rs.Rules = append(rs.Rules, Rule{
			Name:    NameMinLength,
			Check:   func(x any) bool { return stringLength(x, func(l int) bool { return l >= n }) },
			Message: fmt.Sprintf("Minimum %d characters", n),
		})
	}
	if v.MaxLength != nil && *v.MaxLength > 0 {
		n := *v.MaxLength
		rs.Rules = append(rs.Rules, Rule{
			Name:    NameMaxLength,
			Check:   func(x any) bool { return stringLength(x, func(l int) bool { return l <= n }) },
			Message: fmt.Sprintf("Maximum %d characters", n),
		})
	}
	if v.Min != nil {
		min := *v.Min
		rs.Rules = append(rs.Rules, Rule{
			Name:    NameMin,
			Check:   func(x any) bool { return numeric(x, func(f float64) bool { return f >= min }) },
			Message: "Minimum " + formatNumber(min),
		})
	}
	if v.Max != nil {
		max := *v.Max
		rs.Rules = append(rs.Rules, Rule{
			Name:    NameMax,
			Check:   func(x any) bool { return numeric(x, func(f float64) bool { return f <= max }) },
			Message: "Maximum " + formatNumber(max),
		})
	}
	if v.Pattern != "" {
		if re, err := regexp.Compile(v.Pattern); err == nil {
			msg := v.PatternMessage
			if msg == "" {
				msg = "Invalid format"
			}
			rs.Rules = append(rs.Rules, Rule{
				Name: NamePattern,
				Check: func(x any) bool {
					s, ok := text(x)
					return !ok || re.MatchString(s)
				},
				Message: msg,
			})
		}
	}
	return rs
}

// RequiredOnly compiles just the required rule, the part of the rule set
// that is enforced when a response is stored.
func RequiredOnly(field *model.Field) RuleSet {
	rs := RuleSet{FieldID: field.ID}
	if field.Required {
		r := requiredRule(field)
		r.Message = field.DisplayName() + " is required"
		rs.Rules = append(rs.Rules, r)
	}
	return rs
}

func requiredRule(field *model.Field) Rule {
	label := field.Label
	if label == "" {
		label = "This field"
	}
	return Rule{Name: NameRequired, Check: Provided, Message: label + " is required"}
}

// Validate runs every rule and returns all violations as a multierror, or
// nil. Rules other than required are not run on a value that was not
// provided.
func (rs RuleSet) Validate(v any) error {
	var result *multierror.Error
	provided := Provided(v)
	for _, r := range rs.Rules {
		if r.Name != NameRequired && !provided {
			continue
		}
		if !r.Check(v) {
			result = multierror.Append(result, &Violation{FieldID: rs.FieldID, Rule: r.Name, Message: r.Message})
		}
	}
	return result.ErrorOrNil()
}

// First returns the first violation, or nil.
func (rs RuleSet) First(v any) *Violation {
	provided := Provided(v)
	for _, r := range rs.Rules {
		if r.Name != NameRequired && !provided {
			continue
		}
		if !r.Check(v) {
			return &Violation{FieldID: rs.FieldID, Rule: r.Name, Message: r.Message}
		}
	}
	return nil
}

// Violations flattens an error returned by Validate.
func Violations(err error) []*Violation {
	if err == nil {
		return nil
	}
	merr, ok := err.(*multierror.Error)
	if !ok {
		if v, ok := err.(*Violation); ok {
			return []*Violation{v}
		}
		return nil
	}
	out := make([]*Violation, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		if v, ok := e.(*Violation); ok {
			out = append(out, v)
		}
	}
	return out
}

// Provided reports whether a value counts as an answer: nil, the empty
// string and empty sequences do not.
func Provided(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case []string:
		return len(x) > 0
	case []model.Attachment:
		return len(x) > 0
	case []model.FileRef:
		return len(x) > 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func text(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return formatNumber(x), true
	}
	return "", false
}

func stringLength(v any, ok func(int) bool) bool {
	s, isText := text(v)
	if !isText {
		return true
	}
	return ok(utf8.RuneCountInString(s))
}

func numeric(v any, ok func(float64) bool) bool {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return true
		}
		f = parsed
	default:
		return true
	}
	return ok(f)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
