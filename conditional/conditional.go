// Package conditional decides whether a field is shown given the answers
// collected so far.
package conditional

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/mbolis/quick-form/model"
)

// Visible evaluates the field's conditional rule against answers. Fields
// without a rule, or with a rule that names no field, are always visible.
// Unknown operators allow the field.
func Visible(field *model.Field, answers map[string]any) bool {
	c := field.Conditional
	if c == nil || c.FieldID == "" {
		return true
	}
	left := answers[c.FieldID]
	right := c.Value

	switch c.Op {
	case model.OpEquals:
		return Equal(left, right)
	case model.OpNotEquals:
		return !Equal(left, right)
	case model.OpIn:
		items, ok := sequence(right)
		if !ok {
			return false
		}
		for _, item := range items {
			if Equal(left, item) {
				return true
			}
		}
		return false
	case model.OpContains:
		if falsy(left) || right == nil {
			return false
		}
		return strings.Contains(strings.ToLower(stringify(left)), strings.ToLower(stringify(right)))
	}
	return true
}

// Map computes the visibility of every field of the form.
func Map(form *model.Form, answers map[string]any) map[string]bool {
	visible := make(map[string]bool, len(form.Fields))
	for i := range form.Fields {
		f := &form.Fields[i]
		visible[f.ID] = Visible(f, answers)
	}
	return visible
}

// Dependents indexes the form by dependency: for each field id, the ids of
// the fields whose conditional reads it, in form order.
func Dependents(form *model.Form) map[string][]string {
	deps := make(map[string][]string)
	for _, f := range form.Fields {
		if f.Conditional == nil || f.Conditional.FieldID == "" {
			continue
		}
		deps[f.Conditional.FieldID] = append(deps[f.Conditional.FieldID], f.ID)
	}
	return deps
}

// Equal is strict equality: values of different kinds never match, numbers
// compare by value whatever their Go type, and sequences or objects only
// match when they are the same nil value.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	return false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func sequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		items := make([]any, len(s))
		for i, x := range s {
			items[i] = x
		}
		return items, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func falsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	}
	if n, ok := number(v); ok {
		return n == 0 || n != n
	}
	if items, ok := sequence(v); ok {
		return len(items) == 0
	}
	return false
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	}
	if n, ok := number(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	if items, ok := sequence(v); ok {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = stringify(item)
		}
		return strings.Join(parts, ",")
	}
	if ref, ok := model.AsFileRef(v); ok {
		return ref.Filename
	}
	return ""
}
