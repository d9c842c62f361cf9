package renderer

import (
	"strconv"
	"strings"

	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/rules"
)

// Invalid is returned by Validate and Submit when visible fields fail their
// rules.
type Invalid struct {
	Violations []*rules.Violation
}

func (e *Invalid) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.FieldID + ": " + v.Message
	}
	return "invalid answers: " + strings.Join(msgs, "; ")
}

// ByField groups the violation messages by field id.
func (e *Invalid) ByField() map[string][]string {
	out := map[string][]string{}
	for _, v := range e.Violations {
		out[v.FieldID] = append(out[v.FieldID], v.Message)
	}
	return out
}

// coerce checks that value fits the field and returns the form it is stored
// in. A nil result clears the answer.
func coerce(field *model.Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch field.Type {
	case model.FieldSelect, model.FieldRadio:
		s, ok := value.(string)
		if !ok {
			return nil, ErrWrongType
		}
		if s != "" && field.HasOptions() && !field.HasOption(s) {
			return nil, ErrNotAnOption
		}
		return s, nil

	case model.FieldCheckbox:
		if !field.HasOptions() {
			b, ok := value.(bool)
			if !ok {
				return nil, ErrWrongType
			}
			return b, nil
		}
		picked, ok := stringList(value)
		if !ok {
			return nil, ErrWrongType
		}
		for _, p := range picked {
			if !field.HasOption(p) {
				return nil, ErrNotAnOption
			}
		}
		return picked, nil

	case model.FieldNumber:
		switch n := value.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case string:
			n = strings.TrimSpace(n)
			if n == "" {
				return "", nil
			}
			f, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return nil, ErrWrongType
			}
			return f, nil
		}
		return nil, ErrWrongType

	case model.FieldFile:
		switch v := value.(type) {
		case model.Attachment, model.FileRef, string, map[string]any:
			return v, nil
		case []model.Attachment:
			out := make([]any, len(v))
			for i, a := range v {
				out[i] = a
			}
			return out, nil
		case []any:
			return v, nil
		}
		return nil, ErrWrongType

	case model.FieldText, model.FieldTextarea, model.FieldEmail, model.FieldDate:
		s, ok := value.(string)
		if !ok {
			return nil, ErrWrongType
		}
		return s, nil
	}
	return nil, ErrWrongType
}

func stringList(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return append([]string(nil), x...), true
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
