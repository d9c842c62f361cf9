package conditional

import (
	"testing"

	"github.com/mbolis/quick-form/model"
)

func field(op model.Operator, value any) *model.Field {
	return &model.Field{
		ID:          "target",
		Type:        model.FieldText,
		Conditional: &model.Conditional{FieldID: "src", Op: op, Value: value},
	}
}

func TestNoConditionalAlwaysVisible(t *testing.T) {
	f := &model.Field{ID: "a", Type: model.FieldText}
	for _, answers := range []map[string]any{nil, {}, {"a": "x"}, {"other": 1.0}} {
		if !Visible(f, answers) {
			t.Fatalf("field without conditional hidden for %v", answers)
		}
	}
	f.Conditional = &model.Conditional{Op: model.OpEquals, Value: "x"}
	if !Visible(f, map[string]any{}) {
		t.Fatalf("conditional without fieldId must be visible")
	}
}

func TestEquals(t *testing.T) {
	cases := []struct {
		left, right any
		want        bool
	}{
		{"yes", "yes", true},
		{"yes", "no", false},
		{"1", 1.0, false},
		{1.0, 1, true},
		{true, true, true},
		{true, "true", false},
		{nil, "", false},
		{"", "", true},
		{nil, nil, true},
		{[]any{"a"}, []any{"a"}, false},
	}
	for _, c := range cases {
		answers := map[string]any{}
		if c.left != nil {
			answers["src"] = c.left
		}
		if got := Visible(field(model.OpEquals, c.right), answers); got != c.want {
			t.Errorf("equals %#v %#v = %v, want %v", c.left, c.right, got, c.want)
		}
		if got := Visible(field(model.OpNotEquals, c.right), answers); got == c.want {
			t.Errorf("not_equals %#v %#v = %v, want %v", c.left, c.right, got, !c.want)
		}
	}
}

func TestInRequiresSequence(t *testing.T) {
	for _, left := range []any{nil, "a", 1.0, true} {
		answers := map[string]any{"src": left}
		if Visible(field(model.OpIn, "a"), answers) {
			t.Fatalf("in with scalar right must be false (left %#v)", left)
		}
		if Visible(field(model.OpIn, nil), answers) {
			t.Fatalf("in with nil right must be false (left %#v)", left)
		}
	}
	if !Visible(field(model.OpIn, []any{"x", "a"}), map[string]any{"src": "a"}) {
		t.Fatalf("expected a in [x a]")
	}
	if !Visible(field(model.OpIn, []string{"b"}), map[string]any{"src": "b"}) {
		t.Fatalf("expected b in []string{b}")
	}
	if Visible(field(model.OpIn, []any{"1"}), map[string]any{"src": 1.0}) {
		t.Fatalf("in must not coerce")
	}
}

func TestContains(t *testing.T) {
	cases := []struct {
		left, right any
		want        bool
	}{
		{nil, "a", false},
		{"", "", false},
		{0.0, "0", false},
		{"Hello World", "WORLD", true},
		{"Hello", "bye", false},
		{[]any{"Red", "Blue"}, "blue", true},
		{42.0, "4", true},
		{"Hello", nil, false},
	}
	for _, c := range cases {
		answers := map[string]any{"src": c.left}
		if got := Visible(field(model.OpContains, c.right), answers); got != c.want {
			t.Errorf("contains %#v %#v = %v, want %v", c.left, c.right, got, c.want)
		}
	}
}

func TestUnknownOperatorAllows(t *testing.T) {
	if !Visible(field("greater_than", 5.0), map[string]any{"src": 1.0}) {
		t.Fatalf("unknown operator must allow")
	}
	if !Visible(field("", "x"), map[string]any{"src": "y"}) {
		t.Fatalf("empty operator must allow")
	}
}

func TestDanglingReferenceIsNoAnswer(t *testing.T) {
	f := &model.Field{ID: "a", Conditional: &model.Conditional{FieldID: "missing", Op: model.OpNotEquals, Value: ""}}
	if !Visible(f, map[string]any{"a": "x"}) {
		t.Fatalf("absent answer is not equal to empty string")
	}
	self := &model.Field{ID: "a", Conditional: &model.Conditional{FieldID: "a", Op: model.OpEquals, Value: "x"}}
	if !Visible(self, map[string]any{"a": "x"}) || Visible(self, map[string]any{}) {
		t.Fatalf("self reference reads its own answer")
	}
}

func TestMapAndDependents(t *testing.T) {
	form := &model.Form{Fields: []model.Field{
		{ID: "name", Type: model.FieldText, Required: true},
		{ID: "age", Type: model.FieldNumber, Conditional: &model.Conditional{FieldID: "name", Op: model.OpNotEquals, Value: ""}},
		{ID: "nick", Type: model.FieldText, Conditional: &model.Conditional{FieldID: "name", Op: model.OpContains, Value: "sam"}},
	}}
	vis := Map(form, map[string]any{"name": ""})
	if !vis["name"] || vis["age"] || vis["nick"] {
		t.Fatalf("unexpected visibility %v", vis)
	}
	vis = Map(form, map[string]any{"name": "Samantha"})
	if !vis["age"] || !vis["nick"] {
		t.Fatalf("unexpected visibility %v", vis)
	}
	deps := Dependents(form)
	if len(deps) != 1 || len(deps["name"]) != 2 || deps["name"][0] != "age" || deps["name"][1] != "nick" {
		t.Fatalf("unexpected dependents %v", deps)
	}
}
