package renderer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/rules"
)

func floatp(f float64) *float64 { return &f }

func nameAgeForm() *model.Form {
	return &model.Form{
		Title: "People",
		Slug:  "people",
		Fields: []model.Field{
			{ID: "name", Type: model.FieldText, Label: "Name", Required: true},
			{
				ID:          "age",
				Type:        model.FieldNumber,
				Label:       "Age",
				Required:    true,
				Conditional: &model.Conditional{FieldID: "name", Op: model.OpNotEquals, Value: ""},
				Validation:  &model.Validation{Min: floatp(18)},
			},
			{ID: "color", Type: model.FieldSelect, Options: []string{"red", "blue"}},
			{ID: "tags", Type: model.FieldCheckbox, Options: []string{"a", "b", "c"}},
			{ID: "agree", Type: model.FieldCheckbox},
			{ID: "docs", Type: model.FieldFile, Multiple: true},
			{ID: "avatar", Type: model.FieldFile},
		},
	}
}

func TestVisibilityFollowsDependency(t *testing.T) {
	s := New(nameAgeForm())

	if err := s.Set("name", ""); err != nil {
		t.Fatal(err)
	}
	if s.Visible("age") {
		t.Fatalf("age must be hidden while name is empty")
	}
	if err := s.Set("name", "Sam"); err != nil {
		t.Fatal(err)
	}
	if !s.Visible("age") {
		t.Fatalf("age must show once name is answered")
	}
}

func TestHiddenAnswerIsKeptButNotSubmitted(t *testing.T) {
	s := New(nameAgeForm())
	_ = s.Set("name", "Sam")
	_ = s.Set("age", 30.0)
	_ = s.Set("name", "")

	if _, ok := s.Answer("age"); !ok {
		t.Fatalf("hidden answer must stay in the session")
	}
	values := s.Values()
	if _, ok := values["age"]; ok {
		t.Fatalf("hidden answer leaked into values: %v", values)
	}

	_ = s.Set("name", "Sam")
	if s.Values()["age"] != 30.0 {
		t.Fatalf("answer must come back when the field shows again")
	}
}

func TestEditRecomputesOnlyAffectedFields(t *testing.T) {
	s := New(nameAgeForm())
	var got []State
	stop := s.Watch(func(st State) { got = append(got, st) })

	_ = s.Set("color", "red")
	if len(got) != 1 || got[0].FieldID != "color" {
		t.Fatalf("unexpected notifications %+v", got)
	}

	got = nil
	_ = s.Set("name", "")
	if len(got) != 2 || got[0].FieldID != "name" || got[1].FieldID != "age" || got[1].Visible {
		t.Fatalf("unexpected notifications %+v", got)
	}

	got = nil
	_ = s.Set("name", "x")
	_ = s.Set("name", "xy")
	if len(got) != 3 {
		t.Fatalf("age only changes once, got %+v", got)
	}

	stop()
	got = nil
	_ = s.Set("name", "z")
	if len(got) != 0 {
		t.Fatalf("stopped watcher was called")
	}
}

func TestLiveValidation(t *testing.T) {
	s := New(nameAgeForm())
	_ = s.Set("name", "Sam")
	_ = s.Set("age", 15.0)

	errs := s.Errors()
	if len(errs["age"]) != 1 || errs["age"][0] != "Minimum 18" {
		t.Fatalf("unexpected errors %v", errs)
	}
	if s.Valid() {
		t.Fatalf("session with errors must not be valid")
	}

	_ = s.Set("name", "")
	errs = s.Errors()
	if _, ok := errs["age"]; ok {
		t.Fatalf("hidden field errors must be dropped: %v", errs)
	}
	if len(errs["name"]) != 1 || errs["name"][0] != "Name is required" {
		t.Fatalf("unexpected errors %v", errs)
	}
}

func TestChoiceFields(t *testing.T) {
	s := New(nameAgeForm())

	if err := s.Set("color", "green"); !errors.Is(err, ErrNotAnOption) {
		t.Fatalf("expected ErrNotAnOption, got %v", err)
	}
	if err := s.Set("color", ""); err != nil {
		t.Fatalf("empty selection must be accepted: %v", err)
	}
	if err := s.Toggle("tags", "b"); err != nil {
		t.Fatal(err)
	}
	_ = s.Toggle("tags", "a")
	_ = s.Toggle("tags", "b")
	if v, _ := s.Answer("tags"); len(v.([]string)) != 1 || v.([]string)[0] != "a" {
		t.Fatalf("unexpected toggle set %v", v)
	}
	if err := s.Set("tags", []any{"a", "zzz"}); !errors.Is(err, ErrNotAnOption) {
		t.Fatalf("expected ErrNotAnOption, got %v", err)
	}
	if err := s.Check("agree", true); err != nil {
		t.Fatal(err)
	}
	if err := s.Check("tags", true); !errors.Is(err, ErrWrongType) {
		t.Fatalf("checkbox group is not a single checkbox: %v", err)
	}
	if err := s.Set("nope", "x"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestAttach(t *testing.T) {
	s := New(nameAgeForm())
	_ = s.Attach("docs", model.BytesAttachment("a.txt", []byte("a")))
	_ = s.Attach("docs", model.BytesAttachment("b.txt", []byte("b")), model.BytesAttachment("c.txt", nil))
	v, _ := s.Answer("docs")
	files := v.([]any)
	if len(files) != 3 || files[2].(model.Attachment).Filename != "c.txt" {
		t.Fatalf("unexpected pending files %v", files)
	}

	_ = s.Attach("avatar", model.BytesAttachment("1.png", nil), model.BytesAttachment("2.png", nil))
	v, _ = s.Answer("avatar")
	if v.(model.Attachment).Filename != "2.png" {
		t.Fatalf("single file field keeps the last file, got %v", v)
	}
	if err := s.Attach("name", model.BytesAttachment("x", nil)); !errors.Is(err, ErrWrongType) {
		t.Fatalf("expected ErrWrongType, got %v", err)
	}
}

func TestSubmitSkipsHiddenRequired(t *testing.T) {
	s := New(nameAgeForm())
	_ = s.Set("name", "")

	_, err := s.Submit(context.Background(), func(ctx context.Context, values map[string]any) (string, error) {
		t.Fatalf("submit must not be called with a missing visible required field")
		return "", nil
	})
	var inv *Invalid
	if !errors.As(err, &inv) || len(inv.ByField()["name"]) == 0 {
		t.Fatalf("expected name to be reported, got %v", err)
	}
	if _, hidden := inv.ByField()["age"]; hidden {
		t.Fatalf("hidden required field must not be reported")
	}

	_ = s.Set("name", "Sam")
	_ = s.Set("age", 42.0)
	id, err := s.Submit(context.Background(), func(ctx context.Context, values map[string]any) (string, error) {
		if values["name"] != "Sam" || values["age"] != 42.0 {
			t.Errorf("unexpected values %v", values)
		}
		return "r1", nil
	})
	if err != nil || id != "r1" {
		t.Fatalf("unexpected result %q %v", id, err)
	}
	if _, ok := s.Answer("name"); ok {
		t.Fatalf("answers must be reset after a successful submit")
	}
}

func TestSubmitKeepsAnswersOnFailure(t *testing.T) {
	s := New(nameAgeForm())
	_ = s.Set("name", "Sam")
	_ = s.Set("age", 20.0)

	boom := errors.New("boom")
	_, err := s.Submit(context.Background(), func(context.Context, map[string]any) (string, error) {
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected submitter error, got %v", err)
	}
	if v, _ := s.Answer("name"); v != "Sam" {
		t.Fatalf("answers must survive a failed attempt")
	}
	if s.InFlight() {
		t.Fatalf("failed attempt must release the guard")
	}
}

func TestSubmitRejectsReentrantCalls(t *testing.T) {
	s := New(nameAgeForm())
	_ = s.Set("name", "")
	_ = s.Set("name", "Sam")
	_ = s.Set("age", 20.0)

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.Submit(context.Background(), func(context.Context, map[string]any) (string, error) {
			close(started)
			<-release
			return "r1", nil
		})
		if err != nil {
			t.Errorf("first submit failed: %v", err)
		}
	}()

	<-started
	if !s.InFlight() {
		t.Fatalf("guard must be held while the submitter runs")
	}
	if _, err := s.Submit(context.Background(), func(context.Context, map[string]any) (string, error) {
		t.Errorf("second submitter must not run")
		return "", nil
	}); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("expected ErrSubmitInFlight, got %v", err)
	}
	close(release)
	wg.Wait()
}

func TestFillAndValidate(t *testing.T) {
	s := New(nameAgeForm())
	rejected := s.Fill(map[string]any{"age": 10.0, "name": "Al", "ghost": "x", "color": "pink"})
	if len(rejected) != 1 || rejected["color"] != ErrNotAnOption {
		t.Fatalf("unexpected rejections %v", rejected)
	}
	err := s.Validate()
	var inv *Invalid
	if !errors.As(err, &inv) {
		t.Fatalf("expected Invalid, got %v", err)
	}
	if len(inv.Violations) != 1 || inv.Violations[0].FieldID != "age" || inv.Violations[0].Rule != rules.NameMin {
		t.Fatalf("unexpected violations %+v", inv.Violations)
	}
	vis := s.Visibility()
	if !vis["age"] || !vis["name"] {
		t.Fatalf("unexpected visibility %v", vis)
	}
}
