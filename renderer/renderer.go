// Package renderer binds live answers to a form: it keeps the answer state of
// one in-progress submission and recomputes visibility and validity on every
// edit.
package renderer

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/mbolis/quick-form/conditional"
	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/rules"
)

var (
	ErrUnknownField   = errors.New("unknown field")
	ErrNotAnOption    = errors.New("value is not one of the field options")
	ErrWrongType      = errors.New("value does not fit the field type")
	ErrSubmitInFlight = errors.New("a submission is already in progress")
)

// Submitter hands the finalized values to whatever stores them and returns the
// id of the new response.
type Submitter func(ctx context.Context, values map[string]any) (string, error)

// State is what a Watch callback receives for each field that changed.
type State struct {
	FieldID string
	Visible bool
	Errors  []string
}

// Session is the answer state of a single render. Edits are expected from one
// goroutine at a time; Submit may race with itself and rejects the overlap.
type Session struct {
	form *model.Form

	mu         sync.Mutex
	answers    map[string]any
	visible    map[string]bool
	errors     map[string][]*rules.Violation
	rules      map[string]rules.RuleSet
	dependents map[string][]string
	watchers   map[int]func(State)
	nextWatch  int

	inFlight atomic.Bool
}

// New starts a session on form with no answers.
func New(form *model.Form) *Session {
	s := &Session{
		form:       form,
		answers:    map[string]any{},
		errors:     map[string][]*rules.Violation{},
		rules:      make(map[string]rules.RuleSet, len(form.Fields)),
		dependents: conditional.Dependents(form),
		watchers:   map[int]func(State){},
	}
	for i := range form.Fields {
		f := &form.Fields[i]
		s.rules[f.ID] = rules.Build(f)
	}
	s.visible = conditional.Map(form, s.answers)
	return s
}

// Watch registers fn to be called, after an edit has been fully applied, with
// the new state of every field it affected. The returned func unregisters it.
func (s *Session) Watch(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// Set stores the answer for a field. Choice fields only take one of their
// options or the empty selection; checkbox groups take a list of options.
func (s *Session) Set(id string, value any) error {
	field, ok := s.form.Field(id)
	if !ok {
		return errors.Wrap(ErrUnknownField, id)
	}
	v, err := coerce(field, value)
	if err != nil {
		return errors.Wrap(err, id)
	}
	s.apply(field, v)
	return nil
}

// Toggle flips one option of a checkbox group.
func (s *Session) Toggle(id, option string) error {
	field, ok := s.form.Field(id)
	if !ok {
		return errors.Wrap(ErrUnknownField, id)
	}
	if field.Type != model.FieldCheckbox || !field.HasOptions() {
		return errors.Wrap(ErrWrongType, id)
	}
	if !field.HasOption(option) {
		return errors.Wrap(ErrNotAnOption, id)
	}

	s.mu.Lock()
	current, _ := s.answers[id].([]string)
	s.mu.Unlock()

	next := make([]string, 0, len(current)+1)
	found := false
	for _, o := range current {
		if o == option {
			found = true
			continue
		}
		next = append(next, o)
	}
	if !found {
		next = append(next, option)
	}
	s.apply(field, next)
	return nil
}

// Check sets a single checkbox, one without options.
func (s *Session) Check(id string, checked bool) error {
	field, ok := s.form.Field(id)
	if !ok {
		return errors.Wrap(ErrUnknownField, id)
	}
	if field.Type != model.FieldCheckbox || field.HasOptions() {
		return errors.Wrap(ErrWrongType, id)
	}
	s.apply(field, checked)
	return nil
}

// Attach adds pending files to a file field. A field that does not accept
// multiple files keeps only the last one.
func (s *Session) Attach(id string, files ...model.Attachment) error {
	field, ok := s.form.Field(id)
	if !ok {
		return errors.Wrap(ErrUnknownField, id)
	}
	if field.Type != model.FieldFile {
		return errors.Wrap(ErrWrongType, id)
	}
	if len(files) == 0 {
		return nil
	}
	if !field.Multiple {
		s.apply(field, files[len(files)-1])
		return nil
	}

	s.mu.Lock()
	var pending []any
	switch cur := s.answers[id].(type) {
	case []any:
		pending = append(pending, cur...)
	case nil:
	default:
		pending = append(pending, cur)
	}
	s.mu.Unlock()
	for _, f := range files {
		pending = append(pending, f)
	}
	s.apply(field, pending)
	return nil
}

// Clear removes the answer for a field.
func (s *Session) Clear(id string) error {
	field, ok := s.form.Field(id)
	if !ok {
		return errors.Wrap(ErrUnknownField, id)
	}
	s.apply(field, nil)
	return nil
}

// Fill sets several answers at once, in form order. Keys that name no field
// are ignored. Rejected values are reported by field id and leave the
// previous answer in place.
func (s *Session) Fill(values map[string]any) map[string]error {
	rejected := map[string]error{}
	for i := range s.form.Fields {
		id := s.form.Fields[i].ID
		v, ok := values[id]
		if !ok {
			continue
		}
		if err := s.Set(id, v); err != nil {
			rejected[id] = errors.Cause(err)
		}
	}
	return rejected
}

func (s *Session) apply(field *model.Field, v any) {
	s.mu.Lock()
	if v == nil {
		delete(s.answers, field.ID)
	} else {
		s.answers[field.ID] = v
	}

	changed := []string{field.ID}
	s.validateLocked(field.ID)
	for _, depID := range s.dependents[field.ID] {
		dep, ok := s.form.Field(depID)
		if !ok {
			continue
		}
		vis := conditional.Visible(dep, s.answers)
		if vis == s.visible[depID] {
			continue
		}
		s.visible[depID] = vis
		if vis {
			if _, answered := s.answers[depID]; answered {
				s.validateLocked(depID)
			}
		} else {
			delete(s.errors, depID)
		}
		if depID != field.ID {
			changed = append(changed, depID)
		}
	}
	states, watchers := s.snapshotLocked(changed)
	s.mu.Unlock()

	notify(watchers, states)
}

func (s *Session) validateLocked(id string) {
	if !s.visible[id] {
		delete(s.errors, id)
		return
	}
	vs := rules.Violations(s.rules[id].Validate(s.answers[id]))
	if len(vs) == 0 {
		delete(s.errors, id)
		return
	}
	s.errors[id] = vs
}

func (s *Session) snapshotLocked(ids []string) ([]State, []func(State)) {
	if len(s.watchers) == 0 {
		return nil, nil
	}
	states := make([]State, 0, len(ids))
	for _, id := range ids {
		states = append(states, State{FieldID: id, Visible: s.visible[id], Errors: messages(s.errors[id])})
	}
	watchers := make([]func(State), 0, len(s.watchers))
	for i := 0; i < s.nextWatch; i++ {
		if fn, ok := s.watchers[i]; ok {
			watchers = append(watchers, fn)
		}
	}
	return states, watchers
}

func notify(watchers []func(State), states []State) {
	for _, st := range states {
		for _, fn := range watchers {
			fn(st)
		}
	}
}

// Visible reports whether the field is currently shown.
func (s *Session) Visible(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible[id]
}

// Visibility returns a copy of the visibility of every field.
func (s *Session) Visibility() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.visible))
	for k, v := range s.visible {
		out[k] = v
	}
	return out
}

// Answer returns the raw answer stored for a field, hidden or not.
func (s *Session) Answer(id string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.answers[id]
	return v, ok
}

// Errors returns the messages of every field currently failing a rule.
func (s *Session) Errors() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]string, len(s.errors))
	for id, vs := range s.errors {
		out[id] = messages(vs)
	}
	return out
}

// Valid reports whether no visible field has errors. Fields never touched are
// only checked by Validate.
func (s *Session) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errors) == 0
}

// Validate runs the full rule set of every visible field, the way a submit
// does, and returns the violations or nil.
func (s *Session) Validate() error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.form.Fields))
	var all []*rules.Violation
	for i := range s.form.Fields {
		id := s.form.Fields[i].ID
		s.validateLocked(id)
		if vs, ok := s.errors[id]; ok {
			all = append(all, vs...)
			ids = append(ids, id)
		}
	}
	states, watchers := s.snapshotLocked(ids)
	s.mu.Unlock()

	notify(watchers, states)
	if len(all) == 0 {
		return nil
	}
	return &Invalid{Violations: all}
}

// Values returns the answers of visible fields, in form order. Answers of
// hidden fields stay in the session but are left out.
func (s *Session) Values() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.answers))
	for _, f := range s.form.Fields {
		if !s.visible[f.ID] {
			continue
		}
		if v, ok := s.answers[f.ID]; ok {
			out[f.ID] = v
		}
	}
	return out
}

// InFlight reports whether a Submit is running.
func (s *Session) InFlight() bool {
	return s.inFlight.Load()
}

// Submit validates the visible fields and hands their values to submit. Only
// one attempt runs at a time: an overlapping call gets ErrSubmitInFlight. The
// answers are reset once the submission succeeds and kept when it fails.
func (s *Session) Submit(ctx context.Context, submit Submitter) (string, error) {
	if !s.inFlight.CAS(false, true) {
		return "", ErrSubmitInFlight
	}
	defer s.inFlight.Store(false)

	if err := s.Validate(); err != nil {
		return "", err
	}
	id, err := submit(ctx, s.Values())
	if err != nil {
		return "", err
	}
	s.Reset()
	return id, nil
}

// Reset drops every answer and error.
func (s *Session) Reset() {
	s.mu.Lock()
	s.answers = map[string]any{}
	s.errors = map[string][]*rules.Violation{}
	s.visible = conditional.Map(s.form, s.answers)
	ids := make([]string, len(s.form.Fields))
	for i := range s.form.Fields {
		ids[i] = s.form.Fields[i].ID
	}
	states, watchers := s.snapshotLocked(ids)
	s.mu.Unlock()

	notify(watchers, states)
}

func messages(vs []*rules.Violation) []string {
	if len(vs) == 0 {
		return nil
	}
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Message
	}
	return out
}
