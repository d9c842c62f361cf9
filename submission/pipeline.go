// Package submission turns the answers of a form into a stored response: it
// uploads attached files, checks required fields and persists the result.
package submission

import (
	"context"
	"io"
	"time"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-form/conditional"
	"github.com/mbolis/quick-form/log"
	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/rules"
	"github.com/mbolis/quick-form/store"
)

type Uploader interface {
	Upload(ctx context.Context, filename string, content io.Reader) (model.FileRef, error)
}

type FormFinder interface {
	Find(ctx context.Context, id string) (*model.Form, error)
}

type ResponseStore interface {
	Create(ctx context.Context, r *model.Response) error
}

// Request is one submission as received from a client.
type Request struct {
	Values    map[string]any
	Meta      map[string]any
	IP        string
	UserAgent string
}

type Pipeline struct {
	forms       FormFinder
	uploader    Uploader
	responses   ResponseStore
	observer    Observer
	concurrency int
	now         func() time.Time
}

type Option func(*Pipeline)

// WithObserver reports state changes and outcomes to o.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithConcurrency lets up to n files of one submission upload at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

func New(forms FormFinder, uploader Uploader, responses ResponseStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		forms:       forms,
		uploader:    uploader,
		responses:   responses,
		observer:    NopObserver{},
		concurrency: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SubmitByID looks up a live form and submits req against it.
func (p *Pipeline) SubmitByID(ctx context.Context, formID string, req Request) (string, error) {
	form, err := p.forms.Find(ctx, formID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.observer.Finished(formID, ErrFormNotFound, 0)
			return "", ErrFormNotFound
		}
		return "", errors.Wrap(err, "find form")
	}
	if form.Archived {
		p.observer.Finished(formID, ErrFormNotFound, 0)
		return "", ErrFormNotFound
	}
	return p.Submit(ctx, form, req)
}

// Submit runs one attempt. A failed attempt leaves nothing behind; calling
// Submit again starts over, uploads included.
func (p *Pipeline) Submit(ctx context.Context, form *model.Form, req Request) (id string, err error) {
	start := p.now()
	state := Idle
	move := func(next State) {
		p.observer.Transition(form.ID, state, next)
		log.WithFields(log.Fields{"form": form.ID, "from": state, "to": next}).Debug("submission.state")
		state = next
	}
	defer func() {
		if err != nil && state != Idle {
			move(Idle)
		}
		p.observer.Finished(form.ID, err, p.now().Sub(start))
	}()

	visible := conditional.Map(form, req.Values)
	values := make(map[string]any, len(req.Values))
	for _, f := range form.Fields {
		if v, ok := req.Values[f.ID]; ok && visible[f.ID] {
			values[f.ID] = v
		}
	}

	if err = checkAttachments(form, values); err != nil {
		return "", err
	}

	move(Uploading)
	if err = p.uploadFiles(ctx, form, values); err != nil {
		return "", err
	}

	move(Validating)
	for i := range form.Fields {
		f := &form.Fields[i]
		if !visible[f.ID] {
			continue
		}
		if v := rules.RequiredOnly(f).First(values[f.ID]); v != nil {
			return "", &ValidationError{FieldID: f.ID, Message: v.Message}
		}
	}

	move(Persisting)
	meta := req.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	resp := &model.Response{
		ID:          uuid.Must(uuid.NewV4()).String(),
		FormID:      form.ID,
		SubmittedAt: p.now().UTC(),
		Values:      values,
		IP:          req.IP,
		UserAgent:   req.UserAgent,
		Meta:        meta,
	}
	if err = p.responses.Create(ctx, resp); err != nil {
		return "", &PersistenceError{Cause: err}
	}

	move(Done)
	return resp.ID, nil
}
