package metrics

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/submission"
)

type uploader struct{ fail bool }

func (u uploader) Upload(ctx context.Context, name string, r io.Reader) (model.FileRef, error) {
	if u.fail {
		return model.FileRef{}, errors.New("no space left")
	}
	return model.FileRef{URL: "/uploads/" + name, Filename: name}, nil
}

type responses struct{}

func (responses) Create(context.Context, *model.Response) error { return nil }

func TestPipelineOutcomes(t *testing.T) {
	m := New(prometheus.NewRegistry())
	form := &model.Form{ID: "f", Title: "t", Slug: "t", Fields: []model.Field{
		{ID: "name", Type: model.FieldText, Required: true},
		{ID: "cv", Type: model.FieldFile},
	}}

	ok := submission.New(nil, uploader{}, responses{}, submission.WithObserver(m))
	failing := submission.New(nil, uploader{fail: true}, responses{}, submission.WithObserver(m))
	ctx := context.Background()

	_, _ = ok.Submit(ctx, form, submission.Request{Values: map[string]any{"name": "x", "cv": model.BytesAttachment("cv.pdf", nil)}})
	_, _ = ok.Submit(ctx, form, submission.Request{Values: map[string]any{}})
	_, _ = failing.Submit(ctx, form, submission.Request{Values: map[string]any{"name": "x", "cv": model.BytesAttachment("cv.pdf", nil)}})

	expect := map[string]float64{"ok": 1, "invalid": 1, "upload_failed": 1}
	for outcome, want := range expect {
		if got := testutil.ToFloat64(m.submissions.WithLabelValues(outcome)); got != want {
			t.Errorf("submissions{%s} = %v, want %v", outcome, got, want)
		}
	}
	if got := testutil.ToFloat64(m.uploads.WithLabelValues("ok")); got != 1 {
		t.Errorf("uploads{ok} = %v", got)
	}
	if got := testutil.ToFloat64(m.uploads.WithLabelValues("failed")); got != 1 {
		t.Errorf("uploads{failed} = %v", got)
	}
	if got := testutil.ToFloat64(m.inProgress); got != 0 {
		t.Errorf("in progress gauge must settle at 0, got %v", got)
	}
}
