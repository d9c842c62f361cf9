package submission

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/rules"
)

type uploadJob struct {
	fieldID string
	slot    *any
	file    model.Attachment
}

// uploadFiles replaces every pending attachment in values with the reference
// returned by the uploader. Values that already point at an uploaded file are
// passed through unchanged.
func (p *Pipeline) uploadFiles(ctx context.Context, form *model.Form, values map[string]any) error {
	var jobs []uploadJob
	singles := map[string][]any{}
	for _, f := range form.Fields {
		if f.Type != model.FieldFile {
			continue
		}
		v, ok := values[f.ID]
		if !ok || !rules.Provided(v) {
			continue
		}

		items, isList := fileList(v)
		slots := make([]any, len(items))
		for i, item := range items {
			switch x := item.(type) {
			case model.Attachment:
				jobs = append(jobs, uploadJob{fieldID: f.ID, slot: &slots[i], file: x})
			default:
				slots[i] = x
			}
		}
		if isList || f.Multiple {
			values[f.ID] = slots
		} else {
			singles[f.ID] = slots
		}
	}
	if len(jobs) > 0 {
		if err := p.runUploads(ctx, form.ID, jobs); err != nil {
			return err
		}
	}
	for id, slots := range singles {
		values[id] = slots[0]
	}
	return nil
}

// runUploads fills each job's slot, so results keep the input order whatever
// the concurrency. The first failure cancels the jobs not yet started.
func (p *Pipeline) runUploads(ctx context.Context, formID string, jobs []uploadJob) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, job := range jobs {
		job := job
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ref, err := p.uploadOne(gctx, job.file)
			p.observer.Uploaded(formID, job.file.Filename, err)
			if err != nil {
				return &UploadError{FieldID: job.fieldID, FileName: job.file.Filename, Cause: err}
			}
			*job.slot = ref
			return nil
		})
	}
	return g.Wait()
}

func (p *Pipeline) uploadOne(ctx context.Context, file model.Attachment) (model.FileRef, error) {
	rc, err := file.Open()
	if err != nil {
		return model.FileRef{}, err
	}
	defer rc.Close()
	return p.uploader.Upload(ctx, file.Filename, rc)
}

// checkAttachments rejects files sent as the answer of a field that does not
// take files.
func checkAttachments(form *model.Form, values map[string]any) error {
	for _, f := range form.Fields {
		v, ok := values[f.ID]
		if !ok || f.Type == model.FieldFile {
			continue
		}
		items, _ := fileList(v)
		for _, item := range items {
			if _, isFile := item.(model.Attachment); isFile {
				return &ValidationError{FieldID: f.ID, Message: "Field does not accept files"}
			}
		}
	}
	return nil
}

func fileList(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []model.Attachment:
		out := make([]any, len(x))
		for i, a := range x {
			out[i] = a
		}
		return out, true
	case []model.FileRef:
		out := make([]any, len(x))
		for i, r := range x {
			out[i] = r
		}
		return out, true
	}
	return []any{v}, false
}
