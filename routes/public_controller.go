package routes

import (
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-form/app"
	"github.com/mbolis/quick-form/httpx"
	"github.com/mbolis/quick-form/log"
	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/renderer"
	"github.com/mbolis/quick-form/store"
	"github.com/mbolis/quick-form/submission"
	"github.com/mbolis/quick-form/upload"
)

// multipartMemory is how much of a multipart body is kept in memory before
// file parts spill to disk.
const multipartMemory = 8 << 20

// maxSubmitFiles bounds a multipart submission to this many full-size files.
const maxSubmitFiles = 8

type submitBody struct {
	Values map[string]any `json:"values"`
	Meta   map[string]any `json:"meta"`
}

// liveForm loads a form by slug for the public routes. Archived forms do not
// exist there. It writes the error response itself and returns nil on failure.
func liveForm(app app.App, w http.ResponseWriter, r *http.Request) *model.Form {
	slug := chi.URLParam(r, "slug")
	form, err := app.Forms.FindBySlug(r.Context(), slug)
	if errors.Is(err, store.ErrNotFound) || (err == nil && form.Archived) {
		httpx.LogNotFound(w, r, "get_form_by_slug", "form", slug)
		return nil
	}
	if err != nil {
		httpx.LogInternalError(w, r, "db.get_form_by_slug", err)
		return nil
	}
	return form
}

func GetFormBySlug(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form := liveForm(app, w, r)
		if form == nil {
			return
		}
		render.JSON(w, r, formResponse{OK: true, Form: form})
	}
}

type checkResponse struct {
	OK         bool                `json:"ok"`
	Valid      bool                `json:"valid"`
	Visible    map[string]bool     `json:"visible"`
	Errors     map[string][]string `json:"errors"`
	SubmitText string              `json:"submitText"`
}

// CheckForm evaluates a set of answers the way the form renderer does: it
// returns the visibility of every field and the full validation outcome of
// the visible ones, without storing anything.
func CheckForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form := liveForm(app, w, r)
		if form == nil {
			return
		}
		body := submitBody{}
		if err := render.DecodeJSON(r.Body, &body); err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "invalid request body")
			return
		}

		session := renderer.New(form)
		rejected := session.Fill(body.Values)

		errs := map[string][]string{}
		var invalid *renderer.Invalid
		if err := session.Validate(); errors.As(err, &invalid) {
			errs = invalid.ByField()
		}
		for id, err := range rejected {
			if !session.Visible(id) {
				continue
			}
			errs[id] = append([]string{err.Error()}, errs[id]...)
		}
		render.JSON(w, r, checkResponse{
			OK:         true,
			Valid:      len(errs) == 0,
			Visible:    session.Visibility(),
			Errors:     errs,
			SubmitText: form.SubmitText(),
		})
	}
}

// SubmitResponse accepts the answers to a form, either as a JSON body or as
// a multipart body with a "values" JSON part and one file part per file
// field, named after the field id.
func SubmitResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "formId")

		req, err := decodeSubmission(w, r, app.UploadMaxBytes)
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				httpx.LogStatusMsg(w, r, http.StatusRequestEntityTooLarge, log.DebugLevel, "request.parse_body", "request too large")
				return
			}
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "invalid request body: %s", err)
			return
		}
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}

		id, err := app.Pipeline.SubmitByID(r.Context(), formID, req)
		if err != nil {
			submitError(w, r, formID, err)
			return
		}

		log.WithFields(log.Fields{"form": formID, "response": id}).Info("submission.stored")
		render.JSON(w, r, map[string]any{"ok": true, "responseId": id})
	}
}

func submitError(w http.ResponseWriter, r *http.Request, formID string, err error) {
	var (
		upErr  *submission.UploadError
		valErr *submission.ValidationError
	)
	switch {
	case errors.Is(err, submission.ErrFormNotFound):
		httpx.LogNotFound(w, r, "submit", "form", formID)
	case errors.As(err, &valErr):
		log.Debugf("submission.invalid: form %s field %s: %s", formID, valErr.FieldID, valErr.Message)
		httpx.FieldError(w, r, http.StatusBadRequest, valErr.FieldID, valErr.Message)
	case errors.As(err, &upErr):
		if errors.Is(upErr.Cause, upload.ErrTooLarge) {
			log.Debugf("submission.upload: %s", err)
			httpx.FieldError(w, r, http.StatusRequestEntityTooLarge, upErr.FieldID, upErr.Error())
			return
		}
		log.WithFields(log.Fields{"form": formID, "field": upErr.FieldID}).Warnf("submission.upload: %s", err)
		httpx.FieldError(w, r, http.StatusBadRequest, upErr.FieldID, "upload of "+upErr.FileName+" failed")
	default:
		httpx.LogInternalError(w, r, "submission."+submission.Outcome(err), err)
	}
}

func decodeSubmission(w http.ResponseWriter, r *http.Request, maxBytes int64) (submission.Request, error) {
	req := submission.Request{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "multipart/form-data" {
		body := submitBody{}
		if err := render.DecodeJSON(r.Body, &body); err != nil {
			return req, err
		}
		if body.Values == nil {
			return req, errors.New("values required")
		}
		req.Values, req.Meta = body.Values, body.Meta
		return req, nil
	}

	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes*maxSubmitFiles+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return req, err
	}
	req.Values = map[string]any{}
	if raw := r.MultipartForm.Value["values"]; len(raw) > 0 && raw[0] != "" {
		if err := json.Unmarshal([]byte(raw[0]), &req.Values); err != nil {
			return req, errors.Wrap(err, "values")
		}
	}
	if raw := r.MultipartForm.Value["meta"]; len(raw) > 0 && raw[0] != "" {
		if err := json.Unmarshal([]byte(raw[0]), &req.Meta); err != nil {
			return req, errors.Wrap(err, "meta")
		}
	}
	for fieldID, headers := range r.MultipartForm.File {
		if len(headers) == 1 {
			req.Values[fieldID] = attachment(headers[0])
			continue
		}
		files := make([]any, len(headers))
		for i, fh := range headers {
			files[i] = attachment(fh)
		}
		req.Values[fieldID] = files
	}
	return req, nil
}

func attachment(fh *multipart.FileHeader) model.Attachment {
	return model.Attachment{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// clientIP is the host part of the remote address, which middleware.RealIP
// has already replaced when the request came through a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

type uploadResponse struct {
	OK           bool   `json:"ok"`
	URL          string `json:"url"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalname"`
	ContentType  string `json:"contentType"`
	Size         int64  `json:"size"`
}

// Upload stores a single file sent as the "file" part of a multipart body.
func Upload(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if app.UploadMaxBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, app.UploadMaxBytes+multipartMemory)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				httpx.LogStatusMsg(w, r, http.StatusRequestEntityTooLarge, log.DebugLevel, "upload.parse_body", "file too large")
				return
			}
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "upload.parse_body", "no file")
			return
		}
		defer file.Close()
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}

		stored, err := app.Uploads.Save(r.Context(), header.Filename, file)
		if errors.Is(err, upload.ErrTooLarge) {
			httpx.LogStatusMsg(w, r, http.StatusRequestEntityTooLarge, log.DebugLevel, "upload.save", "file too large")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "upload.save", err)
			return
		}

		render.JSON(w, r, uploadResponse{
			OK:           true,
			URL:          stored.URL,
			Filename:     stored.Filename,
			OriginalName: stored.OriginalName,
			ContentType:  stored.ContentType,
			Size:         stored.Size,
		})
	}
}

func Health(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := app.PingContext(r.Context()); err != nil {
			httpx.LogStatusMsg(w, r, http.StatusServiceUnavailable, log.ErrorLevel, "health.db", "database unavailable")
			return
		}
		render.JSON(w, r, okResponse{OK: true})
	}
}
