package routes

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-form/app"
	"github.com/mbolis/quick-form/httpx"
	"github.com/mbolis/quick-form/log"
	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/routes/middlewares"
	"github.com/mbolis/quick-form/store"
)

const maxListedResponses = 5000

type formResponse struct {
	OK   bool        `json:"ok"`
	Form *model.Form `json:"form"`
}

// decodeForm reads a form document from the body and readies it for storage.
// It writes the error response itself and returns nil on failure.
func decodeForm(w http.ResponseWriter, r *http.Request) *model.Form {
	form := &model.Form{}
	if err := render.DecodeJSON(r.Body, form); err != nil {
		httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "invalid form: %s", err)
		return nil
	}

	form.Prepare()
	if err := form.Check(); err != nil {
		var se *model.SchemaError
		if errors.As(err, &se) && se.FieldID != "" {
			log.Debugf("request.check_form: %s", err)
			httpx.FieldError(w, r, http.StatusBadRequest, se.FieldID, err.Error())
			return nil
		}
		httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.check_form", "%s", err)
		return nil
	}
	if dangling := form.DanglingConditionals(); len(dangling) > 0 {
		log.WithFields(log.Fields{"slug": form.Slug, "fields": dangling}).
			Warn("form.conditional: rule does not name another field of the form")
	}
	return form
}

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form := decodeForm(w, r)
		if form == nil {
			return
		}
		form.ID = ""
		form.CreatedBy = middlewares.Subject(r.Context())

		err := app.Forms.Create(r.Context(), form)
		if errors.Is(err, store.ErrSlugTaken) {
			httpx.LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, "db.insert_form", "slug %q already in use", form.Slug)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_form", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, formResponse{OK: true, Form: form})
	}
}

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forms, err := app.Forms.List(r.Context())
		if err != nil {
			httpx.LogInternalError(w, r, "db.list_forms", err)
			return
		}
		render.JSON(w, r, map[string]any{"ok": true, "forms": forms})
	}
}

func GetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		form, err := app.Forms.Find(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, r, "get_form", "form", id)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_form", err)
			return
		}
		render.JSON(w, r, formResponse{OK: true, Form: form})
	}
}

// UpdateForm replaces the whole form document.
func UpdateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form := decodeForm(w, r)
		if form == nil {
			return
		}
		form.ID = chi.URLParam(r, "id")

		err := app.Forms.Update(r.Context(), form)
		switch {
		case errors.Is(err, store.ErrNotFound):
			httpx.LogNotFound(w, r, "update_form", "form", form.ID)
			return
		case errors.Is(err, store.ErrSlugTaken):
			httpx.LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, "db.update_form", "slug %q already in use", form.Slug)
			return
		case err != nil:
			httpx.LogInternalError(w, r, "db.update_form", err)
			return
		}
		render.JSON(w, r, formResponse{OK: true, Form: form})
	}
}

func DeleteForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := app.Forms.Delete(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, r, "delete_form", "form", id)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_form", err)
			return
		}
		render.JSON(w, r, okResponse{OK: true})
	}
}

// ListResponses returns the latest responses of a form, newest first.
func ListResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "formId")

		limit := maxListedResponses
		if q := r.URL.Query().Get("limit"); q != "" {
			n, err := strconv.Atoi(q)
			if err != nil || n < 1 {
				httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.limit", "invalid limit %q", q)
				return
			}
			if n < limit {
				limit = n
			}
		}

		if _, err := app.Forms.Find(r.Context(), formID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				httpx.LogNotFound(w, r, "list_responses", "form", formID)
				return
			}
			httpx.LogInternalError(w, r, "db.get_form", err)
			return
		}

		list, err := app.Responses.List(r.Context(), formID, limit)
		if err != nil {
			httpx.LogInternalError(w, r, "db.list_responses", err)
			return
		}
		total, err := app.Responses.Count(r.Context(), formID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.count_responses", err)
			return
		}
		render.JSON(w, r, map[string]any{"ok": true, "responses": list, "total": total})
	}
}
