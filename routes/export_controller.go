package routes

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-form/app"
	"github.com/mbolis/quick-form/httpx"
	"github.com/mbolis/quick-form/log"
	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/store"
)

const maxExportedResponses = 10000

const isoMillis = "2006-01-02T15:04:05.000Z"

// ExportResponses streams the responses of a form as CSV: one column for the
// submission time, then one per field id in form order.
func ExportResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "formId")
		form, err := app.Forms.Find(r.Context(), formID)
		if errors.Is(err, store.ErrNotFound) {
			httpx.LogNotFound(w, r, "export_responses", "form", formID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_form", err)
			return
		}

		name := form.Slug
		if name == "" {
			name = form.ID
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="responses_%s.csv"`, name))

		out := csv.NewWriter(w)
		header := make([]string, 0, len(form.Fields)+1)
		header = append(header, "submittedAt")
		for _, f := range form.Fields {
			header = append(header, f.ID)
		}
		if err = out.Write(header); err != nil {
			log.Warnf("export.write: %s", err)
			return
		}

		rows := 0
		err = app.Responses.Each(r.Context(), form.ID, maxExportedResponses, func(resp *model.Response) error {
			row := make([]string, 0, len(header))
			row = append(row, resp.SubmittedAt.UTC().Format(isoMillis))
			for _, f := range form.Fields {
				row = append(row, csvCell(resp.Values[f.ID]))
			}
			rows++
			return out.Write(row)
		})
		out.Flush()
		if err == nil {
			err = out.Error()
		}
		if err != nil {
			// headers are gone already, the client gets a truncated file
			log.WithError(err).Errorf("export.responses: form %s after %d rows", form.ID, rows)
			return
		}
		log.Debugf("export.responses: form %s, %d rows", form.ID, rows)
	}
}

// csvCell flattens an answer: lists are joined with "|" and objects are
// written as JSON.
func csvCell(v any) string {
	if list, ok := v.([]any); ok {
		items := make([]string, len(list))
		for i, item := range list {
			items[i] = csvCell(item)
		}
		return strings.Join(items, "|")
	}
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
