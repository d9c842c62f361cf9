package httpx

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/mbolis/quick-form/log"
)

// ErrResponse is the body of every failed API call.
type ErrResponse struct {
	Error   string `json:"error"`
	FieldID string `json:"fieldId,omitempty"`
}

// Error sends an HTTP response with the given status and an {error} body.
func Error(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrResponse{Error: msg})
}

// FieldError is Error attributed to one form field.
func FieldError(w http.ResponseWriter, r *http.Request, status int, fieldID, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrResponse{Error: msg, FieldID: fieldID})
}

// Will log an error, and send an HTTP response with status 500 and default text
func LogInternalError(w http.ResponseWriter, r *http.Request, code string, err error) {
	log.WithFields(log.Fields{"path": r.URL.Path}).Errorf("%s: %s", code, err)
	Error(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// Will log a debug message, and send an HTTP response with status 404 and "<what> not found"
func LogNotFound(w http.ResponseWriter, r *http.Request, code string, what string, id any) {
	log.Debugf("%s: not found (%v)", code, id)
	Error(w, r, http.StatusNotFound, what+" not found")
}

// Will log an error code at the given level, and send
// an HTTP response with status and default text
func LogStatus(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string) {
	log.Log(level, code)
	Error(w, r, status, http.StatusText(status))
}

// Will log an error code and message at the given level,
// and send an HTTP response with the given status and formatted message
func LogStatusMsg(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string, msg string, args ...any) {
	errMsg := fmt.Sprintf(msg, args...)
	log.Log(level, code+":", errMsg)
	Error(w, r, status, errMsg)
}
