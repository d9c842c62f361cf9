package middlewares

import (
	"context"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/mbolis/quick-form/httpx"
	"github.com/mbolis/quick-form/log"
	"github.com/mbolis/quick-form/model"
)

type ctxKey int

const subjectKey ctxKey = iota

// Admin middleware to check for the 'admin' role in a verified session token.
// The token must have been looked up by httpx.Tokens.Verifier.
func Admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			log.Debugf("auth.verify: %v", err)
			httpx.Error(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		if role(token) != model.RoleAdmin {
			httpx.LogStatus(w, r, http.StatusForbidden, log.DebugLevel, "auth.role")
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey, token.Subject())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func role(token jwt.Token) string {
	v, ok := token.Get("role")
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Subject returns the id of the admin acting in the request.
func Subject(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey).(string)
	return sub
}

// Logger writes one entry per request with its status, size and duration.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		level := log.InfoLevel
		switch {
		case m.Code >= 500:
			level = log.ErrorLevel
		case m.Code >= 400:
			level = log.WarnLevel
		}
		log.LogFields(level, log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   m.Code,
			"bytes":    m.Written,
			"duration": m.Duration.String(),
			"remote":   r.RemoteAddr,
			"req_id":   middleware.GetReqID(r.Context()),
		}, "http.request")
	})
}
