package routes

import (
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-form/app"
	"github.com/mbolis/quick-form/httpx"
	"github.com/mbolis/quick-form/log"
	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/routes/middlewares"
	"github.com/mbolis/quick-form/store"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type userInfo struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
}

type sessionResponse struct {
	OK    bool     `json:"ok"`
	User  userInfo `json:"user"`
	Token string   `json:"token"`
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (c credentials, ok bool) {
	if err := render.DecodeJSON(r.Body, &c); err != nil {
		httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "invalid request body")
		return c, false
	}
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if c.Email == "" || c.Password == "" {
		httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.credentials", "email and password required")
		return c, false
	}
	return c, true
}

func startSession(app app.App, w http.ResponseWriter, r *http.Request, u *model.User) {
	token, err := app.Tokens.Issue(u)
	if err != nil {
		httpx.LogInternalError(w, r, "auth.issue_token", err)
		return
	}
	app.Tokens.SetCookie(w, token)
	render.JSON(w, r, sessionResponse{
		OK:    true,
		User:  userInfo{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role},
		Token: token,
	})
}

// Bootstrap creates the first admin. It is refused once any user exists.
func Bootstrap(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := app.Users.Count(r.Context())
		if err != nil {
			httpx.LogInternalError(w, r, "db.count_users", err)
			return
		}
		if n > 0 {
			httpx.LogStatusMsg(w, r, http.StatusForbidden, log.WarnLevel, "auth.bootstrap", "bootstrap not allowed")
			return
		}

		c, ok := decodeCredentials(w, r)
		if !ok {
			return
		}
		hash, err := httpx.HashPassword(c.Password)
		if err != nil {
			httpx.LogInternalError(w, r, "auth.hash_password", err)
			return
		}
		if c.Name == "" {
			c.Name = "Admin"
		}

		u := &model.User{Email: c.Email, Name: c.Name, Role: model.RoleAdmin, PasswordHash: hash}
		err = app.Users.Create(r.Context(), u)
		if errors.Is(err, store.ErrEmailTaken) {
			// lost a race with another bootstrap
			httpx.LogStatusMsg(w, r, http.StatusForbidden, log.WarnLevel, "auth.bootstrap", "bootstrap not allowed")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.create_user", err)
			return
		}
		log.Infof("auth.bootstrap: created admin %s", u.Email)

		startSession(app, w, r, u)
	}
}

func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := decodeCredentials(w, r)
		if !ok {
			return
		}

		u, err := httpx.VerifyCredentials(r.Context(), app.Users, c.Email, c.Password)
		if errors.Is(err, httpx.ErrBadCredentials) {
			httpx.LogStatusMsg(w, r, http.StatusUnauthorized, log.InfoLevel, "auth.login", "invalid credentials")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.find_user", err)
			return
		}

		startSession(app, w, r, u)
	}
}

func Logout(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app.Tokens.ClearCookie(w)
		render.JSON(w, r, okResponse{OK: true})
	}
}

// Me tells the admin UI who is logged in.
func Me(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]any{"ok": true, "sub": middlewares.Subject(r.Context())})
	}
}

type okResponse struct {
	OK bool `json:"ok"`
}
