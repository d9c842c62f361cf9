package httpx

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/store"
)

var ErrBadCredentials = errors.New("invalid credentials")

type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// HashPassword hashes a password for storage.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// VerifyCredentials returns the user owning email when password matches its
// hash. Unknown emails and wrong passwords give the same error.
func VerifyCredentials(ctx context.Context, users UserFinder, email, password string) (*model.User, error) {
	u, err := users.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if len(u.PasswordHash) == 0 {
		return nil, ErrBadCredentials
	}
	if err = bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// Tokens signs admin session tokens and moves them in and out of requests,
// through the Authorization header or an HttpOnly cookie.
type Tokens struct {
	auth   *jwtauth.JWTAuth
	ttl    time.Duration
	cookie string
	secure bool
}

func NewTokens(secret string, ttl time.Duration, cookieName string, secure bool) *Tokens {
	return &Tokens{
		auth:   jwtauth.New("HS256", []byte(secret), nil),
		ttl:    ttl,
		cookie: cookieName,
		secure: secure,
	}
}

// Issue signs a token carrying the user id as subject, its email and role.
func (t *Tokens) Issue(u *model.User) (string, error) {
	claims := map[string]any{
		"sub":   strconv.Itoa(u.ID),
		"email": u.Email,
		"role":  u.Role,
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, t.ttl)
	_, token, err := t.auth.Encode(claims)
	return token, err
}

// Verifier checks the token found in the request, if any, and stores the
// outcome in the request context.
func (t *Tokens) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verify(t.auth, jwtauth.TokenFromHeader, t.fromCookie)
}

func (t *Tokens) fromCookie(r *http.Request) string {
	c, err := r.Cookie(t.cookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func (t *Tokens) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, t.newCookie(token, int(t.ttl/time.Second)))
}

func (t *Tokens) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, t.newCookie("", -1))
}

func (t *Tokens) newCookie(value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if t.secure {
		// the admin UI may live on another site
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Path:     "/",
		Name:     t.cookie,
		Value:    value,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: sameSite,
	}
}
