package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/store"
)

type users map[string]*model.User

func (u users) FindByEmail(_ context.Context, email string) (*model.User, error) {
	if user, ok := u[email]; ok {
		return user, nil
	}
	return nil, store.ErrNotFound
}

func TestVerifyCredentials(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	db := users{
		"a@example.com":    {ID: 1, Email: "a@example.com", PasswordHash: hash},
		"nopw@example.com": {ID: 2, Email: "nopw@example.com"},
	}

	u, err := VerifyCredentials(context.Background(), db, "a@example.com", "hunter2")
	if err != nil || u.ID != 1 {
		t.Fatalf("expected user 1, got %v %v", u, err)
	}
	for _, c := range []struct{ email, pw string }{
		{"a@example.com", "wrong"},
		{"ghost@example.com", "hunter2"},
		{"nopw@example.com", ""},
	} {
		if _, err = VerifyCredentials(context.Background(), db, c.email, c.pw); !errors.Is(err, ErrBadCredentials) {
			t.Errorf("%s: expected ErrBadCredentials, got %v", c.email, err)
		}
	}
}

func TestIssueCarriesClaims(t *testing.T) {
	tokens := NewTokens("secret", time.Hour, "nf_token", false)
	raw, err := tokens.Issue(&model.User{ID: 7, Email: "a@example.com", Role: model.RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}

	token, err := jwtauth.VerifyToken(tokens.auth, raw)
	if err != nil {
		t.Fatal(err)
	}
	if token.Subject() != "7" {
		t.Fatalf("unexpected subject %q", token.Subject())
	}
	if role, _ := token.Get("role"); role != model.RoleAdmin {
		t.Fatalf("unexpected role %v", role)
	}
	if ttl := time.Until(token.Expiration()); ttl < 59*time.Minute || ttl > time.Hour {
		t.Fatalf("unexpected expiry in %s", ttl)
	}

	other := NewTokens("other", time.Hour, "nf_token", false)
	if _, err = jwtauth.VerifyToken(other.auth, raw); err == nil {
		t.Fatalf("token signed with another secret must be rejected")
	}
}

func TestSessionCookie(t *testing.T) {
	for _, secure := range []bool{false, true} {
		tokens := NewTokens("secret", 2*time.Hour, "nf_token", secure)
		rec := httptest.NewRecorder()
		tokens.SetCookie(rec, "abc")
		c := rec.Result().Cookies()[0]
		if c.Name != "nf_token" || c.Value != "abc" || !c.HttpOnly || c.MaxAge != 7200 || c.Secure != secure {
			t.Fatalf("unexpected cookie %+v", c)
		}
		want := http.SameSiteLaxMode
		if secure {
			want = http.SameSiteNoneMode
		}
		if c.SameSite != want {
			t.Fatalf("unexpected SameSite %v", c.SameSite)
		}

		rec = httptest.NewRecorder()
		tokens.ClearCookie(rec)
		if c = rec.Result().Cookies()[0]; c.MaxAge >= 0 {
			t.Fatalf("cleared cookie must expire, got %+v", c)
		}
	}
}
