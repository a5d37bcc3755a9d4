package myMiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"flchat/internal/apperr"
	"flchat/internal/auth"
)

type stubValidator map[string]auth.Identity

func (s stubValidator) ValidateToken(tok string) (auth.Identity, error) {
	if id, ok := s[tok]; ok {
		return id, nil
	}
	return auth.Identity{}, apperr.Authentication("invalid or expired token")
}

func run(t *testing.T, req *http.Request) (auth.Identity, error) {
	t.Helper()
	var (
		id  auth.Identity
		err error
	)
	h := NewAuthMiddleware(stubValidator{"good": {UserID: 4, Email: "d@x.com"}}).
		Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err = IdentityFrom(r.Context())
		}))
	h.ServeHTTP(httptest.NewRecorder(), req)
	return id, err
}

func TestHandleBearerHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api", nil)
	req.Header.Set("Authorization", "Bearer good")
	id, err := run(t, req)
	if err != nil || id.UserID != 4 {
		t.Fatalf("identity = %+v, %v", id, err)
	}
}

func TestHandleQueryFallback(t *testing.T) {
	id, err := run(t, httptest.NewRequest(http.MethodPost, "/api?token=good", nil))
	if err != nil || id.Email != "d@x.com" {
		t.Fatalf("identity = %+v, %v", id, err)
	}
}

func TestHandleMissingAndInvalid(t *testing.T) {
	_, err := run(t, httptest.NewRequest(http.MethodPost, "/api", nil))
	if err != ErrMissingToken {
		t.Fatalf("missing token: err = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api", nil)
	req.Header.Set("Authorization", "Bearer bad")
	_, err = run(t, req)
	if !apperr.Is(err, apperr.KindAuthentication) || err == ErrMissingToken {
		t.Fatalf("invalid token: err = %v", err)
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	codes := []int{}
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api", nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}
