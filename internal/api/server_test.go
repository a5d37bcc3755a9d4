package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"flchat/internal/apperr"
	"flchat/internal/auth"
	myMiddleware "flchat/internal/middleware"
	"flchat/internal/user"
)

type stubUsers map[int]*user.User

func (s stubUsers) Authenticate(_ context.Context, id auth.Identity) (*user.User, error) {
	if u, ok := s[id.UserID]; ok {
		return u, nil
	}
	return nil, apperr.Authentication("user no longer exists")
}

type stubTokens map[string]auth.Identity

func (s stubTokens) ValidateToken(tok string) (auth.Identity, error) {
	if id, ok := s[tok]; ok {
		return id, nil
	}
	return auth.Identity{}, apperr.Authentication("invalid or expired token")
}

type okPinger struct{ err error }

func (p okPinger) Ping(context.Context) error { return p.err }

type response struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Kind    apperr.Kind `json:"kind"`
		Message string      `json:"message"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	s := NewServer(stubUsers{
		1: {ID: 1, Email: "alice@x.com", FirstName: "alice", IsActive: true},
		2: {ID: 2, Email: "root@x.com", FirstName: "root", IsActive: true, IsAdmin: true},
	})
	s.Handle("echo", Public, func(_ context.Context, caller *user.User, vars json.RawMessage) (interface{}, error) {
		v, err := decode[struct {
			Say string `json:"say"`
		}](vars)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"say": v.Say, "anonymous": caller == nil}, nil
	})
	s.Handle("whoami", Authenticated, func(_ context.Context, caller *user.User, _ json.RawMessage) (interface{}, error) {
		return caller.Email, nil
	})
	s.Handle("secret", Admin, func(context.Context, *user.User, json.RawMessage) (interface{}, error) {
		return "42", nil
	})
	s.Handle("explode", Public, func(context.Context, *user.User, json.RawMessage) (interface{}, error) {
		return nil, errors.New("pq: connection refused")
	})

	am := myMiddleware.NewAuthMiddleware(stubTokens{
		"alice-token": {UserID: 1, Email: "alice@x.com"},
		"root-token":  {UserID: 2, Email: "root@x.com"},
		"ghost-token": {UserID: 99, Email: "ghost@x.com"},
	})
	return NewRouter(s, am, 1000, okPinger{})
}

func call(t *testing.T, h http.Handler, token, body string) (int, response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return rec.Code, resp
}

func TestPublicOperation(t *testing.T) {
	h := newTestRouter(t)
	code, resp := call(t, h, "", `{"operation":"echo","variables":{"say":"hi"}}`)
	if code != http.StatusOK || resp.Error != nil {
		t.Fatalf("code=%d err=%+v", code, resp.Error)
	}
	var data map[string]interface{}
	json.Unmarshal(resp.Data, &data)
	if data["say"] != "hi" || data["anonymous"] != true {
		t.Fatalf("data = %v", data)
	}
}

func TestGuards(t *testing.T) {
	h := newTestRouter(t)
	cases := []struct {
		name  string
		token string
		op    string
		code  int
		kind  apperr.Kind
	}{
		{"no token", "", "whoami", http.StatusUnauthorized, apperr.KindAuthentication},
		{"bad token", "forged", "whoami", http.StatusUnauthorized, apperr.KindAuthentication},
		{"deleted user", "ghost-token", "whoami", http.StatusUnauthorized, apperr.KindAuthentication},
		{"authenticated", "alice-token", "whoami", http.StatusOK, ""},
		{"non-admin", "alice-token", "secret", http.StatusForbidden, apperr.KindPermission},
		{"admin", "root-token", "secret", http.StatusOK, ""},
		{"public with bad token", "forged", "echo", http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, resp := call(t, h, tc.token, `{"operation":"`+tc.op+`"}`)
			if code != tc.code {
				t.Fatalf("code = %d, want %d", code, tc.code)
			}
			if tc.kind == "" && resp.Error != nil {
				t.Fatalf("unexpected error %+v", resp.Error)
			}
			if tc.kind != "" && (resp.Error == nil || resp.Error.Kind != tc.kind) {
				t.Fatalf("error = %+v, want kind %s", resp.Error, tc.kind)
			}
		})
	}
}

func TestWhoamiReturnsCaller(t *testing.T) {
	h := newTestRouter(t)
	_, resp := call(t, h, "alice-token", `{"operation":"whoami"}`)
	if string(resp.Data) != `"alice@x.com"` {
		t.Fatalf("data = %s", resp.Data)
	}
}

func TestBadRequests(t *testing.T) {
	h := newTestRouter(t)
	for name, body := range map[string]string{
		"not json":         `{{`,
		"unknown op":       `{"operation":"dance"}`,
		"unknown variable": `{"operation":"echo","variables":{"shout":"hi"}}`,
		"wrong type":       `{"operation":"echo","variables":{"say":5}}`,
	} {
		code, resp := call(t, h, "", body)
		if code != http.StatusBadRequest || resp.Error == nil || resp.Error.Kind != apperr.KindValidation {
			t.Errorf("%s: code=%d err=%+v", name, code, resp.Error)
		}
	}
}

func TestInternalErrorsAreHidden(t *testing.T) {
	h := newTestRouter(t)
	code, resp := call(t, h, "", `{"operation":"explode"}`)
	if code != http.StatusInternalServerError {
		t.Fatalf("code = %d", code)
	}
	if resp.Error == nil || resp.Error.Message != "internal error" {
		t.Fatalf("error = %+v", resp.Error)
	}
}

func TestHealthz(t *testing.T) {
	s := NewServer(stubUsers{})
	am := myMiddleware.NewAuthMiddleware(stubTokens{})

	for _, tc := range []struct {
		ping error
		code int
	}{{nil, http.StatusOK}, {errors.New("down"), http.StatusServiceUnavailable}} {
		rec := httptest.NewRecorder()
		NewRouter(s, am, 10, okPinger{tc.ping}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != tc.code {
			t.Errorf("ping %v: code = %d, want %d", tc.ping, rec.Code, tc.code)
		}
	}
}

func TestRegisterOperationsNames(t *testing.T) {
	s := NewServer(stubUsers{})
	RegisterOperations(s, nil, nil, nil)

	want := []string{
		"addContact", "addToMpc", "conversation", "conversationParticipants", "conversations",
		"createMpc", "deleteUser", "hello", "login", "logout", "me", "messages",
		"myChats", "myContacts", "myMultiChats", "myPersonalChats", "refresh", "register",
		"sendMessage", "updateUser", "user", "users",
	}
	if got := s.Operations(); !reflect.DeepEqual(got, want) {
		t.Fatalf("operations = %v", got)
	}

	for name, access := range map[string]Access{
		"register": Public, "login": Public, "refresh": Public,
		"sendMessage": Authenticated, "me": Authenticated, "addToMpc": Authenticated,
		"user": Admin, "users": Admin, "conversation": Admin, "conversations": Admin,
	} {
		if s.ops[name].access != access {
			t.Errorf("%s access = %d, want %d", name, s.ops[name].access, access)
		}
	}
}

func TestDuplicateOperationPanics(t *testing.T) {
	s := NewServer(stubUsers{})
	s.Handle("x", Public, nil)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	s.Handle("x", Public, nil)
}
