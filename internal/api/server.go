package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sort"

	"flchat/internal/apperr"
	"flchat/internal/auth"
	myMiddleware "flchat/internal/middleware"
	"flchat/internal/user"
)

const maxBodyBytes = 1 << 20

// Access is the guard an operation runs behind.
type Access int

const (
	Public Access = iota
	Authenticated
	Admin
)

// Handler runs one operation. caller is nil for public operations.
type Handler func(ctx context.Context, caller *user.User, vars json.RawMessage) (interface{}, error)

type operation struct {
	access Access
	handle Handler
}

// Authenticator turns a token identity into the current user.
type Authenticator interface {
	Authenticate(ctx context.Context, id auth.Identity) (*user.User, error)
}

// Server dispatches {"operation", "variables"} requests on a single endpoint.
type Server struct {
	ops   map[string]operation
	users Authenticator
}

func NewServer(users Authenticator) *Server {
	return &Server{ops: map[string]operation{}, users: users}
}

func (s *Server) Handle(name string, access Access, h Handler) {
	if _, dup := s.ops[name]; dup {
		panic("api: duplicate operation " + name)
	}
	s.ops[name] = operation{access: access, handle: h}
}

func (s *Server) Operations() []string {
	names := make([]string, 0, len(s.ops))
	for name := range s.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type request struct {
	Operation string          `json:"operation"`
	Variables json.RawMessage `json:"variables"`
}

type errorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, "", apperr.Validation("malformed request body"))
		return
	}

	op, ok := s.ops[req.Operation]
	if !ok {
		writeError(w, req.Operation, apperr.Validation("unknown operation "+req.Operation))
		return
	}

	caller, err := s.guard(r.Context(), op.access)
	if err != nil {
		writeError(w, req.Operation, err)
		return
	}

	data, err := op.handle(r.Context(), caller, req.Variables)
	if err != nil {
		writeError(w, req.Operation, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": data})
}

// guard resolves the caller an operation requires.
func (s *Server) guard(ctx context.Context, access Access) (*user.User, error) {
	if access == Public {
		return nil, nil
	}
	id, err := myMiddleware.IdentityFrom(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Authenticate(ctx, id)
	if err != nil {
		return nil, err
	}
	if access == Admin && !u.IsAdmin {
		return nil, apperr.Permission("insufficient permission")
	}
	return u, nil
}

// decode unmarshals operation variables into T, rejecting unknown fields.
func decode[T any](vars json.RawMessage) (T, error) {
	var v T
	if len(vars) == 0 || string(vars) == "null" {
		return v, nil
	}
	dec := json.NewDecoder(bytes.NewReader(vars))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil && !errors.Is(err, io.EOF) {
		return v, apperr.Validation("invalid variables: " + err.Error())
	}
	return v, nil
}

func writeError(w http.ResponseWriter, op string, err error) {
	kind := apperr.KindOf(err)
	msg := err.Error()
	if kind == apperr.KindInternal {
		cause := err
		var e *apperr.Error
		if errors.As(err, &e) && e.Err != nil {
			cause = e.Err
		}
		log.Printf("❌ operation %q failed: %v", op, cause)
		msg = "internal error"
	}
	writeJSON(w, apperr.HTTPStatus(kind), map[string]interface{}{
		"error": errorBody{Kind: kind, Message: msg},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("❌ encode response: %v", err)
	}
}
