package handlers

import (
	"net/http"

	"github.com/templhub/api/internal/platform/auth"
)

// repoError is a classified persistence failure used across handler tests.
type repoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e repoError) Error() string       { return e.msg }
func (e repoError) IsNotFound() bool    { return e.notFound }
func (e repoError) IsConflict() bool    { return e.conflict }
func (e repoError) IsUnavailable() bool { return e.unavailable }

func notFoundError(msg string) error    { return repoError{msg: msg, notFound: true} }
func unavailableError(msg string) error { return repoError{msg: msg, unavailable: true} }

func withTestIdentity(r *http.Request, uid, email string) *http.Request {
	identity := &auth.Identity{UID: uid, Email: email, Roles: []string{auth.RoleUser}}
	return r.WithContext(auth.WithIdentity(r.Context(), identity))
}
