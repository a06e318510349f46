package oidcsession

import "errors"

var (
	// ErrManagerNotReady is returned when a Manager method is called before
	// the Builder finished wiring its dependencies.
	ErrManagerNotReady = errors.New("manager not ready")
	// ErrUnauthorized is returned by State when no valid session backs the
	// presented session id.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrIDTokenSubjectMismatch is returned when the id_token subject and
	// the userinfo subject disagree during session creation.
	ErrIDTokenSubjectMismatch = errors.New("id token subject mismatch")
)
