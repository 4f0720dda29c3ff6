package domain

import "errors"

var (
	ErrInvalidNickname         = errors.New("invalid nickname")
	ErrIllegalStateTransition  = errors.New("illegal state transition")
	ErrTargetUnavailable       = errors.New("target unavailable")
	ErrStaleReference          = errors.New("stale reference")
	ErrTransportLost           = errors.New("transport lost")
	ErrConnectionNotRegistered = errors.New("connection not registered")
	ErrNoActiveSession         = errors.New("no active session")
)
