// Package apperr classifies failures of calls against the remote board and
// turns them into short inline messages for the user.
//
// Every failed request maps to exactly one Kind:
//   - Connectivity: the server could not be reached at all;
//   - Validation: 400, the server's own text is shown verbatim;
//   - Auth: 401, the credential is invalid or expired;
//   - Server: 5xx, the user is asked to try later;
//   - Unknown: any other non-success status, shown with its code.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindConnectivity
	KindValidation
	KindAuth
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Client-side rejections. None of them involves a network call.
var (
	ErrMustAuthenticate = errors.New("must authenticate")
	ErrBusy             = errors.New("another request is in progress")
	ErrDisposed         = errors.New("controller disposed")
	ErrNotFound         = errors.New("item not found")
)

// Error is a classified failure of a remote call.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 for connectivity failures
	Message string // server-provided text, if any
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s (%d)", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Connectivity wraps a transport failure.
func Connectivity(err error) *Error {
	return &Error{Kind: KindConnectivity, Err: err}
}

// FromStatus classifies a non-success HTTP status. msg is the text the
// server put in its error body, possibly empty.
func FromStatus(status int, msg string) *Error {
	e := &Error{Status: status, Message: msg}
	switch {
	case status == http.StatusBadRequest:
		e.Kind = KindValidation
	case status == http.StatusUnauthorized:
		e.Kind = KindAuth
	case status >= 500:
		e.Kind = KindServer
	default:
		e.Kind = KindUnknown
	}
	return e
}

// KindOf reports the Kind of err, or KindUnknown if err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsAuth(err error) bool         { return KindOf(err) == KindAuth }
func IsConnectivity(err error) bool { return KindOf(err) == KindConnectivity }

// Inline messages shown to the user.
const (
	MsgOffline          = "No connection to the server. Check your network and try again."
	MsgSessionExpired   = "Your session has expired. Please log in again."
	MsgServerDown       = "Server is unavailable. Please try again later."
	MsgMustAuthenticate = "You must log in to do that."
	MsgInvalidCreds     = "Invalid login or password."
	MsgBusy             = "Please wait, the previous request is still running."
	MsgGeneric          = "Something went wrong."
)

// UserMessage renders err as the text shown inline to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrMustAuthenticate):
		return MsgMustAuthenticate
	case errors.Is(err, ErrBusy):
		return MsgBusy
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Request was cancelled."
	}

	var v *ValidationError
	if errors.As(err, &v) {
		return v.Error()
	}

	var e *Error
	if !errors.As(err, &e) {
		return MsgGeneric
	}
	switch e.Kind {
	case KindConnectivity:
		return MsgOffline
	case KindAuth:
		return MsgSessionExpired
	case KindServer:
		return MsgServerDown
	case KindValidation:
		if e.Message != "" {
			return e.Message
		}
		return "The server rejected the request."
	default:
		if e.Message != "" {
			return e.Message
		}
		return fmt.Sprintf("%s (status %d)", MsgGeneric, e.Status)
	}
}

// ValidationError is a client-side input check that failed before any
// request was made.
type ValidationError struct {
	Fields []string
}

func (v *ValidationError) Error() string {
	switch len(v.Fields) {
	case 0:
		return "invalid input"
	case 1:
		return v.Fields[0]
	}
	msg := v.Fields[0]
	for _, f := range v.Fields[1:] {
		msg += "; " + f
	}
	return msg
}
