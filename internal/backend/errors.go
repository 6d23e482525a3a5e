package backend

import (
	"errors"
	"fmt"
)

// ErrorKind separates business rejections from transport failures.
type ErrorKind string

const (
	KindRejected ErrorKind = "rejected"
	KindNetwork  ErrorKind = "network"
)

var (
	ErrRemoteRejected = errors.New("backend rejected the request")
	ErrNetwork        = errors.New("backend unreachable")
)

// RemoteError is returned by every Client call that reached, or tried to
// reach, the distribution backend. Message is the backend's literal text
// for rejections and is shown to operators unchanged.
type RemoteError struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Kind == KindRejected {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrRemoteRejected:
		return e.Kind == KindRejected
	case ErrNetwork:
		return e.Kind == KindNetwork
	}
	return false
}

// KindOf reports the error kind of err, or "" when err did not come from
// the backend client.
func KindOf(err error) ErrorKind {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

func rejected(op string, status int, message string) *RemoteError {
	if message == "" {
		message = fmt.Sprintf("backend returned status %d", status)
	}
	return &RemoteError{Kind: KindRejected, Op: op, StatusCode: status, Message: message}
}

func network(op string, err error) *RemoteError {
	return &RemoteError{Kind: KindNetwork, Op: op, Message: "backend unreachable, try again", Err: err}
}
