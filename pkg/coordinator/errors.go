package coordinator

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrTimeout   = errors.New("relay timeout")
	ErrTransport = errors.New("relay transport error")
)

type Kind int

const (
	KindTransport Kind = iota + 1
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// FetchError is returned for every failed miss. errors.Is matches it against
// ErrTimeout or ErrTransport according to Kind, and against the cause.
type FetchError struct {
	Kind Kind
	Key  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.Key, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}

func classify(key string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: KindTimeout, Key: key, Err: err}
	}
	return &FetchError{Kind: KindTransport, Key: key, Err: err}
}
