package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure at the operation boundary.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors not built by this package.
	KindUnknown Kind = iota
	// KindIO covers missing files, permission problems and full disks.
	KindIO
	// KindRewrite covers failures inside the read-rewrite-replace sequence.
	KindRewrite
	// KindConfig covers invalid configuration and malformed arguments.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindRewrite:
		return "rewrite"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error is a classified failure carrying the operation and path involved.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IO builds a KindIO error.
func IO(op, path string, err error) error {
	return &Error{Kind: KindIO, Op: op, Path: path, Err: err}
}

// Rewrite builds a KindRewrite error.
func Rewrite(op, path string, err error) error {
	return &Error{Kind: KindRewrite, Op: op, Path: path, Err: err}
}

// Config builds a KindConfig error.
func Config(op string, err error) error {
	return &Error{Kind: KindConfig, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err was classified as k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
