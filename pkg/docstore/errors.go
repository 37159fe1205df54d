package docstore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrTransient    = errors.New("transient store failure")
	ErrGroupTooBig  = errors.New("op group exceeds batch limit")
	ErrInvalidPath  = errors.New("invalid field path")
	ErrStoreClosed  = errors.New("store closed")
	ErrInvalidBatch = errors.New("invalid batch")
)

// IsNotFound reports whether err means the document does not exist,
// either as ErrNotFound or as a gRPC NotFound status.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	return status.Code(err) == codes.NotFound
}

// IsRetryable reports whether a failed commit may succeed if sent again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.Aborted, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Internal:
		return true
	}
	return false
}
