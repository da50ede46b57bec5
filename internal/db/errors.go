package db

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNotFound is returned when a document or row does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by create-only writes when the record is already present.
	ErrAlreadyExists = errors.New("document already exists")
	// ErrDuplicateEvent is returned by Mutate when the event key has already been applied.
	ErrDuplicateEvent = errors.New("event already processed")
	// ErrUnavailable marks store failures that may succeed on a later attempt.
	ErrUnavailable = errors.New("store unavailable")
)

// classifyFirestoreErr wraps transient gRPC failures with ErrUnavailable and leaves
// everything else untouched.
func classifyFirestoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted, codes.Canceled:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
