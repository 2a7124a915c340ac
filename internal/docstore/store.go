// Package docstore defines the document store capability the dashboard runs
// on: path-addressed JSON documents with realtime query subscriptions.
package docstore

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrPermissionDenied = errors.New("permission denied")
)

type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// PermissionError is returned when store-side rules reject an operation.
type PermissionError struct {
	Op   Op
	Path Path
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s %s: permission denied", e.Op, e.Path)
}

func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}

// Store is the document store capability.
//
// UpdateIf is Update with a precondition: check sees the stored document and
// its error aborts the write and is returned as is. No other write to path
// happens between the check and the merge.
//
// Subscribe delivers the current result of q to onNext and then one snapshot
// per change, in order. Errors go to onError; they do not end the
// subscription. The returned function stops delivery.
type Store interface {
	Get(ctx context.Context, path Path) (*Document, error)
	Set(ctx context.Context, path Path, data Fields, merge bool) error
	Update(ctx context.Context, path Path, data Fields) error
	UpdateIf(ctx context.Context, path Path, check func(*Document) error, data Fields) error
	Delete(ctx context.Context, path Path) error
	Subscribe(q Query, onNext func(Snapshot), onError func(error)) (func(), error)
}
