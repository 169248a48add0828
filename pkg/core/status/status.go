// Package status exports errors produced by the core package.
//
// NOTE: such constants are located in a separate package so that the
// path model, the root tree and the primitives may return them without
// importing core.
package status

import (
	"github.com/oneconcern/nest/pkg/errors"
)

var (
	// ErrInvalidPath indicates a malformed path segment
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidPartition indicates that the first segment of a path is neither "public" nor "private"
	ErrInvalidPartition = errors.New("expected either a public or private path")

	// ErrNoAccess indicates that no mounted private node is an ancestor of the requested private path
	ErrNoAccess = errors.New("no access")

	// ErrInvalidOperation indicates a type-confused file or directory operation
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrNotFound indicates a node or link was not found
	ErrNotFound = errors.New("not found")

	// ErrCommitRejected indicates the commit verifier declined a transaction
	ErrCommitRejected = errors.New("the transaction was a no-op, most likely as a result of the commit not being approved by the commit verifier")

	// ErrVersionMismatch indicates an unparseable or unsupported file system version
	ErrVersionMismatch = errors.New("unsupported file system version")

	// ErrInvalidArgument indicates an argument that cannot be acted upon, e.g. copying a directory to a file
	ErrInvalidArgument = errors.New("invalid argument")
)
