// Copyright © 2018 One Concern

// Package status holds the errors shared by block storage backends.
//
// It sits apart from pkg/storage so that backends and the blockstore
// can match errors without importing each other.
package status

import "github.com/oneconcern/nest/pkg/errors"

var (
	// ErrNotExists is returned when no object is stored under a key
	ErrNotExists = errors.New("no such object in storage")

	// ErrExists is returned by exclusive writes on an existing key
	ErrExists = errors.New("object already stored")

	// ErrInvalidResource is returned for keys a backend cannot store
	ErrInvalidResource = errors.New("invalid storage key")

	// ErrStorageAPI wraps any other failure of the underlying engine
	ErrStorageAPI = errors.New("storage engine error")
)
