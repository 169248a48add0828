// Copyright © 2018 One Concern

// Package storage provides interface to handle backend storage objects.
//
// This package supports the following backends:
//   - local file system (afero)
//   - badger embedded key-value store
//   - pebble embedded key-value store
//
// Blocks are always addressed by their content identifier: keys are opaque strings.
package storage
