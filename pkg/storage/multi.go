// Copyright © 2018 One Concern

package storage

import (
	"bytes"
	"context"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"
)

// MultiStoreUnit is used to specify multiple operations, some of which are tolerated to fail
type MultiStoreUnit struct {
	// Store is the backend to be accessed
	Store Store

	// TolerateFailure to false breaks multi-store operations whenever an error is encountered.
	TolerateFailure bool
}

// MultiPut duplicates write operations to an array of stores, under the same name
func MultiPut(ctx context.Context, stores []MultiStoreUnit, name string, buffer []byte, exclusive bool) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, toPin := range stores {
		w := toPin
		g.Go(func() error {
			err := w.Store.Put(gctx, name, bytes.NewReader(buffer), exclusive)
			if w.TolerateFailure {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}

// NewMirror builds a store writing to all units and reading from the first unit holding a key.
// Objects only found on a mirror are copied back to the primary when read.
//
// The first unit is the primary: Keys and Clear only reflect it.
func NewMirror(primary Store, mirrors ...MultiStoreUnit) Store {
	return &mirror{
		units: append([]MultiStoreUnit{{Store: primary}}, mirrors...),
	}
}

type mirror struct {
	units []MultiStoreUnit
}

func (m *mirror) String() string {
	names := make([]string, 0, len(m.units))
	for _, u := range m.units {
		names = append(names, u.Store.String())
	}
	return "mirror(" + strings.Join(names, ",") + ")"
}

func (m *mirror) Has(ctx context.Context, key string) (bool, error) {
	for _, u := range m.units {
		has, err := u.Store.Has(ctx, key)
		if err != nil {
			if u.TolerateFailure {
				continue
			}
			return false, err
		}
		if has {
			return true, nil
		}
	}
	return false, nil
}

func (m *mirror) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	var lastErr error
	for i, u := range m.units {
		has, err := u.Store.Has(ctx, key)
		if err != nil {
			lastErr = err
			if u.TolerateFailure {
				continue
			}
			return nil, err
		}
		if !has {
			continue
		}
		if i == 0 {
			return u.Store.Get(ctx, key)
		}

		// copy back to the primary
		object, err := ReadTee(ctx, u.Store, key, m.units[0].Store, key)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(object)), nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	// let the primary report a missing key the way it usually does
	return m.units[0].Store.Get(ctx, key)
}

func (m *mirror) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	buffer, err := io.ReadAll(source)
	if err != nil {
		return err
	}
	return MultiPut(ctx, m.units, key, buffer, exclusive)
}

func (m *mirror) Delete(ctx context.Context, key string) error {
	for _, u := range m.units {
		if err := u.Store.Delete(ctx, key); err != nil && !u.TolerateFailure {
			return err
		}
	}
	return nil
}

func (m *mirror) Keys(ctx context.Context) ([]string, error) {
	return m.units[0].Store.Keys(ctx)
}

func (m *mirror) Clear(ctx context.Context) error {
	return m.units[0].Store.Clear(ctx)
}
