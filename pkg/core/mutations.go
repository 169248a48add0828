package core

import (
	"context"
	"io"
	"time"

	"github.com/oneconcern/nest/pkg/blockstore"
	"github.com/oneconcern/nest/pkg/core/status"
	"github.com/oneconcern/nest/pkg/private"
	"github.com/oneconcern/nest/pkg/public"
	"github.com/oneconcern/nest/pkg/roottree"
	"github.com/oneconcern/nest/pkg/unixfs"
)

// PUBLIC

type publicParams struct {
	store    blockstore.Store
	segments []string
	rootTree *roottree.RootTree
	now      time.Time
}

type publicMutation func(context.Context, publicParams) (*public.Directory, error)

func publicCreateDirectory() publicMutation {
	return func(ctx context.Context, params publicParams) (*public.Directory, error) {
		return params.rootTree.PublicRoot().Mkdir(ctx, params.segments, params.now, params.store)
	}
}

func publicRemove() publicMutation {
	return func(ctx context.Context, params publicParams) (*public.Directory, error) {
		return params.rootTree.PublicRoot().Rm(ctx, params.segments, params.store)
	}
}

func publicWrite(data []byte) publicMutation {
	return func(ctx context.Context, params publicParams) (*public.Directory, error) {
		content, err := unixfs.ImportFile(ctx, params.store, data)
		if err != nil {
			return nil, err
		}
		return params.rootTree.PublicRoot().Write(ctx, params.segments, content, params.now, params.store)
	}
}

// PRIVATE

type privateParams struct {
	privateNodeQueryResult

	store    blockstore.Store
	rootTree *roottree.RootTree
	rng      io.Reader
	now      time.Time
}

// privateResult holds the modified mounted directory and the forest where
// it was stored
type privateResult struct {
	rootDir *private.Directory
	forest  *private.Forest
}

type privateMutation func(context.Context, privateParams) (privateResult, error)

func privateMutate(ctx context.Context, params privateParams, dir *private.Directory) (privateResult, error) {
	_, forest, _, err := private.NodeFromDirectory(dir).Store(ctx, params.rootTree.PrivateForest(), params.store)
	if err != nil {
		return privateResult{}, err
	}
	return privateResult{rootDir: dir, forest: forest}, nil
}

func privateCreateDirectory() privateMutation {
	return func(ctx context.Context, params privateParams) (privateResult, error) {
		if params.Node.IsFile() {
			return privateResult{}, status.ErrInvalidOperation.WrapMessage("cannot create a directory inside a file")
		}
		dir, err := params.Node.AsDir().Mkdir(ctx, params.Remainder, searchLatest, params.now, params.rng, params.rootTree.PrivateForest(), params.store)
		if err != nil {
			return privateResult{}, err
		}
		return privateMutate(ctx, params, dir)
	}
}

func privateRemove() privateMutation {
	return func(ctx context.Context, params privateParams) (privateResult, error) {
		if params.Node.IsFile() {
			return privateResult{}, status.ErrInvalidOperation.WrapMessage("cannot remove self")
		}
		dir, err := params.Node.AsDir().Rm(ctx, params.Remainder, searchLatest, params.now, params.rootTree.PrivateForest(), params.store)
		if err != nil {
			return privateResult{}, err
		}
		return privateMutate(ctx, params, dir)
	}
}

func privateWrite(data []byte) privateMutation {
	return func(ctx context.Context, params privateParams) (privateResult, error) {
		if params.Node.IsFile() {
			return privateResult{}, status.ErrInvalidOperation.WrapMessage("cannot write into a mounted file directly")
		}
		dir, err := params.Node.AsDir().Write(ctx, params.Remainder, searchLatest, data, params.now, params.rng, params.rootTree.PrivateForest(), params.store)
		if err != nil {
			return privateResult{}, err
		}
		return privateMutate(ctx, params, dir)
	}
}
