package core

import (
	"context"
	"sync"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/nest/pkg/blockstore"
	"github.com/oneconcern/nest/pkg/core/status"
	"github.com/oneconcern/nest/pkg/debounce"
	"github.com/oneconcern/nest/pkg/events"
	"github.com/oneconcern/nest/pkg/fspath"
	"github.com/oneconcern/nest/pkg/private"
	"github.com/oneconcern/nest/pkg/roottree"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Event names
const (
	// EventCommit is emitted after every applied transaction
	EventCommit = "commit"

	// EventPublish is emitted once commits settle down
	EventPublish = "publish"
)

// MutationResult references the file system after a mutation.
//
// Public paths fill ContentCID and CapsuleCID: for directories both hold the
// CID of the directory node. Private paths fill CapsuleKey.
type MutationResult struct {
	DataRoot   cid.Cid
	Path       fspath.Path
	ContentCID cid.Cid
	CapsuleCID cid.Cid
	CapsuleKey []byte
}

// TransactionResult is the outcome of a transaction. A transaction rejected
// by the commit verifier is a no-op and leaves the file system untouched.
type TransactionResult struct {
	DataRoot      cid.Cid
	Modifications []Modification
	NoOp          bool
}

// FileSystem owns the current root tree and the mounted private nodes.
//
// Transactions are serialized: each one works on a copy of the state, which
// replaces the current state once committed.
type FileSystem struct {
	options fsOptions
	store   blockstore.Store

	mx       sync.Mutex
	mounts   MountedPrivateNodes
	rootTree *roottree.RootTree

	emitter   *events.Emitter[Event]
	publisher *debounce.Debouncer[Event]
}

func rootTreeOptions(o fsOptions) []roottree.Option {
	return []roottree.Option{
		roottree.WithLogger(o.logger),
		roottree.WithClock(o.clock),
		roottree.WithRandom(o.rng),
	}
}

func newFileSystem(store blockstore.Store, tree *roottree.RootTree, o fsOptions) *FileSystem {
	fs := &FileSystem{
		options:  o,
		store:    store,
		mounts:   MountedPrivateNodes{},
		rootTree: tree,
		emitter:  events.New[Event](),
	}
	fs.publisher = debounce.New(o.settleTime, fs.publish, o.clock)
	return fs
}

// Create a file system with an empty public tree and an empty private forest
func Create(store blockstore.Store, opts ...Option) (*FileSystem, error) {
	o := defaultOptions(opts)
	tree, err := roottree.Create(store, rootTreeOptions(o)...)
	if err != nil {
		return nil, err
	}
	return newFileSystem(store, tree, o), nil
}

// FromCID loads a file system from a data root. Private nodes must be
// mounted again with their capsule keys.
func FromCID(ctx context.Context, store blockstore.Store, dataRoot cid.Cid, opts ...Option) (*FileSystem, error) {
	o := defaultOptions(opts)
	tree, err := roottree.FromCID(ctx, store, dataRoot, rootTreeOptions(o)...)
	if err != nil {
		return nil, err
	}
	return newFileSystem(store, tree, o), nil
}

// Close flushes any pending publish event
func (fs *FileSystem) Close() {
	fs.publisher.Close()
}

// EVENTS

// On registers a listener for EventCommit or EventPublish
func (fs *FileSystem) On(name string, listener events.Listener[Event]) events.Unsubscribe {
	return fs.emitter.On(name, listener)
}

// Once registers a listener called at most once
func (fs *FileSystem) Once(name string, listener events.Listener[Event]) events.Unsubscribe {
	return fs.emitter.Once(name, listener)
}

// Next yields the next event with that name
func (fs *FileSystem) Next(name string) <-chan Event {
	return fs.emitter.Next(name)
}

// Off removes all listeners of an event
func (fs *FileSystem) Off(name string) {
	fs.emitter.Off(name)
}

// MOUNTS

// MountPrivateNode mounts a single private node
func (fs *FileSystem) MountPrivateNode(ctx context.Context, request MountRequest) (MountResult, error) {
	results, err := fs.MountPrivateNodes(ctx, []MountRequest{request})
	if err != nil {
		return MountResult{}, err
	}
	return results[0], nil
}

// MountPrivateNodes attaches private nodes to paths of the private
// partition. Paths do not include the partition, e.g. the root directory
// mounts the whole private partition.
//
// A request without a capsule key creates a new empty node. Every mounted
// node is stored right away, so that its capsule key is returned.
func (fs *FileSystem) MountPrivateNodes(ctx context.Context, requests []MountRequest) ([]MountResult, error) {
	fs.mx.Lock()
	defer fs.mx.Unlock()

	tree := fs.rootTree
	nodes := make([]*private.Node, len(requests))

	for i, request := range requests {
		if request.CapsuleKey != nil {
			continue
		}
		node, err := newPrivateNode(ctx, request.Path, fs.options.clock.Now(), fs.options.rng, fs.store)
		if err != nil {
			return nil, err
		}
		nodes[i] = node
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, request := range requests {
		if request.CapsuleKey == nil {
			continue
		}

		idx, req := i, request
		g.Go(func() error {
			key, err := private.AccessKeyFromBytes(req.CapsuleKey)
			if err != nil {
				return err
			}
			node, err := private.Load(gctx, key, tree.PrivateForest(), fs.store, searchLatest)
			if err != nil {
				return err
			}
			if node.IsDir() != req.Path.IsDirectory() {
				return status.ErrInvalidArgument.WrapMessage("capsule key does not match the kind of '%s'", fspath.ToPosix(req.Path, true))
			}
			nodes[idx] = node
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mounts := fs.mounts.clone()
	forest := tree.PrivateForest()
	results := make([]MountResult, 0, len(requests))
	changes := make([]Modification, 0, len(requests))

	for i, request := range requests {
		key, next, stored, err := nodes[i].Store(ctx, forest, fs.store)
		if err != nil {
			return nil, err
		}
		forest = next
		mounts[mountKey(request.Path)] = MountedPrivateNode{Node: stored, Path: request.Path}

		results = append(results, MountResult{Path: request.Path, CapsuleKey: key.ToBytes()})
		changes = append(changes, Modification{
			Path: fspath.WithPartition(fspath.Private, request.Path),
			Type: AddedOrUpdated,
		})
	}

	fs.rootTree = tree.ReplacePrivateForest(forest, changes)
	fs.mounts = mounts
	return results, nil
}

// UnmountPrivateNode detaches the node mounted at a path. Nothing is removed
// from storage.
func (fs *FileSystem) UnmountPrivateNode(p fspath.Path) {
	fs.mx.Lock()
	defer fs.mx.Unlock()

	mounts := fs.mounts.clone()
	delete(mounts, mountKey(p))
	fs.mounts = mounts
}

// QUERIES

func (fs *FileSystem) snapshot() *TransactionContext {
	fs.mx.Lock()
	defer fs.mx.Unlock()
	return newTransactionContext(fs.store, fs.options, fs.mounts, fs.rootTree)
}

// ContentCID returns the CID of the content of a public file, if any
func (fs *FileSystem) ContentCID(ctx context.Context, p fspath.Path) (cid.Cid, bool, error) {
	return fs.snapshot().ContentCID(ctx, p)
}

// CapsuleCID returns the CID of a public node, if any
func (fs *FileSystem) CapsuleCID(ctx context.Context, p fspath.Path) (cid.Cid, bool, error) {
	return fs.snapshot().CapsuleCID(ctx, p)
}

// CapsuleKey returns the access key of a private node, if any
func (fs *FileSystem) CapsuleKey(ctx context.Context, p fspath.Path) ([]byte, bool, error) {
	return fs.snapshot().CapsuleKey(ctx, p)
}

// Exists tells if a node exists at a path
func (fs *FileSystem) Exists(ctx context.Context, p fspath.Path) (bool, error) {
	return fs.snapshot().Exists(ctx, p)
}

// ListDirectory lists the entries of a directory
func (fs *FileSystem) ListDirectory(ctx context.Context, p fspath.Path) ([]DirectoryItem, error) {
	return fs.snapshot().ListDirectory(ctx, p)
}

// ListDirectoryWithKind lists the entries of a directory, with their kind and path
func (fs *FileSystem) ListDirectoryWithKind(ctx context.Context, p fspath.Path) ([]DirectoryItemWithKind, error) {
	return fs.snapshot().ListDirectoryWithKind(ctx, p)
}

// Read the content addressed by a reference
func (fs *FileSystem) Read(ctx context.Context, ref Reference, opts ...ReadOption) ([]byte, error) {
	return fs.snapshot().Read(ctx, ref, opts...)
}

// ReadUTF8 reads content as a UTF-8 string
func (fs *FileSystem) ReadUTF8(ctx context.Context, ref Reference, opts ...ReadOption) (string, error) {
	return fs.snapshot().ReadUTF8(ctx, ref, opts...)
}

// ReadJSON decodes JSON content into v
func (fs *FileSystem) ReadJSON(ctx context.Context, ref Reference, v interface{}) error {
	return fs.snapshot().ReadJSON(ctx, ref, v)
}

// Size of a file, in bytes
func (fs *FileSystem) Size(ctx context.Context, p fspath.Path) (uint64, error) {
	return fs.snapshot().Size(ctx, p)
}

// MUTATIONS

// Copy a file or a directory
func (fs *FileSystem) Copy(ctx context.Context, from, to fspath.Path, opts ...MutationOption) (MutationResult, error) {
	return fs.infusedTransaction(ctx, func(t *TransactionContext) error {
		return t.Copy(ctx, from, to)
	}, at(to), opts)
}

// CreateDirectory creates a directory, adding or increasing a number suffix
// when the name is taken
func (fs *FileSystem) CreateDirectory(ctx context.Context, p fspath.Path, opts ...MutationOption) (MutationResult, error) {
	final := p
	return fs.infusedTransaction(ctx, func(t *TransactionContext) error {
		var err error
		final, err = t.CreateDirectory(ctx, p)
		return err
	}, func() fspath.Path { return final }, opts)
}

// CreateFile writes a new file, adding or increasing a number suffix when
// the name is taken
func (fs *FileSystem) CreateFile(ctx context.Context, p fspath.Path, data []byte, opts ...MutationOption) (MutationResult, error) {
	final := p
	return fs.infusedTransaction(ctx, func(t *TransactionContext) error {
		var err error
		final, err = t.CreateFile(ctx, p, data)
		return err
	}, func() fspath.Path { return final }, opts)
}

// EnsureDirectory creates a directory unless it exists
func (fs *FileSystem) EnsureDirectory(ctx context.Context, p fspath.Path, opts ...MutationOption) (MutationResult, error) {
	return fs.infusedTransaction(ctx, func(t *TransactionContext) error {
		return t.EnsureDirectory(ctx, p)
	}, at(p), opts)
}

// Move a file or a directory
func (fs *FileSystem) Move(ctx context.Context, from, to fspath.Path, opts ...MutationOption) (MutationResult, error) {
	return fs.infusedTransaction(ctx, func(t *TransactionContext) error {
		return t.Move(ctx, from, to)
	}, at(to), opts)
}

// Remove a file or a directory. It returns the new data root.
func (fs *FileSystem) Remove(ctx context.Context, p fspath.Path, opts ...MutationOption) (cid.Cid, error) {
	result, err := fs.Transaction(ctx, func(t *TransactionContext) error {
		return t.Remove(ctx, p)
	}, opts...)
	if err != nil {
		return cid.Undef, err
	}
	if result.NoOp {
		return cid.Undef, status.ErrCommitRejected
	}
	return result.DataRoot, nil
}

// Rename the last segment of a path
func (fs *FileSystem) Rename(ctx context.Context, p fspath.Path, name string, opts ...MutationOption) (MutationResult, error) {
	to, err := fspath.ReplaceTerminus(p, name)
	if err != nil {
		return MutationResult{}, err
	}
	return fs.infusedTransaction(ctx, func(t *TransactionContext) error {
		return t.Rename(ctx, p, name)
	}, at(to), opts)
}

// Write bytes to a file
func (fs *FileSystem) Write(ctx context.Context, p fspath.Path, data []byte, opts ...MutationOption) (MutationResult, error) {
	return fs.infusedTransaction(ctx, func(t *TransactionContext) error {
		return t.Write(ctx, p, data)
	}, at(p), opts)
}

// WriteUTF8 writes a string to a file
func (fs *FileSystem) WriteUTF8(ctx context.Context, p fspath.Path, s string, opts ...MutationOption) (MutationResult, error) {
	return fs.infusedTransaction(ctx, func(t *TransactionContext) error {
		return t.WriteUTF8(ctx, p, s)
	}, at(p), opts)
}

// WriteJSON writes the JSON encoding of v to a file
func (fs *FileSystem) WriteJSON(ctx context.Context, p fspath.Path, v interface{}, opts ...MutationOption) (MutationResult, error) {
	return fs.infusedTransaction(ctx, func(t *TransactionContext) error {
		return t.WriteJSON(ctx, p, v)
	}, at(p), opts)
}

// TRANSACTIONS

// Transaction runs handler against a copy of the file system, then commits
// all its modifications at once. Nothing is applied when the handler fails.
//
// The file system stays locked while handler runs: handler must only use the
// TransactionContext it is given. Calling methods of fs from handler deadlocks.
func (fs *FileSystem) Transaction(ctx context.Context, handler func(*TransactionContext) error, opts ...MutationOption) (TransactionResult, error) {
	return fs.transact(ctx, handler, nil, opts)
}

// CalculateDataRoot stores the current root tree and returns its CID
func (fs *FileSystem) CalculateDataRoot(ctx context.Context) (cid.Cid, error) {
	fs.mx.Lock()
	tree := fs.rootTree
	fs.mx.Unlock()
	return tree.Store(ctx)
}

func (fs *FileSystem) transact(ctx context.Context, handler func(*TransactionContext) error, after func(*TransactionContext) error, opts []MutationOption) (TransactionResult, error) {
	o := defaultMutationOptions(opts)
	started := time.Now()

	fs.mx.Lock()
	t := newTransactionContext(fs.store, fs.options, fs.mounts, fs.rootTree)
	if err := handler(t); err != nil {
		fs.mx.Unlock()
		return TransactionResult{}, err
	}

	committed, err := t.commit(ctx)
	if err != nil {
		fs.mx.Unlock()
		return TransactionResult{}, err
	}
	if committed.noOp {
		fs.mx.Unlock()
		fs.options.metrics.Rejected()
		fs.options.logger.Info("commit rejected", zap.Int("modifications", len(committed.changes)))
		return TransactionResult{NoOp: true, Modifications: committed.changes}, nil
	}

	dataRoot, err := committed.rootTree.Store(ctx)
	if err != nil {
		fs.mx.Unlock()
		return TransactionResult{}, err
	}
	fs.rootTree = committed.rootTree
	fs.mounts = committed.mounts

	var afterErr error
	if after != nil {
		afterErr = after(newTransactionContext(fs.store, fs.options, fs.mounts, fs.rootTree))
	}
	fs.mx.Unlock()

	fs.options.metrics.Commit(started)
	fs.options.logger.Debug("commit applied",
		zap.Stringer("dataRoot", dataRoot),
		zap.Int("modifications", len(committed.changes)),
	)

	fs.emitter.Emit(EventCommit, Event{DataRoot: dataRoot, Modifications: append([]Modification(nil), committed.changes...)})
	if !o.skipPublish {
		fs.publisher.Call(Event{DataRoot: dataRoot, Modifications: append([]Modification(nil), committed.changes...)})
	}

	return TransactionResult{DataRoot: dataRoot, Modifications: committed.changes}, afterErr
}

func at(p fspath.Path) func() fspath.Path {
	return func() fspath.Path { return p }
}

// infusedTransaction runs a single-operation transaction and references the
// node at the target path once committed. The target is resolved after the
// handler ran.
func (fs *FileSystem) infusedTransaction(ctx context.Context, handler func(*TransactionContext) error, target func() fspath.Path, opts []MutationOption) (MutationResult, error) {
	var infused MutationResult
	result, err := fs.transact(ctx, handler, func(t *TransactionContext) error {
		p := target()
		var err error
		infused, err = infuse(ctx, t, p)
		infused.Path = p
		return err
	}, opts)
	if err != nil {
		return MutationResult{}, err
	}
	if result.NoOp {
		return MutationResult{}, status.ErrCommitRejected
	}

	infused.DataRoot = result.DataRoot
	return infused, nil
}

func infuse(ctx context.Context, t *TransactionContext, p fspath.Path) (MutationResult, error) {
	partition, segments, err := fspath.DiscoverPartition(p)
	if err != nil {
		return MutationResult{}, err
	}

	if partition == fspath.Public {
		node, err := t.rootTree.PublicRoot().GetNode(ctx, segments, t.store)
		if err != nil {
			return MutationResult{}, err
		}
		if node == nil {
			return MutationResult{}, status.ErrNotFound.WrapMessage("failed to find the public node at '%s'", fspath.ToPosix(p, false))
		}
		capsule, err := node.Store(ctx, t.store)
		if err != nil {
			return MutationResult{}, err
		}
		content := capsule
		if !node.IsDir() {
			content = node.AsFile().ContentCID()
		}
		return MutationResult{ContentCID: content, CapsuleCID: capsule}, nil
	}

	key, ok, err := capsuleKey(ctx, t.store, t.rootTree, t.mounts, p)
	if err != nil {
		return MutationResult{}, err
	}
	if !ok {
		return MutationResult{}, status.ErrNotFound.WrapMessage("failed to find the private node at '%s'", fspath.ToPosix(p, false))
	}
	return MutationResult{CapsuleKey: key}, nil
}

// PUBLISHING

func (fs *FileSystem) publish(batch []Event) {
	event := Event{DataRoot: batch[len(batch)-1].DataRoot}
	for _, e := range batch {
		event.Modifications = append(event.Modifications, e.Modifications...)
	}

	fs.options.metrics.Publish()
	fs.options.logger.Info("publishing",
		zap.Stringer("dataRoot", event.DataRoot),
		zap.Int("modifications", len(event.Modifications)),
	)
	fs.emitter.Emit(EventPublish, event)
}
