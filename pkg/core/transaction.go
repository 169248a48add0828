package core

import (
	"context"
	"io"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/nest/pkg/blockstore"
	"github.com/oneconcern/nest/pkg/core/status"
	"github.com/oneconcern/nest/pkg/fspath"
	"github.com/oneconcern/nest/pkg/metrics"
	"github.com/oneconcern/nest/pkg/private"
	"github.com/oneconcern/nest/pkg/roottree"
)

// TransactionContext batches queries and mutations against one snapshot of
// the file system. Mutations are only visible to this context until the
// transaction commits.
type TransactionContext struct {
	store    blockstore.Store
	rng      io.Reader
	now      func() time.Time
	verifier CommitVerifier
	metrics  *metrics.Metrics

	mounts   MountedPrivateNodes
	rootTree *roottree.RootTree

	// forest as of the start of the transaction
	originalForest *private.Forest

	changes map[string]struct{}
	ordered []Modification
}

type commitResult struct {
	noOp     bool
	changes  []Modification
	mounts   MountedPrivateNodes
	rootTree *roottree.RootTree
}

func newTransactionContext(store blockstore.Store, o fsOptions, mounts MountedPrivateNodes, tree *roottree.RootTree) *TransactionContext {
	clone := tree.Clone()
	return &TransactionContext{
		store:          store,
		rng:            o.rng,
		now:            o.clock.Now,
		verifier:       o.verifier,
		metrics:        o.metrics,
		mounts:         mounts.clone(),
		rootTree:       clone,
		originalForest: clone.PrivateForest(),
		changes:        make(map[string]struct{}),
	}
}

func (t *TransactionContext) addChange(m Modification) {
	k := changeKey(m)
	if _, ok := t.changes[k]; ok {
		return
	}
	t.changes[k] = struct{}{}
	t.ordered = append(t.ordered, m)
}

// Modifications recorded so far, in order of first occurrence
func (t *TransactionContext) Modifications() []Modification {
	return append([]Modification(nil), t.ordered...)
}

// commit submits the changes to the verifier, then stores every modified
// mounted node against the forest the transaction started from.
func (t *TransactionContext) commit(ctx context.Context) (commitResult, error) {
	changes := t.Modifications()

	approved, err := t.verifier(ctx, changes)
	if err != nil {
		return commitResult{}, err
	}
	if !approved {
		return commitResult{noOp: true, changes: changes}, nil
	}

	forest := t.originalForest
	stored := make(map[string]struct{})
	for _, change := range changes {
		if !fspath.IsPartition(fspath.Private, change.Path) {
			continue
		}

		found, err := findPrivateNode(change.Path, t.mounts)
		if err != nil {
			return commitResult{}, err
		}
		key := mountKey(found.Path)
		if _, ok := stored[key]; ok {
			continue
		}
		stored[key] = struct{}{}

		_, next, node, err := found.Node.Store(ctx, forest, t.store)
		if err != nil {
			return commitResult{}, err
		}
		forest = next
		t.mounts[key] = MountedPrivateNode{Node: node, Path: found.Path}
	}

	if len(stored) > 0 {
		t.rootTree = t.rootTree.ReplacePrivateForest(forest, changes)
	}

	return commitResult{
		changes:  changes,
		mounts:   t.mounts,
		rootTree: t.rootTree,
	}, nil
}

// VALIDATION

func validatePartitioned(p fspath.Path) error {
	_, _, err := fspath.DiscoverPartition(p)
	return err
}

func validateNonEmpty(p fspath.Path) error {
	if err := validatePartitioned(p); err != nil {
		return err
	}
	if !fspath.IsPartitionedNonEmpty(p) {
		return status.ErrInvalidPath.WrapMessage("expected a path inside a partition, got '%s'", fspath.ToPosix(p, false))
	}
	return nil
}

func validateFile(p fspath.Path) error {
	if err := validateNonEmpty(p); err != nil {
		return err
	}
	if !p.IsFile() {
		return status.ErrInvalidPath.WrapMessage("expected a file path, got '%s'", fspath.ToPosix(p, false))
	}
	return nil
}

func validateDirectory(p fspath.Path) error {
	if err := validatePartitioned(p); err != nil {
		return err
	}
	if !p.IsDirectory() {
		return status.ErrInvalidPath.WrapMessage("expected a directory path, got '%s'", fspath.ToPosix(p, false))
	}
	return nil
}

func validatePartition(partition fspath.Partition, p fspath.Path) error {
	if err := validatePartitioned(p); err != nil {
		return err
	}
	if !fspath.IsPartition(partition, p) {
		return status.ErrInvalidPartition.WrapMessage("expected a %s path, got '%s'", partition, fspath.ToPosix(p, false))
	}
	return nil
}

// QUERIES

// ContentCID returns the CID of the content of a public file, if any
func (t *TransactionContext) ContentCID(ctx context.Context, p fspath.Path) (cid.Cid, bool, error) {
	if err := validatePartition(fspath.Public, p); err != nil {
		return cid.Undef, false, err
	}
	return contentCID(ctx, t.store, t.rootTree, p)
}

// CapsuleCID returns the CID of a public node, if any
func (t *TransactionContext) CapsuleCID(ctx context.Context, p fspath.Path) (cid.Cid, bool, error) {
	if err := validatePartition(fspath.Public, p); err != nil {
		return cid.Undef, false, err
	}
	return capsuleCID(ctx, t.store, t.rootTree, p)
}

// CapsuleKey returns the access key of a private node, if any.
// Nodes changed earlier in the transaction fail with status.ErrInvalidOperation:
// their key is only known once committed.
func (t *TransactionContext) CapsuleKey(ctx context.Context, p fspath.Path) ([]byte, bool, error) {
	if err := validatePartition(fspath.Private, p); err != nil {
		return nil, false, err
	}
	return capsuleKey(ctx, t.store, t.rootTree, t.mounts, p)
}

// Exists tells if a node exists at a path
func (t *TransactionContext) Exists(ctx context.Context, p fspath.Path) (bool, error) {
	if err := validatePartitioned(p); err != nil {
		return false, err
	}
	return query(ctx, t, p, publicExists(), privateExists())
}

// ListDirectory lists the entries of a directory
func (t *TransactionContext) ListDirectory(ctx context.Context, p fspath.Path) ([]DirectoryItem, error) {
	if err := validateDirectory(p); err != nil {
		return nil, err
	}
	return query(ctx, t, p, publicListDirectory(), privateListDirectory())
}

// ListDirectoryWithKind lists the entries of a directory, with their kind and path
func (t *TransactionContext) ListDirectoryWithKind(ctx context.Context, p fspath.Path) ([]DirectoryItemWithKind, error) {
	if err := validateDirectory(p); err != nil {
		return nil, err
	}
	return query(ctx, t, p, publicListDirectoryWithKind(), privateListDirectoryWithKind())
}

// Read the content addressed by a reference. ReadOptions select a byte range.
func (t *TransactionContext) Read(ctx context.Context, ref Reference, opts ...ReadOption) ([]byte, error) {
	o := defaultReadOptions(opts)
	if o.offset < 0 {
		return nil, status.ErrInvalidArgument.WrapMessage("negative offset %d", o.offset)
	}

	switch {
	case ref.contentCID.Defined():
		return publicReadFromCID(ctx, t.store, ref.contentCID, o)
	case ref.capsuleCID.Defined():
		return publicReadFromCapsuleCID(ctx, t.store, ref.capsuleCID, o)
	case ref.capsuleKey != nil:
		return privateReadFromAccessKey(ctx, t.store, t.rootTree, ref.capsuleKey, o)
	case ref.path != nil:
		if err := validateFile(*ref.path); err != nil {
			return nil, err
		}
		return query(ctx, t, *ref.path, publicRead(o), privateRead(o))
	default:
		return nil, status.ErrInvalidArgument.WrapMessage("empty reference")
	}
}

// ReadUTF8 reads content as a UTF-8 string
func (t *TransactionContext) ReadUTF8(ctx context.Context, ref Reference, opts ...ReadOption) (string, error) {
	b, err := t.Read(ctx, ref, opts...)
	if err != nil {
		return "", err
	}
	return bytesToUTF8(b)
}

// ReadJSON decodes JSON content into v
func (t *TransactionContext) ReadJSON(ctx context.Context, ref Reference, v interface{}) error {
	b, err := t.Read(ctx, ref)
	if err != nil {
		return err
	}
	return bytesToJSON(b, v)
}

// Size of a file, in bytes
func (t *TransactionContext) Size(ctx context.Context, p fspath.Path) (uint64, error) {
	if err := validateFile(p); err != nil {
		return 0, err
	}
	return query(ctx, t, p, publicSize(), privateSize())
}

// MUTATIONS

// Copy a file or a directory. Copying a file to a directory path copies it
// inside that directory. Directories are copied with all their content.
func (t *TransactionContext) Copy(ctx context.Context, from, to fspath.Path) error {
	to, err := t.copyTarget(from, to, "copy")
	if err != nil {
		return err
	}

	if from.IsFile() {
		return t.copyFile(ctx, from, to)
	}
	return t.copyDirectory(ctx, from, to)
}

func (t *TransactionContext) copyTarget(from, to fspath.Path, verb string) (fspath.Path, error) {
	if err := validateNonEmpty(from); err != nil {
		return fspath.Path{}, err
	}
	if err := validatePartitioned(to); err != nil {
		return fspath.Path{}, err
	}

	if from.IsDirectory() && to.IsFile() {
		return fspath.Path{}, status.ErrInvalidArgument.WrapMessage("cannot %s a directory to a file", verb)
	}
	if from.IsFile() && to.IsDirectory() {
		name, _ := from.Terminus()
		file, err := fspath.NewFile(name)
		if err != nil {
			return fspath.Path{}, err
		}
		if to, err = fspath.Combine(to, file); err != nil {
			return fspath.Path{}, err
		}
	}
	if to.IsFile() {
		return to, validateNonEmpty(to)
	}
	return to, nil
}

func (t *TransactionContext) copyFile(ctx context.Context, from, to fspath.Path) error {
	data, err := t.Read(ctx, ByPath(from))
	if err != nil {
		return err
	}
	return t.Write(ctx, to, data)
}

func isWithin(p, dir fspath.Path) bool {
	ps, ds := p.Segments(), dir.Segments()
	if len(ps) < len(ds) {
		return false
	}
	for i := range ds {
		if ps[i] != ds[i] {
			return false
		}
	}
	return true
}

// copyDirectory copies everything under from into to, e.g.
// public/docs/from/a/b.txt to private/docs/to/a/b.txt
func (t *TransactionContext) copyDirectory(ctx context.Context, from, to fspath.Path) error {
	if isWithin(to, from) {
		return status.ErrInvalidArgument.WrapMessage("cannot copy '%s' into itself", fspath.ToPosix(from, false))
	}

	type pair struct{ from, to fspath.Path }
	stack := []pair{{from: from, to: to}}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if fspath.IsPartitionedNonEmpty(current.to) {
			if err := t.EnsureDirectory(ctx, current.to); err != nil {
				return err
			}
		}

		items, err := t.ListDirectoryWithKind(ctx, current.from)
		if err != nil {
			return err
		}

		for _, item := range items {
			child, err := fspath.FromKind(item.Kind, item.Name)
			if err != nil {
				return err
			}
			target, err := fspath.Combine(current.to, child)
			if err != nil {
				return err
			}

			if item.Kind == fspath.KindDirectory {
				stack = append(stack, pair{from: item.Path, to: target})
				continue
			}
			if err = t.copyFile(ctx, item.Path, target); err != nil {
				return err
			}
		}
	}
	return nil
}

// CreateDirectory creates a directory, picking a new name when the path is
// taken. It returns the path of the new directory.
func (t *TransactionContext) CreateDirectory(ctx context.Context, p fspath.Path) (fspath.Path, error) {
	if err := validateNonEmpty(p); err != nil {
		return fspath.Path{}, err
	}
	if !p.IsDirectory() {
		return fspath.Path{}, status.ErrInvalidPath.WrapMessage("expected a directory path, got '%s'", fspath.ToPosix(p, false))
	}

	p, err := t.freePath(ctx, p)
	if err != nil {
		return fspath.Path{}, err
	}
	return p, t.EnsureDirectory(ctx, p)
}

// CreateFile writes a new file, picking a new name when the path is taken.
// It returns the path of the new file.
func (t *TransactionContext) CreateFile(ctx context.Context, p fspath.Path, data []byte) (fspath.Path, error) {
	if err := validateFile(p); err != nil {
		return fspath.Path{}, err
	}

	p, err := t.freePath(ctx, p)
	if err != nil {
		return fspath.Path{}, err
	}
	return p, t.Write(ctx, p, data)
}

func (t *TransactionContext) freePath(ctx context.Context, p fspath.Path) (fspath.Path, error) {
	for {
		exists, err := t.Exists(ctx, p)
		if err != nil {
			return fspath.Path{}, err
		}
		if !exists {
			return p, nil
		}
		if p, err = AddOrIncreaseNameNumber(p); err != nil {
			return fspath.Path{}, err
		}
	}
}

// EnsureDirectory creates a directory and its missing parents. An existing
// directory is left untouched.
func (t *TransactionContext) EnsureDirectory(ctx context.Context, p fspath.Path) error {
	if err := validateNonEmpty(p); err != nil {
		return err
	}
	if !p.IsDirectory() {
		return status.ErrInvalidPath.WrapMessage("expected a directory path, got '%s'", fspath.ToPosix(p, false))
	}
	return t.mutate(ctx, p, AddedOrUpdated, publicCreateDirectory(), privateCreateDirectory())
}

// Move a file or a directory. Moving a file to a directory path moves it
// inside that directory.
func (t *TransactionContext) Move(ctx context.Context, from, to fspath.Path) error {
	to, err := t.copyTarget(from, to, "move")
	if err != nil {
		return err
	}
	if from.Equal(to) {
		return nil
	}

	if from.IsFile() {
		err = t.copyFile(ctx, from, to)
	} else {
		err = t.copyDirectory(ctx, from, to)
	}
	if err != nil {
		return err
	}
	return t.Remove(ctx, from)
}

// Remove a file or a directory
func (t *TransactionContext) Remove(ctx context.Context, p fspath.Path) error {
	if err := validateNonEmpty(p); err != nil {
		return err
	}
	return t.mutate(ctx, p, Removed, publicRemove(), privateRemove())
}

// Rename the last segment of a path
func (t *TransactionContext) Rename(ctx context.Context, p fspath.Path, name string) error {
	to, err := fspath.ReplaceTerminus(p, name)
	if err != nil {
		return err
	}
	return t.Move(ctx, p, to)
}

// Write bytes to a file, creating missing parent directories
func (t *TransactionContext) Write(ctx context.Context, p fspath.Path, data []byte) error {
	if err := validateFile(p); err != nil {
		return err
	}
	if err := t.mutate(ctx, p, AddedOrUpdated, publicWrite(data), privateWrite(data)); err != nil {
		return err
	}
	partition, _, _ := fspath.DiscoverPartition(p)
	t.metrics.Write(string(partition), len(data))
	return nil
}

// WriteUTF8 writes a string to a file
func (t *TransactionContext) WriteUTF8(ctx context.Context, p fspath.Path, s string) error {
	b, err := utf8ToBytes(s)
	if err != nil {
		return err
	}
	return t.Write(ctx, p, b)
}

// WriteJSON writes the JSON encoding of v to a file
func (t *TransactionContext) WriteJSON(ctx context.Context, p fspath.Path, v interface{}) error {
	b, err := jsonToBytes(v)
	if err != nil {
		return err
	}
	return t.Write(ctx, p, b)
}

// DISPATCH

func (t *TransactionContext) publicParams(segments []string) publicParams {
	return publicParams{
		store:    t.store,
		segments: segments,
		rootTree: t.rootTree,
		now:      t.now(),
	}
}

func (t *TransactionContext) privateParams(found privateNodeQueryResult) privateParams {
	return privateParams{
		privateNodeQueryResult: found,
		store:                  t.store,
		rootTree:               t.rootTree,
		rng:                    t.rng,
		now:                    t.now(),
	}
}

func query[T any](ctx context.Context, t *TransactionContext, p fspath.Path, pub publicQuery[T], priv privateQuery[T]) (T, error) {
	var zero T
	partition, segments, err := fspath.DiscoverPartition(p)
	if err != nil {
		return zero, err
	}

	if partition == fspath.Public {
		return pub(ctx, t.publicParams(segments))
	}

	found, err := findPrivateNode(p, t.mounts)
	if err != nil {
		return zero, err
	}
	return priv(ctx, t.privateParams(found))
}

func (t *TransactionContext) mutate(ctx context.Context, p fspath.Path, typ roottree.ChangeType, pub publicMutation, priv privateMutation) error {
	partition, segments, err := fspath.DiscoverPartition(p)
	if err != nil {
		return err
	}
	change := Modification{Path: p, Type: typ}

	if partition == fspath.Public {
		dir, err := pub(ctx, t.publicParams(segments))
		if err != nil {
			return err
		}
		tree, err := t.rootTree.ReplacePublicRoot(ctx, dir, []Modification{change})
		if err != nil {
			return err
		}
		t.rootTree = tree
		t.addChange(change)
		t.metrics.Mutation(string(partition))
		return nil
	}

	found, err := findPrivateNode(p, t.mounts)
	if err != nil {
		return err
	}
	result, err := priv(ctx, t.privateParams(found))
	if err != nil {
		return err
	}

	t.addChange(change)
	t.rootTree = t.rootTree.ReplacePrivateForest(result.forest, []Modification{change})
	t.mounts[mountKey(found.Path)] = MountedPrivateNode{
		Node: private.NodeFromDirectory(result.rootDir),
		Path: found.Path,
	}
	t.metrics.Mutation(string(partition))
	return nil
}
