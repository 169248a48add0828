package private

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/nest/pkg/blockstore"
	"github.com/oneconcern/nest/pkg/codec"
)

const (
	forestVersion = 1
	bucketCount   = 256
)

type wireForest struct {
	Version int      `cbor:"version"`
	Salt    []byte   `cbor:"salt"`
	Buckets [][]byte `cbor:"buckets"`
}

// Forest is an encrypted multimap from blinded revision labels to the CIDs
// of sealed node blocks.
//
// Forests are persistent values: Put returns a new forest sharing all
// untouched buckets with the previous one.
type Forest struct {
	salt    [KeySize]byte
	buckets [bucketCount]*bucket

	mx     sync.Mutex
	stored cid.Cid
}

type bucket struct {
	c cid.Cid

	mx      sync.Mutex
	entries map[Label][]cid.Cid
}

// NewForest builds an empty forest with fresh key material
func NewForest(rng io.Reader) (*Forest, error) {
	salt, err := randomBytes(rng)
	if err != nil {
		return nil, err
	}
	return &Forest{salt: salt}, nil
}

// Label computes the blinded label of a revision
func (f *Forest) Label(name Name, ratchet Ratchet) Label {
	revision := ratchet.revisionHash()
	sum, err := keyedSum(f.salt[:], domainLabel, name[:], revision[:])
	if err != nil {
		// the salt always has the required key size
		panic(err)
	}
	return Label(sum)
}

func (b *bucket) load(ctx context.Context, store blockstore.Store) (map[Label][]cid.Cid, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.entries != nil {
		return b.entries, nil
	}
	if !b.c.Defined() {
		b.entries = map[Label][]cid.Cid{}
		return b.entries, nil
	}

	raw, err := store.GetBlock(ctx, b.c)
	if err != nil {
		return nil, err
	}
	var w map[string][][]byte
	if err = codec.Unmarshal(raw, &w); err != nil {
		return nil, err
	}

	entries := make(map[Label][]cid.Cid, len(w))
	for key, values := range w {
		decoded, err := hex.DecodeString(key)
		if err != nil || len(decoded) != KeySize {
			return nil, fmt.Errorf("private forest: invalid label %q", key)
		}
		var label Label
		copy(label[:], decoded)
		for _, v := range values {
			c, err := codec.CIDFromBytes(v)
			if err != nil {
				return nil, err
			}
			entries[label] = append(entries[label], c)
		}
	}
	b.entries = entries
	return entries, nil
}

func (b *bucket) store(ctx context.Context, store blockstore.Store) (cid.Cid, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.c.Defined() {
		return b.c, nil
	}

	w := make(map[string][][]byte, len(b.entries))
	for label, values := range b.entries {
		encoded := make([][]byte, 0, len(values))
		for _, v := range values {
			encoded = append(encoded, v.Bytes())
		}
		w[hex.EncodeToString(label[:])] = encoded
	}
	raw, err := codec.Marshal(w)
	if err != nil {
		return cid.Undef, err
	}
	c, err := store.PutBlock(ctx, raw, blockstore.DagCBOR)
	if err != nil {
		return cid.Undef, err
	}
	b.c = c
	return c, nil
}

// Get the CIDs stored under a label, sorted
func (f *Forest) Get(ctx context.Context, label Label, store blockstore.Store) ([]cid.Cid, error) {
	b := f.buckets[label[0]]
	if b == nil {
		return nil, nil
	}
	entries, err := b.load(ctx, store)
	if err != nil {
		return nil, err
	}
	return append([]cid.Cid(nil), entries[label]...), nil
}

// Has tells if a label holds at least one CID
func (f *Forest) Has(ctx context.Context, label Label, store blockstore.Store) (bool, error) {
	values, err := f.Get(ctx, label, store)
	if err != nil {
		return false, err
	}
	return len(values) > 0, nil
}

// Put adds a CID under a label and returns the new forest
func (f *Forest) Put(ctx context.Context, label Label, c cid.Cid, store blockstore.Store) (*Forest, error) {
	var current map[Label][]cid.Cid
	if b := f.buckets[label[0]]; b != nil {
		entries, err := b.load(ctx, store)
		if err != nil {
			return nil, err
		}
		current = entries
	}

	for _, existing := range current[label] {
		if existing.Equals(c) {
			return f, nil
		}
	}

	entries := make(map[Label][]cid.Cid, len(current)+1)
	for k, v := range current {
		entries[k] = v
	}
	values := append(append([]cid.Cid(nil), current[label]...), c)
	sort.Slice(values, func(i, j int) bool {
		return bytes.Compare(values[i].Bytes(), values[j].Bytes()) < 0
	})
	entries[label] = values

	next := &Forest{salt: f.salt, buckets: f.buckets}
	next.buckets[label[0]] = &bucket{entries: entries}
	return next, nil
}

// Store persists the forest
func (f *Forest) Store(ctx context.Context, store blockstore.Store) (cid.Cid, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	if f.stored.Defined() {
		return f.stored, nil
	}

	w := wireForest{
		Version: forestVersion,
		Salt:    f.salt[:],
		Buckets: make([][]byte, bucketCount),
	}
	for i, b := range f.buckets {
		if b == nil {
			continue
		}
		c, err := b.store(ctx, store)
		if err != nil {
			return cid.Undef, err
		}
		w.Buckets[i] = c.Bytes()
	}

	raw, err := codec.Marshal(w)
	if err != nil {
		return cid.Undef, err
	}
	c, err := store.PutBlock(ctx, raw, blockstore.DagCBOR)
	if err != nil {
		return cid.Undef, err
	}
	f.stored = c
	return c, nil
}

// LoadForest loads a persisted forest. Buckets are fetched lazily.
func LoadForest(ctx context.Context, c cid.Cid, store blockstore.Store) (*Forest, error) {
	raw, err := store.GetBlock(ctx, c)
	if err != nil {
		return nil, err
	}
	var w wireForest
	if err = codec.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	if w.Version != forestVersion {
		return nil, fmt.Errorf("private forest: unsupported version %d", w.Version)
	}
	if len(w.Salt) != KeySize || len(w.Buckets) != bucketCount {
		return nil, fmt.Errorf("private forest: malformed forest (CID: %s)", c)
	}

	f := &Forest{stored: c}
	copy(f.salt[:], w.Salt)
	for i, raw := range w.Buckets {
		if len(raw) == 0 {
			continue
		}
		bc, err := codec.CIDFromBytes(raw)
		if err != nil {
			return nil, err
		}
		f.buckets[i] = &bucket{c: bc}
	}
	return f, nil
}
