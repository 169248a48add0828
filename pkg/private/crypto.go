package private

import (
	"fmt"
	"hash"
	"io"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the size in bytes of names, ratchets, salts and symmetric keys
const KeySize = 32

// SealedOverhead is the byte overhead of a sealed block: nonce and tag
const SealedOverhead = chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// Domain separation tags. Changing any of these invalidates all stored data.
var (
	domainRatchet  = []byte("nest.private.ratchet.v1")
	domainRevision = []byte("nest.private.revision.v1")
	domainLabel    = []byte("nest.private.label.v1")
	domainNonce    = []byte("nest.private.nonce.v1")
	hkdfInfoNode   = []byte("nest.private.node.v1")
)

// Name identifies a private node across all its revisions
type Name [KeySize]byte

// Ratchet is the key material of one revision. The next revision's ratchet
// is derived from the current one, never the other way around.
type Ratchet [KeySize]byte

// Label is the blinded forest key of one revision of a node
type Label [KeySize]byte

func randomBytes(rng io.Reader) ([KeySize]byte, error) {
	var b [KeySize]byte
	if _, err := io.ReadFull(rng, b[:]); err != nil {
		return b, fmt.Errorf("generating random key material: %w", err)
	}
	return b, nil
}

// Next ratchet
func (r Ratchet) Next() Ratchet {
	h := blake3.New()
	_, _ = h.Write(domainRatchet)
	_, _ = h.Write(r[:])
	var next Ratchet
	copy(next[:], h.Sum(nil))
	return next
}

// revisionHash hides the ratchet in labels
func (r Ratchet) revisionHash() [KeySize]byte {
	h := blake3.New()
	_, _ = h.Write(domainRevision)
	_, _ = h.Write(r[:])
	var out [KeySize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// contentKey derives the symmetric key of a revision
func (r Ratchet) contentKey(name Name) ([]byte, error) {
	kdf := hkdf.New(func() hash.Hash { return blake3.New() }, r[:], name[:], hkdfInfoNode)
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("deriving node key: %w", err)
	}
	return key, nil
}

func keyedSum(key []byte, parts ...[]byte) ([KeySize]byte, error) {
	var out [KeySize]byte
	h, err := blake3.NewKeyed(key)
	if err != nil {
		return out, err
	}
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	copy(out[:], h.Sum(nil))
	return out, nil
}

// seal encrypts with XChaCha20-Poly1305. The nonce is derived from the key
// and the plaintext, so sealing is deterministic.
//
//	[Nonce: 24 bytes] [Ciphertext+Tag: N+16 bytes]
func seal(key, plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	digest, err := keyedSum(key, domainNonce, plaintext)
	if err != nil {
		return nil, err
	}
	nonce := digest[:chacha20poly1305.NonceSizeX]

	output := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	copy(output, nonce)

	return aead.Seal(output, nonce, plaintext, aad), nil
}

func open(key, sealed, aad []byte) ([]byte, error) {
	if len(sealed) < SealedOverhead {
		return nil, fmt.Errorf("sealed block is %d bytes, minimum is %d", len(sealed), SealedOverhead)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	nonce := sealed[:chacha20poly1305.NonceSizeX]
	plaintext, err := aead.Open(nil, nonce, sealed[chacha20poly1305.NonceSizeX:], aad)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong key or tampered data): %w", err)
	}
	return plaintext, nil
}
