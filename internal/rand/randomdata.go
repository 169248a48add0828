// Package rand produces random test data: file contents, names, and
// reproducible sources of key material.
package rand

import (
	"bytes"
	"io"
	"math/rand"
	"sync"
	"time"
)

var (
	onceSource  sync.Once
	rgen        *rand.Rand
	onceLetters sync.Once
	randMutex   sync.Mutex
	letters     []byte
)

func seed() {
	rgen = rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec
}

// Bytes returns a random slice of bytes
func Bytes(n int) []byte {
	onceSource.Do(seed)
	buf := make([]byte, n)
	randMutex.Lock()
	_, _ = rgen.Read(buf)
	randMutex.Unlock()
	return buf
}

func makeLetters() {
	// "a" pads the alphabet over the 256 values of a byte, so it comes out slightly more often
	letters = bytes.Repeat([]byte("abcdefghijklmnopqrstuvwxyz0123456789a"), 7)
}

// LetterBytes returns a random slice of bytes picked in the [0-9]|[a-z] range
func LetterBytes(n int) []byte {
	onceLetters.Do(makeLetters)
	buf := Bytes(n)
	for i, b := range buf {
		buf[i] = letters[b]
	}
	return buf
}

// LetterString returns a random string picked in the [0-9]|[a-z] range, e.g. a file name
func LetterString(n int) string {
	return string(LetterBytes(n))
}

type lockedReader struct {
	mx  sync.Mutex
	gen *rand.Rand
}

func (r *lockedReader) Read(p []byte) (int, error) {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.gen.Read(p)
}

// Deterministic returns a reader yielding the same stream for the same seed.
//
// It stands for crypto/rand in tests expecting reproducible keys. Never use it outside tests.
func Deterministic(seed int64) io.Reader {
	return &lockedReader{gen: rand.New(rand.NewSource(seed))} // #nosec
}
