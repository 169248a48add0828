// Copyright © 2018 One Concern

package storage

import "sync"

const copyBufferSize = 256 * 1024

var bufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, copyBufferSize)
		return &b
	},
}
