// Package unixfs implements the subset of UnixFS needed to mirror public
// data as a plain byte tree: file import and export, directories, and
// insertion or removal of nodes along a path.
package unixfs

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// DataType of a UnixFS node
type DataType uint64

// UnixFS node types
const (
	TRaw       DataType = 0
	TDirectory DataType = 1
	TFile      DataType = 2
	TMetadata  DataType = 3
	TSymlink   DataType = 4
	THAMTShard DataType = 5
)

const (
	dataTypeField       protowire.Number = 1
	dataDataField       protowire.Number = 2
	dataFileSizeField   protowire.Number = 3
	dataBlockSizesField protowire.Number = 4
	dataMtimeField      protowire.Number = 8

	mtimeSecondsField protowire.Number = 1
	mtimeNanosField   protowire.Number = 2
)

// Data is the UnixFS payload of a DAG-PB node
type Data struct {
	Type       DataType
	Data       []byte
	FileSize   *uint64
	BlockSizes []uint64
	Mtime      *time.Time
}

// Marshal the UnixFS payload
func (d *Data) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, dataTypeField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(d.Type))
	if d.Data != nil {
		b = protowire.AppendTag(b, dataDataField, protowire.BytesType)
		b = protowire.AppendBytes(b, d.Data)
	}
	if d.FileSize != nil {
		b = protowire.AppendTag(b, dataFileSizeField, protowire.VarintType)
		b = protowire.AppendVarint(b, *d.FileSize)
	}
	for _, size := range d.BlockSizes {
		b = protowire.AppendTag(b, dataBlockSizesField, protowire.VarintType)
		b = protowire.AppendVarint(b, size)
	}
	if d.Mtime != nil {
		var m []byte
		m = protowire.AppendTag(m, mtimeSecondsField, protowire.VarintType)
		m = protowire.AppendVarint(m, uint64(d.Mtime.Unix()))
		if nanos := d.Mtime.Nanosecond(); nanos != 0 {
			m = protowire.AppendTag(m, mtimeNanosField, protowire.Fixed32Type)
			m = protowire.AppendFixed32(m, uint32(nanos))
		}
		b = protowire.AppendTag(b, dataMtimeField, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}
	return b
}

// UnmarshalData decodes a UnixFS payload. Unknown fields are skipped.
func UnmarshalData(b []byte) (*Data, error) {
	d := &Data{}
	for len(b) > 0 {
		num, typ, l := protowire.ConsumeTag(b)
		if l < 0 {
			return nil, fmt.Errorf("unixfs: tag: %w", protowire.ParseError(l))
		}
		b = b[l:]

		var m int
		switch {
		case num == dataTypeField && typ == protowire.VarintType:
			var v uint64
			v, m = protowire.ConsumeVarint(b)
			d.Type = DataType(v)
		case num == dataDataField && typ == protowire.BytesType:
			var v []byte
			v, m = protowire.ConsumeBytes(b)
			d.Data = append([]byte{}, v...)
		case num == dataFileSizeField && typ == protowire.VarintType:
			var v uint64
			v, m = protowire.ConsumeVarint(b)
			d.FileSize = &v
		case num == dataBlockSizesField && typ == protowire.VarintType:
			var v uint64
			v, m = protowire.ConsumeVarint(b)
			d.BlockSizes = append(d.BlockSizes, v)
		case num == dataBlockSizesField && typ == protowire.BytesType:
			// packed encoding
			var packed []byte
			packed, m = protowire.ConsumeBytes(b)
			for len(packed) > 0 && m >= 0 {
				v, n := protowire.ConsumeVarint(packed)
				if n < 0 {
					m = n
					break
				}
				d.BlockSizes = append(d.BlockSizes, v)
				packed = packed[n:]
			}
		case num == dataMtimeField && typ == protowire.BytesType:
			var v []byte
			v, m = protowire.ConsumeBytes(b)
			if m >= 0 {
				mtime, err := unmarshalMtime(v)
				if err != nil {
					return nil, err
				}
				d.Mtime = &mtime
			}
		default:
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return nil, fmt.Errorf("unixfs: field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return d, nil
}

func unmarshalMtime(b []byte) (time.Time, error) {
	var secs int64
	var nanos uint32
	for len(b) > 0 {
		num, typ, l := protowire.ConsumeTag(b)
		if l < 0 {
			return time.Time{}, fmt.Errorf("unixfs: mtime tag: %w", protowire.ParseError(l))
		}
		b = b[l:]

		var m int
		switch {
		case num == mtimeSecondsField && typ == protowire.VarintType:
			var v uint64
			v, m = protowire.ConsumeVarint(b)
			secs = int64(v)
		case num == mtimeNanosField && typ == protowire.Fixed32Type:
			nanos, m = protowire.ConsumeFixed32(b)
		default:
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return time.Time{}, fmt.Errorf("unixfs: mtime field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return time.Unix(secs, int64(nanos)).UTC(), nil
}
