// Package dagpb encodes and decodes DAG-PB nodes.
//
// The wire format is the protobuf message:
//
//	message PBLink { optional bytes Hash = 1; optional string Name = 2; optional uint64 Tsize = 3; }
//	message PBNode { repeated PBLink Links = 2; optional bytes Data = 1; }
//
// Links are always serialized before data.
package dagpb

import (
	"fmt"
	"sort"

	"github.com/ipfs/go-cid"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	nodeDataField  protowire.Number = 1
	nodeLinksField protowire.Number = 2

	linkHashField  protowire.Number = 1
	linkNameField  protowire.Number = 2
	linkTsizeField protowire.Number = 3
)

// Link to another block
type Link struct {
	Hash  cid.Cid
	Name  string
	Tsize uint64
}

// Node is a DAG-PB node
type Node struct {
	Data  []byte
	Links []Link
}

// Clone returns a node that shares no slices with n
func (n *Node) Clone() *Node {
	return &Node{
		Data:  append([]byte(nil), n.Data...),
		Links: append([]Link(nil), n.Links...),
	}
}

// FindLink returns the index of the first link with that name, or -1
func (n *Node) FindLink(name string) int {
	for i, l := range n.Links {
		if l.Name == name {
			return i
		}
	}
	return -1
}

// SortLinks orders links by name
func SortLinks(links []Link) {
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].Name < links[j].Name
	})
}

// Encode a node
func Encode(n *Node) []byte {
	var b []byte
	for _, l := range n.Links {
		b = protowire.AppendTag(b, nodeLinksField, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeLink(l))
	}
	if n.Data != nil {
		b = protowire.AppendTag(b, nodeDataField, protowire.BytesType)
		b = protowire.AppendBytes(b, n.Data)
	}
	if b == nil {
		b = []byte{}
	}
	return b
}

func encodeLink(l Link) []byte {
	var b []byte
	if l.Hash.Defined() {
		b = protowire.AppendTag(b, linkHashField, protowire.BytesType)
		b = protowire.AppendBytes(b, l.Hash.Bytes())
	}
	b = protowire.AppendTag(b, linkNameField, protowire.BytesType)
	b = protowire.AppendString(b, l.Name)
	b = protowire.AppendTag(b, linkTsizeField, protowire.VarintType)
	b = protowire.AppendVarint(b, l.Tsize)
	return b
}

// Decode a node
func Decode(b []byte) (*Node, error) {
	n := &Node{}
	for len(b) > 0 {
		num, typ, l := protowire.ConsumeTag(b)
		if l < 0 {
			return nil, fmt.Errorf("dagpb: node tag: %w", protowire.ParseError(l))
		}
		b = b[l:]
		if typ != protowire.BytesType {
			return nil, fmt.Errorf("dagpb: unexpected wire type %d for field %d", typ, num)
		}
		v, m := protowire.ConsumeBytes(b)
		if m < 0 {
			return nil, fmt.Errorf("dagpb: node field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]

		switch num {
		case nodeDataField:
			n.Data = append([]byte{}, v...)
		case nodeLinksField:
			link, err := decodeLink(v)
			if err != nil {
				return nil, err
			}
			n.Links = append(n.Links, link)
		default:
			return nil, fmt.Errorf("dagpb: unexpected field %d", num)
		}
	}
	return n, nil
}

func decodeLink(b []byte) (Link, error) {
	var link Link
	for len(b) > 0 {
		num, typ, l := protowire.ConsumeTag(b)
		if l < 0 {
			return Link{}, fmt.Errorf("dagpb: link tag: %w", protowire.ParseError(l))
		}
		b = b[l:]

		switch {
		case num == linkHashField && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Link{}, fmt.Errorf("dagpb: link hash: %w", protowire.ParseError(m))
			}
			c, err := cid.Cast(v)
			if err != nil {
				return Link{}, fmt.Errorf("dagpb: link hash: %w", err)
			}
			link.Hash = c
			b = b[m:]
		case num == linkNameField && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return Link{}, fmt.Errorf("dagpb: link name: %w", protowire.ParseError(m))
			}
			link.Name = v
			b = b[m:]
		case num == linkTsizeField && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Link{}, fmt.Errorf("dagpb: link tsize: %w", protowire.ParseError(m))
			}
			link.Tsize = v
			b = b[m:]
		default:
			return Link{}, fmt.Errorf("dagpb: unexpected link field %d (wire type %d)", num, typ)
		}
	}
	if !link.Hash.Defined() {
		return Link{}, fmt.Errorf("dagpb: link without hash")
	}
	return link, nil
}
