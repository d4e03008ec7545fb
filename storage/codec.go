package storage

import (
	"encoding/binary"
	"fmt"

	"sirixgo/node"
	"sirixgo/page"
)

// recordTag distinguishes a tombstone from a live node in the encoded
// record stream.
const (
	recordTombstone byte = 0
	recordLive      byte = 1
)

// encodePage serializes any concrete page.Page to its wire form. The
// first byte is always the page.Kind tag so decodePage can dispatch.
// compress gates the §6.5 "compression" option for Valued nodes' raw
// value bytes within a RecordPage; every other page kind is unaffected.
func encodePage(p page.Page, compress bool) ([]byte, error) {
	var buf []byte
	switch v := p.(type) {
	case *page.RecordPage:
		buf = append(buf, byte(page.KindRecordPage))
		return encodeRecordPage(buf, v, compress)
	case *page.IndirectPage:
		buf = append(buf, byte(page.KindIndirectPage))
		return encodeIndirectPage(buf, v)
	case *page.RevisionRootPage:
		buf = append(buf, byte(page.KindRevisionRootPage))
		return encodeRevisionRootPage(buf, v)
	case *page.UberPage:
		buf = append(buf, byte(page.KindUberPage))
		return encodeUberPage(buf, v)
	default:
		return nil, fmt.Errorf("storage: unknown page type %T", p)
	}
}

func decodePage(data []byte) (page.Page, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("storage: empty page record")
	}
	kind := page.Kind(data[0])
	body := data[1:]
	switch kind {
	case page.KindRecordPage:
		return decodeRecordPage(body)
	case page.KindIndirectPage:
		return decodeIndirectPage(body)
	case page.KindRevisionRootPage:
		return decodeRevisionRootPage(body)
	case page.KindUberPage:
		return decodeUberPage(body)
	default:
		return nil, fmt.Errorf("storage: unknown page kind %d", kind)
	}
}

func putUint64(buf []byte, v uint64) []byte { return binary.BigEndian.AppendUint64(buf, v) }
func putUint32(buf []byte, v uint32) []byte { return binary.BigEndian.AppendUint32(buf, v) }

type reader struct {
	b   []byte
	off int
}

func (r *reader) u64() uint64 {
	v := binary.BigEndian.Uint64(r.b[r.off:])
	r.off += 8
	return v
}

func (r *reader) u32() uint32 {
	v := binary.BigEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v
}

func (r *reader) byte() byte {
	v := r.b[r.off]
	r.off++
	return v
}

func (r *reader) bytes(n int) []byte {
	v := r.b[r.off : r.off+n]
	r.off += n
	return v
}

func encodeRecordPage(buf []byte, p *page.RecordPage, compress bool) ([]byte, error) {
	buf = append(buf, byte(p.Family))
	buf = putUint32(buf, uint32(p.Index))
	buf = putUint64(buf, p.PageKey)
	buf = putUint32(buf, uint32(p.Capacity))
	buf = putUint64(buf, p.Revision)
	if p.PreviousVersion != nil && !p.PreviousVersion.IsNull() {
		buf = append(buf, 1)
		buf = putUint64(buf, p.PreviousVersion.Key)
	} else {
		buf = append(buf, 0)
	}

	var entries []byte
	count := uint32(0)
	var encErr error
	p.Iter(func(k node.Key, rec node.Record) bool {
		count++
		entries = putUint64(entries, uint64(k))
		rb, err := encodeRecord(rec, compress)
		if err != nil {
			encErr = err
			return false
		}
		entries = putUint32(entries, uint32(len(rb)))
		entries = append(entries, rb...)
		return true
	})
	if encErr != nil {
		return nil, encErr
	}
	buf = putUint32(buf, count)
	buf = append(buf, entries...)
	return buf, nil
}

func decodeRecordPage(b []byte) (*page.RecordPage, error) {
	r := &reader{b: b}
	family := page.Family(r.byte())
	index := int(r.u32())
	pageKey := r.u64()
	capacity := uint64(r.u32())
	revision := r.u64()
	p := page.NewRecordPage(family, index, pageKey, capacity, revision)
	if r.byte() == 1 {
		p.PreviousVersion = &page.PageReference{Key: r.u64()}
	}
	count := r.u32()
	for i := uint32(0); i < count; i++ {
		key := node.Key(r.u64())
		recLen := int(r.u32())
		rec, err := decodeRecord(r.bytes(recLen))
		if err != nil {
			return nil, err
		}
		p.Put(key, rec)
	}
	return p, nil
}

func encodeIndirectPage(buf []byte, p *page.IndirectPage) ([]byte, error) {
	buf = append(buf, byte(p.Family))
	buf = putUint32(buf, uint32(p.Index))
	buf = putUint32(buf, uint32(p.Level))
	for i := range p.Slots {
		buf = putUint64(buf, p.Slots[i].Key)
	}
	return buf, nil
}

func decodeIndirectPage(b []byte) (*page.IndirectPage, error) {
	r := &reader{b: b}
	p := &page.IndirectPage{Family: page.Family(r.byte()), Index: int(r.u32()), Level: int(r.u32())}
	for i := range p.Slots {
		p.Slots[i] = page.PageReference{Key: r.u64()}
	}
	return p, nil
}

func encodeRevisionRootPage(buf []byte, p *page.RevisionRootPage) ([]byte, error) {
	buf = putUint64(buf, p.Revision)
	buf = putUint64(buf, p.MaxNodeKey)
	buf = putUint64(buf, uint64(p.CommitTimestamp))
	families := p.Families()
	buf = putUint32(buf, uint32(len(families)))
	for _, fi := range families {
		buf = append(buf, byte(fi.Family))
		buf = putUint32(buf, uint32(fi.Index))
		buf = putUint64(buf, p.Root(fi).Key)
		buf = putUint64(buf, p.MaxKey(fi))
	}
	return buf, nil
}

func decodeRevisionRootPage(b []byte) (*page.RevisionRootPage, error) {
	r := &reader{b: b}
	p := page.NewRevisionRootPage(r.u64())
	p.MaxNodeKey = r.u64()
	p.CommitTimestamp = int64(r.u64())
	count := r.u32()
	for i := uint32(0); i < count; i++ {
		fi := page.FamilyIndex{Family: page.Family(r.byte()), Index: int(r.u32())}
		rootKey := r.u64()
		maxKey := r.u64()
		p.SetRoot(fi, &page.PageReference{Key: rootKey})
		p.SetMaxKey(fi, maxKey)
	}
	return p, nil
}

func encodeUberPage(buf []byte, p *page.UberPage) ([]byte, error) {
	buf = putUint64(buf, p.CurrentRevision)
	if p.Bootstrap {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = putUint64(buf, p.RevisionRootTreeRoot().Key)
	return buf, nil
}

func decodeUberPage(b []byte) (*page.UberPage, error) {
	r := &reader{b: b}
	p := page.NewUberPage()
	p.CurrentRevision = r.u64()
	p.Bootstrap = r.byte() == 1
	p.SetRevisionRootTreeRoot(&page.PageReference{Key: r.u64()})
	return p, nil
}

// encodeRecord serializes a single node.Record: a tombstone marker, or
// a live node's kind tag followed by whichever trait fields its kind
// carries (Structural, Named, Valued) plus Element's attribute/
// namespace key lists.
func encodeRecord(rec node.Record, compress bool) ([]byte, error) {
	if node.IsDeleted(rec) {
		buf := []byte{recordTombstone}
		return putUint64(buf, uint64(rec.RecordKey())), nil
	}
	n, ok := rec.(node.Node)
	if !ok {
		return nil, fmt.Errorf("storage: record %T is neither a tombstone nor a node.Node", rec)
	}
	buf := []byte{recordLive, byte(n.Kind())}
	buf = putUint64(buf, uint64(n.RecordKey()))
	buf = putUint64(buf, uint64(n.ParentKey()))
	buf = putUint64(buf, n.Hash())

	if s, ok := n.(node.Structural); ok {
		buf = putUint64(buf, uint64(s.FirstChildKey()))
		buf = putUint64(buf, uint64(s.LeftSiblingKey()))
		buf = putUint64(buf, uint64(s.RightSiblingKey()))
		buf = putUint64(buf, s.ChildCount())
		buf = putUint64(buf, s.DescendantCount())
	}
	if nm, ok := n.(node.Named); ok {
		buf = putUint32(buf, uint32(nm.NameKey()))
		buf = putUint32(buf, uint32(nm.URIKey()))
		buf = putUint64(buf, uint64(nm.PathNodeKey()))
	}
	if v, ok := n.(node.Valued); ok {
		raw := v.RawValue()
		payload, compressed := raw, byte(0)
		if compress && len(raw) > 0 {
			c, err := compressValue(raw)
			if err != nil {
				return nil, err
			}
			if len(c) < len(raw) {
				payload, compressed = c, 1
			}
		}
		buf = append(buf, compressed)
		buf = putUint32(buf, uint32(len(payload)))
		buf = append(buf, payload...)
	}
	if e, ok := n.(*node.ElementNode); ok {
		attrs := e.AttributeKeys()
		buf = putUint32(buf, uint32(len(attrs)))
		for _, k := range attrs {
			buf = putUint64(buf, uint64(k))
		}
		nss := e.NamespaceKeys()
		buf = putUint32(buf, uint32(len(nss)))
		for _, k := range nss {
			buf = putUint64(buf, uint64(k))
		}
	}
	return buf, nil
}

func decodeRecord(b []byte) (node.Record, error) {
	r := &reader{b: b}
	tag := r.byte()
	if tag == recordTombstone {
		return node.NewDeletedNode(node.Key(r.u64())), nil
	}
	kind := node.Kind(r.byte())
	key := node.Key(r.u64())
	parentKey := node.Key(r.u64())
	hash := r.u64()

	var n node.Node
	switch kind {
	case node.KindDocumentRoot:
		n = node.NewDocumentRootNode(key)
	case node.KindElement:
		n = node.NewElementNode(key, parentKey, 0, 0)
	case node.KindText:
		n = node.NewTextNode(key, parentKey, nil)
	case node.KindComment:
		n = node.NewCommentNode(key, parentKey, nil)
	case node.KindProcessingInstruction:
		n = node.NewProcessingInstructionNode(key, parentKey, 0, nil)
	case node.KindAttribute:
		n = node.NewAttributeNode(key, parentKey, 0, 0, nil)
	case node.KindNamespace:
		n = node.NewNamespaceNode(key, parentKey, 0, 0)
	default:
		return nil, fmt.Errorf("storage: unknown node kind %d", kind)
	}
	n.SetParentKey(parentKey)
	n.SetHash(hash)

	if s, ok := n.(node.Structural); ok {
		s.SetFirstChildKey(node.Key(r.u64()))
		s.SetLeftSiblingKey(node.Key(r.u64()))
		s.SetRightSiblingKey(node.Key(r.u64()))
		s.SetChildCount(r.u64())
		s.SetDescendantCount(r.u64())
	}
	if nm, ok := n.(node.Named); ok {
		nm.SetNameKey(int32(r.u32()))
		nm.SetURIKey(int32(r.u32()))
		nm.SetPathNodeKey(node.Key(r.u64()))
	}
	if v, ok := n.(node.Valued); ok {
		compressed := r.byte()
		valLen := int(r.u32())
		payload := r.bytes(valLen)
		if compressed == 1 {
			raw, err := decompressValue(payload)
			if err != nil {
				return nil, err
			}
			v.SetRawValue(raw)
		} else {
			v.SetRawValue(payload)
		}
	}
	if e, ok := n.(*node.ElementNode); ok {
		attrCount := r.u32()
		for i := uint32(0); i < attrCount; i++ {
			e.InsertAttributeKey(node.Key(r.u64()))
		}
		nsCount := r.u32()
		for i := uint32(0); i < nsCount; i++ {
			e.InsertNamespaceKey(node.Key(r.u64()))
		}
	}
	return n, nil
}
