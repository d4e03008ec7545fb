package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"sirixgo/page"
)

// fileSignature tags the data file's 8-byte header, mirroring the
// teacher's DB_SIG check in masterLoad.
const fileSignature = "SIRIXGO\x00"

// headerSize is the fixed region reserved at the start of the data
// file: the signature plus the current uber-page's physical key,
// exactly the shape of the teacher's master page, minus the fields
// (btree root, free list) this engine doesn't need at that layer.
const headerSize = 16

// Local is the bundled reference PageReader/PageWriter (§6.3): a single
// append-only "data" file, memory-mapped for reads, with the header
// published via Pwrite for crash atomicity — the same discipline as
// the teacher's mmapInit/masterLoad/masterStore, generalized from
// fixed-size BTree pages to this engine's variable-length, length-
// prefixed page records.
type Local struct {
	mu       sync.Mutex
	fp       *os.File
	size     int64
	mapped   []byte
	compress bool
}

// SetCompression toggles the §6.5 "compression" option for Valued
// nodes' raw value bytes on every subsequent Write. Each record tags
// whether it landed up compressed, so toggling this mid-lifetime never
// breaks reads of records written under the opposite setting.
func (l *Local) SetCompression(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.compress = enabled
}

// Open opens (creating if absent) the data file at path.
func Open(path string) (*Local, error) {
	fp, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: open %q: %w", path, err)
	}
	l := &Local{fp: fp}

	fi, err := fp.Stat()
	if err != nil {
		fp.Close()
		return nil, fmt.Errorf("storage: stat %q: %w", path, err)
	}
	l.size = fi.Size()
	if l.size == 0 {
		if err := l.writeHeader(0); err != nil {
			fp.Close()
			return nil, err
		}
		l.size = headerSize
	}
	if err := l.remap(); err != nil {
		fp.Close()
		return nil, err
	}
	if !bytes.Equal(l.mapped[:8], []byte(fileSignature)) {
		l.Close()
		return nil, errors.New("storage: bad file signature")
	}
	return l, nil
}

func (l *Local) writeHeader(uberKey uint64) error {
	var hdr [headerSize]byte
	copy(hdr[:8], fileSignature)
	binary.BigEndian.PutUint64(hdr[8:16], uberKey)
	_, err := pwriteFile(l.fp, hdr[:], 0)
	if err != nil {
		return fmt.Errorf("storage: write header: %w", err)
	}
	return nil
}

// remap re-maps the file from scratch to cover its current size. It
// must be called after every append since mmap's length is fixed at
// mapping time — the same "remap on growth" discipline as the
// teacher's extendMmap.
func (l *Local) remap() error {
	if err := unmapFile(l.mapped); err != nil {
		return fmt.Errorf("storage: unmap: %w", err)
	}
	mapped, err := mmapFile(l.fp, int(l.size))
	if err != nil {
		return fmt.Errorf("storage: mmap: %w", err)
	}
	l.mapped = mapped
	return nil
}

// ReadUberPageReference returns the reference recorded in the header.
// A zero key means no revision has ever been published (bootstrap).
func (l *Local) ReadUberPageReference() (*page.PageReference, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := binary.BigEndian.Uint64(l.mapped[8:16])
	return &page.PageReference{Key: key}, nil
}

// WriteUberPageReference publishes ref.Key as the current uber-page —
// the single atomic point of the commit protocol (§4.7 step 4, §6.2).
func (l *Local) WriteUberPageReference(ref *page.PageReference) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeHeader(ref.Key)
}

// Write serializes ref.Page, appends it to the data file, and assigns
// ref.Key to the offset it was written at.
func (l *Local) Write(ref *page.PageReference) error {
	if ref.Page == nil {
		return errors.New("storage: Write called on a reference with no attached page")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	payload, err := encodePage(ref.Page, l.compress)
	if err != nil {
		return fmt.Errorf("storage: encode page: %w", err)
	}

	offset := l.size
	record := make([]byte, 0, 4+len(payload))
	record = binary.BigEndian.AppendUint32(record, uint32(len(payload)))
	record = append(record, payload...)
	if _, err := pwriteFile(l.fp, record, offset); err != nil {
		return fmt.Errorf("storage: write page at %d: %w", offset, err)
	}
	l.size += int64(len(record))
	if err := l.remap(); err != nil {
		return err
	}
	ref.Key = uint64(offset)
	return nil
}

// Read resolves a persisted page by its physical key.
func (l *Local) Read(ref *page.PageReference) (page.Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	offset := int64(ref.Key)
	if offset+4 > l.size {
		return nil, fmt.Errorf("storage: page offset %d out of range (size %d)", offset, l.size)
	}
	length := binary.BigEndian.Uint32(l.mapped[offset : offset+4])
	start := offset + 4
	end := start + int64(length)
	if end > l.size {
		return nil, fmt.Errorf("storage: truncated page record at offset %d", offset)
	}
	return decodePage(l.mapped[start:end])
}

// Close unmaps and closes the underlying file.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := unmapFile(l.mapped); err != nil {
		return err
	}
	return l.fp.Close()
}
