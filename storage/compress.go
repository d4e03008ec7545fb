package storage

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	zstdEncoder  *zstd.Encoder
	zstdDecoder  *zstd.Decoder
	zstdInitOnce sync.Once
	zstdInitErr  error
)

func initZstd() error {
	zstdInitOnce.Do(func() {
		zstdEncoder, zstdInitErr = zstd.NewWriter(nil)
		if zstdInitErr != nil {
			return
		}
		zstdDecoder, zstdInitErr = zstd.NewReader(nil)
	})
	return zstdInitErr
}

// compressValue zstd-compresses raw for the §6.5 compression option,
// scoped to Valued nodes' byte payloads (node.go's Valued doc comment:
// "compression ... is the concern of the storage layer, not of the
// node itself"). The encoder and decoder are process-wide singletons,
// both safe for concurrent EncodeAll/DecodeAll calls.
func compressValue(raw []byte) ([]byte, error) {
	if err := initZstd(); err != nil {
		return nil, fmt.Errorf("storage: init zstd: %w", err)
	}
	return zstdEncoder.EncodeAll(raw, make([]byte, 0, len(raw))), nil
}

func decompressValue(data []byte) ([]byte, error) {
	if err := initZstd(); err != nil {
		return nil, fmt.Errorf("storage: init zstd: %w", err)
	}
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: zstd decode: %w", err)
	}
	return out, nil
}
