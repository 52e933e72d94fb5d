package chunk

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block compressor.
type Compression uint8

const (
	// CompressionNone stores blocks raw.
	CompressionNone Compression = 0
	// CompressionLZ4 favors decode speed.
	CompressionLZ4 Compression = 1
	// CompressionZstd favors ratio.
	CompressionZstd Compression = 2
	// CompressionSnappy is a fast middle ground.
	CompressionSnappy Compression = 3
)

// String returns the compressor name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	case CompressionSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// Valid reports whether c is a known compressor.
func (c Compression) Valid() bool { return c <= CompressionSnappy }

// ParseCompression resolves a compressor name.
func ParseCompression(name string) (Compression, error) {
	for c := CompressionNone; c <= CompressionSnappy; c++ {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown compression %q", name)
}

const (
	blockHeaderSize = 8
	// maxBlockSize caps the uncompressed size a block header may claim.
	maxBlockSize = 1 << 30
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
}

// compressBlock frames data as a block. Payloads that do not shrink below 90% of
// the input are stored raw.
func compressBlock(data []byte, c Compression) ([]byte, error) {
	var compressed []byte
	switch c {
	case CompressionNone:
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, err
		}
		compressed = dst[:n]
	case CompressionZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	case CompressionSnappy:
		compressed = snappy.Encode(nil, data)
	default:
		return nil, fmt.Errorf("chunk: unsupported compression %d", c)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		out := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		copy(out[blockHeaderSize:], data)
		return out, nil
	}

	out := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[blockHeaderSize:], compressed)
	return out, nil
}

// decompressBlock reverses compressBlock. base is the offset of block within the
// chunk and only feeds error messages.
func decompressBlock(block []byte, c Compression, base int) ([]byte, error) {
	if len(block) < blockHeaderSize {
		return nil, truncated(base, "block header")
	}
	size := binary.LittleEndian.Uint32(block[0:])
	csize := binary.LittleEndian.Uint32(block[4:])
	if size > maxBlockSize {
		return nil, corrupt(base, fmt.Sprintf("block claims %d bytes", size))
	}
	payload := block[blockHeaderSize:]

	if csize == 0 {
		if uint32(len(payload)) != size {
			return nil, truncated(base+blockHeaderSize, fmt.Sprintf("raw block has %d of %d bytes", len(payload), size))
		}
		return payload, nil
	}
	if uint32(len(payload)) != csize {
		return nil, truncated(base+blockHeaderSize, fmt.Sprintf("compressed block has %d of %d bytes", len(payload), csize))
	}

	out := make([]byte, size)
	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, wrapCorrupt(base, "lz4", err)
		}
		if uint32(n) != size {
			return nil, corrupt(base, "lz4 size mismatch")
		}
		return out, nil
	case CompressionZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		decoded, err := dec.DecodeAll(payload, out[:0])
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, wrapCorrupt(base, "zstd", err)
		}
		if uint32(len(decoded)) != size {
			return nil, corrupt(base, "zstd size mismatch")
		}
		return decoded, nil
	case CompressionSnappy:
		n, err := snappy.DecodedLen(payload)
		if err != nil {
			return nil, wrapCorrupt(base, "snappy", err)
		}
		if uint32(n) != size {
			return nil, corrupt(base, "snappy size mismatch")
		}
		decoded, err := snappy.Decode(out, payload)
		if err != nil {
			return nil, wrapCorrupt(base, "snappy", err)
		}
		return decoded, nil
	default:
		return nil, corrupt(base, fmt.Sprintf("compressed block with compression %s", c))
	}
}
