package storage

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block codec applied to cached values.
type Compression uint8

const (
	// CompressionNone stores values as-is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD block compression (better ratio).
	CompressionZSTD Compression = 2
)

// ParseCompression maps a flag value to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, fmt.Errorf("%w: %q", ErrUnknownCompression, name)
	}
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// CompressBlock frames data as [codec byte][uvarint raw size][payload].
// The block falls back to CompressionNone when the codec does not shrink it
// by at least 10%.
func CompressBlock(data []byte, c Compression) ([]byte, error) {
	var payload []byte
	switch c {
	case CompressionNone:
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, err
		}
		payload = dst[:n] // n == 0 means incompressible
	case CompressionZSTD:
		enc := getZstdEncoder()
		payload = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}

	if len(payload) == 0 || float64(len(payload)) > float64(len(data))*0.9 {
		c, payload = CompressionNone, data
	}

	out := make([]byte, 1+binary.MaxVarintLen64+len(payload))
	out[0] = byte(c)
	n := 1 + binary.PutUvarint(out[1:], uint64(len(data)))
	n += copy(out[n:], payload)
	return out[:n], nil
}

// DecompressBlock reverses CompressBlock.
func DecompressBlock(block []byte) ([]byte, error) {
	if len(block) < 2 {
		return nil, ErrTruncatedData
	}
	size, n := binary.Uvarint(block[1:])
	if n <= 0 {
		return nil, ErrTruncatedData
	}
	payload := block[1+n:]

	switch Compression(block[0]) {
	case CompressionNone:
		if uint64(len(payload)) != size {
			return nil, ErrTruncatedData
		}
		return payload, nil
	case CompressionLZ4:
		out := make([]byte, size)
		written, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, err
		}
		if uint64(written) != size {
			return nil, ErrTruncatedData
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, err
		}
		if uint64(len(out)) != size {
			return nil, ErrTruncatedData
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, block[0])
	}
}
