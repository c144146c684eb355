package dataset

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/poiesic/dataprep/core"
)

const (
	// Magic terminates every container.
	Magic = "DPDS"

	// Version is the container layout version written by this package.
	Version = 1

	// trailer: header length, header CRC32, magic
	trailerSize = 4 + 4 + len(Magic)
)

// Layout fixes the row shape of a container.
type Layout struct {
	Dim        int // embedding width D
	NumClasses int // label width C
	IDWidth    int // bytes per id, ids are NUL padded
}

// Validate checks that every width is usable.
func (l Layout) Validate() error {
	if l.Dim < 0 || l.NumClasses < 0 || l.IDWidth < 0 {
		return fmt.Errorf("%w: negative layout width %+v", core.ErrConfig, l)
	}
	return nil
}

func (l Layout) embeddingBytes() int64 { return int64(l.Dim) * 4 }
func (l Layout) labelBytes() int64     { return int64(l.NumClasses) * 4 }
func (l Layout) idBytes() int64        { return int64(l.IDWidth) }

func putFloat32s(dst []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

func getFloat32s(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
}

func putInt32s(dst []byte, src []int32) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], uint32(v))
	}
}

func getInt32s(dst []int32, src []byte) {
	for i := range dst {
		dst[i] = int32(binary.LittleEndian.Uint32(src[i*4:]))
	}
}
