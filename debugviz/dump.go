package debugviz

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

// Dump file layout, little endian:
//
//	magic   [4]byte "SSLV"
//	version uint16
//	kind    uint16
//	w, h, d uint32
//	sum     uint64  xxhash64 of the uncompressed texel bytes
//	size    uint32  length of the zstd payload
//	payload []byte
var dumpMagic = [4]byte{'S', 'S', 'L', 'V'}

const dumpVersion = 1

// headerSize is the encoded size of dumpHeader.
const headerSize = 4 + 2 + 2 + 3*4 + 8 + 4

var (
	// ErrBadMagic is returned when a stream is not a volume dump.
	ErrBadMagic = errors.New("debugviz: not a volume dump")

	// ErrChecksum is returned when decompressed texels do not match the
	// stored checksum.
	ErrChecksum = errors.New("debugviz: volume dump checksum mismatch")
)

// maxDumpTexels bounds the volume a dump may declare, 256^3 texels per
// cascade over 16 cascades.
const maxDumpTexels = 256 * 256 * 256 * 16

// Volume is a read-back volume together with its shape.
type Volume struct {
	Kind   Kind
	Width  int
	Height int
	Depth  int
	Texels []uint32
}

type dumpHeader struct {
	Magic   [4]byte
	Version uint16
	Kind    uint16
	W, H, D uint32
	Sum     uint64
	Size    uint32
}

// WriteVolume writes v to w as a zstd-compressed dump.
func WriteVolume(w io.Writer, v Volume) error {
	count := v.Width * v.Height * v.Depth
	if v.Width <= 0 || v.Height <= 0 || v.Depth <= 0 || len(v.Texels) != count {
		return fmt.Errorf("debugviz: %d texels do not fill a %dx%dx%d volume", len(v.Texels), v.Width, v.Height, v.Depth)
	}
	raw := make([]byte, 4*count)
	for i, t := range v.Texels {
		binary.LittleEndian.PutUint32(raw[4*i:], t)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("debugviz: zstd encoder: %w", err)
	}
	payload := enc.EncodeAll(raw, nil)
	_ = enc.Close()

	h := dumpHeader{
		Magic:   dumpMagic,
		Version: dumpVersion,
		Kind:    uint16(v.Kind),
		W:       uint32(v.Width),  //nolint:gosec // checked positive
		H:       uint32(v.Height), //nolint:gosec // checked positive
		D:       uint32(v.Depth),  //nolint:gosec // checked positive
		Sum:     xxhash.Sum64(raw),
		Size:    uint32(len(payload)), //nolint:gosec // bounded by texel count
	}
	var buf bytes.Buffer
	buf.Grow(headerSize + len(payload))
	if err := binary.Write(&buf, binary.LittleEndian, &h); err != nil {
		return err
	}
	buf.Write(payload)
	_, err = w.Write(buf.Bytes())
	return err
}

// ReadVolume reads a dump written by WriteVolume.
func ReadVolume(r io.Reader) (Volume, error) {
	var h dumpHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return Volume{}, fmt.Errorf("debugviz: read dump header: %w", err)
	}
	if h.Magic != dumpMagic {
		return Volume{}, ErrBadMagic
	}
	if h.Version != dumpVersion {
		return Volume{}, fmt.Errorf("debugviz: unsupported dump version %d", h.Version)
	}
	count := uint64(h.W) * uint64(h.H) * uint64(h.D)
	if count == 0 || count > maxDumpTexels {
		return Volume{}, fmt.Errorf("debugviz: dump declares %dx%dx%d texels", h.W, h.H, h.D)
	}

	payload := make([]byte, h.Size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Volume{}, fmt.Errorf("debugviz: read dump payload: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(4*count))
	if err != nil {
		return Volume{}, fmt.Errorf("debugviz: zstd decoder: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return Volume{}, fmt.Errorf("debugviz: decompress dump: %w", err)
	}
	if uint64(len(raw)) != 4*count {
		return Volume{}, fmt.Errorf("debugviz: dump holds %d bytes, want %d", len(raw), 4*count)
	}
	if xxhash.Sum64(raw) != h.Sum {
		return Volume{}, ErrChecksum
	}

	v := Volume{
		Kind:   Kind(h.Kind), //nolint:gosec // written from a Kind
		Width:  int(h.W),
		Height: int(h.H),
		Depth:  int(h.D),
		Texels: make([]uint32, count),
	}
	for i := range v.Texels {
		v.Texels[i] = binary.LittleEndian.Uint32(raw[4*i:])
	}
	return v, nil
}
