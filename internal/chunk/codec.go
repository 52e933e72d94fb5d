package chunk

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/pointstore/model"
)

// maxQuantized bounds |q| so that deltas between two quantized values fit int64.
const maxQuantized = 1 << 62

// EncodeOptions configures Encode.
type EncodeOptions struct {
	Format      model.PointFormat
	Scale       model.Scale
	Compression Compression
}

// DecodeOptions configures Decode. Format, Scale and Compression must match the
// values used for encoding.
type DecodeOptions struct {
	Format      model.PointFormat
	Scale       model.Scale
	Compression Compression
	// SkipAttributes leaves intensity and time zero and does not touch the
	// attribute block.
	SkipAttributes bool
}

// quantizer maps one axis to fixed point relative to an origin.
type quantizer struct {
	origin float64
	limit  float64
	inv    float64
}

func newQuantizer(origin, limit, scale float64) quantizer {
	inv := 1 / scale
	// Snap 1/1e-6 and friends to the exact integer so decimal grids decode exactly.
	if r := math.Round(inv); r != 0 && math.Abs(inv-r) <= 1e-9*r {
		inv = r
	}
	return quantizer{origin: origin, limit: limit, inv: inv}
}

func (q quantizer) encode(v float64) (int64, error) {
	f := math.Round((v - q.origin) * q.inv)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNotFinite
	}
	if math.Abs(f) >= maxQuantized {
		return 0, ErrOverflow
	}
	return int64(f), nil
}

// decode clamps to [origin, limit] so a point never escapes the box it was
// encoded against.
func (q quantizer) decode(v int64) float64 {
	return min(max(q.origin+float64(v)/q.inv, q.origin), q.limit)
}

func quantizers(origin model.BBox, s model.Scale) [3]quantizer {
	return [3]quantizer{
		newQuantizer(origin.MinX, origin.MaxX, s.X),
		newQuantizer(origin.MinY, origin.MaxY, s.Y),
		newQuantizer(origin.MinZ, origin.MaxZ, s.Z),
	}
}

// Encode serializes points relative to origin.
func Encode(points []model.Point, origin model.BBox, opts EncodeOptions) ([]byte, error) {
	if !opts.Format.Valid() {
		return nil, fmt.Errorf("chunk: unsupported point format %d", opts.Format)
	}
	if err := opts.Scale.Validate(); err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}
	qs := quantizers(origin, opts.Scale)

	coords := make([]byte, 0, len(points)*6)
	var prev [3]int64
	for i := range points {
		p := &points[i]
		if !p.Finite() {
			return nil, fmt.Errorf("point %d: %w", i, ErrNotFinite)
		}
		for axis, v := range [3]float64{p.X, p.Y, p.Z} {
			q, err := qs[axis].encode(v)
			if err != nil {
				return nil, fmt.Errorf("point %d: %w", i, err)
			}
			coords = binary.AppendVarint(coords, q-prev[axis])
			prev[axis] = q
		}
	}

	attrs := make([]byte, 0, len(points)*2)
	var prevIntensity int64
	for i := range points {
		v := int64(points[i].Intensity)
		attrs = binary.AppendVarint(attrs, v-prevIntensity)
		prevIntensity = v
	}
	if opts.Format.HasTime() {
		var prevBits uint64
		for i := range points {
			bits := math.Float64bits(points[i].Time)
			attrs = binary.AppendVarint(attrs, int64(bits-prevBits))
			prevBits = bits
		}
	}

	coordBlock, err := compressBlock(coords, opts.Compression)
	if err != nil {
		return nil, err
	}
	attrBlock, err := compressBlock(attrs, opts.Compression)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 3*binary.MaxVarintLen64+len(coordBlock)+len(attrBlock))
	out = binary.AppendUvarint(out, uint64(len(points)))
	out = binary.AppendUvarint(out, uint64(len(coordBlock)))
	out = append(out, coordBlock...)
	out = binary.AppendUvarint(out, uint64(len(attrBlock)))
	out = append(out, attrBlock...)
	return out, nil
}

// Count returns the point count stored in the chunk header without decoding.
func Count(data []byte) (int, error) {
	n, _, err := readUvarint(data, 0, "point count")
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Decode reconstructs the points of a chunk encoded against origin.
func Decode(data []byte, origin model.BBox, opts DecodeOptions) ([]model.Point, error) {
	if !opts.Format.Valid() {
		return nil, fmt.Errorf("chunk: unsupported point format %d", opts.Format)
	}
	if err := opts.Scale.Validate(); err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}

	count, off, err := readUvarint(data, 0, "point count")
	if err != nil {
		return nil, err
	}
	coordBlock, off, err := readSection(data, off, "coordinate block")
	if err != nil {
		return nil, err
	}
	coordBase := off - len(coordBlock)
	attrBlock, off, err := readSection(data, off, "attribute block")
	if err != nil {
		return nil, err
	}
	attrBase := off - len(attrBlock)
	if off != len(data) {
		return nil, corrupt(off, fmt.Sprintf("%d trailing bytes", len(data)-off))
	}

	coords, err := decompressBlock(coordBlock, opts.Compression, coordBase)
	if err != nil {
		return nil, err
	}
	// Every point needs at least one byte per axis.
	if count > uint64(len(coords))/3 {
		return nil, corrupt(0, fmt.Sprintf("count %d exceeds coordinate stream of %d bytes", count, len(coords)))
	}

	points := make([]model.Point, count)
	qs := quantizers(origin, opts.Scale)
	var prev [3]int64
	pos := 0
	for i := range points {
		var q [3]int64
		for axis := 0; axis < 3; axis++ {
			d, n := binary.Varint(coords[pos:])
			if n <= 0 {
				return nil, corrupt(coordBase, fmt.Sprintf("bad coordinate varint for point %d", i))
			}
			pos += n
			q[axis] = prev[axis] + d
			prev[axis] = q[axis]
		}
		points[i].X = qs[0].decode(q[0])
		points[i].Y = qs[1].decode(q[1])
		points[i].Z = qs[2].decode(q[2])
	}
	if pos != len(coords) {
		return nil, corrupt(coordBase, fmt.Sprintf("%d unread coordinate bytes", len(coords)-pos))
	}

	if opts.SkipAttributes {
		return points, nil
	}

	attrs, err := decompressBlock(attrBlock, opts.Compression, attrBase)
	if err != nil {
		return nil, err
	}
	pos = 0
	var prevIntensity int64
	for i := range points {
		d, n := binary.Varint(attrs[pos:])
		if n <= 0 {
			return nil, corrupt(attrBase, fmt.Sprintf("bad intensity varint for point %d", i))
		}
		pos += n
		v := prevIntensity + d
		if v < 0 || v > math.MaxUint16 {
			return nil, corrupt(attrBase, fmt.Sprintf("intensity %d out of range for point %d", v, i))
		}
		points[i].Intensity = uint16(v)
		prevIntensity = v
	}
	if opts.Format.HasTime() {
		var prevBits uint64
		for i := range points {
			d, n := binary.Varint(attrs[pos:])
			if n <= 0 {
				return nil, corrupt(attrBase, fmt.Sprintf("bad time varint for point %d", i))
			}
			pos += n
			bits := prevBits + uint64(d)
			points[i].Time = math.Float64frombits(bits)
			prevBits = bits
		}
	}
	if pos != len(attrs) {
		return nil, corrupt(attrBase, fmt.Sprintf("%d unread attribute bytes", len(attrs)-pos))
	}
	return points, nil
}

func readUvarint(data []byte, off int, what string) (uint64, int, error) {
	if off >= len(data) {
		return 0, off, truncated(off, what)
	}
	v, n := binary.Uvarint(data[off:])
	if n == 0 {
		return 0, off, truncated(off, what)
	}
	if n < 0 {
		return 0, off, corrupt(off, what+" overflows")
	}
	return v, off + n, nil
}

func readSection(data []byte, off int, what string) ([]byte, int, error) {
	size, off, err := readUvarint(data, off, what+" length")
	if err != nil {
		return nil, off, err
	}
	if size > uint64(len(data)-off) {
		return nil, off, truncated(off, fmt.Sprintf("%s needs %d bytes, %d left", what, size, len(data)-off))
	}
	end := off + int(size)
	return data[off:end], end, nil
}
