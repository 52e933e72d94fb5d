// Package chunk encodes the points of one octree node into a self-contained byte chunk.
//
// # Layout
//
//	uvarint count
//	uvarint coordLen | coord block (coordLen bytes)
//	uvarint attrLen  | attr block  (attrLen bytes)
//
// Each block is [uncompressed uint32][compressed uint32][payload]. A compressed size
// of zero means the payload is stored raw.
//
// # Coordinates
//
// Every axis is quantized against the node origin (its bbox minimum) with the
// configured scale and stored as a zigzag varint delta from the previous point.
// Decoding reproduces the value to within half a scale step.
//
// # Attributes
//
// Intensity deltas follow as zigzag varints. For formats with a time attribute the
// IEEE-754 bit patterns are delta coded, which keeps time lossless. The attribute
// block is length-prefixed so coordinate-only readers skip it without decoding.
package chunk
