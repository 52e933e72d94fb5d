// Package model defines the core types shared by every layer of pointstore.
//
// # Data Types
//
//   - Point: one LiDAR return (x, y, z, intensity and an optional time attribute)
//   - BBox: axis-aligned 3D bounding box with closed intervals on every axis
//   - Buffer: resizable array of points exchanged between readers and ingestion
//   - Scale: per-axis fixed-point precision used by the chunk codec
//
// # Attributes
//
// Attribute names a numeric field of a Point so that filters can address fields
// generically:
//
//	v := p.Value(model.AttrIntensity)
package model
