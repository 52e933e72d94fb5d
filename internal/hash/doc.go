// Package hash provides the CRC32-Castagnoli checksums used by the index file.
//
// The header, the node table and every chunk carry their own CRC32C so that
// corruption is attributed to the smallest unit that can be skipped.
package hash
