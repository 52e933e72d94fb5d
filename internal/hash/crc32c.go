package hash

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// Base64 encodes sum big-endian in standard base64, the form S3 expects in
// x-amz-checksum-crc32c.
func Base64(sum uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], sum)
	return base64.StdEncoding.EncodeToString(b[:])
}

// Hex formats sum as eight lower-case hex digits.
func Hex(sum uint32) string {
	return fmt.Sprintf("%08x", sum)
}
