// Package mmap maps immutable index files read-only into memory.
//
// A Mapping implements io.ReaderAt, so a hierarchy index can read chunks
// straight from the page cache. The mapping pins the inode it was created
// from: replacing the file by rename does not affect readers of the old
// mapping.
//
// On platforms without mmap support the file is read into memory instead.
package mmap
