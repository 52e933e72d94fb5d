// Package blobstore stores point cloud index files as named immutable blobs.
//
// A cloud is written once through Create and becomes visible under its name
// only when the WritableBlob is closed. Abort discards the upload and leaves
// any previous blob with the same name untouched.
//
// # Built-in Implementations
//
//   - LocalStore: local directory, atomic rename on commit, mmap reads
//   - MemoryStore: in-process map, for tests and short-lived tools
//   - s3.Store: Amazon S3 with ranged GETs and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// Remote blobs implement ReadAtContext so that chunk reads of a query are
// canceled together with the query.
package blobstore
