// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "clouds/")
//
//	cloud, err := pointstore.Open(ctx, store, "site-a.pcx")
//
// # Features
//
//   - Ranged GETs per chunk, canceled with the query context
//   - Multipart uploads for large clouds, aborted on failure
//   - CRC32C object checksums
//   - Automatic pagination for listing
package s3
