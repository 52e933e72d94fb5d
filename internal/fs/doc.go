// Package fs abstracts the filesystem calls made by the local blob store so
// that tests can inject failures.
//
//   - [LocalFS] delegates to the os package and is the default.
//   - [FaultyFS] wraps another FileSystem and fails writes, syncs, closes or
//     renames of files whose name matches a rule.
//
// Typical fault test:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp-", fs.Fault{FailAfterBytes: 4096})
//	store := blobstore.NewLocalStore(dir, blobstore.WithFileSystem(ffs))
//
// Operations take no context: local file calls are not interruptible at the
// syscall level. Remote stores in blobstore carry contexts instead.
package fs
