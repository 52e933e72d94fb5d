// Package cache keeps decoded chunks in memory between queries.
//
// Entries are keyed by dataset id and node id and charged against a byte
// budget (and optionally a resource.Controller). Sharded spreads keys over
// independently locked LRUs, and Loader collapses concurrent decodes of the
// same node into one.
package cache
