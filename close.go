package pointstore

// Close releases the blob and drops cached chunks of this cloud. Queries
// running concurrently end with ErrClosed. Close is idempotent.
func (c *Cloud) Close() error {
	if c == nil {
		return nil
	}
	first, err := c.blob.close()
	if first && c.cache != nil {
		c.cache.Invalidate(c.idx.Header().DatasetID)
	}
	return err
}
