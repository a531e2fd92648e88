// Package search retrieves document excerpts for a tenant's question from the
// managed search index over the shared bucket. The index is shared across
// tenants, so every result set passes a mandatory tenant post-filter before it
// leaves this package: one foreign excerpt fails the whole request closed.
package search

import "context"

// Excerpt is one retrieved passage from the search index. The URI carries the
// storage path and with it the tenant namespace marker; it is untrusted until
// the Builder has checked it.
type Excerpt struct {
	DocID   string
	Title   string
	Content string
	URI     string
}

// Searcher is the raw search collaborator. Implementations return results as
// the index scored them, without tenant filtering.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Excerpt, error)
}
