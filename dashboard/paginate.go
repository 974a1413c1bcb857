package dashboard

import (
	"context"
	"encoding/json"
)

// stopReason explains why a listing stopped paging.
type stopReason string

const (
	stopShortPage stopReason = "short_page"
	stopError     stopReason = "error"
	stopCeiling   stopReason = "page_ceiling"
	stopCancelled stopReason = "cancelled"
)

type pageFetcher func(ctx context.Context, page int) ([]json.RawMessage, error)

// paginate walks pages from 1 until a page is short or empty, a fetch fails, or
// maxPages pages have been read. Items gathered before a failure are kept.
func paginate(ctx context.Context, fetch pageFetcher, pageSize, maxPages int) ([]json.RawMessage, stopReason, error) {
	items := make([]json.RawMessage, 0)
	for page := 1; maxPages <= 0 || page <= maxPages; page++ {
		if ctx.Err() != nil {
			return items, stopCancelled, ctx.Err()
		}
		batch, err := fetch(ctx, page)
		if err != nil {
			return items, stopError, err
		}
		items = append(items, batch...)
		if len(batch) < pageSize {
			return items, stopShortPage, nil
		}
	}
	return items, stopCeiling, nil
}
