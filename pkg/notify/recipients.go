package notify

import "context"

// DefaultRecipientBatchSize bounds how many recipients are resolved and
// dispatched per page.
const DefaultRecipientBatchSize = 200

// forEachRecipientBatch walks the paginated recipient resolution for one
// target, invoking fn once per non-empty page. Pages are fetched
// sequentially with a growing page index, so memory stays bounded by the
// batch size regardless of target cardinality.
func forEachRecipientBatch(ctx context.Context, fetch func(context.Context, PageLink) (RecipientPage, error), batchSize int, fn func([]Recipient) error) error {
	link := PageLink{Page: 0, PageSize: batchSize}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := fetch(ctx, link)
		if err != nil {
			return err
		}
		if len(page.Recipients) > 0 {
			if err := fn(page.Recipients); err != nil {
				return err
			}
		}
		if !page.HasNext {
			return nil
		}
		link.Page++
	}
}
