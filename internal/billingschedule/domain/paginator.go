package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// PageHandler receives one page of schedules. Pages arrive strictly in
// ascending id order; returning an error stops the traversal.
type PageHandler func(ctx context.Context, page []MerchantBillingSchedule) error

// EachPage walks the schedule store in fixed-size pages using the last-seen
// id as a keyset cursor, invoking fn per page until a page comes back empty.
// Iterative on purpose: merchant counts grow unbounded and the traversal
// must not grow the call stack with them. The handler runs sequentially
// page-by-page; fan-out inside a page is the handler's business.
func EachPage(ctx context.Context, repo Repository, pageSize int, activeOnly bool, fn PageHandler) error {
	if pageSize <= 0 {
		pageSize = 50
	}

	var cursor snowflake.ID
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := repo.ListPage(ctx, cursor, pageSize, activeOnly)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		if err := fn(ctx, page); err != nil {
			return err
		}
		cursor = page[len(page)-1].ID
	}
}
