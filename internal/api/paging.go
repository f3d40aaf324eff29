package api

import (
	"context"

	"github.com/mmcdole/trackr/internal/domain"
)

// DefaultPageSize is the page size used when callers don't specify one
const DefaultPageSize = 50

// PageFunc fetches one page and reports the server's total
type PageFunc[T any] func(ctx context.Context, offset, limit int) ([]T, int, error)

// FetchAll walks every page of a paginated endpoint.
// maxItems caps the result; zero means unbounded.
func FetchAll[T any](
	ctx context.Context,
	fetch PageFunc[T],
	pageSize int,
	maxItems int,
	onProgress domain.ProgressFunc,
) ([]T, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []T
	offset := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		items, total, err := fetch(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}

		all = append(all, items...)

		if onProgress != nil {
			onProgress(len(all), total)
		}

		if maxItems > 0 && len(all) >= maxItems {
			all = all[:maxItems]
			break
		}
		if len(all) >= total || len(items) == 0 {
			break
		}
		offset += len(items)
	}

	return all, nil
}
