package git

import "context"

// DefaultBatchSize bounds the number of paths passed to a single git add/rm
// invocation so command lines stay below platform length limits.
const DefaultBatchSize = 50

// RunBatched splits items into consecutive chunks of at most size entries and
// calls action once per chunk, strictly in order. A failing chunk stops the
// remaining ones and its error is returned. The result of the last chunk is
// returned; an empty items slice performs no calls and yields the zero value.
func RunBatched[T any](ctx context.Context, items []string, size int, action func(ctx context.Context, chunk []string) (T, error)) (T, error) {
	var last T
	if size <= 0 {
		size = DefaultBatchSize
	}

	for start := 0; start < len(items); start += size {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		end := min(start+size, len(items))

		result, err := action(ctx, items[start:end])
		if err != nil {
			return last, err
		}
		last = result
	}

	return last, nil
}
