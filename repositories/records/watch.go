package records

import (
	"context"
	"strings"
	"time"
)

// WatchActive polls the active id set at the given interval and emits a
// snapshot whenever it changes (including the initial snapshot). Sends are
// non-blocking over a single-slot channel: a slow receiver sees only the
// latest change, which is all a sync trigger needs.
func (r *SQLiteRepository) WatchActive(ctx context.Context, interval time.Duration) <-chan []string {
	ch := make(chan []string, 1)

	go func() {
		defer close(ch)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last string
		first := true

		for {
			ids, err := r.ActiveIDs(ctx)
			if err == nil {
				key := strings.Join(ids, "\n")
				if first || key != last {
					first = false
					last = key
					select {
					case ch <- ids:
					default:
					}
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return ch
}
