package build

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/aellingwood/respimg/internal/content"
)

// renderParallel runs fn for every page on at most workers goroutines. A
// non-positive workers count uses one per CPU. The first error cancels the
// pages not yet started and is returned wrapped with the page URL.
func renderParallel(pages []*content.Page, workers int, fn func(*content.Page) error) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(workers)
	for _, p := range pages {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := fn(p); err != nil {
				return fmt.Errorf("processing page %s: %w", p.URL, err)
			}
			return nil
		})
	}
	return g.Wait()
}
