package alignment

import (
	"context"
	"sync"
)

type fetched struct {
	a   *Alignment
	err error
}

// Prefetcher reads ahead of its consumer on a separate goroutine. Records
// are delivered in source order.
type Prefetcher struct {
	src    Source
	items  chan fetched
	cancel context.CancelFunc
	once   sync.Once
	done   bool
	// err is set before items is closed when the reader stops without
	// reaching end of stream.
	err error
}

// Prefetch starts reading src into a buffer of the given size. Closing the
// returned source stops the reader goroutine and closes src.
func Prefetch(ctx context.Context, src Source, size int) *Prefetcher {
	ctx, cancel := context.WithCancel(ctx)
	p := &Prefetcher{
		src:    src,
		items:  make(chan fetched, size),
		cancel: cancel,
	}

	go func() {
		defer close(p.items)
		for {
			if err := ctx.Err(); err != nil {
				p.err = err
				return
			}
			a, err := src.Next()
			select {
			case p.items <- fetched{a: a, err: err}:
			case <-ctx.Done():
				p.err = ctx.Err()
				return
			}
			if a == nil || err != nil {
				return
			}
		}
	}()

	return p
}

// Next returns the next buffered alignment, or nil, nil at end of stream.
// If the context is cancelled before end of stream, Next returns the
// context's error instead.
func (p *Prefetcher) Next() (*Alignment, error) {
	if p.done {
		return nil, p.err
	}
	it, ok := <-p.items
	if !ok {
		p.done = true
		return nil, p.err
	}
	if it.a == nil || it.err != nil {
		p.done = true
		p.err = it.err
	}
	return it.a, it.err
}

// Close stops the reader goroutine and closes the underlying source.
func (p *Prefetcher) Close() error {
	var err error
	p.once.Do(func() {
		p.cancel()
		// Drain so the reader goroutine observes cancellation and exits
		// before the source is closed underneath it.
		for range p.items {
		}
		err = p.src.Close()
	})
	return err
}
