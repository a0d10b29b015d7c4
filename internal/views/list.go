package views

import (
	"context"
	"sync"

	"github.com/vibecampus/vibehub/internal/feed"
	"github.com/vibecampus/vibehub/internal/realtime"
)

// list is a mounted feed controller. Page views embed it.
type list[T feed.Record, F any] struct {
	vc  *Context
	ctl *feed.Controller[T, F]

	once sync.Once
}

func newList[T feed.Record, F any](vc *Context, src feed.Source[T, F], filter F, opts feed.Options[T, F]) *list[T, F] {
	opts.Subscriber = vc.realtime
	if opts.PageSize <= 0 {
		opts.PageSize = vc.feed.PageSize
	}
	if opts.Debounce <= 0 {
		opts.Debounce = vc.feed.Debounce
	}
	return &list[T, F]{vc: vc, ctl: feed.New(src, filter, opts)}
}

// Mount loads the first page and starts listening for changes
func (l *list[T, F]) Mount(ctx context.Context) error {
	if err := l.vc.register(l); err != nil {
		return err
	}
	return l.ctl.Load(ctx)
}

// Close releases the view's realtime bridge. Nothing changes afterwards.
func (l *list[T, F]) Close() {
	l.once.Do(func() {
		l.ctl.Close()
		l.vc.unregister(l)
	})
}

func (l *list[T, F]) bridges() []*realtime.Bridge {
	if b := l.ctl.Bridge(); b != nil {
		return []*realtime.Bridge{b}
	}
	return nil
}

// Snapshot returns the current list state
func (l *list[T, F]) Snapshot() feed.Snapshot[T] {
	return l.ctl.Snapshot()
}

// LoadMore fetches the next page
func (l *list[T, F]) LoadMore(ctx context.Context) error {
	return l.ctl.LoadMore(ctx)
}

// Retry clears a load error and fetches again
func (l *list[T, F]) Retry(ctx context.Context) error {
	return l.ctl.Retry(ctx)
}

// Filter returns the active filter
func (l *list[T, F]) Filter() F {
	return l.ctl.Filter()
}
