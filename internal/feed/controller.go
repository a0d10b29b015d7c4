// Package feed keeps an ordered, de-duplicated, paginated list of
// records for one screen and merges realtime changes into it.
package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/realtime"
	"github.com/vibecampus/vibehub/pkg/logging"
)

const (
	// DefaultPageSize is the window fetched per page
	DefaultPageSize = 20
	// DefaultDebounce delays filter changes made while typing
	DefaultDebounce = 500 * time.Millisecond
)

// Record is a list entry keyed by id
type Record interface {
	RecordID() string
}

// Source reads the backing collection. Get returns (nil, nil) when the
// record does not exist or is not visible to the caller.
type Source[T Record, F any] interface {
	List(ctx context.Context, filter F, offset, limit int) ([]T, error)
	Get(ctx context.Context, id string) (*T, error)
}

// Options configures a Controller
type Options[T Record, F any] struct {
	// Scope names the controller in logs and its realtime bridge
	Scope    string
	PageSize int
	Debounce time.Duration
	// Less is the screen's sort order. Pages arrive in this order; it
	// positions records that arrive through realtime.
	Less func(a, b T) bool
	// Match reports whether a record belongs under filter. Nil accepts all.
	Match func(filter F, rec T) bool
	// Realtime lists the change filters to watch for filter. Nil or an
	// empty result disables realtime merging.
	Realtime   func(filter F) []realtime.Filter
	Subscriber realtime.Subscriber
	// OnChange is called after every state change
	OnChange func(Snapshot[T])
}

// Snapshot is a consistent copy of the controller state
type Snapshot[T Record] struct {
	Items       []T
	HasMore     bool
	Loading     bool
	Err         string
	MutationErr string
	Generation  uint64
}

// Controller is one screen's list. All methods are safe for concurrent use.
type Controller[T Record, F any] struct {
	src  Source[T, F]
	opts Options[T, F]

	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu          sync.Mutex
	filter      F
	gen         uint64
	items       []T
	provisional map[string]struct{}
	// paged holds the ids counted in offset
	paged       map[string]struct{}
	offset      int
	hasMore     bool
	loading     bool
	err         string
	mutationErr string
	bridge      *realtime.Bridge
	debounce    *time.Timer
	closed      bool
}

// New creates a controller for filter. Nothing is fetched until Load.
func New[T Record, F any](src Source[T, F], filter F, opts Options[T, F]) *Controller[T, F] {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller[T, F]{
		src:         src,
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logging.GetLogger().With(zap.String("component", "feed"), zap.String("scope", opts.Scope)),
		filter:      filter,
		provisional: make(map[string]struct{}),
		paged:       make(map[string]struct{}),
		hasMore:     true,
	}
}

// Filter returns the current filter
func (c *Controller[T, F]) Filter() F {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Snapshot returns a copy of the current state
func (c *Controller[T, F]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller[T, F]) snapshotLocked() Snapshot[T] {
	items := make([]T, len(c.items))
	copy(items, c.items)
	return Snapshot[T]{
		Items:       items,
		HasMore:     c.hasMore,
		Loading:     c.loading,
		Err:         c.err,
		MutationErr: c.mutationErr,
		Generation:  c.gen,
	}
}

// unlockAndNotify releases mu and reports the state it had
func (c *Controller[T, F]) unlockAndNotify() {
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if c.opts.OnChange != nil {
		c.opts.OnChange(snap)
	}
}

// Load resets the list and fetches the first page for the current filter
func (c *Controller[T, F]) Load(ctx context.Context) error {
	c.mu.Lock()
	f := c.filter
	c.mu.Unlock()
	return c.SetFilter(ctx, f)
}

// SetFilter switches to filter: the list is cleared, pagination restarts,
// results still in flight for the previous filter are discarded, and the
// realtime bridge is re-opened for the new filter.
func (c *Controller[T, F]) SetFilter(ctx context.Context, filter F) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	c.gen++
	gen := c.gen
	c.filter = filter
	c.items = nil
	c.provisional = make(map[string]struct{})
	c.paged = make(map[string]struct{})
	c.offset = 0
	c.hasMore = true
	c.err = ""
	c.mutationErr = ""
	c.loading = false
	old := c.bridge
	c.bridge = nil
	c.unlockAndNotify()

	// never close a bridge while holding mu: its handlers take mu
	if old != nil {
		old.Close()
	}
	c.openBridge(gen, filter)

	return c.fetchPage(ctx, gen)
}

// SetFilterDebounced applies filter once no other change has arrived
// for the debounce window. The last call wins.
func (c *Controller[T, F]) SetFilterDebounced(filter F) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounce = time.AfterFunc(c.opts.Debounce, func() {
		if err := c.SetFilter(c.ctx, filter); err != nil {
			c.logger.Debug("Debounced fetch failed", zap.Error(err))
		}
	})
}

// LoadMore fetches the next page. It does nothing while a fetch is in
// flight, after the last page, or after a fetch error.
func (c *Controller[T, F]) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	return c.fetchPage(ctx, gen)
}

func (c *Controller[T, F]) fetchPage(ctx context.Context, gen uint64) error {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.loading || !c.hasMore || c.err != "" {
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	filter, offset := c.filter, c.offset
	c.unlockAndNotify()

	page, err := c.src.List(ctx, filter, offset, c.opts.PageSize)

	c.mu.Lock()
	if c.closed || gen != c.gen {
		// superseded by a newer filter; its own fetch owns the flags
		c.mu.Unlock()
		return nil
	}
	c.loading = false
	if err != nil {
		c.err = apperr.Message(err)
		c.logger.Warn("Page fetch failed", zap.Int("offset", offset), zap.Error(err))
		c.unlockAndNotify()
		return err
	}
	c.offset += len(page)
	c.hasMore = len(page) == c.opts.PageSize
	for _, rec := range page {
		c.paged[rec.RecordID()] = struct{}{}
		if c.indexLocked(rec.RecordID()) < 0 {
			c.items = append(c.items, rec)
		}
	}
	c.sortLocked()
	c.unlockAndNotify()
	return nil
}

// Retry clears a fetch error and fetches the next page again
func (c *Controller[T, F]) Retry(ctx context.Context) error {
	c.mu.Lock()
	c.err = ""
	gen := c.gen
	c.mu.Unlock()
	return c.fetchPage(ctx, gen)
}

// InsertLocal shows rec before the server has confirmed it. Its
// realtime echo will not add a second copy.
func (c *Controller[T, F]) InsertLocal(rec T) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	id := rec.RecordID()
	if c.indexLocked(id) < 0 {
		c.items = append(c.items, rec)
		c.sortLocked()
	}
	c.provisional[id] = struct{}{}
	c.mutationErr = ""
	c.unlockAndNotify()
}

// ConfirmLocal replaces a provisional record with the server's copy
func (c *Controller[T, F]) ConfirmLocal(rec T) {
	c.mu.Lock()
	id := rec.RecordID()
	delete(c.provisional, id)
	if i := c.indexLocked(id); i >= 0 {
		c.items[i] = rec
		c.sortLocked()
	}
	c.unlockAndNotify()
}

// RollbackLocal removes a provisional record whose create failed and
// records err for display
func (c *Controller[T, F]) RollbackLocal(id string, err error) {
	c.mu.Lock()
	if _, ok := c.provisional[id]; ok {
		delete(c.provisional, id)
		c.removeLocked(id)
	}
	if err != nil {
		c.mutationErr = apperr.Message(err)
	}
	c.unlockAndNotify()
}

// Create inserts rec locally, persists it, and either confirms it with
// the stored copy or rolls it back and returns the error
func (c *Controller[T, F]) Create(ctx context.Context, rec T, persist func(ctx context.Context, rec T) (T, error)) error {
	c.InsertLocal(rec)
	stored, err := persist(ctx, rec)
	if err != nil {
		c.RollbackLocal(rec.RecordID(), err)
		return err
	}
	c.ConfirmLocal(stored)
	return nil
}

// Remove drops id from the list, such as after the user deletes it
func (c *Controller[T, F]) Remove(id string) {
	c.mu.Lock()
	delete(c.provisional, id)
	c.removeLocked(id)
	c.unlockAndNotify()
}

// Close tears down the bridge and timers. No state changes after it returns.
func (c *Controller[T, F]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	b := c.bridge
	c.bridge = nil
	c.mu.Unlock()

	c.cancel()
	if b != nil {
		b.Close()
	}
}

// Bridge returns the open realtime bridge, if any
func (c *Controller[T, F]) Bridge() *realtime.Bridge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bridge
}

func (c *Controller[T, F]) openBridge(gen uint64, filter F) {
	if c.opts.Subscriber == nil || c.opts.Realtime == nil {
		return
	}
	filters := c.opts.Realtime(filter)
	if len(filters) == 0 {
		return
	}

	b := realtime.Open(c.opts.Subscriber, c.opts.Scope)
	for _, rf := range filters {
		if err := b.On(rf, c.handler(gen, filter)); err != nil {
			c.logger.Error("Failed to subscribe", zap.String("filter", rf.String()), zap.Error(err))
		}
	}

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		b.Close()
		return
	}
	c.bridge = b
	c.mu.Unlock()
}

func (c *Controller[T, F]) handler(gen uint64, filter F) realtime.Handler {
	return func(ch realtime.Change) {
		if err := c.apply(gen, filter, ch); err != nil {
			c.logger.Debug("Realtime merge skipped",
				zap.String("table", ch.Table),
				zap.String("type", string(ch.Type)),
				zap.Error(err))
		}
	}
}

// apply merges one change: deletes remove by id; inserts and updates
// fetch the full record and place, replace or drop it
func (c *Controller[T, F]) apply(gen uint64, filter F, ch realtime.Change) error {
	id := ch.RecordID()
	if id == "" {
		return nil
	}

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	present := c.indexLocked(id) >= 0
	if ch.Type == realtime.EventDelete {
		if present {
			delete(c.provisional, id)
			c.removeLocked(id)
			c.unlockAndNotify()
			return nil
		}
		c.mu.Unlock()
		return nil
	}
	if ch.Type == realtime.EventInsert && present {
		// our own optimistic insert, or a record a page already brought in
		delete(c.provisional, id)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	rec, err := c.src.Get(c.ctx, id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	visible := rec != nil && (c.opts.Match == nil || c.opts.Match(filter, *rec))
	i := c.indexLocked(id)
	switch {
	case !visible && i >= 0:
		c.removeLocked(id)
	case !visible:
		c.mu.Unlock()
		return nil
	case i >= 0:
		if ch.Type == realtime.EventInsert {
			c.mu.Unlock()
			return nil
		}
		c.items[i] = *rec
		c.sortLocked()
	default:
		c.items = append(c.items, *rec)
		c.sortLocked()
	}
	c.unlockAndNotify()
	return nil
}

func (c *Controller[T, F]) indexLocked(id string) int {
	for i := range c.items {
		if c.items[i].RecordID() == id {
			return i
		}
	}
	return -1
}

// removeLocked drops id. A row a page brought in no longer occupies a
// server position, so the next page starts one row earlier.
func (c *Controller[T, F]) removeLocked(id string) {
	if i := c.indexLocked(id); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
	if _, ok := c.paged[id]; ok {
		delete(c.paged, id)
		if c.offset > 0 {
			c.offset--
		}
	}
}

func (c *Controller[T, F]) sortLocked() {
	if c.opts.Less == nil {
		return
	}
	sort.SliceStable(c.items, func(i, j int) bool {
		return c.opts.Less(c.items[i], c.items[j])
	})
}
