package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"catalog/internal/apiclient"
	"catalog/internal/logging"
	"catalog/internal/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ListKey is the cache key of the product collection.
const ListKey = "products"

// ErrClosed is wrapped in the error returned by reads after the store has
// been closed.
var ErrClosed = errors.New("cache: store is closed")

// A fetch that keeps getting superseded by mutations is retried this many
// times before the caller gets whatever state the entry is in.
const maxSupersededRetries = 3

// ProductAPI is the remote side of the cache. *apiclient.Client implements it.
type ProductAPI interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, input models.ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

type (
	// ListState is the state of the product collection entry.
	ListState = State[[]models.Product]
	// ProductState is the state of one product detail entry.
	ProductState = State[models.Product]
)

// Options tunes a Store.
type Options struct {
	// DisableActiveRefetch stops the store from refetching an invalidated
	// entry in the background when it has subscribers. Readers still refetch
	// it on their next read.
	DisableActiveRefetch bool
	Logger               logrus.FieldLogger
}

// Store is the client-side view of the catalog. It is created once per
// application, shared by every view and released with Close.
type Store struct {
	api  ProductAPI
	opts Options
	log  logrus.FieldLogger

	mu           sync.Mutex
	list         *entry[[]models.Product]
	details      map[int64]*entry[models.Product]
	nextListener int
	closed       bool

	group  singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Store reading from and writing to api.
func New(api ProductAPI, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		api:     api,
		opts:    opts,
		log:     logger,
		details: make(map[int64]*entry[models.Product]),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.list = newEntry(&s.mu, ListKey, api.ListProducts, slices.Clone[[]models.Product])
	return s
}

// Close cancels in-flight background fetches and waits for them to return.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// PeekList returns the current list state without fetching.
func (s *Store) PeekList() ListState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.state()
}

// PeekProduct returns the current state of one product without fetching.
func (s *Store) PeekProduct(id int64) ProductState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detail(id).state()
}

// List returns the product collection, loading it first unless it is fresh.
// Errors are *apiclient.Error values; a cancelled ctx or a closed store is
// reported as KindTransport wrapping ctx.Err() or ErrClosed.
func (s *Store) List(ctx context.Context) (ListState, error) {
	return load(ctx, s, s.list, false)
}

// RefetchList loads the product collection even if it is fresh.
func (s *Store) RefetchList(ctx context.Context) (ListState, error) {
	return load(ctx, s, s.list, true)
}

// Product returns one product, loading it first unless it is fresh.
func (s *Store) Product(ctx context.Context, id int64) (ProductState, error) {
	s.mu.Lock()
	e := s.detail(id)
	s.mu.Unlock()
	return load(ctx, s, e, false)
}

// RefetchProduct loads one product even if it is fresh.
func (s *Store) RefetchProduct(ctx context.Context, id int64) (ProductState, error) {
	s.mu.Lock()
	e := s.detail(id)
	s.mu.Unlock()
	return load(ctx, s, e, true)
}

// SubscribeList registers fn for every change of the list entry. fn is
// called once right away with the current state. The first subscriber of an
// absent or invalidated entry starts a fetch. The returned func unsubscribes.
func (s *Store) SubscribeList(fn func(ListState)) func() {
	return subscribe(s, s.list, fn)
}

// SubscribeProduct is SubscribeList for one product detail entry.
func (s *Store) SubscribeProduct(id int64, fn func(ProductState)) func() {
	s.mu.Lock()
	e := s.detail(id)
	s.mu.Unlock()
	return subscribe(s, e, fn)
}

// Create stores a new product remotely. The list is invalidated rather than
// patched locally: only the server knows the final ID and field values.
func (s *Store) Create(ctx context.Context, input models.ProductInput) (*models.Product, error) {
	product, err := s.api.CreateProduct(ctx, input)
	if err != nil {
		return nil, apiclient.AsError(err)
	}
	s.mu.Lock()
	calls := invalidate(s, s.list)
	s.mu.Unlock()
	run(calls)
	return product, nil
}

// Update applies a partial update remotely, then invalidates the list and the
// product's detail entry.
func (s *Store) Update(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, error) {
	product, err := s.api.UpdateProduct(ctx, id, patch)
	if err != nil {
		return nil, apiclient.AsError(err)
	}
	s.mu.Lock()
	calls := invalidate(s, s.list)
	calls = append(calls, invalidate(s, s.detail(id))...)
	s.mu.Unlock()
	run(calls)
	return product, nil
}

// Delete removes a product optimistically: the cached list drops it and
// subscribers are notified before the remote call is made. If the remote
// delete fails, only this product is put back where it was; removals made
// by other operations in the meantime are kept. Either way the list is
// invalidated so it converges on the server's content.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	rm, calls := s.removeFromList(id)
	s.mu.Unlock()
	run(calls)

	err := s.api.DeleteProduct(ctx, id)

	s.mu.Lock()
	calls = nil
	if err != nil {
		calls = append(calls, s.restoreToList(rm)...)
	} else {
		calls = append(calls, invalidate(s, s.detail(id))...)
	}
	calls = append(calls, invalidate(s, s.list)...)
	s.mu.Unlock()
	run(calls)

	if err != nil {
		s.log.WithError(err).Debugf("Delete of product %d failed, restored it in the cached list", id)
		return apiclient.AsError(err)
	}
	return nil
}

// removal is the undo record of one optimistic delete.
type removal struct {
	applied bool
	product models.Product
	index   int
	prevID  int64 // 0 when the product was first
	nextID  int64 // 0 when the product was last
}

// removeFromList must be called with s.mu held.
func (s *Store) removeFromList(id int64) (removal, []func()) {
	e := s.list
	if !e.hasData {
		return removal{}, nil
	}
	idx := slices.IndexFunc(e.data, func(p models.Product) bool { return p.ID == id })
	if idx < 0 {
		return removal{}, nil
	}

	rm := removal{applied: true, product: e.data[idx], index: idx}
	if idx > 0 {
		rm.prevID = e.data[idx-1].ID
	}
	if idx < len(e.data)-1 {
		rm.nextID = e.data[idx+1].ID
	}

	e.data = slices.Delete(slices.Clone(e.data), idx, idx+1)
	e.gen++
	return rm, e.notifications()
}

// restoreToList re-inserts the product of a failed delete. It is anchored on
// the neighbour that followed it, then the one that preceded it, then on its
// old index. Must be called with s.mu held.
func (s *Store) restoreToList(rm removal) []func() {
	e := s.list
	if !rm.applied || !e.hasData {
		return nil
	}
	indexOf := func(id int64) int {
		return slices.IndexFunc(e.data, func(p models.Product) bool { return p.ID == id })
	}
	if indexOf(rm.product.ID) >= 0 {
		return nil
	}

	pos := min(rm.index, len(e.data))
	if i := indexOf(rm.nextID); rm.nextID != 0 && i >= 0 {
		pos = i
	} else if i := indexOf(rm.prevID); rm.prevID != 0 && i >= 0 {
		pos = i + 1
	}

	e.data = slices.Insert(slices.Clone(e.data), pos, rm.product)
	e.gen++
	return e.notifications()
}

// detail returns the entry of one product, creating it on first use.
// Must be called with s.mu held.
func (s *Store) detail(id int64) *entry[models.Product] {
	e, ok := s.details[id]
	if !ok {
		fetch := func(ctx context.Context) (models.Product, error) {
			p, err := s.api.GetProduct(ctx, id)
			if err != nil {
				return models.Product{}, err
			}
			return *p, nil
		}
		e = newEntry(&s.mu, "product/"+strconv.FormatInt(id, 10), fetch, func(p models.Product) models.Product { return p })
		s.details[id] = e
	}
	return e
}

// background runs fn on a goroutine owned by the store.
func (s *Store) background(fn func(ctx context.Context)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

// invalidate marks e stale. If e has subscribers and active refetch is on, a
// background fetch is scheduled; it is returned as one of the calls so it
// starts after the lock is released. Must be called with s.mu held.
func invalidate[T any](s *Store, e *entry[T]) []func() {
	e.gen++
	if !e.moveTo(StatusInvalidated) {
		// absent: nothing cached; loading: the in-flight result will be
		// discarded as superseded; invalidated: already stale.
		return nil
	}
	calls := e.notifications()
	if s.shouldRefetch(len(e.listeners)) {
		calls = append(calls, func() { s.background(func(ctx context.Context) { _, _ = load(ctx, s, e, false) }) })
	}
	return calls
}

func (s *Store) shouldRefetch(subscribers int) bool {
	return !s.opts.DisableActiveRefetch && subscribers > 0
}

// subscribe registers fn on e and starts a fetch if e has nothing usable.
// Concurrent subscribers share that fetch: load skips the remote call once
// the entry is fresh.
func subscribe[T any](s *Store, e *entry[T], fn func(State[T])) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	e.listeners[id] = fn
	e.notify(id)
	status := e.status
	s.mu.Unlock()

	e.deliver()
	if status == StatusAbsent || status == StatusInvalidated {
		s.background(func(ctx context.Context) { _, _ = load(ctx, s, e, false) })
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(e.listeners, id)
			s.mu.Unlock()
		})
	}
}

// fetchOutcome is what the shared fetch reports back to every waiter.
type fetchOutcome struct {
	superseded bool
}

// load fetches e through the single-flight group. Concurrent callers of the
// same key and generation share one remote call; a result that was
// overtaken by a mutation is discarded and the load is retried. Unless
// force is set, an entry found fresh is returned without a remote call; the
// check is repeated inside the shared call so a caller arriving just after
// a fetch completed does not start another one.
func load[T any](ctx context.Context, s *Store, e *entry[T], force bool) (State[T], error) {
	for attempt := 0; ; attempt++ {
		s.mu.Lock()
		if s.closed {
			st := e.state()
			s.mu.Unlock()
			return st, readError(ErrClosed)
		}
		if !force && e.status == StatusFresh {
			st := e.state()
			s.mu.Unlock()
			return st, nil
		}
		gen := e.gen
		s.mu.Unlock()

		key := fmt.Sprintf("%s#%d", e.key, gen)
		if force {
			key += "#refetch"
		}
		ch := s.group.DoChan(key, func() (interface{}, error) {
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return fetchOutcome{}, ErrClosed
			}
			if !force && e.status == StatusFresh {
				s.mu.Unlock()
				return fetchOutcome{}, nil
			}
			s.wg.Add(1)
			s.mu.Unlock()
			defer s.wg.Done()

			startLoading(s, e, gen)
			data, err := e.fetch(s.ctx)
			return fetchOutcome{superseded: finishLoading(s, e, gen, data, err)}, err
		})

		var res singleflight.Result
		select {
		case res = <-ch:
		case <-ctx.Done():
			s.mu.Lock()
			st := e.state()
			s.mu.Unlock()
			return st, readError(ctx.Err())
		}

		outcome, _ := res.Val.(fetchOutcome)
		if outcome.superseded && attempt < maxSupersededRetries {
			continue
		}

		s.mu.Lock()
		st := e.state()
		s.mu.Unlock()
		if errors.Is(res.Err, ErrClosed) {
			return st, readError(ErrClosed)
		}
		if res.Err != nil && !outcome.superseded {
			return st, apiclient.AsError(res.Err)
		}
		return st, nil
	}
}

// readError reports a read that ended without a server answer.
func readError(err error) *apiclient.Error {
	return &apiclient.Error{Kind: apiclient.KindTransport, Message: err.Error(), Err: err}
}

func startLoading[T any](s *Store, e *entry[T], gen uint64) {
	s.mu.Lock()
	if gen != e.gen {
		// Already stale; finishLoading will discard it.
		s.mu.Unlock()
		return
	}
	e.loadingGen = gen
	var calls []func()
	if e.moveTo(StatusLoading) {
		calls = e.notifications()
	}
	s.mu.Unlock()
	run(calls)
}

// finishLoading applies a fetch result and reports whether it was superseded.
func finishLoading[T any](s *Store, e *entry[T], gen uint64, data T, err error) bool {
	s.mu.Lock()
	var calls []func()
	superseded := gen != e.gen
	switch {
	case superseded:
		if e.status == StatusLoading && e.loadingGen == gen && e.moveTo(StatusInvalidated) {
			calls = e.notifications()
			if s.shouldRefetch(len(e.listeners)) {
				calls = append(calls, func() { s.background(func(ctx context.Context) { _, _ = load(ctx, s, e, false) }) })
			}
		}
	case err != nil:
		if e.moveTo(StatusErrored) {
			e.err = apiclient.AsError(err)
			calls = e.notifications()
		}
	default:
		if e.moveTo(StatusFresh) {
			e.data = data
			e.hasData = true
			e.err = nil
			calls = e.notifications()
		}
	}
	s.mu.Unlock()
	run(calls)
	return superseded
}
