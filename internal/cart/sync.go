// Package cart keeps a local cart replica in step with the backend's cart
// store using optimistic mutations.
//
// Mutations are not queued. Two calls issued before either finishes run their
// remote requests concurrently, and each applies its confirm or rollback to
// the replica as it is when its own request completes. A rollback restores
// the snapshot taken when that mutation was issued, so it can undo another
// mutation layered on top in the meantime. Cart edits are interactive and
// rare enough that this is accepted in exchange for never blocking the UI on
// a queue.
package cart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	"github.com/tayloree/pricecli/internal/api"
)

var (
	// ErrItemNotFound is returned when removing an id the replica doesn't hold.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrUnknownProduct is returned when adding a product with no snapshot
	// to build the new line from.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrInvalidQuantity is returned for quantities below 1.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Remote is the authoritative cart store. *api.Client satisfies it.
type Remote interface {
	FetchCart(ctx context.Context) (*api.CartResponse, error)
	AddCartItem(ctx context.Context, productID int64, quantity int) (*api.AddToCartResponse, error)
	RemoveCartItem(ctx context.Context, itemID string) error
}

// Option configures a Sync.
type Option func(*Sync)

// WithRefreshRetry retries Refresh on transport and 5xx failures. attempts
// counts the first try, so 1 disables retrying.
func WithRefreshRetry(attempts uint, delay time.Duration) Option {
	return func(s *Sync) {
		if attempts < 1 {
			attempts = 1
		}
		s.refreshAttempts = attempts
		s.refreshDelay = delay
	}
}

// Sync owns one cart session's replica.
type Sync struct {
	remote Remote
	logger *log.Logger

	refreshAttempts uint
	refreshDelay    time.Duration

	mu        sync.Mutex
	state     State
	products  map[int64]api.Product
	nextLocal uint64
	inflight  int
}

// New creates an empty replica. Call Refresh to load the backend's cart.
func New(remote Remote, logger *log.Logger, opts ...Option) *Sync {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Sync{
		remote:          remote,
		logger:          logger,
		refreshAttempts: 1,
		refreshDelay:    250 * time.Millisecond,
		products:        make(map[int64]api.Product),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the replica.
func (s *Sync) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Pending reports how many mutations are waiting on the backend.
func (s *Sync) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight
}

// ItemForProduct returns the line holding productID, if any.
func (s *Sync) ItemForProduct(productID int64) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexByProduct(productID); idx >= 0 {
		return s.state.Items[idx], true
	}
	return Item{}, false
}

// Remember records products as the best-known snapshot for their ids. When a
// product id appears more than once the lowest price wins. Existing lines for
// those products are refreshed to the new snapshot.
func (s *Sync) Remember(products ...api.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		if known, ok := s.products[p.ID]; ok && !p.LowestPrice.LessThan(known.LowestPrice) {
			continue
		}
		s.products[p.ID] = p
	}
	s.applySnapshots()
}

// Add puts quantity units of a product in the cart. An existing line for the
// product is bumped in place; otherwise a pending line with a provisional id
// is appended from the best-known product snapshot. The change is visible
// immediately. On success a new line takes the backend's id; on failure the
// replica returns to how it was when Add was called and the error is
// returned.
func (s *Sync) Add(ctx context.Context, productID int64, quantity int) (Item, error) {
	if quantity < 1 {
		return Item{}, ErrInvalidQuantity
	}

	s.mu.Lock()
	before := cloneItems(s.state.Items)
	provisional := ""
	if idx := s.indexByProduct(productID); idx >= 0 {
		s.state.Items[idx].Quantity += quantity
	} else {
		p, ok := s.products[productID]
		if !ok {
			s.mu.Unlock()
			return Item{}, fmt.Errorf("adding product %d: %w", productID, ErrUnknownProduct)
		}
		s.nextLocal++
		provisional = fmt.Sprintf("%s%d", provisionalPrefix, s.nextLocal)
		item := Item{ID: provisional, ProductID: productID, Quantity: quantity, State: Pending}
		snapshotOf(&item, p)
		s.state.Items = append(s.state.Items, item)
	}
	s.inflight++
	s.mu.Unlock()

	s.logger.Debug("Adding to cart", "product", productID, "quantity", quantity, "provisional", provisional)
	resp, err := s.remote.AddCartItem(ctx, productID, quantity)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--

	if err != nil {
		s.state.Items = before
		s.logger.Warn("Add to cart failed, rolled back", "product", productID, "error", err)
		return Item{}, fmt.Errorf("adding product %d: %w", productID, err)
	}

	confirmedID := api.FormatID(resp.ID)
	if provisional != "" {
		if idx := s.indexByID(provisional); idx >= 0 {
			s.state.Items[idx].ID = confirmedID
			s.state.Items[idx].State = Confirmed
			s.logger.Debug("Cart line confirmed", "provisional", provisional, "id", confirmedID)
			return s.state.Items[idx], nil
		}
		s.logger.Debug("Cart line removed before confirmation", "provisional", provisional, "id", confirmedID)
		return Item{ID: confirmedID, ProductID: productID, Quantity: resp.Quantity, State: Confirmed}, nil
	}

	if idx := s.indexByProduct(productID); idx >= 0 {
		return s.state.Items[idx], nil
	}
	return Item{ID: confirmedID, ProductID: productID, Quantity: resp.Quantity, State: Confirmed}, nil
}

// Remove deletes a line immediately. Provisional lines are dropped locally
// with no backend call. Confirmed lines are deleted remotely; if that fails
// the whole list as it was before Remove is restored and the error returned.
func (s *Sync) Remove(ctx context.Context, itemID string) error {
	s.mu.Lock()
	idx := s.indexByID(itemID)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("removing %s: %w", itemID, ErrItemNotFound)
	}
	item := s.state.Items[idx]
	before := cloneItems(s.state.Items)
	s.state.Items = append(s.state.Items[:idx:idx], s.state.Items[idx+1:]...)

	if IsProvisional(itemID) {
		s.mu.Unlock()
		s.logger.Debug("Dropped provisional cart line", "id", itemID, "product", item.ProductID)
		return nil
	}
	s.inflight++
	s.mu.Unlock()

	err := s.remote.RemoveCartItem(ctx, itemID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if err != nil {
		s.state.Items = before
		s.logger.Warn("Remove from cart failed, restored", "id", itemID, "error", err)
		return fmt.Errorf("removing %s: %w", itemID, err)
	}
	return nil
}

// Refresh replaces the replica with the backend's cart. Optimistic changes
// the backend has not applied yet are lost, so prefer refreshing when
// Pending() is zero.
func (s *Sync) Refresh(ctx context.Context) (State, error) {
	if n := s.Pending(); n > 0 {
		s.logger.Warn("Refreshing cart with mutations in flight", "pending", n)
	}

	var resp *api.CartResponse
	err := retry.Do(
		func() error {
			r, err := s.remote.FetchCart(ctx)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.refreshAttempts),
		retry.Delay(s.refreshDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("Retrying cart refresh",
				"attempt", n+1,
				"max_attempts", s.refreshAttempts,
				"error", err)
		}),
	)
	if err != nil {
		return State{}, fmt.Errorf("refreshing cart: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = fromRemote(resp)
	s.applySnapshots()
	s.logger.Debug("Cart refreshed", "cart", s.state.ID, "items", len(s.state.Items))
	return s.state.clone(), nil
}

// retryable accepts only failures a second read can fix: the backend was
// unreachable or answered 5xx. Decoding errors are deterministic.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	if errors.Is(err, api.ErrTransport) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// applySnapshots keeps every line for a known product carrying that
// product's name, price and url. Callers hold s.mu.
func (s *Sync) applySnapshots() {
	for i := range s.state.Items {
		if p, ok := s.products[s.state.Items[i].ProductID]; ok {
			snapshotOf(&s.state.Items[i], p)
		}
	}
}

func (s *Sync) indexByID(id string) int {
	for i, item := range s.state.Items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (s *Sync) indexByProduct(productID int64) int {
	for i, item := range s.state.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}
