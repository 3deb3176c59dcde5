package studio

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	studiosdk "scriptstudio/sdk/go"
)

// Gateway is the backend surface the client core needs. *studiosdk.Client
// satisfies it.
type Gateway interface {
	ListOrders(ctx context.Context, partition string) ([]studiosdk.Order, error)
	CreateOrder(ctx context.Context, title, description string) (studiosdk.Order, error)
	SetOrderStatus(ctx context.Context, id, status string) (studiosdk.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	RenderDocument(ctx context.Context, artifactID string) ([]byte, string, error)
}

var partitions = []string{"open", "active", "archived"}

// Store holds the last good snapshot of all three order partitions. A
// failed refresh never clears it; callers keep rendering stale data and
// see the error separately.
type Store struct {
	Gateway Gateway
	Logger  *log.Logger

	mu       sync.RWMutex
	orders   map[string][]studiosdk.Order
	seq      uint64
	applied  uint64
	lastErr  error
	lastSync time.Time
}

func NewStore(gw Gateway, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		Gateway: gw,
		Logger:  logger,
		orders:  map[string][]studiosdk.Order{},
	}
}

// LoadAll fetches every partition in one pass. The snapshot is replaced
// only when all three fetches succeed.
func (s *Store) LoadAll(ctx context.Context) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	return s.loadSeq(ctx, seq)
}

func (s *Store) loadSeq(ctx context.Context, seq uint64) error {
	fresh := map[string][]studiosdk.Order{}
	for _, p := range partitions {
		items, err := s.Gateway.ListOrders(ctx, p)
		if err != nil {
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
			s.Logger.Error("order refresh failed; keeping last snapshot", "partition", p, "err", err)
			return err
		}
		fresh[p] = items
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// A slower, older response must not overwrite a newer snapshot.
	if seq < s.applied {
		s.Logger.Debug("discarding stale refresh", "seq", seq, "applied", s.applied)
		return nil
	}
	s.applied = seq
	s.orders = fresh
	s.lastErr = nil
	s.lastSync = time.Now()
	return nil
}

// Partition returns a copy of one partition's orders.
func (s *Store) Partition(p string) []studiosdk.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.orders[p]
	out := make([]studiosdk.Order, len(items))
	copy(out, items)
	return out
}

// FindIn looks an order up within a single partition. Transitions use
// this so an order that already left the source partition fails locally.
func (s *Store) FindIn(partition, id string) (studiosdk.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders[partition] {
		if o.ID == id {
			return o, true
		}
	}
	return studiosdk.Order{}, false
}

// Find looks an order up across all partitions.
func (s *Store) Find(id string) (studiosdk.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range partitions {
		for _, o := range s.orders[p] {
			if o.ID == id {
				return o, true
			}
		}
	}
	return studiosdk.Order{}, false
}

// LastError returns the error of the most recent failed refresh, nil
// after a successful one.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// LastSync returns when the snapshot was last replaced.
func (s *Store) LastSync() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}

// StartPolling refreshes the snapshot on a fixed interval until the
// context is canceled. Every tick gets a sequence number so overlapping
// responses apply in order.
func (s *Store) StartPolling(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				s.seq++
				seq := s.seq
				s.mu.Unlock()
				go func() {
					_ = s.loadSeq(ctx, seq)
				}()
			}
		}
	}()
}
