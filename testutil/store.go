package testutil

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/c360/schoolcache/kvstore"
)

// Op names a store operation for fault injection.
type Op string

// Store operations
const (
	OpGet         Op = "get"
	OpSet         Op = "set"
	OpRemove      Op = "remove"
	OpKeys        Op = "keys"
	OpMultiGet    Op = "multi_get"
	OpMultiSet    Op = "multi_set"
	OpMultiRemove Op = "multi_remove"
)

// FaultyStore is an in-memory kvstore.Store with injectable failures.
type FaultyStore struct {
	mem *kvstore.Memory

	mu      sync.Mutex
	faults  map[Op]error
	calls   map[Op]int
	shuffle bool
}

var _ kvstore.Store = (*FaultyStore)(nil)

// NewFaultyStore creates an empty store with no faults.
func NewFaultyStore() *FaultyStore {
	return &FaultyStore{
		mem:    kvstore.NewMemory(),
		faults: make(map[Op]error),
		calls:  make(map[Op]int),
	}
}

// FailOn makes op return err until Heal.
func (s *FaultyStore) FailOn(op Op, err error) {
	s.mu.Lock()
	s.faults[op] = err
	s.mu.Unlock()
}

// Heal clears the fault for op, or every fault when called without ops.
func (s *FaultyStore) Heal(ops ...Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(ops) == 0 {
		s.faults = make(map[Op]error)
		return
	}
	for _, op := range ops {
		delete(s.faults, op)
	}
}

// ShuffleMultiGet randomises MultiGet result order.
func (s *FaultyStore) ShuffleMultiGet(enabled bool) {
	s.mu.Lock()
	s.shuffle = enabled
	s.mu.Unlock()
}

// Calls returns how many times op was invoked, failed calls included.
func (s *FaultyStore) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Inject writes value under key bypassing faults. Use it to plant corrupt
// or foreign entries.
func (s *FaultyStore) Inject(key, value string) {
	_ = s.mem.SetItem(context.Background(), key, value)
}

// Peek reads key bypassing faults.
func (s *FaultyStore) Peek(key string) (string, bool) {
	v, ok, _ := s.mem.GetItem(context.Background(), key)
	return v, ok
}

// Len returns the number of stored keys.
func (s *FaultyStore) Len() int {
	return s.mem.Len()
}

func (s *FaultyStore) enter(op Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	return s.faults[op]
}

// GetItem implements kvstore.Store.
func (s *FaultyStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	if err := s.enter(OpGet); err != nil {
		return "", false, err
	}
	return s.mem.GetItem(ctx, key)
}

// SetItem implements kvstore.Store.
func (s *FaultyStore) SetItem(ctx context.Context, key, value string) error {
	if err := s.enter(OpSet); err != nil {
		return err
	}
	return s.mem.SetItem(ctx, key, value)
}

// RemoveItem implements kvstore.Store.
func (s *FaultyStore) RemoveItem(ctx context.Context, key string) error {
	if err := s.enter(OpRemove); err != nil {
		return err
	}
	return s.mem.RemoveItem(ctx, key)
}

// GetAllKeys implements kvstore.Store.
func (s *FaultyStore) GetAllKeys(ctx context.Context) ([]string, error) {
	if err := s.enter(OpKeys); err != nil {
		return nil, err
	}
	return s.mem.GetAllKeys(ctx)
}

// MultiGet implements kvstore.Store.
func (s *FaultyStore) MultiGet(ctx context.Context, keys []string) ([]kvstore.KeyValue, error) {
	if err := s.enter(OpMultiGet); err != nil {
		return nil, err
	}
	out, err := s.mem.MultiGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	shuffle := s.shuffle
	s.mu.Unlock()
	if shuffle {
		rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out, nil
}

// MultiSet implements kvstore.Store.
func (s *FaultyStore) MultiSet(ctx context.Context, items []kvstore.KeyValue) error {
	if err := s.enter(OpMultiSet); err != nil {
		return err
	}
	return s.mem.MultiSet(ctx, items)
}

// MultiRemove implements kvstore.Store.
func (s *FaultyStore) MultiRemove(ctx context.Context, keys []string) error {
	if err := s.enter(OpMultiRemove); err != nil {
		return err
	}
	return s.mem.MultiRemove(ctx, keys)
}
