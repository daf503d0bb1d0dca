package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// SelectionStore implements domain.SelectionStore.
type SelectionStore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewSelectionStore() *SelectionStore {
	return &SelectionStore{data: make(map[string]string)}
}

func (s *SelectionStore) Get(_ context.Context, scope string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[scope]
	if !ok {
		return "", fmt.Errorf("memory: selection %s: %w", scope, domain.ErrNotFound)
	}
	return v, nil
}

func (s *SelectionStore) Set(_ context.Context, scope, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[scope] = value
	return nil
}

// LockManager implements domain.LockManager with per-key channels. The ttl
// is ignored because the holder lives in the same process.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]chan struct{})}
}

// Acquire blocks until key is free or ctx is done.
func (m *LockManager) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	m.mu.Lock()
	ch, ok := m.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[key] = ch
	}
	m.mu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("memory: acquire %s: %w", key, domain.ErrLockHeld)
	}

	var once sync.Once
	return func() { once.Do(func() { <-ch }) }, nil
}

// MarketListCache implements domain.MarketListCache.
type MarketListCache struct {
	mu      sync.Mutex
	entries map[string]marketEntry
	now     func() time.Time
}

type marketEntry struct {
	markets []domain.Market
	expires time.Time
}

func NewMarketListCache() *MarketListCache {
	return &MarketListCache{entries: make(map[string]marketEntry), now: time.Now}
}

func (c *MarketListCache) SetMarkets(_ context.Context, key string, markets []domain.Market, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = marketEntry{markets: markets, expires: c.now().Add(ttl)}
	return nil
}

func (c *MarketListCache) GetMarkets(_ context.Context, key string) ([]domain.Market, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, fmt.Errorf("memory: markets %s: %w", key, domain.ErrNotFound)
	}
	return e.markets, c.now().Before(e.expires), nil
}

// SignalBus implements domain.SignalBus with buffered fan-out channels.
// Slow subscribers drop messages rather than block publishers.
type SignalBus struct {
	mu   sync.RWMutex
	subs map[string][]chan []byte
}

func NewSignalBus() *SignalBus {
	return &SignalBus{subs: make(map[string][]chan []byte)}
}

func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel that is closed when ctx is done.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 64)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}
