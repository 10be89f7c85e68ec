package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/bookstock/internal/domain"
	"github.com/alanyoungcy/bookstock/internal/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordedEvent struct {
	Channel string
	Fields  map[string]any
}

type fakeBus struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	var fields map[string]any
	_ = json.Unmarshal(payload, &fields)
	b.mu.Lock()
	b.events = append(b.events, recordedEvent{Channel: channel, Fields: fields})
	b.mu.Unlock()
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBus) named(event string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedEvent
	for _, e := range b.events {
		if e.Fields["event"] == event {
			out = append(out, e)
		}
	}
	return out
}

type sentAlert struct {
	Event, Title, Message string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentAlert
	fail func(title string) error
}

func (n *fakeNotifier) Notify(_ context.Context, event, title, message string) error {
	if n.fail != nil {
		if err := n.fail(title); err != nil {
			return err
		}
	}
	n.mu.Lock()
	n.sent = append(n.sent, sentAlert{event, title, message})
	n.mu.Unlock()
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fakeLimiter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (l *fakeLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = make(map[string]int)
	}
	if l.counts[key] >= limit {
		return false, nil
	}
	l.counts[key]++
	return true, nil
}

type fakeLock struct {
	held bool
}

func (l *fakeLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	return func() {}, nil
}

// failingOrderStore rejects every Create.
type failingOrderStore struct {
	*memory.OrderStore
}

func (failingOrderStore) Create(context.Context, domain.Order) error {
	return errors.New("disk full")
}

type fakeBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
	infos   []domain.BlobInfo
	deleted []string
}

func (f *fakeBlob) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[path] = b
	return nil
}

func (f *fakeBlob) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return f.Put(ctx, path, data, "")
}

func (f *fakeBlob) Get(_ context.Context, path string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeBlob) List(context.Context, string) ([]domain.BlobInfo, error) {
	return f.infos, nil
}

func (f *fakeBlob) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, path)
	f.mu.Unlock()
	return nil
}

// fixture bundles the services over in-memory stores.
type fixture struct {
	books     *memory.BookStore
	orders    *memory.OrderStore
	users     *memory.UserStore
	bus       *fakeBus
	inventory *InventoryService
	orderSvc  *OrderService
}

func newFixture(t *testing.T, cfg OrderConfig) *fixture {
	t.Helper()
	f := &fixture{
		books:  memory.NewBookStore(),
		orders: memory.NewOrderStore(),
		users:  memory.NewUserStore("u1", "u2"),
		bus:    &fakeBus{},
	}
	f.inventory = NewInventoryService(f.books, f.bus, discardLogger())
	f.orderSvc = NewOrderService(f.orders, f.users, f.inventory, nil, f.bus, cfg, discardLogger())
	return f
}

func (f *fixture) addBook(t *testing.T, id, title, price string, qty, threshold int) {
	t.Helper()
	_, err := f.inventory.CreateBook(context.Background(), domain.NewBook{
		ID:            id,
		Title:         title,
		Price:         decimal.RequireFromString(price),
		StockQuantity: qty,
		MinThreshold:  threshold,
	})
	if err != nil {
		t.Fatalf("create book %s: %v", id, err)
	}
}

func (f *fixture) quantity(t *testing.T, id string) int {
	t.Helper()
	b, err := f.books.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get book %s: %v", id, err)
	}
	return b.StockQuantity
}
