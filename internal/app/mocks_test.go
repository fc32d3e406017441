package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/kawayt/stampsys-back-sub000/internal/domain"
	"github.com/kawayt/stampsys-back-sub000/internal/platform/workerpool"
)

// --- Mock implementations ---

type mockAggregator struct {
	summaryFn func(ctx context.Context, roomID int64) (domain.Snapshot, error)
}

func (m *mockAggregator) Summary(ctx context.Context, roomID int64) (domain.Snapshot, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx, roomID)
	}
	return domain.Snapshot{}, nil
}

type broadcastCall struct {
	roomID   int64
	snapshot domain.Snapshot
}

type mockBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (m *mockBroadcaster) Broadcast(roomID int64, snapshot domain.Snapshot) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, broadcastCall{roomID: roomID, snapshot: snapshot})
	return 1
}

func (m *mockBroadcaster) broadcasts() []broadcastCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]broadcastCall(nil), m.calls...)
}

type mockPublisher struct {
	mu        sync.Mutex
	published []int64
	publishFn func(ctx context.Context, roomID int64) error
}

func (m *mockPublisher) Publish(ctx context.Context, roomID int64) error {
	m.mu.Lock()
	m.published = append(m.published, roomID)
	m.mu.Unlock()
	if m.publishFn != nil {
		return m.publishFn(ctx, roomID)
	}
	return nil
}

func (m *mockPublisher) rooms() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.published...)
}

// inlinePool runs tasks synchronously, or rejects them with err.
type inlinePool struct {
	err error
}

func (p inlinePool) Submit(task workerpool.Task) error {
	if p.err != nil {
		return p.err
	}
	task(context.Background())
	return nil
}

// fakeTx mimics the commit semantics of the postgres TxManager without a database.
type fakeTx struct {
	commitErr error
}

type fakeTxKey struct{}

type fakeTxState struct {
	hooks []func(context.Context)
}

func (f *fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	state := &fakeTxState{}
	if err := fn(context.WithValue(ctx, fakeTxKey{}, state)); err != nil {
		return err
	}
	if f.commitErr != nil {
		return f.commitErr
	}
	for _, hook := range state.hooks {
		hook(ctx)
	}
	return nil
}

func (f *fakeTx) AfterCommit(ctx context.Context, hook func(context.Context)) error {
	state, ok := ctx.Value(fakeTxKey{}).(*fakeTxState)
	if !ok {
		return fmt.Errorf("no transaction in context")
	}
	state.hooks = append(state.hooks, hook)
	return nil
}

type mockRoomRepo struct {
	getByIDFn func(ctx context.Context, roomID int64) (*domain.Room, error)
	createFn  func(ctx context.Context, name string) (*domain.Room, error)
	listFn    func(ctx context.Context) ([]domain.Room, error)
	closeFn   func(ctx context.Context, roomID int64) (*domain.Room, error)
}

func (m *mockRoomRepo) Create(ctx context.Context, name string) (*domain.Room, error) {
	if m.createFn != nil {
		return m.createFn(ctx, name)
	}
	return &domain.Room{ID: 1, Name: name}, nil
}

func (m *mockRoomRepo) GetByID(ctx context.Context, roomID int64) (*domain.Room, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, roomID)
	}
	return &domain.Room{ID: roomID, Name: "room"}, nil
}

func (m *mockRoomRepo) List(ctx context.Context) ([]domain.Room, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockRoomRepo) Close(ctx context.Context, roomID int64) (*domain.Room, error) {
	if m.closeFn != nil {
		return m.closeFn(ctx, roomID)
	}
	return nil, fmt.Errorf("not implemented")
}

type mockStampRepo struct {
	getByIDFn func(ctx context.Context, stampID int64) (*domain.Stamp, error)
}

func (m *mockStampRepo) List(context.Context) ([]domain.Stamp, error) {
	return []domain.Stamp{{ID: 1, Name: "good"}}, nil
}

func (m *mockStampRepo) GetByID(ctx context.Context, stampID int64) (*domain.Stamp, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, stampID)
	}
	return &domain.Stamp{ID: stampID, Name: "good"}, nil
}

// memMessages is an in-memory message store that also serves as aggregator.
type memMessages struct {
	mu     sync.Mutex
	nextID int64
	byRoom map[int64][]domain.Message
	insert func(ctx context.Context) error
}

func newMemMessages() *memMessages {
	return &memMessages{byRoom: make(map[int64][]domain.Message)}
}

func (m *memMessages) Insert(ctx context.Context, roomID, stampID int64, userID string) (*domain.Message, error) {
	if m.insert != nil {
		if err := m.insert(ctx); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg := domain.Message{ID: m.nextID, RoomID: roomID, StampID: stampID, UserID: userID}
	m.byRoom[roomID] = append(m.byRoom[roomID], msg)
	return &msg, nil
}

func (m *memMessages) DeleteByRoom(_ context.Context, roomID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.byRoom[roomID]))
	delete(m.byRoom, roomID)
	return n, nil
}

// Summary aggregates over a fixed two-stamp catalogue.
func (m *memMessages) Summary(_ context.Context, roomID int64) (domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := []domain.StampCount{
		{Stamp: domain.Stamp{ID: 1, Name: "good", Color: "#0f0", Icon: "up"}},
		{Stamp: domain.Stamp{ID: 2, Name: "lost", Color: "#f00", Icon: "help"}},
	}
	for _, msg := range m.byRoom[roomID] {
		for i := range counts {
			if counts[i].Stamp.ID == msg.StampID {
				counts[i].Count++
			}
		}
	}
	return domain.NewSnapshot(counts), nil
}
