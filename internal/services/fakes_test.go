package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"eventstream/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeChatRepo keeps messages in memory with a strictly increasing clock.
type fakeChatRepo struct {
	mu        sync.Mutex
	msgs      map[string][]*domain.ChatMessage
	nextID    int64
	clock     time.Time
	appendErr error
	listErr   error
	listCalls int
	// delay is applied inside Append to widen race windows.
	delay func()
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		msgs:  make(map[string][]*domain.ChatMessage),
		clock: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (f *fakeChatRepo) Append(ctx context.Context, msg *domain.ChatMessage) error {
	if f.delay != nil {
		f.delay()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.nextID++
	f.clock = f.clock.Add(time.Millisecond)
	msg.ID = f.nextID
	msg.Timestamp = f.clock
	cp := *msg
	f.msgs[msg.EventID] = append(f.msgs[msg.EventID], &cp)
	return nil
}

func (f *fakeChatRepo) ListBefore(ctx context.Context, eventID string, q domain.HistoryQuery) ([]*domain.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	q = q.Normalize()
	var eligible []*domain.ChatMessage
	for _, m := range f.msgs[eventID] {
		if q.Before == nil || m.Timestamp.Before(*q.Before) {
			eligible = append(eligible, m)
		}
	}
	if len(eligible) > q.Limit {
		eligible = eligible[len(eligible)-q.Limit:]
	}
	out := make([]*domain.ChatMessage, 0, len(eligible))
	for _, m := range eligible {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeChatRepo) DeleteByEvent(ctx context.Context, eventID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.msgs[eventID]))
	delete(f.msgs, eventID)
	return n, nil
}

func (f *fakeChatRepo) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type broadcastCall struct {
	EventID string
	Frame   string
	Payload any
	Except  string
}

type fakeBroadcaster struct {
	mu      sync.Mutex
	calls   []broadcastCall
	members int
}

func (f *fakeBroadcaster) Broadcast(eventID, frame string, payload any, exceptSessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, broadcastCall{EventID: eventID, Frame: frame, Payload: payload, Except: exceptSessionID})
	return f.members
}

func (f *fakeBroadcaster) snapshot() []broadcastCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]broadcastCall(nil), f.calls...)
}

type fakeHistoryCache struct {
	mu          sync.Mutex
	pages       map[string][]*domain.ChatMessage
	gens        map[string]int64
	getErr      error
	sets        int
	invalidated []string
}

func newFakeHistoryCache() *fakeHistoryCache {
	return &fakeHistoryCache{
		pages: make(map[string][]*domain.ChatMessage),
		gens:  make(map[string]int64),
	}
}

func cacheKey(eventID string, gen int64, q domain.HistoryQuery) string {
	before := "latest"
	if q.Before != nil {
		before = q.Before.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%s|%d|%s|%d", eventID, gen, before, q.Limit)
}

func (f *fakeHistoryCache) Get(ctx context.Context, eventID string, q domain.HistoryQuery) ([]*domain.ChatMessage, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, 0, f.getErr
	}
	gen := f.gens[eventID]
	page, ok := f.pages[cacheKey(eventID, gen, q)]
	if !ok {
		return nil, gen, domain.ErrCacheMiss
	}
	return page, gen, nil
}

func (f *fakeHistoryCache) Set(ctx context.Context, eventID string, gen int64, q domain.HistoryQuery, msgs []*domain.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.pages[cacheKey(eventID, gen, q)] = msgs
	return nil
}

func (f *fakeHistoryCache) Invalidate(ctx context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, eventID)
	f.gens[eventID]++
	return nil
}

type fakeEventRepo struct {
	events map[string]*domain.Event
	err    error
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	ev, ok := f.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ev, nil
}

// fakeRegistrationRepo admits under one lock, the in-memory equivalent of the event row lock.
type fakeRegistrationRepo struct {
	mu       sync.Mutex
	events   map[string]*domain.Event
	rows     map[string]*domain.Registration
	nextID   int
	admitErr error
}

func newFakeRegistrationRepo(events ...*domain.Event) *fakeRegistrationRepo {
	f := &fakeRegistrationRepo{
		events: make(map[string]*domain.Event),
		rows:   make(map[string]*domain.Registration),
	}
	for _, ev := range events {
		f.events[ev.ID] = ev
	}
	return f
}

func (f *fakeRegistrationRepo) Admit(ctx context.Context, eventID, attendeeID string, now time.Time) (*domain.Registration, domain.AdmitOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.admitErr != nil {
		return nil, 0, f.admitErr
	}
	ev, ok := f.events[eventID]
	if !ok {
		return nil, 0, domain.ErrNotFound
	}
	var existing *domain.Registration
	confirmed := 0
	for _, r := range f.rows {
		if r.EventID != eventID {
			continue
		}
		if r.AttendeeID == attendeeID {
			existing = r
		}
		if r.Confirmed() {
			confirmed++
		}
	}
	if existing != nil && existing.Confirmed() {
		return nil, 0, domain.ErrAlreadyRegistered
	}
	if !ev.Unlimited() && confirmed >= ev.MaxAttendees {
		return nil, 0, domain.ErrEventFull
	}
	if existing != nil {
		existing.Status = domain.RegistrationConfirmed
		existing.UpdatedAt = now
		cp := *existing
		return &cp, domain.AdmitReactivated, nil
	}
	f.nextID++
	reg := domain.NewRegistration(eventID, attendeeID, now)
	reg.ID = fmt.Sprintf("reg-%d", f.nextID)
	f.rows[reg.ID] = reg
	cp := *reg
	return &cp, domain.AdmitCreated, nil
}

func (f *fakeRegistrationRepo) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRegistrationRepo) GetConfirmed(ctx context.Context, eventID, attendeeID string) (*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.EventID == eventID && r.AttendeeID == attendeeID && r.Confirmed() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRegistrationRepo) SetStatus(ctx context.Context, id string, status domain.RegistrationStatus, now time.Time) (*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = now
	cp := *r
	return &cp, nil
}

func (f *fakeRegistrationRepo) ListConfirmedByAttendee(ctx context.Context, attendeeID string) ([]*domain.Registration, error) {
	return f.list(func(r *domain.Registration) bool { return r.AttendeeID == attendeeID }), nil
}

func (f *fakeRegistrationRepo) ListConfirmedByEvent(ctx context.Context, eventID string) ([]*domain.Registration, error) {
	return f.list(func(r *domain.Registration) bool { return r.EventID == eventID }), nil
}

func (f *fakeRegistrationRepo) list(match func(*domain.Registration) bool) []*domain.Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Registration{}
	for i := 1; i <= f.nextID; i++ {
		r, ok := f.rows[fmt.Sprintf("reg-%d", i)]
		if ok && r.Confirmed() && match(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

func (f *fakeRegistrationRepo) confirmedCount(eventID string) int {
	return len(f.list(func(r *domain.Registration) bool { return r.EventID == eventID }))
}

type fakeEmailService struct {
	mu   sync.Mutex
	sent []*domain.RegistrationConfirmedEmailData
	err  error
}

func (f *fakeEmailService) SendRegistrationConfirmed(ctx context.Context, data *domain.RegistrationConfirmedEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data)
	return f.err
}
