package realtime

import (
	"log/slog"
	"sort"
	"sync"

	"eventstream/internal/domain"
)

// Member is a connected session that can receive frames.
type Member interface {
	ID() string
	// Enqueue hands data to the session's writer without blocking. It returns false when
	// the session is gone or could not keep up.
	Enqueue(data []byte) bool
}

// Membership is one session's presence in a room.
type Membership struct {
	SessionID string
	Identity  domain.Identity
}

type roomMember struct {
	member   Member
	identity domain.Identity
}

// room is a per-event bucket. Its lock orders joins, leaves and fan-out for that event only.
type room struct {
	mu      sync.Mutex
	members map[string]roomMember
	// closed is set once the bucket was emptied and unlinked; joiners must fetch a new one.
	closed bool
}

// Registry maps event ids to the sessions currently in their room.
// The top-level lock only guards bucket lookup; fan-out holds the bucket lock alone.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room

	// joined indexes session id -> event ids for disconnect cleanup.
	joinedMu sync.Mutex
	joined   map[string]map[string]struct{}

	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]*room),
		joined: make(map[string]map[string]struct{}),
		logger: logger,
	}
}

func (r *Registry) lookup(eventID string) *room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[eventID]
}

func (r *Registry) getOrCreate(eventID string) *room {
	if rm := r.lookup(eventID); rm != nil {
		return rm
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[eventID]
	if !ok {
		rm = &room{members: make(map[string]roomMember)}
		r.rooms[eventID] = rm
	}
	return rm
}

// unlink drops an emptied bucket unless it has already been replaced.
func (r *Registry) unlink(eventID string, rm *room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[eventID] == rm {
		delete(r.rooms, eventID)
	}
}

// Join adds m to the event's room. It reports whether m was not already a member.
func (r *Registry) Join(eventID string, m Member, who domain.Identity) bool {
	for {
		rm := r.getOrCreate(eventID)
		rm.mu.Lock()
		if rm.closed {
			rm.mu.Unlock()
			continue
		}
		_, exists := rm.members[m.ID()]
		rm.members[m.ID()] = roomMember{member: m, identity: who}
		rm.mu.Unlock()

		r.index(m.ID(), eventID)
		if !exists {
			r.logger.Debug("session joined room", "event_id", eventID, "session_id", m.ID())
		}
		return !exists
	}
}

// Leave removes the session from the event's room. It reports whether it was a member.
func (r *Registry) Leave(eventID, sessionID string) bool {
	removed := r.remove(eventID, sessionID)
	r.unindex(sessionID, eventID)
	if removed {
		r.logger.Debug("session left room", "event_id", eventID, "session_id", sessionID)
	}
	return removed
}

func (r *Registry) remove(eventID, sessionID string) bool {
	rm := r.lookup(eventID)
	if rm == nil {
		return false
	}
	rm.mu.Lock()
	_, ok := rm.members[sessionID]
	delete(rm.members, sessionID)
	empty := len(rm.members) == 0 && !rm.closed
	if empty {
		rm.closed = true
	}
	rm.mu.Unlock()
	if empty {
		r.unlink(eventID, rm)
	}
	return ok
}

// LeaveAll removes the session from every room it joined and returns those event ids.
func (r *Registry) LeaveAll(sessionID string) []string {
	r.joinedMu.Lock()
	events := r.joined[sessionID]
	delete(r.joined, sessionID)
	r.joinedMu.Unlock()

	left := make([]string, 0, len(events))
	for eventID := range events {
		if r.remove(eventID, sessionID) {
			left = append(left, eventID)
		}
	}
	sort.Strings(left)
	return left
}

// IsMember reports whether the session is in the event's room.
func (r *Registry) IsMember(eventID, sessionID string) bool {
	rm := r.lookup(eventID)
	if rm == nil {
		return false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	_, ok := rm.members[sessionID]
	return ok
}

// MembersOf returns a snapshot of the event's room, ordered by session id.
func (r *Registry) MembersOf(eventID string) []Membership {
	rm := r.lookup(eventID)
	if rm == nil {
		return nil
	}
	rm.mu.Lock()
	out := make([]Membership, 0, len(rm.members))
	for id, m := range rm.members {
		out = append(out, Membership{SessionID: id, Identity: m.identity})
	}
	rm.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Count returns the number of sessions in the event's room.
func (r *Registry) Count(eventID string) int {
	rm := r.lookup(eventID)
	if rm == nil {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}

// Broadcast encodes the frame once and queues it for every member except exceptSessionID.
// Members whose queue refuses the frame are dropped from the room before the lock is released.
func (r *Registry) Broadcast(eventID, frame string, payload any, exceptSessionID string) int {
	rm := r.lookup(eventID)
	if rm == nil {
		return 0
	}
	data, err := Encode(frame, payload)
	if err != nil {
		r.logger.Error("failed to encode frame", "event_id", eventID, "frame", frame, "err", err)
		return 0
	}

	var (
		delivered int
		dropped   []string
	)
	rm.mu.Lock()
	for id, m := range rm.members {
		if id == exceptSessionID {
			continue
		}
		if m.member.Enqueue(data) {
			delivered++
			continue
		}
		delete(rm.members, id)
		dropped = append(dropped, id)
	}
	empty := len(rm.members) == 0 && !rm.closed
	if empty {
		rm.closed = true
	}
	rm.mu.Unlock()

	if empty {
		r.unlink(eventID, rm)
	}
	for _, id := range dropped {
		r.unindex(id, eventID)
		r.logger.Warn("dropped unresponsive session", "event_id", eventID, "session_id", id)
	}
	return delivered
}

func (r *Registry) index(sessionID, eventID string) {
	r.joinedMu.Lock()
	defer r.joinedMu.Unlock()
	events, ok := r.joined[sessionID]
	if !ok {
		events = make(map[string]struct{})
		r.joined[sessionID] = events
	}
	events[eventID] = struct{}{}
}

func (r *Registry) unindex(sessionID, eventID string) {
	r.joinedMu.Lock()
	defer r.joinedMu.Unlock()
	events, ok := r.joined[sessionID]
	if !ok {
		return
	}
	delete(events, eventID)
	if len(events) == 0 {
		delete(r.joined, sessionID)
	}
}

var _ domain.Broadcaster = (*Registry)(nil)
