package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"eventstream/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistrationService(events ...*domain.Event) (domain.RegistrationService, *fakeRegistrationRepo, *fakeEmailService) {
	repo := newFakeRegistrationRepo(events...)
	eventRepo := &fakeEventRepo{events: repo.events}
	mail := &fakeEmailService{}
	return NewRegistrationService(eventRepo, repo, mail, testLogger()), repo, mail
}

func attendee(id string) domain.Identity {
	return domain.Identity{UserID: id, Name: "User " + id, Email: id + "@example.com", Role: domain.RoleAttendee}
}

func TestRegistrationService_Register(t *testing.T) {
	ctx := context.Background()
	ev := &domain.Event{ID: "ev-1", Title: "Launch", MaxAttendees: 1}

	t.Run("creates and sends confirmation", func(t *testing.T) {
		svc, _, mail := newTestRegistrationService(ev)
		reg, created, err := svc.Register(ctx, "ev-1", attendee("u-1"))
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, domain.RegistrationConfirmed, reg.Status)
		require.Len(t, mail.sent, 1)
		assert.Equal(t, "u-1@example.com", mail.sent[0].Email)
		assert.Equal(t, "Launch", mail.sent[0].EventTitle)
		assert.False(t, mail.sent[0].Reactivated)
	})

	t.Run("already registered", func(t *testing.T) {
		svc, _, _ := newTestRegistrationService(&domain.Event{ID: "ev-1", MaxAttendees: 5})
		_, _, err := svc.Register(ctx, "ev-1", attendee("u-1"))
		require.NoError(t, err)
		_, _, err = svc.Register(ctx, "ev-1", attendee("u-1"))
		require.ErrorIs(t, err, domain.ErrAlreadyRegistered)
	})

	t.Run("full is distinct from already registered", func(t *testing.T) {
		svc, _, _ := newTestRegistrationService(ev)
		_, _, err := svc.Register(ctx, "ev-1", attendee("u-1"))
		require.NoError(t, err)
		_, _, err = svc.Register(ctx, "ev-1", attendee("u-2"))
		require.ErrorIs(t, err, domain.ErrEventFull)
		assert.NotErrorIs(t, err, domain.ErrAlreadyRegistered)
	})

	t.Run("unknown event", func(t *testing.T) {
		svc, _, _ := newTestRegistrationService()
		_, _, err := svc.Register(ctx, "ev-x", attendee("u-1"))
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("mail failure does not fail registration", func(t *testing.T) {
		svc, repo, mail := newTestRegistrationService(ev)
		mail.err = errors.New("ses throttled")
		_, created, err := svc.Register(ctx, "ev-1", attendee("u-1"))
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, 1, repo.confirmedCount("ev-1"))
	})

	t.Run("no email address skips mail", func(t *testing.T) {
		svc, _, mail := newTestRegistrationService(ev)
		_, _, err := svc.Register(ctx, "ev-1", domain.Identity{UserID: "u-1"})
		require.NoError(t, err)
		assert.Empty(t, mail.sent)
	})

	t.Run("storage failure", func(t *testing.T) {
		svc, repo, mail := newTestRegistrationService(ev)
		repo.admitErr = fmt.Errorf("begin: %w", domain.ErrStorageFailure)
		_, _, err := svc.Register(ctx, "ev-1", attendee("u-1"))
		require.ErrorIs(t, err, domain.ErrStorageFailure)
		assert.Empty(t, mail.sent)
	})
}

func TestRegistrationService_ReactivationReusesID(t *testing.T) {
	ctx := context.Background()
	svc, _, mail := newTestRegistrationService(&domain.Event{ID: "ev-1", MaxAttendees: 3})

	first, created, err := svc.Register(ctx, "ev-1", attendee("u-1"))
	require.NoError(t, err)
	require.True(t, created)

	_, err = svc.Cancel(ctx, first.ID, "u-1")
	require.NoError(t, err)

	again, created, err := svc.Register(ctx, "ev-1", attendee("u-1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, domain.RegistrationConfirmed, again.Status)
	require.Len(t, mail.sent, 2)
	assert.True(t, mail.sent[1].Reactivated)
}

// The fake admits under one mutex; this covers the service's error mapping under contention.
// Row locking in Postgres is covered by postgres.TestIntegration_AdmitNeverOverfills.
func TestRegistrationService_ConcurrentRegistrationsNeverOverfill(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestRegistrationService(&domain.Event{ID: "ev-1", MaxAttendees: 2})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = map[string]error{}
	)
	for _, id := range []string{"A", "B", "C"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Register(ctx, "ev-1", attendee(id))
			mu.Lock()
			results[id] = err
			mu.Unlock()
		}()
	}
	wg.Wait()

	ok, full := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrEventFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, full)
	assert.Equal(t, 2, repo.confirmedCount("ev-1"))
}

func TestRegistrationService_CancelFreesExactlyOneSlot(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestRegistrationService(&domain.Event{ID: "ev-1", MaxAttendees: 2})

	a, _, err := svc.Register(ctx, "ev-1", attendee("A"))
	require.NoError(t, err)
	_, _, err = svc.Register(ctx, "ev-1", attendee("B"))
	require.NoError(t, err)
	_, _, err = svc.Register(ctx, "ev-1", attendee("C"))
	require.ErrorIs(t, err, domain.ErrEventFull)

	_, err = svc.Cancel(ctx, a.ID, "A")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "ev-1", attendee("C"))
	require.NoError(t, err)
	_, _, err = svc.Register(ctx, "ev-1", attendee("D"))
	require.ErrorIs(t, err, domain.ErrEventFull)
	assert.Equal(t, 2, repo.confirmedCount("ev-1"))
}

func TestRegistrationService_Cancel(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestRegistrationService(&domain.Event{ID: "ev-1"})
	reg, _, err := svc.Register(ctx, "ev-1", attendee("u-1"))
	require.NoError(t, err)

	tests := []struct {
		name      string
		id        string
		requester string
		wantErr   error
	}{
		{name: "missing", id: "reg-404", requester: "u-1", wantErr: domain.ErrNotFound},
		{name: "not the owner", id: reg.ID, requester: "u-2", wantErr: domain.ErrForbidden},
		{name: "owner cancels", id: reg.ID, requester: "u-1"},
		{name: "cancel twice is a no-op", id: reg.ID, requester: "u-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Cancel(ctx, tt.id, tt.requester)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.RegistrationCancelled, got.Status)
			assert.Equal(t, reg.ID, got.ID)
		})
	}
}

func TestRegistrationService_Check(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestRegistrationService(&domain.Event{ID: "ev-1"})

	_, ok, err := svc.Check(ctx, "ev-1", "u-1")
	require.NoError(t, err)
	assert.False(t, ok)

	reg, _, err := svc.Register(ctx, "ev-1", attendee("u-1"))
	require.NoError(t, err)
	got, ok, err := svc.Check(ctx, "ev-1", "u-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, reg.ID, got.ID)

	_, err = svc.Cancel(ctx, reg.ID, "u-1")
	require.NoError(t, err)
	_, ok, err = svc.Check(ctx, "ev-1", "u-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistrationService_Lists(t *testing.T) {
	ctx := context.Background()
	ev1 := &domain.Event{ID: "ev-1", Title: "One", OrganizerID: "org-1"}
	ev2 := &domain.Event{ID: "ev-2", Title: "Two", OrganizerID: "org-2"}
	svc, repo, _ := newTestRegistrationService(ev1, ev2)

	_, _, err := svc.Register(ctx, "ev-1", attendee("u-1"))
	require.NoError(t, err)
	_, _, err = svc.Register(ctx, "ev-2", attendee("u-1"))
	require.NoError(t, err)
	_, _, err = svc.Register(ctx, "ev-1", attendee("u-2"))
	require.NoError(t, err)

	mine, err := svc.ListMine(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "One", mine[0].Event.Title)

	// Registrations whose event disappeared are skipped.
	delete(repo.events, "ev-2")
	mine, err = svc.ListMine(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	regs, err := svc.ListForEvent(ctx, "ev-1", domain.Identity{UserID: "org-1", Role: domain.RoleOrganizer})
	require.NoError(t, err)
	assert.Len(t, regs, 2)

	_, err = svc.ListForEvent(ctx, "ev-1", domain.Identity{UserID: "org-2", Role: domain.RoleOrganizer})
	require.ErrorIs(t, err, domain.ErrForbidden)
}
