package controllers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"eventstream/internal/delivery/http/helpers"
	"eventstream/internal/domain"

	"github.com/stretchr/testify/require"
)

// testLogger is a no-op logger for controller tests so we don't assert on log output.
var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

const (
	testEventID = "6f1c2a8e-3b7d-4c1e-9a2f-5d8b7e6c4a10"
	testRegID   = "0b9e8d7c-6a5f-4e3d-8c2b-1a0f9e8d7c6b"
)

var (
	testAttendee  = domain.Identity{UserID: "user-123", Name: "Ada", Email: "ada@example.com", Role: domain.RoleAttendee}
	testOrganizer = domain.Identity{UserID: "org-1", Name: "Grace", Role: domain.RoleOrganizer}
)

// fakeChatService implements domain.ChatService for handler tests.
type fakeChatService struct {
	historyResult []*domain.ChatMessage
	historyErr    error
	clearErr      error

	lastHistoryEventID string
	lastHistoryQuery   domain.HistoryQuery
	lastClearEventID   string
}

func (f *fakeChatService) Submit(ctx context.Context, eventID string, sender domain.Identity, body string) (*domain.ChatMessage, error) {
	return nil, nil
}

func (f *fakeChatService) History(ctx context.Context, eventID string, q domain.HistoryQuery) ([]*domain.ChatMessage, error) {
	f.lastHistoryEventID = eventID
	f.lastHistoryQuery = q
	return f.historyResult, f.historyErr
}

func (f *fakeChatService) Clear(ctx context.Context, eventID string) error {
	f.lastClearEventID = eventID
	return f.clearErr
}

func (f *fakeChatService) Join(ctx context.Context, eventID string, attach func(history []*domain.ChatMessage)) error {
	attach(nil)
	return nil
}

// fakeRegistrationService implements domain.RegistrationService for handler tests.
type fakeRegistrationService struct {
	registerResult *domain.Registration
	registerCreate bool
	registerErr    error
	cancelResult   *domain.Registration
	cancelErr      error
	checkResult    *domain.Registration
	checkErr       error
	mineResult     []*domain.EventRegistrationWithEvent
	mineErr        error
	eventResult    []*domain.Registration
	eventErr       error

	lastRegisterEventID string
	lastRegisterWho     domain.Identity
	lastCancelID        string
	lastCancelRequester string
	lastCheckEventID    string
	lastCheckAttendee   string
	lastMineAttendee    string
	lastListRequester   domain.Identity
}

func (f *fakeRegistrationService) Register(ctx context.Context, eventID string, attendee domain.Identity) (*domain.Registration, bool, error) {
	f.lastRegisterEventID = eventID
	f.lastRegisterWho = attendee
	return f.registerResult, f.registerCreate, f.registerErr
}

func (f *fakeRegistrationService) Cancel(ctx context.Context, registrationID, requesterID string) (*domain.Registration, error) {
	f.lastCancelID = registrationID
	f.lastCancelRequester = requesterID
	return f.cancelResult, f.cancelErr
}

func (f *fakeRegistrationService) Check(ctx context.Context, eventID, attendeeID string) (*domain.Registration, bool, error) {
	f.lastCheckEventID = eventID
	f.lastCheckAttendee = attendeeID
	return f.checkResult, f.checkResult != nil, f.checkErr
}

func (f *fakeRegistrationService) ListMine(ctx context.Context, attendeeID string) ([]*domain.EventRegistrationWithEvent, error) {
	f.lastMineAttendee = attendeeID
	return f.mineResult, f.mineErr
}

func (f *fakeRegistrationService) ListForEvent(ctx context.Context, eventID string, requester domain.Identity) ([]*domain.Registration, error) {
	f.lastListRequester = requester
	return f.eventResult, f.eventErr
}

// decodeEnvelope decodes the response envelope and re-decodes its data into dest when dest is non-nil.
func decodeEnvelope(t *testing.T, body io.Reader, dest any) helpers.APIResponse {
	t.Helper()
	var envelope helpers.APIResponse
	require.NoError(t, json.NewDecoder(body).Decode(&envelope), "response must be valid JSON envelope")
	if dest != nil && envelope.Data != nil {
		raw, err := json.Marshal(envelope.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, dest))
	}
	return envelope
}
