package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eventstream/internal/domain"
)

type registrationService struct {
	eventRepo        domain.EventRepository
	registrationRepo domain.EventRegistrationRepository
	emailService     domain.EmailService
	logger           *slog.Logger
	now              func() time.Time
}

// NewRegistrationService creates the registration ledger. emailService may be nil.
func NewRegistrationService(
	eventRepo domain.EventRepository,
	registrationRepo domain.EventRegistrationRepository,
	emailService domain.EmailService,
	logger *slog.Logger,
) domain.RegistrationService {
	return &registrationService{
		eventRepo:        eventRepo,
		registrationRepo: registrationRepo,
		emailService:     emailService,
		logger:           logger,
		now:              time.Now,
	}
}

func (s *registrationService) Register(ctx context.Context, eventID string, attendee domain.Identity) (*domain.Registration, bool, error) {
	reg, outcome, err := s.registrationRepo.Admit(ctx, eventID, attendee.UserID, s.now().UTC())
	if err != nil {
		return nil, false, fmt.Errorf("admit registration: %w", err)
	}
	s.logger.InfoContext(ctx, "registration confirmed",
		"event_id", eventID, "registration_id", reg.ID, "reactivated", outcome == domain.AdmitReactivated)

	s.sendConfirmation(ctx, reg, attendee, outcome == domain.AdmitReactivated)
	return reg, outcome == domain.AdmitCreated, nil
}

// sendConfirmation is best-effort: a mail failure never undoes an admission.
func (s *registrationService) sendConfirmation(ctx context.Context, reg *domain.Registration, attendee domain.Identity, reactivated bool) {
	if s.emailService == nil || attendee.Email == "" {
		return
	}
	title := reg.EventID
	if event, err := s.eventRepo.GetByID(ctx, reg.EventID); err == nil {
		title = event.Title
	}
	err := s.emailService.SendRegistrationConfirmed(context.WithoutCancel(ctx), &domain.RegistrationConfirmedEmailData{
		Email:          attendee.Email,
		Name:           attendee.Name,
		EventTitle:     title,
		RegistrationID: reg.ID,
		Reactivated:    reactivated,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "registration email failed", "registration_id", reg.ID, "err", err)
	}
}

func (s *registrationService) Cancel(ctx context.Context, registrationID, requesterID string) (*domain.Registration, error) {
	reg, err := s.registrationRepo.GetByID(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	if reg.AttendeeID != requesterID {
		return nil, domain.ErrForbidden
	}
	if !reg.Confirmed() {
		return reg, nil
	}
	reg, err = s.registrationRepo.SetStatus(ctx, registrationID, domain.RegistrationCancelled, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("cancel registration: %w", err)
	}
	return reg, nil
}

func (s *registrationService) Check(ctx context.Context, eventID, attendeeID string) (*domain.Registration, bool, error) {
	reg, err := s.registrationRepo.GetConfirmed(ctx, eventID, attendeeID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("check registration: %w", err)
	}
	return reg, true, nil
}

func (s *registrationService) ListMine(ctx context.Context, attendeeID string) ([]*domain.EventRegistrationWithEvent, error) {
	regs, err := s.registrationRepo.ListConfirmedByAttendee(ctx, attendeeID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	out := make([]*domain.EventRegistrationWithEvent, 0, len(regs))
	for _, reg := range regs {
		event, err := s.eventRepo.GetByID(ctx, reg.EventID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get event: %w", err)
		}
		out = append(out, &domain.EventRegistrationWithEvent{Registration: reg, Event: event})
	}
	return out, nil
}

func (s *registrationService) ListForEvent(ctx context.Context, eventID string, requester domain.Identity) ([]*domain.Registration, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event.OrganizerID != requester.UserID {
		return nil, domain.ErrForbidden
	}
	regs, err := s.registrationRepo.ListConfirmedByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list event registrations: %w", err)
	}
	return regs, nil
}
