package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mustafamuse/irshad-center-sub005/internal/client"
	"github.com/mustafamuse/irshad-center-sub005/internal/model"
	"github.com/mustafamuse/irshad-center-sub005/internal/repository"
)

// WebhookResult is the successful outcome of one delivery. Warning is set for
// acknowledged data-quality conditions; Skipped for idempotent replays.
type WebhookResult struct {
	EventID   string
	EventType string
	Skipped   bool
	Warning   string
}

type WebhookService interface {
	// HandleWebhook runs one delivery through the full pipeline: signature
	// verification, envelope parsing, idempotency check, dispatch, and
	// idempotency-record cleanup on transient failure. A non-nil error is
	// always one of the typed errors in errors.go or a transient failure.
	HandleWebhook(ctx context.Context, program model.Program, signatureHeader string, body []byte) (*WebhookResult, error)

	ListEvents(ctx context.Context, source model.Program, limit int) ([]*model.WebhookEvent, error)
}

type webhookServiceImpl struct {
	db               *gorm.DB
	stripeClient     client.StripeClient
	studentRepo      repository.StudentRepository
	webhookEventRepo repository.WebhookEventRepository
}

func NewWebhookService(
	db *gorm.DB,
	stripeClient client.StripeClient,
	studentRepo repository.StudentRepository,
	webhookEventRepo repository.WebhookEventRepository,
) WebhookService {
	return &webhookServiceImpl{
		db:               db,
		stripeClient:     stripeClient,
		studentRepo:      studentRepo,
		webhookEventRepo: webhookEventRepo,
	}
}

func (s *webhookServiceImpl) HandleWebhook(ctx context.Context, program model.Program, signatureHeader string, body []byte) (*WebhookResult, error) {
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	if signatureHeader == "" {
		return nil, ErrMissingSignature
	}

	// Verification runs over the untouched raw bytes, strictly before the
	// body is parsed for application use.
	if err := s.stripeClient.VerifyWebhookSignature(program, signatureHeader, body); err != nil {
		log.Warn().Str("program", string(program)).Msg("webhook signature verification failed")
		return nil, ErrInvalidSignature
	}

	var event model.StripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, ErrMalformedPayload
	}
	if event.ID == "" || event.Type == "" {
		return nil, ErrMalformedPayload
	}

	processed, err := s.webhookEventRepo.HasProcessed(ctx, event.ID, program)
	if err != nil {
		return nil, fmt.Errorf("check idempotency record: %w", err)
	}
	if processed {
		log.Info().
			Str("event_id", event.ID).
			Str("event_type", event.Type).
			Str("program", string(program)).
			Msg("skipping already processed webhook event")
		return &WebhookResult{EventID: event.ID, EventType: event.Type, Skipped: true}, nil
	}

	// Recorded before any business mutation. Two concurrent deliveries of
	// the same event cannot both pass this point: the loser of the unique
	// index race is treated like a replay.
	err = s.webhookEventRepo.RecordPending(ctx, &model.WebhookEvent{
		EventID:   event.ID,
		Source:    program,
		EventType: event.Type,
		Payload:   datatypes.JSON(body),
	})
	if errors.Is(err, repository.ErrEventAlreadyRecorded) {
		return &WebhookResult{EventID: event.ID, EventType: event.Type, Skipped: true}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.dispatch(ctx, program, &event); err != nil {
		var dq *DataQualityError
		if errors.As(err, &dq) {
			// Terminal: retrying delivers the same bad data. The record
			// stays so the provider stops retrying.
			log.Warn().
				Str("event_id", event.ID).
				Str("event_type", event.Type).
				Str("program", string(program)).
				Str("reason", dq.Reason).
				Msg("webhook event acknowledged with data-quality warning")
			return &WebhookResult{EventID: event.ID, EventType: event.Type, Warning: dq.Reason}, nil
		}

		// Transient: remove the record so the provider's retry can succeed.
		if ferr := s.webhookEventRepo.Forget(ctx, event.ID, program); ferr != nil {
			log.Error().Err(ferr).
				Str("event_id", event.ID).
				Str("program", string(program)).
				Msg("failed to remove idempotency record; retry of this event will be skipped")
		}
		return nil, err
	}

	return &WebhookResult{EventID: event.ID, EventType: event.Type}, nil
}

func (s *webhookServiceImpl) dispatch(ctx context.Context, program model.Program, event *model.StripeEvent) error {
	switch event.Type {
	case model.EventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, program, event)
	case model.EventSubscriptionCreated, model.EventSubscriptionUpdated:
		return s.handleSubscriptionChange(ctx, program, event)
	case model.EventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, program, event)
	default:
		// Unknown types are acknowledged, never errors: new provider event
		// types must not break delivery.
		log.Info().
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Msg("ignoring unhandled webhook event type")
		return nil
	}
}

// handleCheckoutCompleted attaches the Stripe customer to every student in
// the family referenced by client_reference_id and marks the payment method
// captured.
func (s *webhookServiceImpl) handleCheckoutCompleted(ctx context.Context, program model.Program, event *model.StripeEvent) error {
	var session model.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return dataQuality(fmt.Sprintf("checkout session payload could not be decoded: %v", err))
	}

	if session.ClientReferenceID == "" {
		return dataQuality("No client_reference_id on checkout session; cannot resolve family")
	}
	familyID, err := uuid.Parse(session.ClientReferenceID)
	if err != nil {
		return dataQuality(fmt.Sprintf("client_reference_id %q is not a valid family id", session.ClientReferenceID))
	}
	if session.Customer.ID == "" {
		return dataQuality("checkout session has no customer id")
	}

	var updated int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.studentRepo.AttachCustomer(ctx, tx, program, familyID.String(), session.Customer.ID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("attach customer to family: %w", err)
		}
		updated = n
		return nil
	})
	if err != nil {
		return err
	}

	if updated == 0 {
		return dataQuality(fmt.Sprintf("no students found for family %s", familyID))
	}

	log.Info().
		Str("event_id", event.ID).
		Str("family_id", familyID.String()).
		Str("customer_id", session.Customer.ID).
		Int64("students", updated).
		Msg("payment method captured for family")
	return nil
}

// handleSubscriptionChange applies the event's absolute subscription snapshot
// to every student for the customer. Last write wins on status and period
// fields, so out-of-order created/updated deliveries converge on whichever
// event was applied last.
func (s *webhookServiceImpl) handleSubscriptionChange(ctx context.Context, program model.Program, event *model.StripeEvent) error {
	var sub model.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return dataQuality(fmt.Sprintf("subscription payload could not be decoded: %v", err))
	}

	if sub.Customer.ID == "" {
		return dataQuality("subscription event has no customer id")
	}

	status := model.SubscriptionStatus(sub.Status)
	enrollment, ok := status.EnrollmentStatus()
	if !ok {
		return dataQuality(fmt.Sprintf("unrecognized subscription status %q", sub.Status))
	}

	periodStart := sub.PeriodStart()
	periodEnd := sub.PeriodEnd()
	now := time.Now().UTC()

	var found int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		students, err := s.studentRepo.FindByCustomerID(ctx, tx, program, sub.Customer.ID)
		if err != nil {
			return fmt.Errorf("find students by customer: %w", err)
		}
		found = len(students)

		for _, st := range students {
			state := &repository.SubscriptionState{
				SubscriptionID: sub.ID,
				Status:         status,
				Enrollment:     enrollment,
				PeriodStart:    periodStart,
				PeriodEnd:      periodEnd,
				PaidUntil:      periodEnd,
				History:        historyBefore(st, sub.ID),
				UpdatedAt:      now,
			}
			if err := s.studentRepo.ApplySubscriptionState(ctx, tx, st.ID, state); err != nil {
				return fmt.Errorf("apply subscription state to student %s: %w", st.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if found == 0 {
		return dataQuality(fmt.Sprintf("no students found for customer %s", sub.Customer.ID))
	}

	log.Info().
		Str("event_id", event.ID).
		Str("subscription_id", sub.ID).
		Str("customer_id", sub.Customer.ID).
		Str("status", sub.Status).
		Int("students", found).
		Msg("subscription state reconciled")
	return nil
}

// handleSubscriptionDeleted cancels billing for every student on the
// customer: status canceled, enrollment withdrawn, forward-looking fields
// cleared, the canceled id kept in history. The existence check runs inside
// the same transaction as the writes so a racing update cannot be clobbered
// from a stale read.
func (s *webhookServiceImpl) handleSubscriptionDeleted(ctx context.Context, program model.Program, event *model.StripeEvent) error {
	var sub model.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return dataQuality(fmt.Sprintf("subscription payload could not be decoded: %v", err))
	}

	if sub.Customer.ID == "" {
		return dataQuality("subscription event has no customer id")
	}

	now := time.Now().UTC()

	var found int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		students, err := s.studentRepo.FindByCustomerID(ctx, tx, program, sub.Customer.ID)
		if err != nil {
			return fmt.Errorf("find students by customer: %w", err)
		}
		found = len(students)

		for _, st := range students {
			history := historyBefore(st, sub.ID)
			if n := len(history); n == 0 || history[n-1] != sub.ID {
				history = append(history, sub.ID)
			}
			if err := s.studentRepo.CancelSubscription(ctx, tx, st.ID, history, now); err != nil {
				return fmt.Errorf("cancel subscription for student %s: %w", st.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if found == 0 {
		// Cancellation of something already gone is not an error.
		return dataQuality(fmt.Sprintf("no students found for customer %s", sub.Customer.ID))
	}

	log.Info().
		Str("event_id", event.ID).
		Str("subscription_id", sub.ID).
		Str("customer_id", sub.Customer.ID).
		Int("students", found).
		Msg("subscription canceled")
	return nil
}

// historyBefore returns the student's subscription-id history with the
// current id appended when it is about to be replaced by a different one.
// Appends are skipped when the id is already the last entry, so replays do
// not grow the history.
func historyBefore(st *model.Student, incomingID string) datatypes.JSONSlice[string] {
	history := st.SubscriptionHistory
	prev := st.StripeSubscriptionID
	if prev == nil || *prev == "" || *prev == incomingID {
		return history
	}
	if n := len(history); n > 0 && history[n-1] == *prev {
		return history
	}
	return append(history, *prev)
}

func (s *webhookServiceImpl) ListEvents(ctx context.Context, source model.Program, limit int) ([]*model.WebhookEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.webhookEventRepo.ListRecent(ctx, source, limit)
}
