package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mustafamuse/irshad-center-sub005/internal/model"
)

// ErrEventAlreadyRecorded means another delivery of the same event won the
// race on the (event_id, source) unique index.
var ErrEventAlreadyRecorded = errors.New("webhook event already recorded")

type WebhookEventRepository interface {
	HasProcessed(ctx context.Context, eventID string, source model.Program) (bool, error)
	// RecordPending inserts the idempotency record before any business
	// mutation runs. The unique index, not a prior read, is what makes this
	// race-safe: a concurrent duplicate gets ErrEventAlreadyRecorded.
	RecordPending(ctx context.Context, event *model.WebhookEvent) error
	// Forget removes the record after a transient failure so the provider's
	// retry is not permanently blocked.
	Forget(ctx context.Context, eventID string, source model.Program) error
	ListRecent(ctx context.Context, source model.Program, limit int) ([]*model.WebhookEvent, error)
}

type webhookEventRepoImpl struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepoImpl{db: db}
}

func (r *webhookEventRepoImpl) HasProcessed(ctx context.Context, eventID string, source model.Program) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("event_id = ? AND source = ?", eventID, source).
		Count(&count).Error

	return count > 0, err
}

func (r *webhookEventRepoImpl) RecordPending(ctx context.Context, event *model.WebhookEvent) error {
	err := r.db.WithContext(ctx).Create(event).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEventAlreadyRecorded
	}
	if err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	return nil
}

func (r *webhookEventRepoImpl) Forget(ctx context.Context, eventID string, source model.Program) error {
	return r.db.WithContext(ctx).
		Where("event_id = ? AND source = ?", eventID, source).
		Delete(&model.WebhookEvent{}).Error
}

func (r *webhookEventRepoImpl) ListRecent(ctx context.Context, source model.Program, limit int) ([]*model.WebhookEvent, error) {
	var events []*model.WebhookEvent
	q := r.db.WithContext(ctx).Model(&model.WebhookEvent{}).Order("created_at DESC").Limit(limit)
	if source != "" {
		q = q.Where("source = ?", source)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
