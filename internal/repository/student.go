package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mustafamuse/irshad-center-sub005/internal/model"
)

// SubscriptionState is the absolute snapshot applied to one student during
// reconciliation. Nil period fields are stored as NULL.
type SubscriptionState struct {
	SubscriptionID string
	Status         model.SubscriptionStatus
	Enrollment     model.EnrollmentStatus
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
	PaidUntil      *time.Time
	History        datatypes.JSONSlice[string]
	UpdatedAt      time.Time
}

type StudentRepository interface {
	Create(ctx context.Context, student *model.Student) error
	FindByFamilyID(ctx context.Context, familyID string) ([]*model.Student, error)

	// The methods below take an explicit transaction handle: every student
	// for one customer must transition in a single transaction, and reads
	// must happen inside that same transaction to avoid stale lookups.
	FindByCustomerID(ctx context.Context, tx *gorm.DB, program model.Program, customerID string) ([]*model.Student, error)
	AttachCustomer(ctx context.Context, tx *gorm.DB, program model.Program, familyID, customerID string, capturedAt time.Time) (int64, error)
	ApplySubscriptionState(ctx context.Context, tx *gorm.DB, studentID string, state *SubscriptionState) error
	CancelSubscription(ctx context.Context, tx *gorm.DB, studentID string, history datatypes.JSONSlice[string], at time.Time) error
}

type studentRepoImpl struct {
	db *gorm.DB
}

func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepoImpl{db: db}
}

func (r *studentRepoImpl) Create(ctx context.Context, student *model.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

func (r *studentRepoImpl) FindByFamilyID(ctx context.Context, familyID string) ([]*model.Student, error) {
	var students []*model.Student
	err := r.db.WithContext(ctx).
		Where("family_id = ?", familyID).
		Find(&students).Error

	if err != nil {
		return nil, err
	}

	return students, nil
}

func (r *studentRepoImpl) FindByCustomerID(ctx context.Context, tx *gorm.DB, program model.Program, customerID string) ([]*model.Student, error) {
	var students []*model.Student
	err := tx.WithContext(ctx).
		Where("program = ? AND stripe_customer_id = ?", program, customerID).
		Find(&students).Error

	if err != nil {
		return nil, err
	}

	return students, nil
}

func (r *studentRepoImpl) AttachCustomer(ctx context.Context, tx *gorm.DB, program model.Program, familyID, customerID string, capturedAt time.Time) (int64, error) {
	result := tx.WithContext(ctx).Model(&model.Student{}).
		Where("family_id = ? AND program = ?", familyID, program).
		Updates(map[string]interface{}{
			"stripe_customer_id":         customerID,
			"payment_method_captured":    true,
			"payment_method_captured_at": capturedAt,
		})

	return result.RowsAffected, result.Error
}

func (r *studentRepoImpl) ApplySubscriptionState(ctx context.Context, tx *gorm.DB, studentID string, state *SubscriptionState) error {
	result := tx.WithContext(ctx).Model(&model.Student{}).
		Where("id = ?", studentID).
		Updates(map[string]interface{}{
			"stripe_subscription_id": state.SubscriptionID,
			"subscription_status":    state.Status,
			"enrollment_status":      state.Enrollment,
			"subscription_history":   state.History,
			"current_period_start":   state.PeriodStart,
			"current_period_end":     state.PeriodEnd,
			"paid_until":             state.PaidUntil,
			"status_updated_at":      state.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *studentRepoImpl) CancelSubscription(ctx context.Context, tx *gorm.DB, studentID string, history datatypes.JSONSlice[string], at time.Time) error {
	result := tx.WithContext(ctx).Model(&model.Student{}).
		Where("id = ?", studentID).
		Updates(map[string]interface{}{
			"stripe_subscription_id": nil,
			"subscription_status":    model.SubscriptionCanceled,
			"enrollment_status":      model.EnrollmentWithdrawn,
			"subscription_history":   history,
			"current_period_start":   nil,
			"current_period_end":     nil,
			"paid_until":             nil,
			"status_updated_at":      at,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
