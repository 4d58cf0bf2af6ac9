package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"cratefm/db"
	"cratefm/model"
)

// PlanRepository defines the interface for plan persistence.
type PlanRepository interface {
	CreatePlan(plan *model.Plan) error
	GetPlanByID(id string) (*model.Plan, error)
	UpdatePlan(plan *model.Plan) error
	ListPlans(limit int) ([]*model.Plan, error)
	DeletePlan(id string) error
}

// planRecord is the GORM row shape backing model.Plan. The prompt and
// the ordered id list serialize as JSON columns.
type planRecord struct {
	ID            string `gorm:"primaryKey;size:64"`
	PromptJSON    string `gorm:"column:prompt;type:json"`
	TrackIDsJSON  string `gorm:"column:track_ids;type:json"`
	Annotations   string `gorm:"type:text"`
	TotalDuration int
	UsedLLM       bool
	LLMTrace      string `gorm:"type:text"`
	Finalized     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (planRecord) TableName() string {
	return "plans"
}

// gormPlanRepository implements PlanRepository on GORM.
type gormPlanRepository struct {
	DB *gorm.DB
}

// NewGormPlanRepository creates a plan repository backed by the shared
// GORM handle.
func NewGormPlanRepository() PlanRepository {
	return &gormPlanRepository{DB: db.GormDB}
}

// MigratePlanSchema creates the plans table.
func MigratePlanSchema() error {
	return db.AutoMigrateModels(&planRecord{})
}

func toRecord(plan *model.Plan) (*planRecord, error) {
	promptJSON, err := json.Marshal(plan.Prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prompt: %w", err)
	}
	idsJSON, err := json.Marshal(plan.TrackIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal track ids: %w", err)
	}
	return &planRecord{
		ID:            plan.ID,
		PromptJSON:    string(promptJSON),
		TrackIDsJSON:  string(idsJSON),
		Annotations:   plan.Annotations,
		TotalDuration: plan.TotalDuration,
		UsedLLM:       plan.Details.UsedLLM,
		LLMTrace:      plan.Details.LLMTrace,
		Finalized:     plan.Finalized,
		CreatedAt:     plan.CreatedAt,
		UpdatedAt:     plan.UpdatedAt,
	}, nil
}

func fromRecord(rec *planRecord) (*model.Plan, error) {
	plan := &model.Plan{
		ID:            rec.ID,
		Annotations:   rec.Annotations,
		TotalDuration: rec.TotalDuration,
		Details: model.PlanDetails{
			UsedLLM:  rec.UsedLLM,
			LLMTrace: rec.LLMTrace,
		},
		Finalized: rec.Finalized,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.PromptJSON != "" {
		if err := json.Unmarshal([]byte(rec.PromptJSON), &plan.Prompt); err != nil {
			return nil, fmt.Errorf("failed to unmarshal prompt for plan %s: %w", rec.ID, err)
		}
	}
	if rec.TrackIDsJSON != "" {
		if err := json.Unmarshal([]byte(rec.TrackIDsJSON), &plan.TrackIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal track ids for plan %s: %w", rec.ID, err)
		}
	}
	if plan.TrackIDs == nil {
		plan.TrackIDs = []string{}
	}
	return plan, nil
}

// CreatePlan inserts a new draft plan.
func (r *gormPlanRepository) CreatePlan(plan *model.Plan) error {
	now := time.Now()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now

	rec, err := toRecord(plan)
	if err != nil {
		return err
	}
	if err := r.DB.Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create plan %s: %w", plan.ID, err)
	}
	return nil
}

// GetPlanByID retrieves a plan by its identifier, (nil, nil) when absent.
func (r *gormPlanRepository) GetPlanByID(id string) (*model.Plan, error) {
	var rec planRecord
	err := r.DB.First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan %s: %w", id, err)
	}
	return fromRecord(&rec)
}

// UpdatePlan overwrites a stored draft. A row that is already finalized
// is never overwritten; finalization itself is the single transition
// that may set the flag.
func (r *gormPlanRepository) UpdatePlan(plan *model.Plan) error {
	var existing planRecord
	err := r.DB.First(&existing, "id = ?", plan.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("plan %s not found", plan.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to load plan %s: %w", plan.ID, err)
	}
	if existing.Finalized {
		return fmt.Errorf("plan %s is finalized and cannot be updated", plan.ID)
	}

	plan.UpdatedAt = time.Now()
	rec, err := toRecord(plan)
	if err != nil {
		return err
	}
	if err := r.DB.Save(rec).Error; err != nil {
		return fmt.Errorf("failed to update plan %s: %w", plan.ID, err)
	}
	return nil
}

// ListPlans returns the most recent plans, newest first.
func (r *gormPlanRepository) ListPlans(limit int) ([]*model.Plan, error) {
	if limit <= 0 {
		limit = 50
	}

	var recs []planRecord
	if err := r.DB.Order("created_at DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	plans := make([]*model.Plan, 0, len(recs))
	for i := range recs {
		plan, err := fromRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// DeletePlan removes a plan by id.
func (r *gormPlanRepository) DeletePlan(id string) error {
	if err := r.DB.Delete(&planRecord{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete plan %s: %w", id, err)
	}
	return nil
}
