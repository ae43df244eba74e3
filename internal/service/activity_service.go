package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chemformula/internal/model"
	"chemformula/internal/repository"
	"chemformula/pkg/pagination"
)

var ActivitySorting = pagination.Sorting{
	Allowed: []string{"id", "created_on", "action", "entity_type"},
	Default: "created_on",
}

type ActivityLogResponse struct {
	ID         uint      `json:"id"`
	UserID     *uint     `json:"user_id"`
	Username   string    `json:"username"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Details    string    `json:"details,omitempty"`
	CreatedOn  time.Time `json:"created_on"`
}

type ActivityService interface {
	List(ctx context.Context, filter repository.ActivityFilter, p pagination.Params) ([]ActivityLogResponse, int64, error)
}

type activityService struct {
	activityRepo repository.ActivityRepository
}

func NewActivityService(activityRepo repository.ActivityRepository) ActivityService {
	return &activityService{activityRepo: activityRepo}
}

func (s *activityService) List(ctx context.Context, filter repository.ActivityFilter, p pagination.Params) ([]ActivityLogResponse, int64, error) {
	logs, total, err := s.activityRepo.List(ctx, filter, p)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activity logs: %w", err)
	}

	res := make([]ActivityLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		if l.User != nil {
			username = l.User.Username
		}
		res = append(res, ActivityLogResponse{
			ID:         l.ID,
			UserID:     l.UserID,
			Username:   username,
			Action:     l.Action,
			EntityType: l.EntityType,
			EntityID:   l.EntityID,
			Details:    l.Details,
			CreatedOn:  l.CreatedOn,
		})
	}
	return res, total, nil
}

// logActivity writes an activity row through ctx, so inside RunInTx it commits
// or rolls back with the change it describes. A zero actorID records a
// system action.
func logActivity(ctx context.Context, repo repository.ActivityRepository, actorID uint, action, entityType string, entityID interface{}, details interface{}) error {
	entry := model.ActivityLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   fmt.Sprint(entityID),
	}
	if actorID != 0 {
		entry.UserID = &actorID
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode activity details: %w", err)
		}
		entry.Details = string(raw)
	}
	if err := repo.Log(ctx, &entry); err != nil {
		return fmt.Errorf("failed to write activity log: %w", err)
	}
	return nil
}
