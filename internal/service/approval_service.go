package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chemformula/internal/apperr"
	"chemformula/internal/auth"
	"chemformula/internal/metrics"
	"chemformula/internal/model"
	"chemformula/internal/repository"
	"chemformula/pkg/filemeta"
	"chemformula/pkg/logger"
	"chemformula/pkg/pagination"

	"gorm.io/gorm"
)

// Realtime events published to connected approvers.
const (
	EventApprovalPending = "approval.pending"
	EventApprovalDecided = "approval.decided"
)

// Notifier fans events out to connected clients. Publish must not block.
type Notifier interface {
	Publish(event string, payload interface{})
}

type noopNotifier struct{}

func (noopNotifier) Publish(string, interface{}) {}

var ApprovalSorting = pagination.Sorting{
	Allowed: []string{"id", "decision_date", "entity_type", "decision"},
	Default: "decision_date",
}

// --- DTOs ---

type CreateApprovalRequest struct {
	EntityType string  `json:"entity_type" binding:"required,oneof=Formula Quote Resource"`
	EntityID   uint    `json:"entity_id" binding:"required"`
	ApproverID *uint   `json:"approver_id"`
	Comments   *string `json:"comments"`
}

type UpdateApprovalRequest struct {
	Decision   *string `json:"decision" binding:"omitempty,oneof=Pending Approved Rejected Returned"`
	ApproverID *uint   `json:"approver_id"`
	Comments   *string `json:"comments"`
}

// DecisionInput is an approve/reject call against one entity.
type DecisionInput struct {
	EntityType string
	EntityID   uint
	ApproverID uint
	Decision   string
	Comments   *string
}

type ApprovalResponse struct {
	ID           uint      `json:"id"`
	EntityType   string    `json:"entity_type"`
	EntityID     uint      `json:"entity_id"`
	ApproverID   uint      `json:"approver_id"`
	ApproverName string    `json:"approver_name"`
	Decision     string    `json:"decision"`
	DecisionDate time.Time `json:"decision_date"`
	Comments     *string   `json:"comments,omitempty"`
}

type PendingStats struct {
	Total        int64            `json:"total"`
	ByEntityType map[string]int64 `json:"by_entity_type"`
}

// --- Interface ---

type ApprovalService interface {
	AutoApproves(actor *auth.Principal, entityType, category string) bool
	OpenPending(ctx context.Context, entityType string, entityID, creatorID uint) (*model.Approval, error)
	NotifyPending(approval *model.Approval)
	Discard(ctx context.Context, entityType string, entityID uint) error
	Decide(ctx context.Context, in DecisionInput) (bool, error)

	List(ctx context.Context, filter repository.ApprovalFilter, p pagination.Params) ([]ApprovalResponse, int64, error)
	Get(ctx context.Context, id uint) (*ApprovalResponse, error)
	Create(ctx context.Context, actor *auth.Principal, req CreateApprovalRequest) (*ApprovalResponse, error)
	Update(ctx context.Context, actor *auth.Principal, id uint, req UpdateApprovalRequest) (*ApprovalResponse, error)
	Delete(ctx context.Context, actor *auth.Principal, id uint) error
	PendingStats(ctx context.Context) (*PendingStats, error)
}

type approvalService struct {
	txManager    repository.TransactionManager
	approvalRepo repository.ApprovalRepository
	resourceRepo repository.ResourceRepository
	formulaRepo  repository.FormulaRepository
	quoteRepo    repository.QuoteRepository
	userRepo     repository.UserRepository
	activityRepo repository.ActivityRepository
	policy       *auth.Policy
	notifier     Notifier
	metrics      *metrics.Metrics
	log          *logger.Logger
}

type ApprovalDeps struct {
	TxManager repository.TransactionManager
	Approvals repository.ApprovalRepository
	Resources repository.ResourceRepository
	Formulas  repository.FormulaRepository
	Quotes    repository.QuoteRepository
	Users     repository.UserRepository
	Activity  repository.ActivityRepository
	Policy    *auth.Policy
	Notifier  Notifier
	Metrics   *metrics.Metrics
	Log       *logger.Logger
}

func NewApprovalService(d ApprovalDeps) ApprovalService {
	notifier := d.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &approvalService{
		txManager:    d.TxManager,
		approvalRepo: d.Approvals,
		resourceRepo: d.Resources,
		formulaRepo:  d.Formulas,
		quoteRepo:    d.Quotes,
		userRepo:     d.Users,
		activityRepo: d.Activity,
		policy:       d.Policy,
		notifier:     notifier,
		metrics:      d.Metrics,
		log:          d.Log.With("service", "ApprovalService"),
	}
}

// --- Creation-time policy ---

// AutoApproves reports whether a new entity skips the Pending state: the
// actor is in the admin set, or the entity is a knowledge resource.
func (s *approvalService) AutoApproves(actor *auth.Principal, entityType, category string) bool {
	if s.policy.Allows(actor, auth.CapAutoApprove) {
		return true
	}
	return entityType == model.EntityResource && category == filemeta.CategoryKnowledge
}

// OpenPending records the Pending approval for a new entity. The creator
// stands in as approver until someone decides.
func (s *approvalService) OpenPending(ctx context.Context, entityType string, entityID, creatorID uint) (*model.Approval, error) {
	approval := model.Approval{
		EntityType:   entityType,
		EntityID:     entityID,
		ApproverID:   creatorID,
		Decision:     model.DecisionPending,
		DecisionDate: time.Now().UTC(),
	}
	if err := s.approvalRepo.Create(ctx, &approval); err != nil {
		return nil, fmt.Errorf("failed to open approval: %w", err)
	}
	return &approval, nil
}

func (s *approvalService) NotifyPending(approval *model.Approval) {
	if approval == nil {
		return
	}
	s.notifier.Publish(EventApprovalPending, toApprovalResponse(*approval))
}

func (s *approvalService) Discard(ctx context.Context, entityType string, entityID uint) error {
	if err := s.approvalRepo.DeleteForEntity(ctx, entityType, entityID); err != nil {
		return fmt.Errorf("failed to delete approvals for %s %d: %w", entityType, entityID, err)
	}
	return nil
}

// --- Decisions ---

// Decide applies an Approved/Rejected outcome. The entity row is overwritten
// whatever its current status; the entity's Pending approval row, if one
// exists, is flipped in the same transaction. The bool reports whether such a
// row existed.
func (s *approvalService) Decide(ctx context.Context, in DecisionInput) (bool, error) {
	if in.Decision != model.DecisionApproved && in.Decision != model.DecisionRejected {
		return false, apperr.Validation("decision must be Approved or Rejected")
	}
	if !model.IsEntityType(in.EntityType) {
		return false, apperr.Validation("unknown entity type %q", in.EntityType)
	}
	if err := s.ensureUser(ctx, in.ApproverID); err != nil {
		return false, err
	}

	var matched int64
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		matched, err = s.applyDecision(txCtx, in, time.Now().UTC())
		return err
	})
	if err != nil {
		return false, err
	}

	s.afterDecision(in, matched > 0)
	return matched > 0, nil
}

func (s *approvalService) applyDecision(ctx context.Context, in DecisionInput, at time.Time) (int64, error) {
	n, err := s.setEntityDecision(ctx, in.EntityType, in.EntityID, in.Decision, in.ApproverID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s %d: %w", strings.ToLower(in.EntityType), in.EntityID, err)
	}
	if n == 0 {
		return 0, apperr.NotFound("%s %d not found", in.EntityType, in.EntityID)
	}

	matched, err := s.approvalRepo.DecidePending(ctx, in.EntityType, in.EntityID, in.Decision, in.ApproverID, at, in.Comments)
	if err != nil {
		return 0, fmt.Errorf("failed to update approval: %w", err)
	}

	action := model.ActionApprove
	if in.Decision == model.DecisionRejected {
		action = model.ActionReject
	}
	details := map[string]interface{}{"decision": in.Decision, "approval_rows": matched}
	if in.Comments != nil {
		details["comments"] = *in.Comments
	}
	if err := logActivity(ctx, s.activityRepo, in.ApproverID, action, in.EntityType, in.EntityID, details); err != nil {
		return 0, err
	}
	return matched, nil
}

func (s *approvalService) afterDecision(in DecisionInput, matched bool) {
	s.metrics.ApprovalDecision(in.EntityType, in.Decision)
	if !matched {
		s.log.Info("decision applied without a pending approval row",
			"entity_type", in.EntityType, "entity_id", in.EntityID, "decision", in.Decision)
	}
	s.notifier.Publish(EventApprovalDecided, map[string]interface{}{
		"entity_type": in.EntityType,
		"entity_id":   in.EntityID,
		"decision":    in.Decision,
		"approver_id": in.ApproverID,
	})
}

func (s *approvalService) setEntityDecision(ctx context.Context, entityType string, id uint, decision string, approverID uint, at time.Time) (int64, error) {
	switch entityType {
	case model.EntityResource:
		return s.resourceRepo.SetDecision(ctx, id, decision, approverID, at)
	case model.EntityFormula:
		return s.formulaRepo.SetDecision(ctx, id, decision, approverID, at)
	case model.EntityQuote:
		return s.quoteRepo.SetDecision(ctx, id, decision, approverID, at)
	}
	return 0, apperr.Validation("unknown entity type %q", entityType)
}

func (s *approvalService) ensureUser(ctx context.Context, id uint) error {
	if id == 0 {
		return apperr.Validation("approver_id is required")
	}
	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Validation("approver_id %d does not reference a user", id)
		}
		return fmt.Errorf("failed to load approver: %w", err)
	}
	return nil
}

func (s *approvalService) ensureEntity(ctx context.Context, entityType string, id uint) error {
	var err error
	switch entityType {
	case model.EntityResource:
		_, err = s.resourceRepo.FindByID(ctx, id)
	case model.EntityFormula:
		_, err = s.formulaRepo.FindByID(ctx, id)
	case model.EntityQuote:
		_, err = s.quoteRepo.FindByID(ctx, id)
	default:
		return apperr.Validation("unknown entity type %q", entityType)
	}
	return loadError(err, entityType, id)
}

// --- CRUD ---

func (s *approvalService) List(ctx context.Context, filter repository.ApprovalFilter, p pagination.Params) ([]ApprovalResponse, int64, error) {
	approvals, total, err := s.approvalRepo.List(ctx, filter, p)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list approvals: %w", err)
	}
	result := make([]ApprovalResponse, 0, len(approvals))
	for _, a := range approvals {
		result = append(result, toApprovalResponse(a))
	}
	return result, total, nil
}

func (s *approvalService) Get(ctx context.Context, id uint) (*ApprovalResponse, error) {
	a, err := s.approvalRepo.FindByIDWithRelations(ctx, id)
	if err != nil {
		return nil, loadError(err, model.EntityApproval, id)
	}
	resp := toApprovalResponse(*a)
	return &resp, nil
}

func (s *approvalService) Create(ctx context.Context, actor *auth.Principal, req CreateApprovalRequest) (*ApprovalResponse, error) {
	approverID := actor.UserID
	if req.ApproverID != nil {
		approverID = *req.ApproverID
	}
	if err := s.ensureUser(ctx, approverID); err != nil {
		return nil, err
	}
	if err := s.ensureEntity(ctx, req.EntityType, req.EntityID); err != nil {
		return nil, err
	}

	var approval model.Approval
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.approvalRepo.FindPending(txCtx, req.EntityType, req.EntityID); err == nil {
			return apperr.Conflict("%s %d already has a pending approval", req.EntityType, req.EntityID)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check pending approvals: %w", err)
		}

		approval = model.Approval{
			EntityType:   req.EntityType,
			EntityID:     req.EntityID,
			ApproverID:   approverID,
			Decision:     model.DecisionPending,
			DecisionDate: time.Now().UTC(),
			Comments:     req.Comments,
		}
		if err := s.approvalRepo.Create(txCtx, &approval); err != nil {
			return fmt.Errorf("failed to create approval: %w", err)
		}
		return logActivity(txCtx, s.activityRepo, actor.UserID, model.ActionCreate, model.EntityApproval, approval.ID, req)
	})
	if err != nil {
		return nil, err
	}

	s.NotifyPending(&approval)
	return s.Get(ctx, approval.ID)
}

// Update edits an approval row. Moving a Pending row to Approved or Rejected
// also decides the entity; Returned stays on the row.
func (s *approvalService) Update(ctx context.Context, actor *auth.Principal, id uint, req UpdateApprovalRequest) (*ApprovalResponse, error) {
	existing, err := s.approvalRepo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, model.EntityApproval, id)
	}

	approverID := existing.ApproverID
	if req.ApproverID != nil {
		if err := s.ensureUser(ctx, *req.ApproverID); err != nil {
			return nil, err
		}
		approverID = *req.ApproverID
	}

	decision := existing.Decision
	if req.Decision != nil {
		decision = *req.Decision
	}
	if decision != existing.Decision && existing.Decision != model.DecisionPending {
		return nil, apperr.Conflict("approval %d is already %s", id, existing.Decision)
	}
	propagate := existing.Decision == model.DecisionPending &&
		(decision == model.DecisionApproved || decision == model.DecisionRejected)
	if req.ApproverID == nil && decision != existing.Decision && actor != nil && actor.UserID != 0 {
		approverID = actor.UserID
	}

	in := DecisionInput{
		EntityType: existing.EntityType,
		EntityID:   existing.EntityID,
		ApproverID: approverID,
		Decision:   decision,
		Comments:   req.Comments,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if propagate {
			_, err := s.applyDecision(txCtx, in, time.Now().UTC())
			return err
		}
		fields := map[string]interface{}{"approver_id": approverID}
		if decision != existing.Decision {
			fields["decision"] = decision
			fields["decision_date"] = time.Now().UTC()
		}
		if req.Comments != nil {
			fields["comments"] = *req.Comments
		}
		if err := s.approvalRepo.Updates(txCtx, id, fields); err != nil {
			return loadError(err, model.EntityApproval, id)
		}
		return logActivity(txCtx, s.activityRepo, actor.UserID, model.ActionUpdate, model.EntityApproval, id, req)
	})
	if err != nil {
		return nil, err
	}

	if propagate {
		s.afterDecision(in, true)
	}
	return s.Get(ctx, id)
}

func (s *approvalService) Delete(ctx context.Context, actor *auth.Principal, id uint) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.approvalRepo.Delete(txCtx, id); err != nil {
			return loadError(err, model.EntityApproval, id)
		}
		return logActivity(txCtx, s.activityRepo, actor.UserID, model.ActionDelete, model.EntityApproval, id, nil)
	})
}

func (s *approvalService) PendingStats(ctx context.Context) (*PendingStats, error) {
	rows, err := s.approvalRepo.CountPendingByEntity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending approvals: %w", err)
	}
	stats := &PendingStats{ByEntityType: make(map[string]int64, len(model.EntityTypes))}
	for _, t := range model.EntityTypes {
		stats.ByEntityType[t] = 0
	}
	for _, r := range rows {
		stats.ByEntityType[r.EntityType] = r.Count
		stats.Total += r.Count
	}
	return stats, nil
}

// --- Helpers ---

func toApprovalResponse(a model.Approval) ApprovalResponse {
	resp := ApprovalResponse{
		ID:           a.ID,
		EntityType:   a.EntityType,
		EntityID:     a.EntityID,
		ApproverID:   a.ApproverID,
		Decision:     a.Decision,
		DecisionDate: a.DecisionDate,
		Comments:     a.Comments,
	}
	if a.Approver != nil {
		resp.ApproverName = a.Approver.Username
	}
	return resp
}

// loadError turns a missing row into a NotFound error and wraps anything else.
func loadError(err error, entity string, id interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s %v not found", entity, id)
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("failed to load %s %v: %w", strings.ToLower(entity), id, err)
}
