package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chemformula/internal/apperr"
	"chemformula/internal/auth"
	"chemformula/internal/model"
	"chemformula/internal/repository"
	"chemformula/pkg/logger"
	"chemformula/pkg/pagination"

	"github.com/shopspring/decimal"
)

var FormulaSorting = pagination.Sorting{
	Allowed: []string{"id", "formula_name", "created_on", "total_cost", "status"},
	Default: "created_on",
}

// --- DTOs ---

type ComponentInput struct {
	ChemicalName string          `json:"chemical_name" binding:"required,max=255"`
	Percentage   float64         `json:"percentage" binding:"gte=0,lte=100"`
	CostPerLb    decimal.Decimal `json:"cost_per_lb"`
	HazardClass  string          `json:"hazard_class" binding:"max=100"`
}

type UpdateComponentRequest struct {
	ChemicalName *string          `json:"chemical_name" binding:"omitempty,min=1,max=255"`
	Percentage   *float64         `json:"percentage" binding:"omitempty,gte=0,lte=100"`
	CostPerLb    *decimal.Decimal `json:"cost_per_lb"`
	HazardClass  *string          `json:"hazard_class" binding:"omitempty,max=100"`
}

type CreateFormulaRequest struct {
	FormulaName   string           `json:"formula_name" binding:"required,max=255"`
	Density       float64          `json:"density" binding:"gte=0"`
	TotalCost     decimal.Decimal  `json:"total_cost"`
	Margin        decimal.Decimal  `json:"margin"`
	ContainerCost decimal.Decimal  `json:"container_cost"`
	Status        string           `json:"status" binding:"omitempty,oneof=Draft Pending"`
	Components    []ComponentInput `json:"components" binding:"dive"`
}

// UpdateFormulaRequest changes only the fields present. A non-nil
// Components replaces the whole component set.
type UpdateFormulaRequest struct {
	FormulaName   *string           `json:"formula_name" binding:"omitempty,min=1,max=255"`
	Density       *float64          `json:"density" binding:"omitempty,gte=0"`
	TotalCost     *decimal.Decimal  `json:"total_cost"`
	Margin        *decimal.Decimal  `json:"margin"`
	ContainerCost *decimal.Decimal  `json:"container_cost"`
	Status        *string           `json:"status" binding:"omitempty,oneof=Draft Pending"`
	Components    *[]ComponentInput `json:"components" binding:"omitempty,dive"`
}

type FormulaResponse struct {
	model.Formula
	CreatorName  string `json:"creator_name"`
	ApproverName string `json:"approver_name,omitempty"`
}

// --- Interface ---

type FormulaService interface {
	Create(ctx context.Context, actor *auth.Principal, req CreateFormulaRequest) (*FormulaResponse, error)
	Get(ctx context.Context, id uint) (*FormulaResponse, error)
	List(ctx context.Context, filter repository.FormulaFilter, p pagination.Params) ([]FormulaResponse, int64, error)
	Update(ctx context.Context, actor *auth.Principal, id uint, req UpdateFormulaRequest) (*FormulaResponse, error)
	Delete(ctx context.Context, actor *auth.Principal, id uint) error
	Approve(ctx context.Context, actor *auth.Principal, id uint, in DecisionRequest) (*FormulaResponse, error)
	Reject(ctx context.Context, actor *auth.Principal, id uint, in DecisionRequest) (*FormulaResponse, error)

	ListComponents(ctx context.Context, formulaID uint) ([]model.FormulaComponent, error)
	AddComponent(ctx context.Context, actor *auth.Principal, formulaID uint, in ComponentInput) (*model.FormulaComponent, error)
	UpdateComponent(ctx context.Context, actor *auth.Principal, formulaID, componentID uint, req UpdateComponentRequest) (*model.FormulaComponent, error)
	DeleteComponent(ctx context.Context, actor *auth.Principal, formulaID, componentID uint) error
}

type formulaService struct {
	txManager    repository.TransactionManager
	formulaRepo  repository.FormulaRepository
	quoteRepo    repository.QuoteRepository
	activityRepo repository.ActivityRepository
	approvals    ApprovalService
	log          *logger.Logger
}

func NewFormulaService(
	txManager repository.TransactionManager,
	formulaRepo repository.FormulaRepository,
	quoteRepo repository.QuoteRepository,
	activityRepo repository.ActivityRepository,
	approvals ApprovalService,
	log *logger.Logger,
) FormulaService {
	return &formulaService{
		txManager:    txManager,
		formulaRepo:  formulaRepo,
		quoteRepo:    quoteRepo,
		activityRepo: activityRepo,
		approvals:    approvals,
		log:          log.With("service", "FormulaService"),
	}
}

// creationStatus gives auto-approvers Approved; everyone else gets Pending
// unless they asked for Draft.
func creationStatus(approvals ApprovalService, actor *auth.Principal, entityType, requested string) string {
	if approvals.AutoApproves(actor, entityType, "") {
		return model.StatusApproved
	}
	if requested == model.StatusDraft {
		return model.StatusDraft
	}
	return model.StatusPending
}

func toComponents(formulaID uint, in []ComponentInput) []model.FormulaComponent {
	components := make([]model.FormulaComponent, 0, len(in))
	for _, c := range in {
		components = append(components, model.FormulaComponent{
			FormulaID:    formulaID,
			ChemicalName: strings.TrimSpace(c.ChemicalName),
			Percentage:   c.Percentage,
			CostPerLb:    c.CostPerLb,
			HazardClass:  c.HazardClass,
		})
	}
	return components
}

// --- Aggregate CRUD ---

func (s *formulaService) Create(ctx context.Context, actor *auth.Principal, req CreateFormulaRequest) (*FormulaResponse, error) {
	formula := model.Formula{
		FormulaName:   strings.TrimSpace(req.FormulaName),
		CreatedBy:     actor.UserID,
		Density:       req.Density,
		TotalCost:     req.TotalCost,
		Margin:        req.Margin,
		ContainerCost: req.ContainerCost,
		Status:        creationStatus(s.approvals, actor, model.EntityFormula, req.Status),
	}
	if formula.Status == model.StatusApproved {
		now := time.Now().UTC()
		formula.ApprovedBy = &actor.UserID
		formula.ApprovedOn = &now
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.formulaRepo.Create(txCtx, &formula); err != nil {
			return fmt.Errorf("failed to create formula: %w", err)
		}
		if len(req.Components) > 0 {
			if err := s.formulaRepo.CreateComponents(txCtx, toComponents(formula.ID, req.Components)); err != nil {
				return fmt.Errorf("failed to create components: %w", err)
			}
		}
		return logActivity(txCtx, s.activityRepo, actor.UserID, model.ActionCreate, model.EntityFormula, formula.ID, map[string]interface{}{
			"formula_name": formula.FormulaName,
			"status":       formula.Status,
			"components":   len(req.Components),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, formula.ID)
}

func (s *formulaService) Get(ctx context.Context, id uint) (*FormulaResponse, error) {
	f, err := s.formulaRepo.FindByIDWithRelations(ctx, id)
	if err != nil {
		return nil, loadError(err, model.EntityFormula, id)
	}
	resp := toFormulaResponse(*f)
	return &resp, nil
}

func (s *formulaService) List(ctx context.Context, filter repository.FormulaFilter, p pagination.Params) ([]FormulaResponse, int64, error) {
	formulas, total, err := s.formulaRepo.List(ctx, filter, p)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list formulas: %w", err)
	}
	res := make([]FormulaResponse, 0, len(formulas))
	for _, f := range formulas {
		res = append(res, toFormulaResponse(f))
	}
	return res, total, nil
}

// Update writes each change as its own statement; a failure part way leaves
// the earlier ones applied.
func (s *formulaService) Update(ctx context.Context, actor *auth.Principal, id uint, req UpdateFormulaRequest) (*FormulaResponse, error) {
	if _, err := s.formulaRepo.FindByID(ctx, id); err != nil {
		return nil, loadError(err, model.EntityFormula, id)
	}

	fields := map[string]interface{}{}
	if req.FormulaName != nil {
		fields["formula_name"] = strings.TrimSpace(*req.FormulaName)
	}
	if req.Density != nil {
		fields["density"] = *req.Density
	}
	if req.TotalCost != nil {
		fields["total_cost"] = *req.TotalCost
	}
	if req.Margin != nil {
		fields["margin"] = *req.Margin
	}
	if req.ContainerCost != nil {
		fields["container_cost"] = *req.ContainerCost
	}
	if req.Status != nil {
		fields["status"] = *req.Status
	}
	if len(fields) == 0 && req.Components == nil {
		return nil, apperr.Validation("no fields to update")
	}

	fields["updated_on"] = time.Now().UTC()
	if err := s.formulaRepo.Updates(ctx, id, fields); err != nil {
		return nil, loadError(err, model.EntityFormula, id)
	}
	if req.Components != nil {
		if err := s.formulaRepo.DeleteComponents(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to clear components: %w", err)
		}
		if len(*req.Components) > 0 {
			if err := s.formulaRepo.CreateComponents(ctx, toComponents(id, *req.Components)); err != nil {
				return nil, fmt.Errorf("failed to create components: %w", err)
			}
		}
		fields["components"] = len(*req.Components)
	}
	if err := logActivity(ctx, s.activityRepo, actor.UserID, model.ActionUpdate, model.EntityFormula, id, fields); err != nil {
		s.log.Warn("failed to record formula update", "formula_id", id, "error", err)
	}
	return s.Get(ctx, id)
}

// Delete removes components, approvals and the formula together. Quotes
// built from the formula keep their rows with formula_id cleared.
func (s *formulaService) Delete(ctx context.Context, actor *auth.Principal, id uint) error {
	if _, err := s.formulaRepo.FindByID(ctx, id); err != nil {
		return loadError(err, model.EntityFormula, id)
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.formulaRepo.DeleteComponents(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete components: %w", err)
		}
		if err := s.approvals.Discard(txCtx, model.EntityFormula, id); err != nil {
			return err
		}
		if err := s.quoteRepo.DetachFormula(txCtx, id); err != nil {
			return fmt.Errorf("failed to detach quotes: %w", err)
		}
		if err := s.formulaRepo.Delete(txCtx, id); err != nil {
			return loadError(err, model.EntityFormula, id)
		}
		return logActivity(txCtx, s.activityRepo, actor.UserID, model.ActionDelete, model.EntityFormula, id, nil)
	})
}

func (s *formulaService) Approve(ctx context.Context, actor *auth.Principal, id uint, in DecisionRequest) (*FormulaResponse, error) {
	return s.decide(ctx, actor, id, model.DecisionApproved, in)
}

func (s *formulaService) Reject(ctx context.Context, actor *auth.Principal, id uint, in DecisionRequest) (*FormulaResponse, error) {
	return s.decide(ctx, actor, id, model.DecisionRejected, in)
}

func (s *formulaService) decide(ctx context.Context, actor *auth.Principal, id uint, decision string, in DecisionRequest) (*FormulaResponse, error) {
	_, err := s.approvals.Decide(ctx, DecisionInput{
		EntityType: model.EntityFormula,
		EntityID:   id,
		ApproverID: in.approver(actor),
		Decision:   decision,
		Comments:   in.Comments,
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// --- Components ---

func (s *formulaService) ListComponents(ctx context.Context, formulaID uint) ([]model.FormulaComponent, error) {
	if _, err := s.formulaRepo.FindByID(ctx, formulaID); err != nil {
		return nil, loadError(err, model.EntityFormula, formulaID)
	}
	components, err := s.formulaRepo.ListComponents(ctx, formulaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	return components, nil
}

func (s *formulaService) AddComponent(ctx context.Context, actor *auth.Principal, formulaID uint, in ComponentInput) (*model.FormulaComponent, error) {
	if _, err := s.formulaRepo.FindByID(ctx, formulaID); err != nil {
		return nil, loadError(err, model.EntityFormula, formulaID)
	}
	components := toComponents(formulaID, []ComponentInput{in})
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.formulaRepo.CreateComponents(txCtx, components); err != nil {
			return fmt.Errorf("failed to create component: %w", err)
		}
		return logActivity(txCtx, s.activityRepo, actor.UserID, model.ActionUpdate, model.EntityFormula, formulaID,
			map[string]interface{}{"component_added": components[0].ID, "chemical_name": components[0].ChemicalName})
	})
	if err != nil {
		return nil, err
	}
	return &components[0], nil
}

func (s *formulaService) UpdateComponent(ctx context.Context, actor *auth.Principal, formulaID, componentID uint, req UpdateComponentRequest) (*model.FormulaComponent, error) {
	component, err := s.formulaRepo.FindComponent(ctx, formulaID, componentID)
	if err != nil {
		return nil, loadError(err, "Component", componentID)
	}
	if req.ChemicalName != nil {
		component.ChemicalName = strings.TrimSpace(*req.ChemicalName)
	}
	if req.Percentage != nil {
		component.Percentage = *req.Percentage
	}
	if req.CostPerLb != nil {
		component.CostPerLb = *req.CostPerLb
	}
	if req.HazardClass != nil {
		component.HazardClass = *req.HazardClass
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.formulaRepo.UpdateComponent(txCtx, component); err != nil {
			return fmt.Errorf("failed to update component: %w", err)
		}
		return logActivity(txCtx, s.activityRepo, actor.UserID, model.ActionUpdate, model.EntityFormula, formulaID,
			map[string]interface{}{"component_updated": componentID})
	})
	if err != nil {
		return nil, err
	}
	return component, nil
}

func (s *formulaService) DeleteComponent(ctx context.Context, actor *auth.Principal, formulaID, componentID uint) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.formulaRepo.DeleteComponent(txCtx, formulaID, componentID); err != nil {
			return loadError(err, "Component", componentID)
		}
		return logActivity(txCtx, s.activityRepo, actor.UserID, model.ActionUpdate, model.EntityFormula, formulaID,
			map[string]interface{}{"component_deleted": componentID})
	})
}

func toFormulaResponse(f model.Formula) FormulaResponse {
	resp := FormulaResponse{Formula: f}
	if resp.Components == nil {
		resp.Components = []model.FormulaComponent{}
	}
	if f.Creator != nil {
		resp.CreatorName = f.Creator.Username
	}
	if f.Approver != nil {
		resp.ApproverName = f.Approver.Username
	}
	return resp
}
