package service

import (
	"context"
	"errors"
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
	"gorm.io/gorm"
)

const defaultQuoteValidityDays = 30

var QuoteSorting = pagination.Sorting{
	Allowed: []string{"id", "quote_number", "customer_name", "created_on", "total_amount", "status"},
	Default: "created_on",
}

// --- DTOs ---

type QuoteItemInput struct {
	Description string          `json:"description" binding:"required,max=255"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type CreateQuoteRequest struct {
	FormulaID     *uint            `json:"formula_id"`
	CustomerName  string           `json:"customer_name" binding:"required,max=255"`
	CustomerEmail string           `json:"customer_email" binding:"omitempty,email"`
	TotalAmount   *decimal.Decimal `json:"total_amount"`
	ValidUntil    *time.Time       `json:"valid_until"`
	Notes         string           `json:"notes"`
	Status        string           `json:"status" binding:"omitempty,oneof=Draft Pending"`
	Items         []QuoteItemInput `json:"items" binding:"dive"`
}

// UpdateQuoteRequest changes only the fields present. A non-nil Items
// replaces every line and recomputes the total unless TotalAmount is also
// given.
type UpdateQuoteRequest struct {
	FormulaID     *uint             `json:"formula_id"`
	CustomerName  *string           `json:"customer_name" binding:"omitempty,min=1,max=255"`
	CustomerEmail *string           `json:"customer_email" binding:"omitempty,email"`
	TotalAmount   *decimal.Decimal  `json:"total_amount"`
	ValidUntil    *time.Time        `json:"valid_until"`
	Notes         *string           `json:"notes"`
	Status        *string           `json:"status" binding:"omitempty,oneof=Draft Pending"`
	Items         *[]QuoteItemInput `json:"items" binding:"omitempty,dive"`
}

type QuoteResponse struct {
	model.Quote
	CreatorName  string `json:"creator_name"`
	ApproverName string `json:"approver_name,omitempty"`
}

// --- Interface ---

type QuoteService interface {
	Create(ctx context.Context, actor *auth.Principal, req CreateQuoteRequest) (*QuoteResponse, error)
	Get(ctx context.Context, id uint) (*QuoteResponse, error)
	List(ctx context.Context, filter repository.QuoteFilter, p pagination.Params) ([]QuoteResponse, int64, error)
	Update(ctx context.Context, actor *auth.Principal, id uint, req UpdateQuoteRequest) (*QuoteResponse, error)
	Delete(ctx context.Context, actor *auth.Principal, id uint) error
	Approve(ctx context.Context, actor *auth.Principal, id uint, in DecisionRequest) (*QuoteResponse, error)
	Reject(ctx context.Context, actor *auth.Principal, id uint, in DecisionRequest) (*QuoteResponse, error)
}

type quoteService struct {
	txManager    repository.TransactionManager
	quoteRepo    repository.QuoteRepository
	formulaRepo  repository.FormulaRepository
	activityRepo repository.ActivityRepository
	approvals    ApprovalService
	settings     SettingService
	now          func() time.Time
	log          *logger.Logger
}

func NewQuoteService(
	txManager repository.TransactionManager,
	quoteRepo repository.QuoteRepository,
	formulaRepo repository.FormulaRepository,
	activityRepo repository.ActivityRepository,
	approvals ApprovalService,
	settings SettingService,
	log *logger.Logger,
) QuoteService {
	return &quoteService{
		txManager:    txManager,
		quoteRepo:    quoteRepo,
		formulaRepo:  formulaRepo,
		activityRepo: activityRepo,
		approvals:    approvals,
		settings:     settings,
		now:          func() time.Time { return time.Now().UTC() },
		log:          log.With("service", "QuoteService"),
	}
}

func toQuoteItems(quoteID uint, in []QuoteItemInput) ([]model.QuoteItem, decimal.Decimal) {
	items := make([]model.QuoteItem, 0, len(in))
	total := decimal.Zero
	for _, it := range in {
		line := it.Quantity.Mul(it.UnitPrice)
		total = total.Add(line)
		items = append(items, model.QuoteItem{
			QuoteID:     quoteID,
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   line,
		})
	}
	return items, total
}

func validateItems(in []QuoteItemInput) error {
	for i, it := range in {
		if it.Quantity.IsNegative() || it.UnitPrice.IsNegative() {
			return apperr.Validation("item %d: quantity and unit_price must not be negative", i+1)
		}
	}
	return nil
}

func (s *quoteService) ensureFormula(ctx context.Context, id *uint) error {
	if id == nil {
		return nil
	}
	if _, err := s.formulaRepo.FindByID(ctx, *id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Validation("formula_id %d does not reference a formula", *id)
		}
		return fmt.Errorf("failed to load formula: %w", err)
	}
	return nil
}

// --- Aggregate CRUD ---

func (s *quoteService) Create(ctx context.Context, actor *auth.Principal, req CreateQuoteRequest) (*QuoteResponse, error) {
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}
	if err := s.ensureFormula(ctx, req.FormulaID); err != nil {
		return nil, err
	}

	now := s.now()
	quote := model.Quote{
		FormulaID:     req.FormulaID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CreatedBy:     actor.UserID,
		Notes:         req.Notes,
		ValidUntil:    req.ValidUntil,
		Status:        creationStatus(s.approvals, actor, model.EntityQuote, req.Status),
	}
	if quote.ValidUntil == nil {
		days := s.settings.Int(ctx, SettingQuoteValidityDays, defaultQuoteValidityDays)
		until := now.AddDate(0, 0, days)
		quote.ValidUntil = &until
	}
	if quote.Status == model.StatusApproved {
		quote.ApprovedBy = &actor.UserID
		quote.ApprovedOn = &now
	}

	items, total := toQuoteItems(0, req.Items)
	quote.TotalAmount = total
	if req.TotalAmount != nil {
		quote.TotalAmount = *req.TotalAmount
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		number, err := s.quoteRepo.NextNumber(txCtx, now)
		if err != nil {
			return fmt.Errorf("failed to allocate quote number: %w", err)
		}
		quote.QuoteNumber = number
		if err := s.quoteRepo.Create(txCtx, &quote); err != nil {
			return fmt.Errorf("failed to create quote: %w", err)
		}
		for i := range items {
			items[i].QuoteID = quote.ID
		}
		if err := s.quoteRepo.CreateItems(txCtx, items); err != nil {
			return fmt.Errorf("failed to create quote items: %w", err)
		}
		return logActivity(txCtx, s.activityRepo, actor.UserID, model.ActionCreate, model.EntityQuote, quote.ID, map[string]interface{}{
			"quote_number": quote.QuoteNumber,
			"status":       quote.Status,
			"total_amount": quote.TotalAmount.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, quote.ID)
}

func (s *quoteService) Get(ctx context.Context, id uint) (*QuoteResponse, error) {
	q, err := s.quoteRepo.FindByIDWithRelations(ctx, id)
	if err != nil {
		return nil, loadError(err, model.EntityQuote, id)
	}
	resp := toQuoteResponse(*q)
	return &resp, nil
}

func (s *quoteService) List(ctx context.Context, filter repository.QuoteFilter, p pagination.Params) ([]QuoteResponse, int64, error) {
	quotes, total, err := s.quoteRepo.List(ctx, filter, p)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list quotes: %w", err)
	}
	res := make([]QuoteResponse, 0, len(quotes))
	for _, q := range quotes {
		res = append(res, toQuoteResponse(q))
	}
	return res, total, nil
}

func (s *quoteService) Update(ctx context.Context, actor *auth.Principal, id uint, req UpdateQuoteRequest) (*QuoteResponse, error) {
	if _, err := s.quoteRepo.FindByID(ctx, id); err != nil {
		return nil, loadError(err, model.EntityQuote, id)
	}
	if req.Items != nil {
		if err := validateItems(*req.Items); err != nil {
			return nil, err
		}
	}
	if err := s.ensureFormula(ctx, req.FormulaID); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.FormulaID != nil {
		fields["formula_id"] = *req.FormulaID
	}
	if req.CustomerName != nil {
		fields["customer_name"] = strings.TrimSpace(*req.CustomerName)
	}
	if req.CustomerEmail != nil {
		fields["customer_email"] = strings.TrimSpace(*req.CustomerEmail)
	}
	if req.ValidUntil != nil {
		fields["valid_until"] = *req.ValidUntil
	}
	if req.Notes != nil {
		fields["notes"] = *req.Notes
	}
	if req.Status != nil {
		fields["status"] = *req.Status
	}

	var items []model.QuoteItem
	if req.Items != nil {
		var total decimal.Decimal
		items, total = toQuoteItems(id, *req.Items)
		fields["total_amount"] = total
	}
	if req.TotalAmount != nil {
		fields["total_amount"] = *req.TotalAmount
	}
	if len(fields) == 0 {
		return nil, apperr.Validation("no fields to update")
	}

	fields["updated_on"] = s.now()
	if err := s.quoteRepo.Updates(ctx, id, fields); err != nil {
		return nil, loadError(err, model.EntityQuote, id)
	}
	if req.Items != nil {
		if err := s.quoteRepo.DeleteItems(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to clear quote items: %w", err)
		}
		if err := s.quoteRepo.CreateItems(ctx, items); err != nil {
			return nil, fmt.Errorf("failed to create quote items: %w", err)
		}
	}
	if err := logActivity(ctx, s.activityRepo, actor.UserID, model.ActionUpdate, model.EntityQuote, id, fields); err != nil {
		s.log.Warn("failed to record quote update", "quote_id", id, "error", err)
	}
	return s.Get(ctx, id)
}

func (s *quoteService) Delete(ctx context.Context, actor *auth.Principal, id uint) error {
	if _, err := s.quoteRepo.FindByID(ctx, id); err != nil {
		return loadError(err, model.EntityQuote, id)
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.quoteRepo.DeleteItems(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete quote items: %w", err)
		}
		if err := s.approvals.Discard(txCtx, model.EntityQuote, id); err != nil {
			return err
		}
		if err := s.quoteRepo.Delete(txCtx, id); err != nil {
			return loadError(err, model.EntityQuote, id)
		}
		return logActivity(txCtx, s.activityRepo, actor.UserID, model.ActionDelete, model.EntityQuote, id, nil)
	})
}

func (s *quoteService) Approve(ctx context.Context, actor *auth.Principal, id uint, in DecisionRequest) (*QuoteResponse, error) {
	return s.decide(ctx, actor, id, model.DecisionApproved, in)
}

func (s *quoteService) Reject(ctx context.Context, actor *auth.Principal, id uint, in DecisionRequest) (*QuoteResponse, error) {
	return s.decide(ctx, actor, id, model.DecisionRejected, in)
}

func (s *quoteService) decide(ctx context.Context, actor *auth.Principal, id uint, decision string, in DecisionRequest) (*QuoteResponse, error) {
	_, err := s.approvals.Decide(ctx, DecisionInput{
		EntityType: model.EntityQuote,
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

func toQuoteResponse(q model.Quote) QuoteResponse {
	resp := QuoteResponse{Quote: q}
	if resp.Items == nil {
		resp.Items = []model.QuoteItem{}
	}
	if q.Creator != nil {
		resp.CreatorName = q.Creator.Username
	}
	if q.Approver != nil {
		resp.ApproverName = q.Approver.Username
	}
	return resp
}
