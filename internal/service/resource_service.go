package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"chemformula/internal/apperr"
	"chemformula/internal/auth"
	"chemformula/internal/metrics"
	"chemformula/internal/model"
	"chemformula/internal/repository"
	"chemformula/internal/storage"
	"chemformula/pkg/filemeta"
	"chemformula/pkg/logger"
	"chemformula/pkg/pagination"

	"github.com/gabriel-vasile/mimetype"
	"gorm.io/gorm"
)

const sniffBytes = 3072

var ResourceSorting = pagination.Sorting{
	Allowed: []string{"id", "uploaded_on", "file_name", "category", "approval_status"},
	Default: "uploaded_on",
}

// --- DTOs ---

// UploadInput is one multipart file plus its form fields.
type UploadInput struct {
	FileName    string
	MimeType    string
	Size        int64
	Content     io.Reader
	Category    string
	Description *string
}

type CreateResourceRequest struct {
	FileName    string  `json:"file_name" binding:"required"`
	FileURL     string  `json:"file_url" binding:"required"`
	FileType    string  `json:"file_type"`
	FileSize    string  `json:"file_size"`
	Category    string  `json:"category"`
	Description *string `json:"description"`
}

type UpdateResourceRequest struct {
	FileName    *string `json:"file_name" binding:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
}

type ResourceResponse struct {
	ID             uint       `json:"id"`
	FileName       string     `json:"file_name"`
	FileType       string     `json:"file_type"`
	MimeType       string     `json:"mime_type,omitempty"`
	FileSize       string     `json:"file_size"`
	FileURL        string     `json:"file_url"`
	Category       string     `json:"category"`
	UploadedBy     uint       `json:"uploaded_by"`
	UploaderName   string     `json:"uploader_name"`
	UploadedOn     time.Time  `json:"uploaded_on"`
	Description    *string    `json:"description,omitempty"`
	ApprovalStatus string     `json:"approval_status"`
	ApprovedBy     *uint      `json:"approved_by"`
	ApproverName   string     `json:"approver_name,omitempty"`
	ApprovedOn     *time.Time `json:"approved_on"`
}

// StoredFile is where a resource's bytes live on disk.
type StoredFile struct {
	Category string
	Name     string
	Path     string
	FileName string
	MimeType string
}

type ReconcileChange struct {
	ID           uint   `json:"id"`
	FromCategory string `json:"from_category"`
	ToCategory   string `json:"to_category"`
	FileURL      string `json:"file_url"`
}

type ReconcileReport struct {
	Scanned int               `json:"scanned"`
	Updated []ReconcileChange `json:"updated"`
	Missing []uint            `json:"missing"`
	Skipped []uint            `json:"skipped"`
}

// --- Interface ---

type ResourceService interface {
	Upload(ctx context.Context, actor *auth.Principal, in UploadInput) (*ResourceResponse, error)
	Create(ctx context.Context, actor *auth.Principal, req CreateResourceRequest) (*ResourceResponse, error)
	List(ctx context.Context, filter repository.ResourceFilter, p pagination.Params) ([]ResourceResponse, int64, error)
	ListPending(ctx context.Context, p pagination.Params) ([]ResourceResponse, int64, error)
	Get(ctx context.Context, id uint) (*ResourceResponse, error)
	Update(ctx context.Context, actor *auth.Principal, id uint, req UpdateResourceRequest) (*ResourceResponse, error)
	Delete(ctx context.Context, actor *auth.Principal, id uint) error
	Approve(ctx context.Context, actor *auth.Principal, id uint, in DecisionRequest) (*ResourceResponse, error)
	Reject(ctx context.Context, actor *auth.Principal, id uint, in DecisionRequest) (*ResourceResponse, error)
	Download(ctx context.Context, id uint) (*StoredFile, error)
	// Lookup resolves a public /uploads path, searching every bucket when the
	// file is not in the requested one.
	Lookup(category, name string) (*StoredFile, error)
	Reconcile(ctx context.Context, actor *auth.Principal) (*ReconcileReport, error)
}

type resourceService struct {
	txManager    repository.TransactionManager
	resourceRepo repository.ResourceRepository
	activityRepo repository.ActivityRepository
	approvals    ApprovalService
	disk         *storage.Disk
	maxBytes     int64
	newName      func(original string) string
	metrics      *metrics.Metrics
	log          *logger.Logger
}

type ResourceDeps struct {
	TxManager repository.TransactionManager
	Resources repository.ResourceRepository
	Activity  repository.ActivityRepository
	Approvals ApprovalService
	Disk      *storage.Disk
	MaxBytes  int64
	Metrics   *metrics.Metrics
	Log       *logger.Logger
}

func NewResourceService(d ResourceDeps) ResourceService {
	return &resourceService{
		txManager:    d.TxManager,
		resourceRepo: d.Resources,
		activityRepo: d.Activity,
		approvals:    d.Approvals,
		disk:         d.Disk,
		maxBytes:     d.MaxBytes,
		newName:      filemeta.NewName,
		metrics:      d.Metrics,
		log:          d.Log.With("service", "ResourceService"),
	}
}

// --- Upload & create ---

// Upload validates size and type before anything touches disk or the
// database. The file is written first; if the row cannot be inserted the file
// is removed again.
func (s *resourceService) Upload(ctx context.Context, actor *auth.Principal, in UploadInput) (*ResourceResponse, error) {
	category := filemeta.ParseCategory(in.Category)
	original := filepath.Base(strings.ReplaceAll(strings.TrimSpace(in.FileName), "\\", "/"))
	if in.Content == nil || original == "" || original == "." || original == "/" {
		return nil, apperr.Validation("file is required")
	}
	if s.maxBytes > 0 && in.Size > s.maxBytes {
		s.metrics.ResourceUpload(category, "rejected")
		return nil, apperr.Validation("file exceeds the maximum size of %s", filemeta.FormatFileSize(s.maxBytes))
	}

	mime, content, err := detectMIME(in.MimeType, in.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if !filemeta.AllowedMIME(mime) {
		s.metrics.ResourceUpload(category, "rejected")
		return nil, apperr.Validation("file type %s is not allowed; allowed types: %s",
			mime, strings.Join(filemeta.AllowedMIMETypes(), ", "))
	}

	name := s.newName(original)
	written, err := s.disk.Save(category, name, content, s.maxBytes)
	if err != nil {
		s.metrics.ResourceUpload(category, "rejected")
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, apperr.Validation("file exceeds the maximum size of %s", filemeta.FormatFileSize(s.maxBytes))
		}
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	resource := model.Resource{
		FileName:    original,
		FileType:    filemeta.TypeLabel(mime),
		MimeType:    mime,
		FileSize:    filemeta.FormatFileSize(written),
		FileURL:     filemeta.URLFor(category, name),
		Category:    category,
		UploadedBy:  actor.UserID,
		Description: in.Description,
	}
	if err := s.insert(ctx, actor, &resource, model.ActionUpload); err != nil {
		if delErr := s.disk.Delete(category, name); delErr != nil {
			s.log.Warn("failed to remove orphaned upload", "category", category, "name", name, "error", delErr)
		}
		s.metrics.ResourceUpload(category, "failed")
		return nil, err
	}

	s.metrics.ResourceUpload(category, "ok")
	return s.Get(ctx, resource.ID)
}

// detectMIME trusts a specific client-declared type and sniffs the content
// when the type is missing or generic. The returned reader replays any bytes
// consumed by sniffing.
func detectMIME(declared string, content io.Reader) (string, io.Reader, error) {
	mime := filemeta.NormalizeMIME(declared)
	if mime != "" && mime != "application/octet-stream" {
		return mime, content, nil
	}
	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(content, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, err
	}
	head = head[:n]
	detected := filemeta.NormalizeMIME(mimetype.Detect(head).String())
	return detected, io.MultiReader(bytes.NewReader(head), content), nil
}

// Create registers a resource for a file that is already stored.
func (s *resourceService) Create(ctx context.Context, actor *auth.Principal, req CreateResourceRequest) (*ResourceResponse, error) {
	category := filemeta.ParseCategory(req.Category)
	fileURL := strings.TrimSpace(req.FileURL)

	if urlCategory, name, ok := filemeta.ParseURL(fileURL); ok {
		owner, err := s.resourceRepo.FindByStoredName(ctx, name)
		switch {
		case err == nil:
			return nil, apperr.Conflict("file %s is already registered as resource %d", name, owner.ID)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("failed to check file owner: %w", err)
		}
		found, exists, err := s.disk.Locate(urlCategory, name)
		if err != nil {
			return nil, fmt.Errorf("failed to locate file: %w", err)
		}
		if !exists {
			return nil, apperr.Validation("file %s is not in the uploads store", name)
		}
		if req.Category == "" {
			category = found
		}
		if found != category {
			if err := s.disk.Move(found, category, name); err != nil {
				return nil, fmt.Errorf("failed to move file into %s: %w", category, err)
			}
		}
		fileURL = filemeta.URLFor(category, name)
	}

	resource := model.Resource{
		FileName:    strings.TrimSpace(req.FileName),
		FileType:    req.FileType,
		FileSize:    req.FileSize,
		FileURL:     fileURL,
		Category:    category,
		UploadedBy:  actor.UserID,
		Description: req.Description,
	}
	if resource.FileType == "" {
		resource.FileType = filemeta.TypeLabel("")
	}
	if err := s.insert(ctx, actor, &resource, model.ActionCreate); err != nil {
		return nil, err
	}
	return s.Get(ctx, resource.ID)
}

// insert applies the creation-time approval policy and writes the row, its
// Pending approval and the activity entry in one transaction.
func (s *resourceService) insert(ctx context.Context, actor *auth.Principal, resource *model.Resource, action string) error {
	now := time.Now().UTC()
	if s.approvals.AutoApproves(actor, model.EntityResource, resource.Category) {
		resource.ApprovalStatus = model.ApprovalStatusApproved
		resource.ApprovedBy = &actor.UserID
		resource.ApprovedOn = &now
	} else {
		resource.ApprovalStatus = model.ApprovalStatusPending
	}

	var pending *model.Approval
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.resourceRepo.Create(txCtx, resource); err != nil {
			return fmt.Errorf("failed to create resource: %w", err)
		}
		if resource.ApprovalStatus == model.ApprovalStatusPending {
			var err error
			if pending, err = s.approvals.OpenPending(txCtx, model.EntityResource, resource.ID, actor.UserID); err != nil {
				return err
			}
		}
		return logActivity(txCtx, s.activityRepo, actor.UserID, action, model.EntityResource, resource.ID, map[string]string{
			"file_name":       resource.FileName,
			"category":        resource.Category,
			"approval_status": resource.ApprovalStatus,
		})
	})
	if err != nil {
		return err
	}
	s.approvals.NotifyPending(pending)
	return nil
}

// --- Reads ---

func (s *resourceService) List(ctx context.Context, filter repository.ResourceFilter, p pagination.Params) ([]ResourceResponse, int64, error) {
	resources, total, err := s.resourceRepo.List(ctx, filter, p)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list resources: %w", err)
	}
	res := make([]ResourceResponse, 0, len(resources))
	for _, r := range resources {
		res = append(res, toResourceResponse(r))
	}
	return res, total, nil
}

func (s *resourceService) ListPending(ctx context.Context, p pagination.Params) ([]ResourceResponse, int64, error) {
	return s.List(ctx, repository.ResourceFilter{ApprovalStatus: model.ApprovalStatusPending}, p)
}

func (s *resourceService) Get(ctx context.Context, id uint) (*ResourceResponse, error) {
	r, err := s.resourceRepo.FindByIDWithRelations(ctx, id)
	if err != nil {
		return nil, loadError(err, model.EntityResource, id)
	}
	resp := toResourceResponse(*r)
	return &resp, nil
}

// --- Update & delete ---

// Update edits metadata. A category change moves the stored file and
// rewrites file_url; the move is undone if the row update fails.
func (s *resourceService) Update(ctx context.Context, actor *auth.Principal, id uint, req UpdateResourceRequest) (*ResourceResponse, error) {
	existing, err := s.resourceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, model.EntityResource, id)
	}

	fields := map[string]interface{}{}
	if req.FileName != nil {
		fields["file_name"] = strings.TrimSpace(*req.FileName)
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}

	var undo func()
	if req.Category != nil {
		target := filemeta.ParseCategory(*req.Category)
		if target != existing.Category {
			fields["category"] = target
			if _, name, ok := filemeta.ParseURL(existing.FileURL); ok {
				found, exists, err := s.disk.Locate(existing.Category, name)
				if err != nil {
					return nil, fmt.Errorf("failed to locate file: %w", err)
				}
				if exists {
					if found != target {
						if err := s.disk.Move(found, target, name); err != nil {
							return nil, fmt.Errorf("failed to move file: %w", err)
						}
						undo = func() {
							if err := s.disk.Move(target, found, name); err != nil {
								s.log.Error("failed to restore moved file", "name", name, "error", err)
							}
						}
					}
					fields["file_url"] = filemeta.URLFor(target, name)
				} else {
					s.log.Warn("category changed for resource without stored file", "resource_id", id, "name", name)
				}
			}
		}
	}
	if len(fields) == 0 {
		return nil, apperr.Validation("no fields to update")
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.resourceRepo.Updates(txCtx, id, fields); err != nil {
			return loadError(err, model.EntityResource, id)
		}
		return logActivity(txCtx, s.activityRepo, actor.UserID, model.ActionUpdate, model.EntityResource, id, fields)
	})
	if err != nil {
		if undo != nil {
			undo()
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes the row and its approvals first; the file is unlinked only
// after that commits, and an unlink failure is logged rather than returned.
func (s *resourceService) Delete(ctx context.Context, actor *auth.Principal, id uint) error {
	existing, err := s.resourceRepo.FindByID(ctx, id)
	if err != nil {
		return loadError(err, model.EntityResource, id)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.approvals.Discard(txCtx, model.EntityResource, id); err != nil {
			return err
		}
		if err := s.resourceRepo.Delete(txCtx, id); err != nil {
			return loadError(err, model.EntityResource, id)
		}
		return logActivity(txCtx, s.activityRepo, actor.UserID, model.ActionDelete, model.EntityResource, id,
			map[string]string{"file_url": existing.FileURL})
	})
	if err != nil {
		return err
	}

	if _, name, ok := filemeta.ParseURL(existing.FileURL); ok {
		found, exists, err := s.disk.Locate(existing.Category, name)
		switch {
		case err != nil:
			s.log.Warn("failed to locate file of deleted resource", "resource_id", id, "error", err)
		case exists:
			if err := s.disk.Delete(found, name); err != nil {
				s.log.Warn("failed to unlink file of deleted resource", "resource_id", id, "error", err)
			}
		}
	}
	return nil
}

// --- Decisions ---

type DecisionRequest struct {
	ApproverID *uint
	Comments   *string
}

func (s *resourceService) Approve(ctx context.Context, actor *auth.Principal, id uint, in DecisionRequest) (*ResourceResponse, error) {
	return s.decide(ctx, actor, id, model.DecisionApproved, in)
}

func (s *resourceService) Reject(ctx context.Context, actor *auth.Principal, id uint, in DecisionRequest) (*ResourceResponse, error) {
	return s.decide(ctx, actor, id, model.DecisionRejected, in)
}

func (s *resourceService) decide(ctx context.Context, actor *auth.Principal, id uint, decision string, in DecisionRequest) (*ResourceResponse, error) {
	_, err := s.approvals.Decide(ctx, DecisionInput{
		EntityType: model.EntityResource,
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

func (in DecisionRequest) approver(actor *auth.Principal) uint {
	if in.ApproverID != nil && *in.ApproverID != 0 {
		return *in.ApproverID
	}
	return actor.UserID
}

// --- Files ---

func (s *resourceService) Download(ctx context.Context, id uint) (*StoredFile, error) {
	r, err := s.resourceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, model.EntityResource, id)
	}
	category, name, ok := filemeta.ParseURL(r.FileURL)
	if !ok {
		return nil, apperr.NotFound("resource %d has no stored file", id)
	}
	file, err := s.Lookup(category, name)
	if err != nil {
		return nil, err
	}
	file.FileName = r.FileName
	file.MimeType = r.MimeType
	return file, nil
}

func (s *resourceService) Lookup(category, name string) (*StoredFile, error) {
	if !filemeta.ValidName(name) {
		return nil, apperr.NotFound("file not found")
	}
	found, ok, err := s.disk.Locate(category, name)
	if err != nil {
		return nil, fmt.Errorf("failed to locate file: %w", err)
	}
	if !ok {
		return nil, apperr.NotFound("file %s not found", name)
	}
	path, err := s.disk.Path(found, name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file path: %w", err)
	}
	return &StoredFile{Category: found, Name: name, Path: path}, nil
}

// Reconcile repairs rows whose recorded category or URL disagrees with the
// bucket the file is actually in. Running it again changes nothing.
func (s *resourceService) Reconcile(ctx context.Context, actor *auth.Principal) (*ReconcileReport, error) {
	resources, err := s.resourceRepo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load resources: %w", err)
	}

	report := &ReconcileReport{
		Scanned: len(resources),
		Updated: []ReconcileChange{},
		Missing: []uint{},
		Skipped: []uint{},
	}
	for _, r := range resources {
		urlCategory, name, ok := filemeta.ParseURL(r.FileURL)
		if !ok {
			report.Skipped = append(report.Skipped, r.ID)
			continue
		}
		found, exists, err := s.disk.Locate(urlCategory, name)
		if err != nil {
			return nil, fmt.Errorf("failed to locate file for resource %d: %w", r.ID, err)
		}
		if !exists {
			report.Missing = append(report.Missing, r.ID)
			continue
		}
		if found == urlCategory && found == r.Category {
			continue
		}
		report.Updated = append(report.Updated, ReconcileChange{
			ID:           r.ID,
			FromCategory: r.Category,
			ToCategory:   found,
			FileURL:      filemeta.URLFor(found, name),
		})
	}

	if len(report.Updated) == 0 {
		return report, nil
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for _, c := range report.Updated {
			if err := s.resourceRepo.Updates(txCtx, c.ID, map[string]interface{}{
				"category": c.ToCategory,
				"file_url": c.FileURL,
			}); err != nil {
				return fmt.Errorf("failed to repair resource %d: %w", c.ID, err)
			}
		}
		return logActivity(txCtx, s.activityRepo, actor.UserID, model.ActionRepair, model.EntityResource, "*",
			map[string]int{"scanned": report.Scanned, "updated": len(report.Updated), "missing": len(report.Missing)})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("resource urls reconciled", "scanned", report.Scanned, "updated", len(report.Updated), "missing", len(report.Missing))
	return report, nil
}

func toResourceResponse(r model.Resource) ResourceResponse {
	resp := ResourceResponse{
		ID:             r.ID,
		FileName:       r.FileName,
		FileType:       r.FileType,
		MimeType:       r.MimeType,
		FileSize:       r.FileSize,
		FileURL:        r.FileURL,
		Category:       r.Category,
		UploadedBy:     r.UploadedBy,
		UploadedOn:     r.UploadedOn,
		Description:    r.Description,
		ApprovalStatus: r.ApprovalStatus,
		ApprovedBy:     r.ApprovedBy,
		ApprovedOn:     r.ApprovedOn,
	}
	if r.Uploader != nil {
		resp.UploaderName = r.Uploader.Username
	}
	if r.Approver != nil {
		resp.ApproverName = r.Approver.Username
	}
	return resp
}
