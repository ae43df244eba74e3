package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chemformula/internal/apperr"
	"chemformula/internal/auth"
	"chemformula/internal/model"
	"chemformula/pkg/filemeta"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadKnowledgeIsAutoApproved(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)

	res := env.upload(t, chemist, "knowledge", "safety.txt", "wear gloves")

	assert.Equal(t, model.ApprovalStatusApproved, res.ApprovalStatus)
	assert.Equal(t, "knowledge", res.Category)
	require.NotNil(t, res.ApprovedBy)
	assert.Equal(t, chemist.UserID, *res.ApprovedBy)
	assert.Empty(t, env.approvalRows(t, model.EntityResource, res.ID))
	assert.Empty(t, env.notifier.names())
}

func TestUploadByNonAdminOpensOnePendingApproval(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)

	res := env.upload(t, chemist, "formulas", "blend.txt", "50% NaCl")

	assert.Equal(t, model.ApprovalStatusPending, res.ApprovalStatus)
	assert.Nil(t, res.ApprovedBy)
	assert.True(t, strings.HasPrefix(res.FileURL, "/uploads/formulas/blend-"))
	assert.Equal(t, "Text File", res.FileType)
	assert.Equal(t, "8 Bytes", res.FileSize)

	rows := env.approvalRows(t, model.EntityResource, res.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, model.DecisionPending, rows[0].Decision)
	assert.Equal(t, chemist.UserID, rows[0].ApproverID)
	assert.Equal(t, []string{EventApprovalPending}, env.notifier.names())

	_, name, ok := filemeta.ParseURL(res.FileURL)
	require.True(t, ok)
	exists, err := env.disk.Exists("formulas", name)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUploadByAdminIsAutoApproved(t *testing.T) {
	env := newEnv(t)
	admin := env.principal(t, auth.RoleAdmin)

	res := env.upload(t, admin, "quotes", "terms.txt", "net 30")

	assert.Equal(t, model.ApprovalStatusApproved, res.ApprovalStatus)
	assert.Empty(t, env.approvalRows(t, model.EntityResource, res.ID))
}

func TestUploadUnknownCategoryFallsBackToOther(t *testing.T) {
	env := newEnv(t)
	res := env.upload(t, env.principal(t, auth.RoleChemist), "invoices", "x.txt", "x")
	assert.Equal(t, filemeta.CategoryOther, res.Category)
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)

	_, err := env.resources.Upload(context.Background(), chemist, UploadInput{
		FileName: "archive.zip",
		MimeType: "application/zip",
		Size:     4,
		Content:  strings.NewReader("PK\x03\x04"),
		Category: "formulas",
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, err.Error(), "application/pdf")

	assert.Zero(t, env.count(t, &model.Resource{}, ""))
	assert.Zero(t, env.count(t, &model.Approval{}, ""))
	entries, err := os.ReadDir(filepath.Join(env.disk.Root(), "formulas"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadRejectsOversizeBeforeWriting(t *testing.T) {
	env := newEnv(t)
	_, err := env.resources.Upload(context.Background(), env.principal(t, auth.RoleChemist), UploadInput{
		FileName: "big.txt",
		MimeType: "text/plain",
		Size:     testMaxBytes + 1,
		Content:  bytes.NewReader(make([]byte, 10)),
		Category: "other",
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, env.count(t, &model.Resource{}, ""))
}

func TestUploadRejectsStreamLargerThanDeclared(t *testing.T) {
	env := newEnv(t)
	_, err := env.resources.Upload(context.Background(), env.principal(t, auth.RoleChemist), UploadInput{
		FileName: "liar.txt",
		MimeType: "text/plain",
		Size:     10,
		Content:  bytes.NewReader(bytes.Repeat([]byte("a"), testMaxBytes+5)),
		Category: "other",
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, env.count(t, &model.Resource{}, ""))
	entries, err := os.ReadDir(filepath.Join(env.disk.Root(), "other"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadSniffsGenericContentType(t *testing.T) {
	env := newEnv(t)
	pdf := "%PDF-1.4\n1 0 obj\n<<>>\nendobj\n"

	res, err := env.resources.Upload(context.Background(), env.principal(t, auth.RoleChemist), UploadInput{
		FileName: "msds.pdf",
		MimeType: "application/octet-stream",
		Size:     int64(len(pdf)),
		Content:  strings.NewReader(pdf),
		Category: "knowledge",
	})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", res.MimeType)
	assert.Equal(t, "PDF Document", res.FileType)

	file, err := env.resources.Download(context.Background(), res.ID)
	require.NoError(t, err)
	data, err := os.ReadFile(file.Path)
	require.NoError(t, err)
	assert.Equal(t, pdf, string(data), "sniffed bytes are written back")
}

func TestApproveResourceThenApproveAgain(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)
	manager := env.principal(t, auth.RoleManager)
	admin := env.principal(t, auth.RoleAdmin)
	res := env.upload(t, chemist, "formulas", "blend.txt", "data")

	approved, err := env.resources.Approve(context.Background(), manager, res.ID, DecisionRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalStatusApproved, approved.ApprovalStatus)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, manager.UserID, *approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedOn)

	rows := env.approvalRows(t, model.EntityResource, res.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, model.DecisionApproved, rows[0].Decision)
	assert.Equal(t, manager.UserID, rows[0].ApproverID)

	// Nothing is pending any more; the entity is still overwritten.
	matched, err := env.approvals.Decide(context.Background(), DecisionInput{
		EntityType: model.EntityResource,
		EntityID:   res.ID,
		ApproverID: admin.UserID,
		Decision:   model.DecisionApproved,
	})
	require.NoError(t, err)
	assert.False(t, matched)

	again, err := env.resources.Get(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalStatusApproved, again.ApprovalStatus)
	assert.Equal(t, admin.UserID, *again.ApprovedBy)
	assert.Len(t, env.approvalRows(t, model.EntityResource, res.ID), 1)
	assert.Equal(t, []string{EventApprovalPending, EventApprovalDecided, EventApprovalDecided}, env.notifier.names())
}

func TestRejectResourceWithExplicitApprover(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)
	manager := env.principal(t, auth.RoleManager)
	other := env.principal(t, auth.RoleManager)
	res := env.upload(t, chemist, "quotes", "q.txt", "data")
	comment := "missing signature"

	rejected, err := env.resources.Reject(context.Background(), manager, res.ID, DecisionRequest{ApproverID: &other.UserID, Comments: &comment})
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalStatusRejected, rejected.ApprovalStatus)
	assert.Equal(t, other.UserID, *rejected.ApprovedBy)

	rows := env.approvalRows(t, model.EntityResource, res.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, model.DecisionRejected, rows[0].Decision)
	require.NotNil(t, rows[0].Comments)
	assert.Equal(t, comment, *rows[0].Comments)
}

func TestDecideUnknownApproverMutatesNothing(t *testing.T) {
	env := newEnv(t)
	res := env.upload(t, env.principal(t, auth.RoleChemist), "formulas", "f.txt", "data")
	ghost := uint(9999)

	_, err := env.resources.Approve(context.Background(), env.principal(t, auth.RoleManager), res.ID, DecisionRequest{ApproverID: &ghost})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	got, err := env.resources.Get(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalStatusPending, got.ApprovalStatus)
	assert.Equal(t, model.DecisionPending, env.approvalRows(t, model.EntityResource, res.ID)[0].Decision)
}

func TestDecideMissingResourceIsNotFound(t *testing.T) {
	env := newEnv(t)
	_, err := env.resources.Approve(context.Background(), env.principal(t, auth.RoleManager), 4242, DecisionRequest{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Zero(t, env.count(t, &model.ActivityLog{}, "action = ?", model.ActionApprove))
}

func TestDeleteResourceRemovesRowApprovalsAndFile(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)
	res := env.upload(t, chemist, "formulas", "gone.txt", "bye")
	_, name, _ := filemeta.ParseURL(res.FileURL)

	require.NoError(t, env.resources.Delete(context.Background(), chemist, res.ID))

	_, err := env.resources.Get(context.Background(), res.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Empty(t, env.approvalRows(t, model.EntityResource, res.ID))
	exists, err := env.disk.Exists("formulas", name)
	require.NoError(t, err)
	assert.False(t, exists)

	err = env.resources.Delete(context.Background(), chemist, res.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteResourceWithMissingFileStillDeletesRow(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)
	res := env.upload(t, chemist, "other", "lost.txt", "x")
	_, name, _ := filemeta.ParseURL(res.FileURL)
	require.NoError(t, env.disk.Delete("other", name))

	require.NoError(t, env.resources.Delete(context.Background(), chemist, res.ID))
	assert.Zero(t, env.count(t, &model.Resource{}, "id = ?", res.ID))
}

func TestLookupSearchesEveryBucket(t *testing.T) {
	env := newEnv(t)
	res := env.upload(t, env.principal(t, auth.RoleChemist), "formulas", "drift.txt", "x")
	_, name, _ := filemeta.ParseURL(res.FileURL)
	require.NoError(t, env.disk.Move("formulas", "knowledge", name))

	file, err := env.resources.Lookup("formulas", name)
	require.NoError(t, err)
	assert.Equal(t, "knowledge", file.Category)

	dl, err := env.resources.Download(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, "drift.txt", dl.FileName)
	assert.Equal(t, filepath.Join(env.disk.Root(), "knowledge", name), dl.Path)

	_, err = env.resources.Lookup("formulas", "nope.txt")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = env.resources.Lookup("formulas", "../etc/passwd")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateResourceCategoryMovesFile(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)
	res := env.upload(t, chemist, "other", "move.txt", "x")
	_, name, _ := filemeta.ParseURL(res.FileURL)
	category := "quotes"
	desc := "customer terms"

	updated, err := env.resources.Update(context.Background(), chemist, res.ID, UpdateResourceRequest{Category: &category, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "quotes", updated.Category)
	assert.Equal(t, filemeta.URLFor("quotes", name), updated.FileURL)
	require.NotNil(t, updated.Description)
	assert.Equal(t, desc, *updated.Description)

	exists, err := env.disk.Exists("quotes", name)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = env.disk.Exists("other", name)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateFromExistingUpload(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)
	_, err := env.disk.Save("other", "legacy-1-1.txt", strings.NewReader("old"), 0)
	require.NoError(t, err)

	res, err := env.resources.Create(context.Background(), chemist, CreateResourceRequest{
		FileName: "legacy.txt",
		FileURL:  "/uploads/formulas/legacy-1-1.txt",
		Category: "knowledge",
	})
	require.NoError(t, err)
	assert.Equal(t, "knowledge", res.Category)
	assert.Equal(t, "/uploads/knowledge/legacy-1-1.txt", res.FileURL)
	assert.Equal(t, model.ApprovalStatusApproved, res.ApprovalStatus)

	_, err = env.resources.Create(context.Background(), chemist, CreateResourceRequest{
		FileName: "ghost.txt",
		FileURL:  "/uploads/other/ghost-1-1.txt",
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreateRejectsFileOwnedByAnotherResource(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)
	owner := env.upload(t, chemist, "formulas", "owned.txt", "mine")
	_, name, _ := filemeta.ParseURL(owner.FileURL)

	for _, fileURL := range []string{owner.FileURL, filemeta.URLFor("quotes", name)} {
		_, err := env.resources.Create(context.Background(), chemist, CreateResourceRequest{
			FileName: "copy.txt",
			FileURL:  fileURL,
			Category: "quotes",
		})
		assert.True(t, apperr.Is(err, apperr.KindConflict), fileURL)
	}

	var count int64
	require.NoError(t, env.db.Model(&model.Resource{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	exists, err := env.disk.Exists("formulas", name)
	require.NoError(t, err)
	assert.True(t, exists)

	file, err := env.resources.Download(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "formulas", file.Category)
}

func TestUpdateCategoryKeepsURLWhenFileIsMissing(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)
	res := env.upload(t, chemist, "formulas", "gone.txt", "x")
	_, name, _ := filemeta.ParseURL(res.FileURL)
	require.NoError(t, env.disk.Delete("formulas", name))
	category := "knowledge"

	updated, err := env.resources.Update(context.Background(), chemist, res.ID, UpdateResourceRequest{Category: &category})
	require.NoError(t, err)
	assert.Equal(t, "knowledge", updated.Category)
	assert.Equal(t, res.FileURL, updated.FileURL)
}

func TestReconcileRepairsDriftAndIsIdempotent(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)
	admin := env.principal(t, auth.RoleAdmin)

	drifted := env.upload(t, chemist, "formulas", "a.txt", "a")
	steady := env.upload(t, chemist, "quotes", "b.txt", "b")
	lost := env.upload(t, chemist, "other", "c.txt", "c")

	_, driftName, _ := filemeta.ParseURL(drifted.FileURL)
	require.NoError(t, env.disk.Move("formulas", "knowledge", driftName))
	_, lostName, _ := filemeta.ParseURL(lost.FileURL)
	require.NoError(t, env.disk.Delete("other", lostName))

	report, err := env.resources.Reconcile(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	require.Len(t, report.Updated, 1)
	assert.Equal(t, drifted.ID, report.Updated[0].ID)
	assert.Equal(t, "formulas", report.Updated[0].FromCategory)
	assert.Equal(t, "knowledge", report.Updated[0].ToCategory)
	assert.Equal(t, []uint{lost.ID}, report.Missing)

	got, err := env.resources.Get(context.Background(), drifted.ID)
	require.NoError(t, err)
	assert.Equal(t, "knowledge", got.Category)
	assert.Equal(t, filemeta.URLFor("knowledge", driftName), got.FileURL)

	unchanged, err := env.resources.Get(context.Background(), steady.ID)
	require.NoError(t, err)
	assert.Equal(t, steady.FileURL, unchanged.FileURL)

	second, err := env.resources.Reconcile(context.Background(), admin)
	require.NoError(t, err)
	assert.Empty(t, second.Updated)
	assert.Equal(t, []uint{lost.ID}, second.Missing)
}

func TestListResourcesFiltersAndPaginates(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)
	for i := 0; i < 3; i++ {
		env.upload(t, chemist, "knowledge", "k.txt", "k")
	}
	env.upload(t, chemist, "formulas", "f.txt", "f")

	p := paginationFor(1, 2, "")
	list, total, err := env.resources.List(context.Background(), resourceFilter("knowledge", ""), p)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 2)

	pending, total, err := env.resources.ListPending(context.Background(), paginationFor(1, 20, ""))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "formulas", pending[0].Category)
	assert.NotEmpty(t, pending[0].UploaderName)
}
