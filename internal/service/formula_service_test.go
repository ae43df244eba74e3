package service

import (
	"context"
	"fmt"
	"testing"

	"chemformula/internal/apperr"
	"chemformula/internal/auth"
	"chemformula/internal/model"
	"chemformula/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createFormula(t *testing.T, env *testEnv, actor *auth.Principal, name string, components ...ComponentInput) *FormulaResponse {
	t.Helper()
	f, err := env.formulas.Create(context.Background(), actor, CreateFormulaRequest{
		FormulaName: name,
		Density:     1.2,
		TotalCost:   decimal.RequireFromString("12.50"),
		Components:  components,
	})
	require.NoError(t, err)
	return f
}

func TestCreateFormulaWithComponents(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)

	f := createFormula(t, env, chemist, "  Brine A  ",
		ComponentInput{ChemicalName: "NaCl", Percentage: 25, CostPerLb: decimal.RequireFromString("0.10")},
		ComponentInput{ChemicalName: "H2O", Percentage: 75},
	)

	assert.Equal(t, "Brine A", f.FormulaName)
	assert.Equal(t, chemist.UserID, f.CreatedBy)
	assert.Equal(t, model.StatusPending, f.Status)
	assert.NotEmpty(t, f.CreatorName)
	require.Len(t, f.Components, 2)
	assert.Equal(t, "NaCl", f.Components[0].ChemicalName)
	assert.True(t, f.Components[0].CostPerLb.Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, int64(1), env.count(t, &model.ActivityLog{}, "entity_type = ? AND action = ?", model.EntityFormula, model.ActionCreate))
}

func TestCreateFormulaStatusRules(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)
	admin := env.principal(t, auth.RoleAdmin)

	draft, err := env.formulas.Create(context.Background(), chemist, CreateFormulaRequest{FormulaName: "D", Status: model.StatusDraft})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, draft.Status)

	pending := createFormula(t, env, chemist, "P")
	assert.Equal(t, model.StatusPending, pending.Status)
	assert.Nil(t, pending.ApprovedBy)

	approved, err := env.formulas.Create(context.Background(), admin, CreateFormulaRequest{FormulaName: "A", Status: model.StatusDraft})
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, admin.UserID, *approved.ApprovedBy)

	assert.Zero(t, env.count(t, &model.Approval{}, ""))
}

func TestDeleteFormulaRemovesComponents(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)
	f := createFormula(t, env, chemist, "Gone", ComponentInput{ChemicalName: "NaCl", Percentage: 100})

	require.NoError(t, env.formulas.Delete(context.Background(), chemist, f.ID))

	assert.Zero(t, env.count(t, &model.FormulaComponent{}, "formula_id = ?", f.ID))
	_, err := env.formulas.Get(context.Background(), f.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteFormulaDetachesQuotes(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)
	sales := env.principal(t, auth.RoleSales)
	f := createFormula(t, env, chemist, "Base")

	q, err := env.quotes.Create(context.Background(), sales, CreateQuoteRequest{FormulaID: &f.ID, CustomerName: "Acme"})
	require.NoError(t, err)

	require.NoError(t, env.formulas.Delete(context.Background(), chemist, f.ID))

	got, err := env.quotes.Get(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Nil(t, got.FormulaID)
}

func TestListFormulasPaginates(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)
	for i := 0; i < 25; i++ {
		createFormula(t, env, chemist, fmt.Sprintf("F%02d", i))
	}

	page1, total, err := env.formulas.List(context.Background(), repository.FormulaFilter{}, paginationFor(1, 10, "id"))
	require.NoError(t, err)
	page2, _, err := env.formulas.List(context.Background(), repository.FormulaFilter{}, paginationFor(2, 10, "id"))
	require.NoError(t, err)
	page3, _, err := env.formulas.List(context.Background(), repository.FormulaFilter{}, paginationFor(3, 10, "id"))
	require.NoError(t, err)

	assert.Equal(t, int64(25), total)
	assert.Len(t, page1, 10)
	assert.Len(t, page2, 10)
	assert.Len(t, page3, 5)

	seen := map[uint]bool{}
	for _, f := range page1 {
		seen[f.ID] = true
	}
	for _, f := range page2 {
		assert.False(t, seen[f.ID], "page 2 overlaps page 1 at id %d", f.ID)
	}

	searched, total, err := env.formulas.List(context.Background(), repository.FormulaFilter{Search: "f0"}, paginationFor(1, 50, "id"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)
	assert.Len(t, searched, 10)
}

func TestApproveFormulaWithoutApprovalRow(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)
	manager := env.principal(t, auth.RoleManager)
	f := createFormula(t, env, chemist, "Needs review")

	approved, err := env.formulas.Approve(context.Background(), manager, f.ID, DecisionRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, manager.UserID, *approved.ApprovedBy)
	assert.NotEmpty(t, approved.ApproverName)
	assert.Empty(t, env.approvalRows(t, model.EntityFormula, f.ID))

	rejected, err := env.formulas.Reject(context.Background(), manager, f.ID, DecisionRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)
}

func TestApproveFormulaErrors(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)
	manager := env.principal(t, auth.RoleManager)
	f := createFormula(t, env, chemist, "F")
	ghost := uint(777)

	_, err := env.formulas.Approve(context.Background(), manager, f.ID, DecisionRequest{ApproverID: &ghost})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	got, err := env.formulas.Get(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)

	_, err = env.formulas.Approve(context.Background(), manager, 9999, DecisionRequest{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateFormulaReplacesComponents(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)
	f := createFormula(t, env, chemist, "Old",
		ComponentInput{ChemicalName: "NaCl", Percentage: 50},
		ComponentInput{ChemicalName: "KCl", Percentage: 50},
	)
	name := "New"
	components := []ComponentInput{{ChemicalName: "MgCl2", Percentage: 100}}

	updated, err := env.formulas.Update(context.Background(), chemist, f.ID, UpdateFormulaRequest{FormulaName: &name, Components: &components})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.FormulaName)
	assert.NotNil(t, updated.UpdatedOn)
	require.Len(t, updated.Components, 1)
	assert.Equal(t, "MgCl2", updated.Components[0].ChemicalName)

	_, err = env.formulas.Update(context.Background(), chemist, f.ID, UpdateFormulaRequest{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = env.formulas.Update(context.Background(), chemist, 9999, UpdateFormulaRequest{FormulaName: &name})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestFormulaComponentCRUD(t *testing.T) {
	env := newEnv(t)
	chemist := env.principal(t, auth.RoleChemist)
	f := createFormula(t, env, chemist, "Mix")
	ctx := context.Background()

	c, err := env.formulas.AddComponent(ctx, chemist, f.ID, ComponentInput{ChemicalName: "NaOH", Percentage: 10, HazardClass: "8"})
	require.NoError(t, err)
	assert.NotZero(t, c.ID)

	pct := 12.5
	updated, err := env.formulas.UpdateComponent(ctx, chemist, f.ID, c.ID, UpdateComponentRequest{Percentage: &pct})
	require.NoError(t, err)
	assert.Equal(t, 12.5, updated.Percentage)
	assert.Equal(t, "NaOH", updated.ChemicalName)

	list, err := env.formulas.ListComponents(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 12.5, list[0].Percentage)

	other := createFormula(t, env, chemist, "Other")
	_, err = env.formulas.UpdateComponent(ctx, chemist, other.ID, c.ID, UpdateComponentRequest{Percentage: &pct})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, env.formulas.DeleteComponent(ctx, chemist, f.ID, c.ID))
	err = env.formulas.DeleteComponent(ctx, chemist, f.ID, c.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = env.formulas.AddComponent(ctx, chemist, 9999, ComponentInput{ChemicalName: "X"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
