package service

import (
	"chemformula/internal/repository"
	"chemformula/pkg/pagination"
)

func paginationFor(page, limit int, sortBy string) pagination.Params {
	return pagination.New(page, limit, sortBy, "", pagination.Sorting{
		Allowed: []string{"id", "created_on", "uploaded_on", "formula_name"},
		Default: "id",
	})
}

func resourceFilter(category, status string) repository.ResourceFilter {
	return repository.ResourceFilter{Category: category, ApprovalStatus: status}
}
