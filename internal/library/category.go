package library

import (
	"context"
	"strings"

	"github.com/mangashelf/mangashelf/internal/domain"
)

// CreateCategory adds a category. Labels are unique.
func (l *Library) CreateCategory(ctx context.Context, label string) (*domain.Category, error) {
	label = strings.TrimSpace(label)
	if err := validate.Var(label, "required,max=100"); err != nil {
		return nil, err
	}
	c := &domain.Category{Label: label}
	if err := l.store.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RenameCategory changes the label of a category.
func (l *Library) RenameCategory(ctx context.Context, id int64, label string) error {
	label = strings.TrimSpace(label)
	if err := validate.Var(label, "required,max=100"); err != nil {
		return err
	}
	return l.store.RenameCategory(ctx, id, label)
}

// DeleteCategory removes a category; its works stay in the library.
func (l *Library) DeleteCategory(ctx context.Context, id int64) error {
	return l.store.DeleteCategory(ctx, id)
}

// Categories lists every category.
func (l *Library) Categories(ctx context.Context) ([]*domain.Category, error) {
	return l.store.ListCategories(ctx)
}

// WorkCategories lists the categories of a work.
func (l *Library) WorkCategories(ctx context.Context, workID int64) ([]*domain.Category, error) {
	return l.store.WorkCategories(ctx, workID)
}

// CategoryWorks lists the works of a category.
func (l *Library) CategoryWorks(ctx context.Context, categoryID int64) ([]*domain.Work, error) {
	return l.store.ListCategoryWorks(ctx, categoryID)
}

// AddToCategory links works to a category.
func (l *Library) AddToCategory(ctx context.Context, categoryID int64, workIDs ...int64) error {
	return l.store.AddWorksToCategory(ctx, categoryID, workIDs)
}

// RemoveFromCategory unlinks works from a category.
func (l *Library) RemoveFromCategory(ctx context.Context, categoryID int64, workIDs ...int64) error {
	return l.store.RemoveWorksFromCategory(ctx, categoryID, workIDs)
}
