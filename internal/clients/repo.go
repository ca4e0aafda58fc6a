package clients

import (
	"context"
	"errors"

	"github.com/castanedo/poscore-backend/internal/repo"
	"github.com/castanedo/poscore-backend/pkg/db"
	"github.com/castanedo/poscore-backend/pkg/db/models"
	pkgerrors "github.com/castanedo/poscore-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the client directory consumed by product creation and the
// product upload pipeline.
type Repository struct {
	repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(conn)}
}

// Create inserts a client. Names are unique across the directory.
func (r *Repository) Create(ctx context.Context, name string) (*models.Client, error) {
	client := &models.Client{ID: uuid.New(), Name: name}
	if err := r.DB(ctx).Create(client).Error; err != nil {
		if db.IsUniqueViolation(err, "idx_clients_name") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "client name already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating client")
	}
	return client, nil
}

// FindByID loads a single client.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	err := r.DB(ctx).First(&client, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "client not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading client")
	}
	return &client, nil
}

// ExistingIDs returns, from the given set, the ids that are present in the
// directory. One query regardless of batch size.
func (r *Repository) ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	existing := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}
	var found []uuid.UUID
	err := r.DB(ctx).
		Model(&models.Client{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking client ids")
	}
	for _, id := range found {
		existing[id] = true
	}
	return existing, nil
}

// List returns all clients ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Client, error) {
	var out []models.Client
	if err := r.DB(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing clients")
	}
	return out, nil
}
