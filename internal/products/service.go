package products

import (
	"context"
	"fmt"

	"github.com/castanedo/poscore-backend/pkg/db"
	"github.com/castanedo/poscore-backend/pkg/db/models"
	pkgerrors "github.com/castanedo/poscore-backend/pkg/errors"
	"github.com/castanedo/poscore-backend/pkg/validation"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type clientDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Client, error)
}

type ledgerInitializer interface {
	Create(ctx context.Context, tx *gorm.DB, productID uuid.UUID, initialQty *int) (*models.InventoryRecord, error)
}

// CreateInput carries the fields for a single product insert.
type CreateInput struct {
	ClientID uuid.UUID       `json:"client_id" validate:"required"`
	Barcode  string          `json:"barcode" validate:"required"`
	Name     string          `json:"name" validate:"required"`
	MRP      decimal.Decimal `json:"mrp"`
	ImageURL *string         `json:"image_url"`
	Tags     []string        `json:"tags"`
}

// Service creates products. Every new product gets its zero-quantity ledger
// record in the same transaction, so the one-record-per-product invariant
// holds from the first moment the product is visible.
type Service struct {
	repo    *Repository
	clients clientDirectory
	ledger  ledgerInitializer
	tx      txRunner
}

// NewService builds a product service with the required dependencies.
func NewService(repo *Repository, clients clientDirectory, ledger ledgerInitializer, tx txRunner) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if clients == nil {
		return nil, fmt.Errorf("client directory required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Service{repo: repo, clients: clients, ledger: ledger, tx: tx}, nil
}

// Create validates input, checks the referenced client, and inserts the
// product plus its ledger record atomically.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if !input.MRP.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"mrp": "must be greater than 0"})
	}

	if _, err := s.clients.FindByID(ctx, input.ClientID); err != nil {
		return nil, err
	}

	product := &models.Product{
		ID:       uuid.New(),
		ClientID: input.ClientID,
		Barcode:  input.Barcode,
		Name:     input.Name,
		MRP:      input.MRP,
		ImageURL: input.ImageURL,
		Tags:     cloneTags(input.Tags),
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "idx_products_barcode") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "barcode already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating product")
		}
		if _, err := s.ledger.Create(ctx, tx, product.ID, nil); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func cloneTags(value []string) pq.StringArray {
	if len(value) == 0 {
		return nil
	}
	res := make(pq.StringArray, len(value))
	copy(res, value)
	return res
}
