package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/castanedo/poscore-backend/pkg/db"
	"github.com/castanedo/poscore-backend/pkg/db/models"
	pkgerrors "github.com/castanedo/poscore-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger owns per-product stock quantities. Mutating methods accept an
// optional transaction handle so callers can compose them into a larger
// atomic unit; a nil tx runs against the base connection.
type Ledger struct {
	db *gorm.DB
}

// NewLedger builds a ledger over the provided GORM DB.
func NewLedger(conn *gorm.DB) *Ledger {
	return &Ledger{db: conn}
}

// QuantityUpdate sets one product's quantity to an absolute value.
type QuantityUpdate struct {
	ProductID uuid.UUID
	Quantity  int
}

// RowResult is the per-row outcome of a bulk ledger operation. Batch-level
// all-or-nothing is the caller's concern.
type RowResult struct {
	ProductID uuid.UUID
	Err       error
}

func (l *Ledger) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return l.db.WithContext(ctx)
}

// ValidateAvailability is the advisory read used before an order starts
// mutating. The authoritative check happens inside Reduce.
func (l *Ledger) ValidateAvailability(ctx context.Context, productID uuid.UUID, requiredQty int) error {
	if requiredQty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "required quantity must be positive")
	}

	var record models.InventoryRecord
	err := l.conn(ctx, nil).First(&record, "product_id = ?", productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return insufficientStock(productID, requiredQty, 0)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading inventory record")
	}
	if record.Quantity < requiredQty {
		return insufficientStock(productID, requiredQty, record.Quantity)
	}
	return nil
}

// Reduce decrements stock with the check and the write in one statement, so
// concurrent reductions against the same product are serialized by the store.
// A decrement that would go negative affects zero rows and fails
// InsufficientStock; the quantity is never corrupted.
func (l *Ledger) Reduce(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reduction quantity must be positive")
	}

	res := l.conn(ctx, tx).
		Model(&models.InventoryRecord{}).
		Where("product_id = ? AND quantity >= ?", productID, qty).
		Updates(map[string]any{
			"quantity": gorm.Expr("quantity - ?", qty),
			"version":  gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "reducing stock")
	}
	if res.RowsAffected == 0 {
		var record models.InventoryRecord
		err := l.conn(ctx, tx).First(&record, "product_id = ?", productID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading inventory record")
		}
		return insufficientStock(productID, qty, record.Quantity)
	}
	return nil
}

// Create inserts the single ledger record for a product. A nil initial
// quantity means zero. A second create for the same product fails Conflict
// and leaves the existing record untouched.
func (l *Ledger) Create(ctx context.Context, tx *gorm.DB, productID uuid.UUID, initialQty *int) (*models.InventoryRecord, error) {
	qty := 0
	if initialQty != nil {
		qty = *initialQty
	}
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial quantity must not be negative")
	}

	record := &models.InventoryRecord{
		ID:        uuid.New(),
		ProductID: productID,
		Quantity:  qty,
	}
	if err := l.conn(ctx, tx).Create(record).Error; err != nil {
		if db.IsUniqueViolation(err, "idx_inventory_product") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "inventory record already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating inventory record")
	}
	return record, nil
}

// BulkCreate initializes zero-quantity records for the given products. Each
// row is checked independently against the one-record-per-product rule and
// reported in its own RowResult; rows that pass are inserted in one
// statement. The error return is reserved for infrastructure failures.
func (l *Ledger) BulkCreate(ctx context.Context, tx *gorm.DB, productIDs []uuid.UUID) ([]RowResult, error) {
	results := make([]RowResult, len(productIDs))
	if len(productIDs) == 0 {
		return results, nil
	}

	existing, err := l.existingProductIDs(ctx, tx, productIDs)
	if err != nil {
		return nil, err
	}

	rows := make([]models.InventoryRecord, 0, len(productIDs))
	for i, productID := range productIDs {
		results[i] = RowResult{ProductID: productID}
		if existing[productID] {
			results[i].Err = pkgerrors.New(pkgerrors.CodeConflict, "inventory record already exists")
			continue
		}
		rows = append(rows, models.InventoryRecord{ID: uuid.New(), ProductID: productID})
	}
	if len(rows) == 0 {
		return results, nil
	}
	if err := l.conn(ctx, tx).Create(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "bulk creating inventory records")
	}
	return results, nil
}

// BulkUpsert sets absolute quantities, creating missing records. Rows with a
// negative quantity fail their own RowResult; the rest are applied with one
// upsert statement that bumps the version of updated rows.
func (l *Ledger) BulkUpsert(ctx context.Context, tx *gorm.DB, updates []QuantityUpdate) ([]RowResult, error) {
	results := make([]RowResult, len(updates))
	if len(updates) == 0 {
		return results, nil
	}

	rows := make([]models.InventoryRecord, 0, len(updates))
	for i, update := range updates {
		results[i] = RowResult{ProductID: update.ProductID}
		if update.Quantity < 0 {
			results[i].Err = pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
			continue
		}
		rows = append(rows, models.InventoryRecord{
			ID:        uuid.New(),
			ProductID: update.ProductID,
			Quantity:  update.Quantity,
		})
	}
	if len(rows) == 0 {
		return results, nil
	}

	err := l.conn(ctx, tx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity": gorm.Expr("excluded.quantity"),
				"version":  gorm.Expr("version + 1"),
			}),
		}).
		Create(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "bulk upserting inventory records")
	}
	return results, nil
}

// FindByProductIDs loads ledger records for the given products in one query.
func (l *Ledger) FindByProductIDs(ctx context.Context, productIDs []uuid.UUID) ([]models.InventoryRecord, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var out []models.InventoryRecord
	err := l.conn(ctx, nil).
		Where("product_id IN ?", productIDs).
		Find(&out).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading inventory records")
	}
	return out, nil
}

func (l *Ledger) existingProductIDs(ctx context.Context, tx *gorm.DB, productIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	var found []uuid.UUID
	err := l.conn(ctx, tx).
		Model(&models.InventoryRecord{}).
		Where("product_id IN ?", productIDs).
		Pluck("product_id", &found).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking inventory records")
	}
	existing := make(map[uuid.UUID]bool, len(found))
	for _, id := range found {
		existing[id] = true
	}
	return existing, nil
}

func insufficientStock(productID uuid.UUID, required, available int) error {
	return pkgerrors.New(
		pkgerrors.CodeInsufficientStock,
		fmt.Sprintf("product %s has %d in stock, %d requested", productID, available, required),
	).WithDetails(map[string]any{
		"product_id": productID,
		"available":  available,
		"requested":  required,
	})
}
