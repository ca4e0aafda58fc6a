package uploads

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/castanedo/poscore-backend/internal/inventory"
	"github.com/castanedo/poscore-backend/internal/products"
	"github.com/castanedo/poscore-backend/pkg/config"
	"github.com/castanedo/poscore-backend/pkg/db/models"
	pkgerrors "github.com/castanedo/poscore-backend/pkg/errors"
	"github.com/castanedo/poscore-backend/pkg/logger"
	"github.com/castanedo/poscore-backend/pkg/metrics"
	"github.com/castanedo/poscore-backend/pkg/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	kindProducts  = "products"
	kindInventory = "inventory"
)

var (
	productHeader   = []string{"barcode", "client_id", "name", "mrp", "image_url"}
	inventoryHeader = []string{"barcode", "quantity"}
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type clientDirectory interface {
	ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}

type barcodeResolver interface {
	Resolve(ctx context.Context, barcodes []string) (map[string]uuid.UUID, error)
}

type stockLedger interface {
	BulkCreate(ctx context.Context, tx *gorm.DB, productIDs []uuid.UUID) ([]inventory.RowResult, error)
	BulkUpsert(ctx context.Context, tx *gorm.DB, updates []inventory.QuantityUpdate) ([]inventory.RowResult, error)
	FindByProductIDs(ctx context.Context, productIDs []uuid.UUID) ([]models.InventoryRecord, error)
}

// Service ingests bulk TSV batches with strict reject-all semantics: one bad
// row and nothing from the file is persisted.
type Service struct {
	tx       txRunner
	clients  clientDirectory
	products *products.Repository
	resolver barcodeResolver
	ledger   stockLedger
	cfg      config.UploadConfig
	metrics  *metrics.EngineMetrics
	logg     *logger.Logger
}

// NewService builds an upload service with the required dependencies.
func NewService(
	tx txRunner,
	clients clientDirectory,
	productRepo *products.Repository,
	resolver barcodeResolver,
	ledger stockLedger,
	cfg config.UploadConfig,
	m *metrics.EngineMetrics,
	logg *logger.Logger,
) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if clients == nil {
		return nil, fmt.Errorf("client directory required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("barcode resolver required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if cfg.MaxRows <= 0 {
		return nil, fmt.Errorf("upload row cap must be positive")
	}
	return &Service{
		tx:       tx,
		clients:  clients,
		products: productRepo,
		resolver: resolver,
		ledger:   ledger,
		cfg:      cfg,
		metrics:  m,
		logg:     logg,
	}, nil
}

type productRow struct {
	Barcode  string `json:"barcode" validate:"required"`
	ClientID string `json:"client_id" validate:"required,uuid"`
	Name     string `json:"name" validate:"required"`
	MRP      string `json:"mrp" validate:"required"`
	ImageURL string `json:"image_url"`
}

// UploadProducts validates the whole batch, then inserts every product and
// its zero-quantity ledger record in one transaction.
func (s *Service) UploadProducts(ctx context.Context, r io.Reader) ([]models.Product, error) {
	ctx = s.uploadCtx(ctx, kindProducts)

	raw, rowErrs, err := parseTSV(r, productHeader, s.cfg.MaxRows)
	if err != nil {
		s.reject(ctx, kindProducts, 0)
		return nil, err
	}
	s.metrics.AddUploadRows(kindProducts, len(raw))

	type parsedProduct struct {
		row      RawRow
		clientID uuid.UUID
		mrp      decimal.Decimal
		fields   productRow
	}
	parsed := make([]parsedProduct, 0, len(raw))
	barcodeRows := map[string][]int{}

	for _, row := range raw {
		fields := productRow{
			Barcode:  row.Fields[0],
			ClientID: row.Fields[1],
			Name:     row.Fields[2],
			MRP:      row.Fields[3],
			ImageURL: row.Fields[4],
		}
		violations := validation.Violations(fields)
		for _, v := range violations {
			rowErrs = append(rowErrs, RowError{Row: row.Number, Field: v.Field, Message: v.Message})
		}
		if len(violations) > 0 {
			continue
		}

		clientID, err := uuid.Parse(fields.ClientID)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: row.Number, Field: "client_id", Message: "must be a valid uuid"})
			continue
		}
		mrp, err := decimal.NewFromString(fields.MRP)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: row.Number, Field: "mrp", Message: "must be a number"})
			continue
		}
		if !mrp.IsPositive() {
			rowErrs = append(rowErrs, RowError{Row: row.Number, Field: "mrp", Message: "must be greater than 0"})
			continue
		}

		barcodeRows[fields.Barcode] = append(barcodeRows[fields.Barcode], row.Number)
		parsed = append(parsed, parsedProduct{row: row, clientID: clientID, mrp: mrp, fields: fields})
	}

	// duplicates within the file: every occurrence is flagged
	duplicated := map[string]bool{}
	for barcode, numbers := range barcodeRows {
		if len(numbers) > 1 {
			duplicated[barcode] = true
			for _, number := range numbers {
				rowErrs = append(rowErrs, RowError{Row: number, Field: "barcode", Message: "duplicated within file"})
			}
		}
	}

	// referential: one batch existence check for the distinct client ids
	distinctClients := map[uuid.UUID]bool{}
	for _, p := range parsed {
		distinctClients[p.clientID] = true
	}
	clientIDs := make([]uuid.UUID, 0, len(distinctClients))
	for id := range distinctClients {
		clientIDs = append(clientIDs, id)
	}
	existingClients, err := s.clients.ExistingIDs(ctx, clientIDs)
	if err != nil {
		s.reject(ctx, kindProducts, len(raw))
		return nil, err
	}
	for _, p := range parsed {
		if !existingClients[p.clientID] {
			rowErrs = append(rowErrs, RowError{Row: p.row.Number, Field: "client_id", Message: "client not found"})
		}
	}

	// conflicts with already-persisted products
	barcodes := make([]string, 0, len(barcodeRows))
	for barcode := range barcodeRows {
		barcodes = append(barcodes, barcode)
	}
	persisted, err := s.products.FindByBarcodes(ctx, barcodes)
	if err != nil {
		s.reject(ctx, kindProducts, len(raw))
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking persisted barcodes")
	}
	persistedBarcodes := map[string]bool{}
	for _, p := range persisted {
		persistedBarcodes[p.Barcode] = true
	}
	for _, p := range parsed {
		if persistedBarcodes[p.fields.Barcode] && !duplicated[p.fields.Barcode] {
			rowErrs = append(rowErrs, RowError{Row: p.row.Number, Field: "barcode", Message: "barcode already registered"})
		}
	}

	if len(rowErrs) > 0 {
		s.reject(ctx, kindProducts, len(raw))
		return nil, rejectBatch(rowErrs)
	}

	rows := make([]models.Product, 0, len(parsed))
	for _, p := range parsed {
		product := models.Product{
			ID:       uuid.New(),
			ClientID: p.clientID,
			Barcode:  p.fields.Barcode,
			Name:     p.fields.Name,
			MRP:      p.mrp,
		}
		if p.fields.ImageURL != "" {
			imageURL := p.fields.ImageURL
			product.ImageURL = &imageURL
		}
		rows = append(rows, product)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.products.WithTx(tx).BulkInsert(ctx, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "bulk inserting products")
		}
		ids := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		results, err := s.ledger.BulkCreate(ctx, tx, ids)
		if err != nil {
			return err
		}
		return combineRowFailures(results)
	})
	if err != nil {
		s.reject(ctx, kindProducts, len(raw))
		return nil, err
	}

	s.metrics.IncUploadBatch(kindProducts, "accepted")
	if s.logg != nil {
		s.logg.Info(ctx, fmt.Sprintf("product upload accepted with %d rows", len(rows)))
	}
	return rows, nil
}

type inventoryRow struct {
	Barcode  string `json:"barcode" validate:"required"`
	Quantity string `json:"quantity" validate:"required"`
}

// UploadInventory validates the whole batch, then applies every quantity in
// one transaction.
func (s *Service) UploadInventory(ctx context.Context, r io.Reader) ([]models.InventoryRecord, error) {
	ctx = s.uploadCtx(ctx, kindInventory)

	raw, rowErrs, err := parseTSV(r, inventoryHeader, s.cfg.MaxRows)
	if err != nil {
		s.reject(ctx, kindInventory, 0)
		return nil, err
	}
	s.metrics.AddUploadRows(kindInventory, len(raw))

	type parsedQuantity struct {
		row      RawRow
		barcode  string
		quantity int
	}
	parsed := make([]parsedQuantity, 0, len(raw))
	barcodeRows := map[string][]int{}

	for _, row := range raw {
		fields := inventoryRow{Barcode: row.Fields[0], Quantity: row.Fields[1]}
		violations := validation.Violations(fields)
		for _, v := range violations {
			rowErrs = append(rowErrs, RowError{Row: row.Number, Field: v.Field, Message: v.Message})
		}
		if len(violations) > 0 {
			continue
		}

		quantity, err := strconv.Atoi(fields.Quantity)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: row.Number, Field: "quantity", Message: "must be an integer"})
			continue
		}
		if quantity < 0 {
			rowErrs = append(rowErrs, RowError{Row: row.Number, Field: "quantity", Message: "must not be negative"})
			continue
		}

		barcodeRows[fields.Barcode] = append(barcodeRows[fields.Barcode], row.Number)
		parsed = append(parsed, parsedQuantity{row: row, barcode: fields.Barcode, quantity: quantity})
	}

	duplicated := map[string]bool{}
	for barcode, numbers := range barcodeRows {
		if len(numbers) > 1 {
			duplicated[barcode] = true
			for _, number := range numbers {
				rowErrs = append(rowErrs, RowError{Row: number, Field: "barcode", Message: "duplicated within file"})
			}
		}
	}

	barcodes := make([]string, 0, len(barcodeRows))
	for barcode := range barcodeRows {
		barcodes = append(barcodes, barcode)
	}
	resolved, err := s.resolver.Resolve(ctx, barcodes)
	if err != nil {
		s.reject(ctx, kindInventory, len(raw))
		return nil, err
	}
	for _, p := range parsed {
		if _, ok := resolved[p.barcode]; !ok {
			rowErrs = append(rowErrs, RowError{Row: p.row.Number, Field: "barcode", Message: "barcode not found"})
		}
	}

	if len(rowErrs) > 0 {
		s.reject(ctx, kindInventory, len(raw))
		return nil, rejectBatch(rowErrs)
	}

	updates := make([]inventory.QuantityUpdate, 0, len(parsed))
	productIDs := make([]uuid.UUID, 0, len(parsed))
	for _, p := range parsed {
		productID := resolved[p.barcode]
		updates = append(updates, inventory.QuantityUpdate{ProductID: productID, Quantity: p.quantity})
		productIDs = append(productIDs, productID)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		results, err := s.ledger.BulkUpsert(ctx, tx, updates)
		if err != nil {
			return err
		}
		return combineRowFailures(results)
	})
	if err != nil {
		s.reject(ctx, kindInventory, len(raw))
		return nil, err
	}

	records, err := s.ledger.FindByProductIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	s.metrics.IncUploadBatch(kindInventory, "accepted")
	if s.logg != nil {
		s.logg.Info(ctx, fmt.Sprintf("inventory upload accepted with %d rows", len(updates)))
	}
	return records, nil
}

// combineRowFailures folds per-row ledger outcomes into one error. After
// batch validation these should all be clean; a failure here means the store
// and the validation pass disagree, and the transaction must abort.
func combineRowFailures(results []inventory.RowResult) error {
	var errs []error
	for _, result := range results {
		if result.Err != nil {
			errs = append(errs, fmt.Errorf("product %s: %w", result.ProductID, result.Err))
		}
	}
	if combined := multierr.Combine(errs...); combined != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, combined, "applying validated batch")
	}
	return nil
}

func (s *Service) uploadCtx(ctx context.Context, kind string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithUploadKind(ctx, kind)
}

func (s *Service) reject(ctx context.Context, kind string, rows int) {
	s.metrics.IncUploadBatch(kind, "rejected")
	if s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("%s upload rejected (%d rows)", kind, rows))
	}
}
