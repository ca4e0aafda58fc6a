package orders

import (
	"context"
	"fmt"

	"github.com/castanedo/poscore-backend/pkg/db/models"
	pkgerrors "github.com/castanedo/poscore-backend/pkg/errors"
	"github.com/castanedo/poscore-backend/pkg/logger"
	"github.com/castanedo/poscore-backend/pkg/metrics"
	"github.com/castanedo/poscore-backend/pkg/validation"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type barcodeResolver interface {
	Resolve(ctx context.Context, barcodes []string) (map[string]uuid.UUID, error)
}

type stockLedger interface {
	ValidateAvailability(ctx context.Context, productID uuid.UUID, requiredQty int) error
	Reduce(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// Service turns a submitted list of barcoded lines into a committed order.
// The whole request is one transaction: a failed reduction on line N rolls
// back the header and the reductions of lines 1..N-1.
type Service struct {
	repo     Repository
	resolver barcodeResolver
	ledger   stockLedger
	tx       txRunner
	metrics  *metrics.EngineMetrics
	logg     *logger.Logger
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, resolver barcodeResolver, ledger stockLedger, tx txRunner, m *metrics.EngineMetrics, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("barcode resolver required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Service{
		repo:     repo,
		resolver: resolver,
		ledger:   ledger,
		tx:       tx,
		metrics:  m,
		logg:     logg,
	}, nil
}

// Create runs the fulfillment pipeline for one submission.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	order, err := s.create(ctx, input)
	if err != nil {
		s.metrics.IncOrderRejected(string(pkgerrors.As(err).Code()))
		return nil, err
	}
	s.metrics.IncOrderCreated()
	return order, nil
}

func (s *Service) create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	barcodes := make([]string, 0, len(input.Lines))
	for _, line := range input.Lines {
		barcodes = append(barcodes, line.Barcode)
	}
	resolved, err := s.resolver.Resolve(ctx, barcodes)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, barcode := range barcodes {
		if _, ok := resolved[barcode]; !ok {
			missing = append(missing, barcode)
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown barcodes in order").
			WithDetails(map[string]any{"barcodes": missing})
	}

	// Advisory pre-check: cheap fail-fast before anything is written. The
	// authoritative check is the conditional decrement below.
	for _, line := range input.Lines {
		if err := s.ledger.ValidateAvailability(ctx, resolved[line.Barcode], line.Quantity); err != nil {
			return nil, err
		}
	}

	order := &models.Order{ID: uuid.New()}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order header")
		}
		for _, line := range input.Lines {
			productID := resolved[line.Barcode]
			if err := s.ledger.Reduce(ctx, tx, productID, line.Quantity); err != nil {
				return err
			}
			orderLine := &models.OrderLine{
				ID:        uuid.New(),
				OrderID:   order.ID,
				ProductID: productID,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
			}
			if err := repo.CreateOrderLine(ctx, orderLine); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order line")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	committed, err := s.repo.FindOrderWithLines(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading committed order")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, committed.ID.String()), "order committed")
	}
	return committed, nil
}

func (s *Service) validateInput(input CreateInput) error {
	if err := validation.Struct(input); err != nil {
		return err
	}
	details := map[string]string{}
	for i, line := range input.Lines {
		if !line.UnitPrice.IsPositive() {
			details[fmt.Sprintf("lines[%d].unit_price", i)] = "must be greater than 0"
		}
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return nil
}
