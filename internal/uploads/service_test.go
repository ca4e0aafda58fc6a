package uploads

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/castanedo/poscore-backend/internal/clients"
	"github.com/castanedo/poscore-backend/internal/inventory"
	"github.com/castanedo/poscore-backend/internal/products"
	"github.com/castanedo/poscore-backend/pkg/config"
	pkgdb "github.com/castanedo/poscore-backend/pkg/db"
	"github.com/castanedo/poscore-backend/pkg/db/models"
	pkgerrors "github.com/castanedo/poscore-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	conn    *gorm.DB
	service *Service
	client  models.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:uploads_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	err = conn.AutoMigrate(&models.Client{}, &models.Product{}, &models.InventoryRecord{})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	client := models.Client{ID: uuid.New(), Name: "Client " + uuid.NewString()}
	if err := conn.Create(&client).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}

	productRepo := products.NewRepository(conn)
	service, err := NewService(
		pkgdb.NewFromConn(conn),
		clients.NewRepository(conn),
		productRepo,
		products.NewResolver(productRepo),
		inventory.NewLedger(conn),
		config.UploadConfig{MaxRows: 100},
		nil,
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{conn: conn, service: service, client: client}
}

func (f *fixture) seedProduct(t *testing.T, barcode string, stock int) models.Product {
	t.Helper()
	product := models.Product{
		ID:       uuid.New(),
		ClientID: f.client.ID,
		Barcode:  barcode,
		Name:     "Product " + barcode,
		MRP:      decimal.NewFromInt(80),
	}
	if err := f.conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	record := models.InventoryRecord{ID: uuid.New(), ProductID: product.ID, Quantity: stock}
	if err := f.conn.Create(&record).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return product
}

func (f *fixture) tableCount(t *testing.T, model any) int64 {
	t.Helper()
	var count int64
	if err := f.conn.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return count
}

func rejectedRows(t *testing.T, err error) []RowError {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected row details, got %v", typed.Details())
	}
	rows, ok := details["rows"].([]RowError)
	if !ok {
		t.Fatalf("expected row errors, got %v", details["rows"])
	}
	return rows
}

func TestUploadProductsCommitsCleanBatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	file := "barcode\tclient_id\tname\tmrp\timage_url\n" +
		fmt.Sprintf("B1\t%s\tSoap\t45.50\thttps://img.example/soap.png\n", f.client.ID) +
		fmt.Sprintf("B2\t%s\tShampoo\t120\t\n", f.client.ID)

	created, err := f.service.UploadProducts(context.Background(), strings.NewReader(file))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 products, got %d", len(created))
	}
	if created[0].ImageURL == nil || *created[0].ImageURL != "https://img.example/soap.png" {
		t.Fatalf("image url not kept: %v", created[0].ImageURL)
	}
	if created[1].ImageURL != nil {
		t.Fatalf("blank image url should stay nil")
	}
	if !created[0].MRP.Equal(decimal.RequireFromString("45.50")) {
		t.Fatalf("unexpected mrp: %s", created[0].MRP)
	}

	// every new product starts with a zero-quantity ledger record
	for _, product := range created {
		var record models.InventoryRecord
		if err := f.conn.First(&record, "product_id = ?", product.ID).Error; err != nil {
			t.Fatalf("ledger record for %s: %v", product.Barcode, err)
		}
		if record.Quantity != 0 {
			t.Fatalf("expected zero stock, got %d", record.Quantity)
		}
	}
}

func TestUploadProductsRejectsWholeBatchOnUnknownClient(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	missingClient := uuid.New()

	file := "barcode\tclient_id\tname\tmrp\timage_url\n" +
		fmt.Sprintf("B1\t%s\tSoap\t45.50\t\n", f.client.ID) +
		fmt.Sprintf("B2\t%s\tShampoo\t120\t\n", missingClient) +
		fmt.Sprintf("B3\t%s\tTowel\t300\t\n", f.client.ID)

	_, err := f.service.UploadProducts(context.Background(), strings.NewReader(file))
	rows := rejectedRows(t, err)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row error, got %v", rows)
	}
	if rows[0].Row != 2 || rows[0].Field != "client_id" {
		t.Fatalf("unexpected row error: %+v", rows[0])
	}

	// valid rows from the same file must not be persisted
	if count := f.tableCount(t, &models.Product{}); count != 0 {
		t.Fatalf("expected no products, found %d", count)
	}
	if count := f.tableCount(t, &models.InventoryRecord{}); count != 0 {
		t.Fatalf("expected no ledger records, found %d", count)
	}
}

func TestUploadProductsFlagsEveryDuplicateOccurrence(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	file := "barcode\tclient_id\tname\tmrp\timage_url\n" +
		fmt.Sprintf("B1\t%s\tSoap\t45.50\t\n", f.client.ID) +
		fmt.Sprintf("B2\t%s\tShampoo\t120\t\n", f.client.ID) +
		fmt.Sprintf("B1\t%s\tSoap Again\t46\t\n", f.client.ID)

	_, err := f.service.UploadProducts(context.Background(), strings.NewReader(file))
	rows := rejectedRows(t, err)
	if len(rows) != 2 {
		t.Fatalf("expected both duplicate rows flagged, got %v", rows)
	}
	if rows[0].Row != 1 || rows[1].Row != 3 {
		t.Fatalf("unexpected rows flagged: %v", rows)
	}
	if count := f.tableCount(t, &models.Product{}); count != 0 {
		t.Fatalf("expected no products, found %d", count)
	}
}

func TestUploadProductsRejectsPersistedBarcode(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seedProduct(t, "B1", 3)

	file := "barcode\tclient_id\tname\tmrp\timage_url\n" +
		fmt.Sprintf("B1\t%s\tSoap\t45.50\t\n", f.client.ID)

	_, err := f.service.UploadProducts(context.Background(), strings.NewReader(file))
	rows := rejectedRows(t, err)
	if len(rows) != 1 || rows[0].Field != "barcode" {
		t.Fatalf("unexpected row errors: %v", rows)
	}
}

func TestUploadProductsCollectsAllErrorClasses(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	file := "barcode\tclient_id\tname\tmrp\timage_url\n" +
		fmt.Sprintf("\t%s\tSoap\t45.50\t\n", f.client.ID) +
		fmt.Sprintf("B2\t%s\tShampoo\tcheap\t\n", f.client.ID) +
		"B3\tnot-a-uuid\tTowel\t300\t\n" +
		fmt.Sprintf("B4\t%s\t\t12\t\n", f.client.ID)

	_, err := f.service.UploadProducts(context.Background(), strings.NewReader(file))
	rows := rejectedRows(t, err)
	if len(rows) != 4 {
		t.Fatalf("expected 4 row errors, got %v", rows)
	}
	wantFields := []string{"barcode", "mrp", "client_id", "name"}
	for i, want := range wantFields {
		if rows[i].Row != i+1 || rows[i].Field != want {
			t.Fatalf("row %d: expected field %q, got %+v", i+1, want, rows[i])
		}
	}
}

func TestUploadInventoryAppliesCleanBatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	existing := f.seedProduct(t, "B1", 3)
	fresh := f.seedProduct(t, "B2", 0)

	file := "barcode\tquantity\nB1\t9\nB2\t4\n"
	records, err := f.service.UploadInventory(context.Background(), strings.NewReader(file))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	byProduct := map[uuid.UUID]models.InventoryRecord{}
	for _, record := range records {
		byProduct[record.ProductID] = record
	}
	if byProduct[existing.ID].Quantity != 9 {
		t.Fatalf("expected quantity 9, got %d", byProduct[existing.ID].Quantity)
	}
	if byProduct[existing.ID].Version != 1 {
		t.Fatalf("expected version bump, got %d", byProduct[existing.ID].Version)
	}
	if byProduct[fresh.ID].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", byProduct[fresh.ID].Quantity)
	}
}

func TestUploadInventoryDuplicateBarcodeRejectsFile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	product := f.seedProduct(t, "B1", 3)
	f.seedProduct(t, "B2", 5)

	file := "barcode\tquantity\nB1\t9\nB2\t6\nB1\t2\n"
	_, err := f.service.UploadInventory(context.Background(), strings.NewReader(file))
	rows := rejectedRows(t, err)
	if len(rows) != 2 {
		t.Fatalf("expected both occurrences flagged, got %v", rows)
	}
	if rows[0].Row != 1 || rows[1].Row != 3 {
		t.Fatalf("unexpected rows flagged: %v", rows)
	}

	// zero rows applied, including the unambiguous B2 line
	var record models.InventoryRecord
	if err := f.conn.First(&record, "product_id = ?", product.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if record.Quantity != 3 || record.Version != 0 {
		t.Fatalf("duplicate batch must not touch stock: %+v", record)
	}
}

func TestUploadInventoryUnknownBarcodeRejectsFile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	product := f.seedProduct(t, "B1", 3)

	file := "barcode\tquantity\nB1\t9\nGHOST\t4\n"
	_, err := f.service.UploadInventory(context.Background(), strings.NewReader(file))
	rows := rejectedRows(t, err)
	if len(rows) != 1 || rows[0].Row != 2 || rows[0].Field != "barcode" {
		t.Fatalf("unexpected row errors: %v", rows)
	}

	var record models.InventoryRecord
	if err := f.conn.First(&record, "product_id = ?", product.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if record.Quantity != 3 {
		t.Fatalf("rejected batch must not touch stock, got %d", record.Quantity)
	}
}

func TestUploadInventoryRejectsBadQuantities(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seedProduct(t, "B1", 3)
	f.seedProduct(t, "B2", 3)

	file := "barcode\tquantity\nB1\t-2\nB2\tmany\n"
	_, err := f.service.UploadInventory(context.Background(), strings.NewReader(file))
	rows := rejectedRows(t, err)
	if len(rows) != 2 {
		t.Fatalf("expected 2 row errors, got %v", rows)
	}
	for _, row := range rows {
		if row.Field != "quantity" {
			t.Fatalf("unexpected field flagged: %+v", row)
		}
	}
}
