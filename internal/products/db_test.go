package products

import (
	"testing"

	"github.com/castanedo/poscore-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:products_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.AutoMigrate(&models.Client{}, &models.Product{}, &models.InventoryRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func mustCreateTestClient(t *testing.T, conn *gorm.DB) *models.Client {
	t.Helper()
	client := &models.Client{ID: uuid.New(), Name: "Client " + uuid.NewString()}
	if err := conn.Create(client).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}
	return client
}

func mustCreateTestProduct(t *testing.T, conn *gorm.DB, clientID uuid.UUID, barcode string) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:       uuid.New(),
		ClientID: clientID,
		Barcode:  barcode,
		Name:     "Product " + barcode,
		MRP:      decimal.NewFromInt(100),
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}
