// Package testutil holds sqlite-backed fixtures shared by the package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/bookshop-backend/internal/database"
	"github.com/javajoker/bookshop-backend/internal/models"
)

// NewTestDB opens a private in-memory sqlite database with the schema
// migrated. A single connection keeps the memory database alive and makes
// transactions serialise the way they would on one Postgres session.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func CreateUser(t testing.TB, db *gorm.DB, email string, role models.UserRole) *models.User {
	t.Helper()

	user := &models.User{Email: email, Name: "Test " + string(role), Role: role}
	require.NoError(t, db.Create(user).Error)
	return user
}

func File(format, language string, active bool) models.DigitalFile {
	return models.DigitalFile{
		Format:     format,
		Language:   language,
		FileName:   fmt.Sprintf("book-%s.%s", language, format),
		StorageKey: fmt.Sprintf("books/%s/%s.%s", uuid.NewString(), language, format),
		FileSize:   1024,
		IsActive:   active,
	}
}

func CreateBook(t testing.TB, db *gorm.DB, name string, files ...models.DigitalFile) *models.Book {
	t.Helper()

	book := &models.Book{
		Name:         name,
		Author:       "Test Author",
		CoverImage:   "/covers/" + name + ".jpg",
		DigitalFiles: files,
	}
	require.NoError(t, db.Create(book).Error)
	return book
}

// DigitalItem returns an unsaved digital line item for book.
func DigitalItem(book *models.Book) models.OrderItem {
	item := models.OrderItem{
		ProductName:  "ebook",
		IsDigital:    true,
		Price:        9.99,
		Quantity:     1,
		MaxDownloads: 5,
	}
	if book != nil {
		item.BookID = &book.ID
		item.ProductName = book.Name
	}
	return item
}

func PhysicalItem(name string) models.OrderItem {
	return models.OrderItem{
		ProductName:  name,
		IsDigital:    false,
		Price:        24.50,
		Quantity:     1,
		MaxDownloads: 5,
	}
}

func CreateOrder(t testing.TB, db *gorm.DB, user *models.User, number string, status models.OrderStatus, items ...models.OrderItem) *models.Order {
	t.Helper()

	order := &models.Order{
		OrderNumber: number,
		UserID:      user.ID,
		Status:      status,
		Items:       items,
	}
	require.NoError(t, db.Omit("User").Create(order).Error)
	return order
}
