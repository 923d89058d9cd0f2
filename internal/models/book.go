// internal/models/book.go
package models

import (
	"github.com/google/uuid"
)

type Book struct {
	BaseModel
	Name       string `json:"name" gorm:"size:255;not null"`
	Author     string `json:"author" gorm:"size:255"`
	CoverImage string `json:"cover_image" gorm:"size:500"`

	// Relationships
	DigitalFiles []DigitalFile `json:"digital_files,omitempty" gorm:"foreignKey:BookID"`
}

// DigitalFile is one downloadable rendition of a book, one per format and
// language. Inactive files are kept for history but never issued.
type DigitalFile struct {
	BaseModel
	BookID     uuid.UUID `json:"book_id" gorm:"type:uuid;not null;index"`
	Format     string    `json:"format" gorm:"size:20;not null"`
	Language   string    `json:"language" gorm:"size:10;not null;index"`
	FileName   string    `json:"file_name" gorm:"size:255;not null"`
	StorageKey string    `json:"-" gorm:"size:500;not null"`
	FileSize   int64     `json:"file_size"`
	IsActive   bool      `json:"is_active" gorm:"not null;index"`

	// Relationships
	Book *Book `json:"book,omitempty" gorm:"foreignKey:BookID"`
}
