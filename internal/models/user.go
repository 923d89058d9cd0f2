// internal/models/user.go
package models

type User struct {
	BaseModel
	Email string   `json:"email" gorm:"size:255;uniqueIndex;not null"`
	Name  string   `json:"name" gorm:"size:255"`
	Role  UserRole `json:"role" gorm:"type:varchar(20);default:'customer';index"`

	// Relationships
	Orders []Order `json:"orders,omitempty" gorm:"foreignKey:UserID"`
}

func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}
