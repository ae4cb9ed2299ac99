package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StaffRole is the safeguarding responsibility a staff account holds.
type StaffRole string

const (
	RoleDSL     StaffRole = "DSL"
	RoleTeacher StaffRole = "TEACHER"
	RoleAdmin   StaffRole = "ADMIN"
)

// StaffMember is a staff directory entry.
type StaffMember struct {
	ID       string    `gorm:"primaryKey" json:"id"`
	Name     string    `gorm:"type:text" json:"name"`
	Email    string    `gorm:"type:text;uniqueIndex" json:"email"`
	Role     StaffRole `gorm:"type:text;not null;index" json:"role"`
	IsActive bool      `gorm:"not null;default:true;index" json:"is_active"`
	// TelegramChatID is set when the staff member has linked the alert bot.
	TelegramChatID *int64 `gorm:"index" json:"telegram_chat_id,omitempty"`
}

// BeforeCreate generates a UUID for the staff member if ID is not already set.
func (s *StaffMember) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return
}
