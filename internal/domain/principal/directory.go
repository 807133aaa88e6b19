package principal

import (
	"github.com/google/uuid"
)

// Profile represents the profiles table (internal users).
type Profile struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	FullName  string    `gorm:"type:text;not null"`
	AvatarURL *string   `gorm:"type:text"`
}

// ExternalParty represents the external_parties table (clients of the business).
type ExternalParty struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"type:text;not null"`
}

func (Profile) TableName() string {
	return "profiles"
}

func (ExternalParty) TableName() string {
	return "external_parties"
}
