package credentials

import (
	"errors"
	"fmt"
	"time"

	domain "github.com/example/chat-sync-client/domain/chat"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// credentialRecord is the persisted form of a credential, one row per profile.
type credentialRecord struct {
	Profile   string `gorm:"primaryKey;type:text"`
	Token     string `gorm:"not null;type:text"`
	MemberID  string `gorm:"not null;type:text"`
	UpdatedAt time.Time
}

// TableName returns the table name for credential records.
func (credentialRecord) TableName() string {
	return "credentials"
}

// OpenDB opens the SQLite database at path and migrates the schema.
func OpenDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&credentialRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// Repository persists the credential of one profile using GORM.
type Repository struct {
	db      *gorm.DB
	profile string
}

// NewRepository creates a Repository for the given profile.
func NewRepository(db *gorm.DB, profile string) *Repository {
	if profile == "" {
		profile = "default"
	}
	return &Repository{
		db:      db,
		profile: profile,
	}
}

// Load returns the stored credential or ErrNoCredential.
func (r *Repository) Load() (domain.Credential, error) {
	var rec credentialRecord
	result := r.db.First(&rec, "profile = ?", r.profile)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return domain.Credential{}, ErrNoCredential
		}
		return domain.Credential{}, result.Error
	}
	return domain.Credential{Token: rec.Token, MemberID: rec.MemberID}, nil
}

// Save upserts the credential.
func (r *Repository) Save(cred domain.Credential) error {
	rec := credentialRecord{
		Profile:  r.profile,
		Token:    cred.Token,
		MemberID: cred.MemberID,
	}
	return r.db.Save(&rec).Error
}

// Delete removes the stored credential. Deleting a missing row is not an error.
func (r *Repository) Delete() error {
	return r.db.Delete(&credentialRecord{}, "profile = ?", r.profile).Error
}
