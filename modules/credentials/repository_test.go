package credentials

import (
	"errors"
	"testing"

	domain "github.com/example/chat-sync-client/domain/chat"
)

func TestRepository_SaveLoadDelete(t *testing.T) {
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	repo := NewRepository(db, "work")

	if _, err := repo.Load(); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("Load() on empty db error = %v, want ErrNoCredential", err)
	}

	first := domain.Credential{Token: "token-1", MemberID: "member-1"}
	if err := repo.Save(first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	second := domain.Credential{Token: "token-2", MemberID: "member-1"}
	if err := repo.Save(second); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}

	got, err := repo.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != second {
		t.Errorf("Load() = %+v, want %+v", got, second)
	}

	var count int64
	db.Model(&credentialRecord{}).Count(&count)
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}

	other := NewRepository(db, "home")
	if _, err := other.Load(); !errors.Is(err, ErrNoCredential) {
		t.Errorf("Load() for other profile error = %v, want ErrNoCredential", err)
	}

	if err := repo.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Load(); !errors.Is(err, ErrNoCredential) {
		t.Errorf("Load() after Delete() error = %v, want ErrNoCredential", err)
	}
	if err := repo.Delete(); err != nil {
		t.Errorf("Delete() on missing row error = %v, want nil", err)
	}
}
