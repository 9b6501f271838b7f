package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"nf-licencas.app/cloud/models"
	"nf-licencas.app/cloud/storage"
)

// TestStorage creates an empty memory storage
func TestStorage() *storage.MemoryStorage {
	return storage.NewMemoryStorage()
}

// CreateTestLicense creates an active license issued at createdAt and valid for 30 days
func CreateTestLicense(code, email string, createdAt time.Time) models.License {
	return models.License{
		Code:                 code,
		Email:                email,
		Status:               models.StatusActive,
		CreatedAt:            createdAt.UTC(),
		ExpiresAt:            createdAt.UTC().AddDate(0, 0, 30),
		Plan:                 models.DefaultPlan,
		PaymentOrigin:        models.PaymentOriginPagBank,
		PaymentTransactionID: "TX-" + code,
	}
}

// SetupTestData stores one active, one lazily expirable and one already expired license
func SetupTestData(s storage.Storage) error {
	ctx := context.Background()
	now := time.Now().UTC()

	active := CreateTestLicense("ACTV-0001", "active@example.com", now.Add(-24*time.Hour))
	stale := CreateTestLicense("STAL-0001", "stale@example.com", now.AddDate(0, 0, -40))
	expired := CreateTestLicense("EXPD-0001", "expired@example.com", now.AddDate(0, 0, -60))
	expired.Status = models.StatusExpired

	for _, license := range []models.License{active, stale, expired} {
		if err := s.SaveLicense(ctx, &license); err != nil {
			return fmt.Errorf("failed to save license %s: %w", license.Code, err)
		}
	}
	return nil
}

// RecordingStorage wraps a storage, counts writes and lets tests script failures
// and collision probes.
type RecordingStorage struct {
	storage.Storage

	mu            sync.Mutex
	Saves         int
	StatusUpdates []string
	Probes        []string

	// ExistsOverrides are consumed in order before falling through to the
	// wrapped storage.
	ExistsOverrides []bool

	GetErr    error
	SaveErr   error
	UpdateErr error
	ExistsErr error
}

func NewRecordingStorage(inner storage.Storage) *RecordingStorage {
	return &RecordingStorage{Storage: inner}
}

func (r *RecordingStorage) GetLicense(ctx context.Context, code string) (*models.License, error) {
	if r.GetErr != nil {
		return nil, r.GetErr
	}
	return r.Storage.GetLicense(ctx, code)
}

func (r *RecordingStorage) SaveLicense(ctx context.Context, license *models.License) error {
	r.mu.Lock()
	r.Saves++
	r.mu.Unlock()
	if r.SaveErr != nil {
		return r.SaveErr
	}
	return r.Storage.SaveLicense(ctx, license)
}

func (r *RecordingStorage) UpdateLicenseStatus(ctx context.Context, code, status string) error {
	r.mu.Lock()
	r.StatusUpdates = append(r.StatusUpdates, code+"="+status)
	r.mu.Unlock()
	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	return r.Storage.UpdateLicenseStatus(ctx, code, status)
}

func (r *RecordingStorage) LicenseExists(ctx context.Context, code string) (bool, error) {
	r.mu.Lock()
	r.Probes = append(r.Probes, code)
	var override *bool
	if len(r.ExistsOverrides) > 0 {
		v := r.ExistsOverrides[0]
		r.ExistsOverrides = r.ExistsOverrides[1:]
		override = &v
	}
	r.mu.Unlock()

	if r.ExistsErr != nil {
		return false, r.ExistsErr
	}
	if override != nil {
		return *override, nil
	}
	return r.Storage.LicenseExists(ctx, code)
}

// SequenceGenerator returns the given codes in order and then repeats the last one.
func SequenceGenerator(codes ...string) func() string {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		code := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return code
	}
}

// StubNotifier records deliveries and optionally fails them.
type StubNotifier struct {
	mu        sync.Mutex
	Delivered []models.License
	Err       error
}

func (n *StubNotifier) Deliver(ctx context.Context, license *models.License) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Delivered = append(n.Delivered, *license)
	return n.Err
}

// StorageTestSuite provides a standard test suite for storage implementations
type StorageTestSuite struct {
	Storage storage.Storage
	Cleanup func()
}

// RunStorageTestSuite runs the key-value contract every backend must honour
func RunStorageTestSuite(t *testing.T, suite StorageTestSuite) {
	if suite.Cleanup != nil {
		defer suite.Cleanup()
	}

	ctx := context.Background()
	created := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

	t.Run("GetMissing", func(t *testing.T) {
		license, err := suite.Storage.GetLicense(ctx, "NONE-0000")
		if err != nil {
			t.Errorf("Expected no error for missing license, got %v", err)
		}
		if license != nil {
			t.Errorf("Expected nil for missing license, got %v", license)
		}

		exists, err := suite.Storage.LicenseExists(ctx, "NONE-0000")
		if err != nil {
			t.Errorf("Expected no error probing missing license, got %v", err)
		}
		if exists {
			t.Error("Expected missing license to not exist")
		}
	})

	t.Run("SaveAndGet", func(t *testing.T) {
		license := CreateTestLicense("SAVE-0001", "save@example.com", created)
		license.TaxID = "12345678900"

		if err := suite.Storage.SaveLicense(ctx, &license); err != nil {
			t.Fatalf("Failed to save license: %v", err)
		}

		got, err := suite.Storage.GetLicense(ctx, "SAVE-0001")
		if err != nil {
			t.Fatalf("Failed to get license: %v", err)
		}
		if got == nil {
			t.Fatal("Expected license, got nil")
		}
		assertSameLicense(t, license, *got)

		exists, err := suite.Storage.LicenseExists(ctx, "SAVE-0001")
		if err != nil {
			t.Errorf("Failed to probe license: %v", err)
		}
		if !exists {
			t.Error("Expected saved license to exist")
		}
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		license := CreateTestLicense("OVER-0001", "first@example.com", created)
		license.TaxID = "999"
		if err := suite.Storage.SaveLicense(ctx, &license); err != nil {
			t.Fatalf("Failed to save license: %v", err)
		}

		replacement := CreateTestLicense("OVER-0001", "second@example.com", created)
		if err := suite.Storage.SaveLicense(ctx, &replacement); err != nil {
			t.Fatalf("Failed to overwrite license: %v", err)
		}

		got, err := suite.Storage.GetLicense(ctx, "OVER-0001")
		if err != nil || got == nil {
			t.Fatalf("Failed to get license: %v", err)
		}
		assertSameLicense(t, replacement, *got)
	})

	t.Run("UpdateStatusKeepsOtherFields", func(t *testing.T) {
		license := CreateTestLicense("UPDT-0001", "update@example.com", created)
		license.TaxID = "11122233344"
		if err := suite.Storage.SaveLicense(ctx, &license); err != nil {
			t.Fatalf("Failed to save license: %v", err)
		}

		if err := suite.Storage.UpdateLicenseStatus(ctx, "UPDT-0001", models.StatusExpired); err != nil {
			t.Fatalf("Failed to update status: %v", err)
		}

		got, err := suite.Storage.GetLicense(ctx, "UPDT-0001")
		if err != nil || got == nil {
			t.Fatalf("Failed to get license: %v", err)
		}

		license.Status = models.StatusExpired
		assertSameLicense(t, license, *got)
	})

	t.Run("UpdateStatusMissing", func(t *testing.T) {
		err := suite.Storage.UpdateLicenseStatus(ctx, "NONE-0001", models.StatusExpired)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}

		exists, err := suite.Storage.LicenseExists(ctx, "NONE-0001")
		if err != nil {
			t.Errorf("Failed to probe license: %v", err)
		}
		if exists {
			t.Error("Expected status update to not create a license")
		}
	})
}

func assertSameLicense(t *testing.T, want, got models.License) {
	t.Helper()

	if got.Code != want.Code {
		t.Errorf("Expected code %q, got %q", want.Code, got.Code)
	}
	if got.Email != want.Email {
		t.Errorf("Expected email %q, got %q", want.Email, got.Email)
	}
	if got.TaxID != want.TaxID {
		t.Errorf("Expected tax id %q, got %q", want.TaxID, got.TaxID)
	}
	if got.Status != want.Status {
		t.Errorf("Expected status %q, got %q", want.Status, got.Status)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("Expected created_at %v, got %v", want.CreatedAt, got.CreatedAt)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("Expected expires_at %v, got %v", want.ExpiresAt, got.ExpiresAt)
	}
	if got.Plan != want.Plan {
		t.Errorf("Expected plan %q, got %q", want.Plan, got.Plan)
	}
	if got.PaymentOrigin != want.PaymentOrigin {
		t.Errorf("Expected payment origin %q, got %q", want.PaymentOrigin, got.PaymentOrigin)
	}
	if got.PaymentTransactionID != want.PaymentTransactionID {
		t.Errorf("Expected transaction id %q, got %q", want.PaymentTransactionID, got.PaymentTransactionID)
	}
}
