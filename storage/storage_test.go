package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"nf-licencas.app/cloud/internal/testutil"
	"nf-licencas.app/cloud/models"
	"nf-licencas.app/cloud/storage"
)

func TestMemoryStorage_Contract(t *testing.T) {
	testutil.RunStorageTestSuite(t, testutil.StorageTestSuite{
		Storage: storage.NewMemoryStorage(),
	})
}

func TestFileStorage_Contract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "licencas.json")
	fs, err := storage.NewFileStorage(path)
	if err != nil {
		t.Fatalf("Failed to create file storage: %v", err)
	}

	testutil.RunStorageTestSuite(t, testutil.StorageTestSuite{Storage: fs})
}

func TestSQLiteStorage_Contract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "licencas.db")
	db, err := storage.NewSQLiteStorage(path)
	if err != nil {
		t.Fatalf("Failed to create SQLite storage: %v", err)
	}

	testutil.RunStorageTestSuite(t, testutil.StorageTestSuite{
		Storage: db,
		Cleanup: func() { db.Close() },
	})
}

func TestRedisStorage_Contract(t *testing.T) {
	mr := miniredis.RunT(t)

	rs, err := storage.NewRedisStorage(context.Background(), &redis.Options{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("Failed to create Redis storage: %v", err)
	}

	testutil.RunStorageTestSuite(t, testutil.StorageTestSuite{
		Storage: rs,
		Cleanup: func() { rs.Close() },
	})
}

func TestFileStorage_PersistsAcrossReloads(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "licencas.json")

	fs, err := storage.NewFileStorage(path)
	if err != nil {
		t.Fatalf("Failed to create file storage: %v", err)
	}

	license := testutil.CreateTestLicense("FILE-0001", "file@example.com", time.Now())
	if err := fs.SaveLicense(ctx, &license); err != nil {
		t.Fatalf("Failed to save license: %v", err)
	}
	if err := fs.UpdateLicenseStatus(ctx, "FILE-0001", models.StatusExpired); err != nil {
		t.Fatalf("Failed to update status: %v", err)
	}

	reloaded, err := storage.NewFileStorage(path)
	if err != nil {
		t.Fatalf("Failed to reload file storage: %v", err)
	}

	got, err := reloaded.GetLicense(ctx, "FILE-0001")
	if err != nil {
		t.Fatalf("Failed to get license: %v", err)
	}
	if got == nil {
		t.Fatal("Expected license after reload, got nil")
	}
	if got.Status != models.StatusExpired {
		t.Errorf("Expected status %s after reload, got %s", models.StatusExpired, got.Status)
	}
	if got.Email != "file@example.com" {
		t.Errorf("Expected email file@example.com, got %s", got.Email)
	}
}

func TestFileStorage_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "licencas.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := storage.NewFileStorage(path); err == nil {
		t.Error("Expected error for invalid JSON file")
	}
}

func TestFileStorage_WriteFailureIsUnavailable(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "gone")
	if err := os.Mkdir(dir, 0o700); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	fs, err := storage.NewFileStorage(filepath.Join(dir, "licencas.json"))
	if err != nil {
		t.Fatalf("Failed to create file storage: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("Failed to remove dir: %v", err)
	}

	license := testutil.CreateTestLicense("FAIL-0001", "fail@example.com", time.Now())
	err = fs.SaveLicense(ctx, &license)
	if !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}

	exists, _ := fs.LicenseExists(ctx, "FAIL-0001")
	if exists {
		t.Error("Expected failed save to be rolled back")
	}
}

func TestSQLiteStorage_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "licencas.db")

	db, err := storage.NewSQLiteStorage(path)
	if err != nil {
		t.Fatalf("Failed to create SQLite storage: %v", err)
	}
	license := testutil.CreateTestLicense("SQLT-0001", "sqlite@example.com", time.Now())
	if err := db.SaveLicense(ctx, &license); err != nil {
		t.Fatalf("Failed to save license: %v", err)
	}
	db.Close()

	// Running the migrations a second time must be a no-op.
	reopened, err := storage.NewSQLiteStorage(path)
	if err != nil {
		t.Fatalf("Failed to reopen SQLite storage: %v", err)
	}
	defer reopened.Close()

	exists, err := reopened.LicenseExists(ctx, "SQLT-0001")
	if err != nil {
		t.Fatalf("Failed to probe license: %v", err)
	}
	if !exists {
		t.Error("Expected license to survive reopen")
	}
}

func TestSQLiteStorage_ClosedIsUnavailable(t *testing.T) {
	db, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "licencas.db"))
	if err != nil {
		t.Fatalf("Failed to create SQLite storage: %v", err)
	}
	db.Close()

	_, err = db.GetLicense(context.Background(), "ANY-0001")
	if !errors.Is(err, storage.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

func TestRedisStorage_ServerDownIsUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)

	rs, err := storage.NewRedisStorage(context.Background(), &redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	if err != nil {
		t.Fatalf("Failed to create Redis storage: %v", err)
	}
	defer rs.Close()

	mr.Close()

	_, err = rs.LicenseExists(context.Background(), "ANY-0001")
	if !errors.Is(err, storage.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

func TestNewRedisStorage_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := storage.NewRedisStorage(context.Background(), &redis.Options{Addr: addr, MaxRetries: -1})
	if err == nil {
		t.Error("Expected error connecting to stopped redis")
	}
}

func TestRedisStorage_StatusUpdateTouchesOnlyStatus(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	rs, err := storage.NewRedisStorage(ctx, &redis.Options{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("Failed to create Redis storage: %v", err)
	}
	defer rs.Close()

	license := testutil.CreateTestLicense("REDI-0001", "redis@example.com", time.Now())
	if err := rs.SaveLicense(ctx, &license); err != nil {
		t.Fatalf("Failed to save license: %v", err)
	}

	// A field written by hand on the document must survive the update.
	mr.HSet("licenca:REDI-0001", "observacao", "manual")

	if err := rs.UpdateLicenseStatus(ctx, "REDI-0001", models.StatusExpired); err != nil {
		t.Fatalf("Failed to update status: %v", err)
	}

	if got := mr.HGet("licenca:REDI-0001", "status"); got != models.StatusExpired {
		t.Errorf("Expected status %s, got %s", models.StatusExpired, got)
	}
	if got := mr.HGet("licenca:REDI-0001", "observacao"); got != "manual" {
		t.Errorf("Expected manual field to survive, got %q", got)
	}
}

func TestRedisStorage_MissingStatusReadsActive(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	rs, err := storage.NewRedisStorage(ctx, &redis.Options{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("Failed to create Redis storage: %v", err)
	}
	defer rs.Close()

	license := testutil.CreateTestLicense("NOST-0001", "nostatus@example.com", time.Now())
	if err := rs.SaveLicense(ctx, &license); err != nil {
		t.Fatalf("Failed to save license: %v", err)
	}
	mr.HDel("licenca:NOST-0001", "status")

	got, err := rs.GetLicense(ctx, "NOST-0001")
	if err != nil || got == nil {
		t.Fatalf("Failed to get license: %v", err)
	}
	if got.Status != models.StatusActive {
		t.Errorf("Expected missing status to read as %s, got %q", models.StatusActive, got.Status)
	}
}

func TestFileStorage_MissingStatusReadsActive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "licencas.json")
	doc := `[{"codigo":"NOST-0002","email":"nostatus@example.com","compra_em":"2025-03-01T10:00:00Z","expira_em":"2025-03-31T10:00:00Z"}]`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	fs, err := storage.NewFileStorage(path)
	if err != nil {
		t.Fatalf("Failed to load file storage: %v", err)
	}

	got, err := fs.GetLicense(context.Background(), "NOST-0002")
	if err != nil || got == nil {
		t.Fatalf("Failed to get license: %v", err)
	}
	if got.Status != models.StatusActive {
		t.Errorf("Expected missing status to read as %s, got %q", models.StatusActive, got.Status)
	}
}
