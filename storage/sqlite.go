package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"nf-licencas.app/cloud/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

type SQLiteStorage struct {
	db   *sql.DB
	path string
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers anyway; a single connection also keeps
	// ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{
		db:   db,
		path: path,
	}

	if err := storage.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) migrate() error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

const licenseColumns = `code, email, tax_id, status, created_at, expires_at, plan, payment_origin, payment_transaction_id`

func (s *SQLiteStorage) GetLicense(ctx context.Context, code string) (*models.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE code = ?`

	var license models.License
	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&license.Code,
		&license.Email,
		&license.TaxID,
		&license.Status,
		&license.CreatedAt,
		&license.ExpiresAt,
		&license.Plan,
		&license.PaymentOrigin,
		&license.PaymentTransactionID,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get license", err)
	}

	license.Status = models.StatusOrDefault(license.Status)
	license.CreatedAt = license.CreatedAt.UTC()
	license.ExpiresAt = license.ExpiresAt.UTC()
	return &license, nil
}

func (s *SQLiteStorage) SaveLicense(ctx context.Context, license *models.License) error {
	query := `INSERT OR REPLACE INTO licenses (` + licenseColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		license.Code,
		license.Email,
		license.TaxID,
		license.Status,
		license.CreatedAt.UTC(),
		license.ExpiresAt.UTC(),
		license.Plan,
		license.PaymentOrigin,
		license.PaymentTransactionID,
	)
	if err != nil {
		return unavailable("save license", err)
	}

	return nil
}

func (s *SQLiteStorage) UpdateLicenseStatus(ctx context.Context, code, status string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE licenses SET status = ? WHERE code = ?`, status, code)
	if err != nil {
		return unavailable("update license status", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return unavailable("update license status", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *SQLiteStorage) LicenseExists(ctx context.Context, code string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM licenses WHERE code = ?`, code).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, unavailable("probe license", err)
	}
	return true, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
