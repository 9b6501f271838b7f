package storage

import (
	"context"
	"errors"
	"fmt"

	"nf-licencas.app/cloud/models"
)

var (
	ErrNotFound    = errors.New("license not found")
	ErrUnavailable = errors.New("license store unavailable")
)

// Storage is a flat key-value view over license documents keyed by code.
// Every operation touches a single key.
type Storage interface {
	// GetLicense returns nil, nil when no license has the code.
	GetLicense(ctx context.Context, code string) (*models.License, error)
	// SaveLicense creates or fully overwrites the document for license.Code.
	SaveLicense(ctx context.Context, license *models.License) error
	// UpdateLicenseStatus changes only the status field.
	UpdateLicenseStatus(ctx context.Context, code, status string) error
	LicenseExists(ctx context.Context, code string) (bool, error)

	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
