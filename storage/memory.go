package storage

import (
	"context"
	"sync"

	"nf-licencas.app/cloud/models"
)

type MemoryStorage struct {
	mu       sync.RWMutex
	Licenses map[string]models.License
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{Licenses: make(map[string]models.License)}
}

func (m *MemoryStorage) GetLicense(ctx context.Context, code string) (*models.License, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	license, exists := m.Licenses[code]
	if !exists {
		return nil, nil
	}
	return &license, nil
}

func (m *MemoryStorage) SaveLicense(ctx context.Context, license *models.License) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Licenses == nil {
		m.Licenses = make(map[string]models.License)
	}
	m.Licenses[license.Code] = *license
	return nil
}

func (m *MemoryStorage) UpdateLicenseStatus(ctx context.Context, code, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	license, exists := m.Licenses[code]
	if !exists {
		return ErrNotFound
	}
	license.Status = status
	m.Licenses[code] = license
	return nil
}

func (m *MemoryStorage) LicenseExists(ctx context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.Licenses[code]
	return exists, nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
