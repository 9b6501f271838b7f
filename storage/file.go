package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"nf-licencas.app/cloud/internal/logger"
	"nf-licencas.app/cloud/models"
)

// FileStorage keeps every license in memory and rewrites the whole JSON file
// on each write. Meant for single-instance deployments with few licenses.
type FileStorage struct {
	mu       sync.RWMutex
	filepath string
	licenses map[string]models.License
}

func NewFileStorage(path string) (*FileStorage, error) {
	fs := &FileStorage{
		filepath: path,
		licenses: make(map[string]models.License),
	}
	err := fs.loadFromFile()
	return fs, err
}

func (f *FileStorage) loadFromFile() error {
	file, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("License file does not exist, starting with empty store", map[string]interface{}{
				"path": f.filepath,
			})
			return nil
		}
		return err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Warn("Failed to close license file", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	var licenses []models.License
	if err := json.NewDecoder(file).Decode(&licenses); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	for _, license := range licenses {
		license.Status = models.StatusOrDefault(license.Status)
		f.licenses[license.Code] = license
	}

	return nil
}

// writeToFile must be called with the write lock held.
func (f *FileStorage) writeToFile() error {
	licenses := make([]models.License, 0, len(f.licenses))
	for _, license := range f.licenses {
		licenses = append(licenses, license)
	}
	sort.Slice(licenses, func(i, j int) bool { return licenses[i].Code < licenses[j].Code })

	data, err := json.MarshalIndent(licenses, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.filepath), ".licencas-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), f.filepath)
}

func (f *FileStorage) GetLicense(ctx context.Context, code string) (*models.License, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	license, exists := f.licenses[code]
	if !exists {
		return nil, nil
	}
	return &license, nil
}

func (f *FileStorage) SaveLicense(ctx context.Context, license *models.License) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	previous, existed := f.licenses[license.Code]
	f.licenses[license.Code] = *license

	if err := f.writeToFile(); err != nil {
		if existed {
			f.licenses[license.Code] = previous
		} else {
			delete(f.licenses, license.Code)
		}
		return unavailable("save license", err)
	}
	return nil
}

func (f *FileStorage) UpdateLicenseStatus(ctx context.Context, code, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	license, exists := f.licenses[code]
	if !exists {
		return ErrNotFound
	}

	previous := license.Status
	license.Status = status
	f.licenses[code] = license

	if err := f.writeToFile(); err != nil {
		license.Status = previous
		f.licenses[code] = license
		return unavailable("update license status", err)
	}
	return nil
}

func (f *FileStorage) LicenseExists(ctx context.Context, code string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, exists := f.licenses[code]
	return exists, nil
}

func (f *FileStorage) Close() error {
	return nil
}
