package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nf-licencas.app/cloud/models"
)

const redisKeyPrefix = "licenca:"

// RedisStorage keeps one hash per license so a status change never rewrites
// the other fields.
type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(ctx context.Context, opts *redis.Options) (*RedisStorage, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return &RedisStorage{client: client}, nil
}

func licenseKey(code string) string {
	return redisKeyPrefix + code
}

func (r *RedisStorage) GetLicense(ctx context.Context, code string) (*models.License, error) {
	fields, err := r.client.HGetAll(ctx, licenseKey(code)).Result()
	if err != nil {
		return nil, unavailable("get license", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	license := &models.License{
		Code:                 code,
		Email:                fields["email"],
		TaxID:                fields["cpf"],
		Status:               models.StatusOrDefault(fields["status"]),
		Plan:                 fields["plano"],
		PaymentOrigin:        fields["origem_pagamento"],
		PaymentTransactionID: fields["id_transacao_pagbank"],
	}

	if license.CreatedAt, err = parseRedisTime(fields["compra_em"]); err != nil {
		return nil, fmt.Errorf("license %s has malformed compra_em: %w", code, err)
	}
	if license.ExpiresAt, err = parseRedisTime(fields["expira_em"]); err != nil {
		return nil, fmt.Errorf("license %s has malformed expira_em: %w", code, err)
	}

	return license, nil
}

func (r *RedisStorage) SaveLicense(ctx context.Context, license *models.License) error {
	key := licenseKey(license.Code)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]interface{}{
			"email":                license.Email,
			"cpf":                  license.TaxID,
			"status":               license.Status,
			"compra_em":            license.CreatedAt.UTC().Format(time.RFC3339Nano),
			"expira_em":            license.ExpiresAt.UTC().Format(time.RFC3339Nano),
			"plano":                license.Plan,
			"origem_pagamento":     license.PaymentOrigin,
			"id_transacao_pagbank": license.PaymentTransactionID,
		})
		return nil
	})
	if err != nil {
		return unavailable("save license", err)
	}
	return nil
}

func (r *RedisStorage) UpdateLicenseStatus(ctx context.Context, code, status string) error {
	// HSETXX does not exist, so probe first; licenses are never deleted.
	exists, err := r.LicenseExists(ctx, code)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	if err := r.client.HSet(ctx, licenseKey(code), "status", status).Err(); err != nil {
		return unavailable("update license status", err)
	}
	return nil
}

func (r *RedisStorage) LicenseExists(ctx context.Context, code string) (bool, error) {
	n, err := r.client.Exists(ctx, licenseKey(code)).Result()
	if err != nil {
		return false, unavailable("probe license", err)
	}
	return n > 0, nil
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}

func parseRedisTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
