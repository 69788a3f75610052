package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ledgerdesk/internal/models"
)

// CacheService caches backend entity name lists between commands so the
// fuzzy resolver does not hit the gateway for every lookup.
type CacheService interface {
	GetEntityList(ctx context.Context, kind string) ([]models.EntityRef, error)
	SetEntityList(ctx context.Context, kind string, refs []models.EntityRef, ttl time.Duration) error
	InvalidateEntityList(ctx context.Context, kind string) error

	// Report basis is cheap to cache; it only changes with company
	// preferences.
	GetReportBasis(ctx context.Context) (string, error)
	SetReportBasis(ctx context.Context, basis string, ttl time.Duration) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", pingErr, parsedAddr)
	}

	return &redisCacheService{client: client}
}

func entityListKey(kind string) string {
	return fmt.Sprintf("ledgerdesk:entities:%s", kind)
}

func (r *redisCacheService) GetEntityList(ctx context.Context, kind string) ([]models.EntityRef, error) {
	data, err := r.client.Get(ctx, entityListKey(kind)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var refs []models.EntityRef
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *redisCacheService) SetEntityList(ctx context.Context, kind string, refs []models.EntityRef, ttl time.Duration) error {
	data, err := json.Marshal(refs)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, entityListKey(kind), data, ttl).Err()
}

func (r *redisCacheService) InvalidateEntityList(ctx context.Context, kind string) error {
	return r.client.Del(ctx, entityListKey(kind)).Err()
}

func (r *redisCacheService) GetReportBasis(ctx context.Context) (string, error) {
	basis, err := r.client.Get(ctx, "ledgerdesk:report-basis").Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	return basis, nil
}

func (r *redisCacheService) SetReportBasis(ctx context.Context, basis string, ttl time.Duration) error {
	return r.client.Set(ctx, "ledgerdesk:report-basis", basis, ttl).Err()
}
