// Package redisprefs persists user preferences in Redis so selections
// survive restarts and are shared across instances. The in-memory store in
// repository/memory is the fallback when no Redis address is configured.
package redisprefs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"rabmap/internal/config"
	"rabmap/internal/domain/entities"
)

const keyPrefix = "rabmap:prefs:"

type PrefsRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects and pings, so a misconfigured Redis fails at startup rather
// than on the first user request.
func New(cfg config.RedisConfig) (*PrefsRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &PrefsRepository{client: client, ttl: cfg.KeyTTL}, nil
}

func (r *PrefsRepository) Get(ctx context.Context, clientID string) (entities.Prefs, error) {
	val, err := r.client.Get(ctx, keyPrefix+clientID).Result()
	if errors.Is(err, redis.Nil) {
		return entities.DefaultPrefs(), nil
	}
	if err != nil {
		return entities.DefaultPrefs(), err
	}

	var prefs entities.Prefs
	if err := json.Unmarshal([]byte(val), &prefs); err != nil {
		// A corrupt entry should not lock the user out of the map.
		return entities.DefaultPrefs(), nil
	}
	return prefs, nil
}

func (r *PrefsRepository) Set(ctx context.Context, clientID string, prefs entities.Prefs) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, keyPrefix+clientID, data, r.ttl).Err()
}

func (r *PrefsRepository) Close() error {
	return r.client.Close()
}
