// Package store persists per-asset chain settings. The board core itself
// owns no on-disk state, this is the settings collaborator the chain clients
// are refreshed from.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/catalogfi/swapboard/pkg/chainclient"
	"github.com/catalogfi/swapboard/pkg/model"
)

var ErrNotFound = errors.New("settings not found")

type SettingsStore interface {
	// Settings returns the stored settings for the asset, ErrNotFound when
	// the asset was never configured.
	Settings(asset model.Asset) (chainclient.Settings, error)

	PutSettings(asset model.Asset, settings chainclient.Settings) error
}

type redisStore struct {
	client *redis.Client
}

func NewRedisStore(redisURL string) (SettingsStore, error) {
	parsedURL, err := url.Parse(redisURL)
	if err != nil {
		return nil, err
	}
	redisPassword, _ := parsedURL.User.Password()
	client := redis.NewClient(&redis.Options{
		Addr:     parsedURL.Host,
		Password: redisPassword,
		DB:       0, // Use default DB.
	})
	return redisStore{client: client}, nil
}

func (rs redisStore) Settings(asset model.Asset) (chainclient.Settings, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := rs.client.Get(ctx, settingsKey(asset)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return chainclient.Settings{}, ErrNotFound
		}
		return chainclient.Settings{}, err
	}
	var settings chainclient.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return chainclient.Settings{}, err
	}
	return settings, nil
}

func (rs redisStore) PutSettings(asset model.Asset, settings chainclient.Settings) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return rs.client.Set(ctx, settingsKey(asset), data, 0).Err()
}

func settingsKey(asset model.Asset) string {
	return fmt.Sprintf("settings-%v", asset)
}
