package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
)

const defaultStateTTL = 24 * time.Hour

// RedisManager keeps user states in Redis so they survive restarts and are
// shared between bot replicas. Redis failures degrade to the None state.
type RedisManager struct {
	client  redis.Cmdable
	ttl     time.Duration
	timeout time.Duration
}

// NewRedisManager creates a Redis-backed state manager. Keys expire after ttl
// so abandoned conversations clean themselves up.
func NewRedisManager(client redis.Cmdable, ttl time.Duration) *RedisManager {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &RedisManager{client: client, ttl: ttl, timeout: 3 * time.Second}
}

func stateKey(userID int64) string {
	return fmt.Sprintf("glucose:bot:%d:state", userID)
}

func tempKey(userID int64) string {
	return fmt.Sprintf("glucose:bot:%d:temp", userID)
}

func (m *RedisManager) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.timeout)
}

// SetUserState sets the state for a user with TTL
func (m *RedisManager) SetUserState(userID int64, state string) {
	ctx, cancel := m.ctx()
	defer cancel()
	if err := m.client.Set(ctx, stateKey(userID), state, m.ttl).Err(); err != nil {
		logger.Warn("Failed to store bot state", "telegram_id", userID, "error", err)
	}
}

// GetUserState gets the state for a user
func (m *RedisManager) GetUserState(userID int64) string {
	ctx, cancel := m.ctx()
	defer cancel()
	val, err := m.client.Get(ctx, stateKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return None
	}
	if err != nil {
		logger.Warn("Failed to load bot state", "telegram_id", userID, "error", err)
		return None
	}
	return val
}

// ClearUserState clears the state for a user
func (m *RedisManager) ClearUserState(userID int64) {
	ctx, cancel := m.ctx()
	defer cancel()
	m.client.Del(ctx, stateKey(userID))
}

// SetTempData sets temporary data for a user
func (m *RedisManager) SetTempData(userID int64, key string, value any) {
	tempData := m.getTempDataMap(userID)
	if tempData == nil {
		tempData = make(map[string]any)
	}
	tempData[key] = value
	m.saveTempDataMap(userID, tempData)
}

// GetTempData gets temporary data for a user
func (m *RedisManager) GetTempData(userID int64, key string) (any, bool) {
	tempData := m.getTempDataMap(userID)
	if tempData == nil {
		return nil, false
	}
	value, exists := tempData[key]
	return value, exists
}

// ClearTempData clears all temporary data for a user
func (m *RedisManager) ClearTempData(userID int64) {
	ctx, cancel := m.ctx()
	defer cancel()
	m.client.Del(ctx, tempKey(userID))
}

func (m *RedisManager) getTempDataMap(userID int64) map[string]any {
	ctx, cancel := m.ctx()
	defer cancel()

	raw, err := m.client.Get(ctx, tempKey(userID)).Bytes()
	if err != nil {
		return nil
	}
	var tempData map[string]any
	if err := json.Unmarshal(raw, &tempData); err != nil {
		return nil
	}
	return tempData
}

func (m *RedisManager) saveTempDataMap(userID int64, tempData map[string]any) {
	data, err := json.Marshal(tempData)
	if err != nil {
		return
	}
	ctx, cancel := m.ctx()
	defer cancel()
	m.client.Set(ctx, tempKey(userID), data, m.ttl)
}
