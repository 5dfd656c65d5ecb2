package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stockpilot/stockpilot/internal/shared"
)

// resetTTL bounds how long a password-reset token stays valid.
const resetTTL = 30 * time.Minute

// ResetManager issues one-time password-reset tokens in Redis.
type ResetManager struct {
	client *redis.Client
}

// NewResetManager constructs a ResetManager.
func NewResetManager(client *redis.Client) *ResetManager {
	return &ResetManager{client: client}
}

// Issue creates a reset token for the user.
func (m *ResetManager) Issue(ctx context.Context, userID int64) (string, error) {
	token := uuid.NewString()
	if err := m.client.Set(ctx, resetKey(token), strconv.FormatInt(userID, 10), resetTTL).Err(); err != nil {
		return "", fmt.Errorf("auth: issue reset token: %w", err)
	}
	return token, nil
}

// Consume resolves and invalidates a reset token in one step, so each token
// resets at most one password.
func (m *ResetManager) Consume(ctx context.Context, token string) (int64, error) {
	raw, err := m.client.GetDel(ctx, resetKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, shared.ErrInvalidCredentials
		}
		return 0, fmt.Errorf("auth: consume reset token: %w", err)
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("auth: consume reset token: %w", err)
	}
	return userID, nil
}

func resetKey(token string) string {
	return "auth:reset:" + token
}
