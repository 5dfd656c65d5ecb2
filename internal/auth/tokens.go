// Package auth issues and resolves opaque bearer tokens backed by Redis.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stockpilot/stockpilot/internal/shared"
)

// TokenStore keeps issued tokens in Redis with a sliding expiry. Tokens are
// opaque random strings; everything the request layer needs about the actor
// is stored alongside, so resolving a token costs one Redis read.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

type tokenPayload struct {
	UserID int64       `json:"user_id"`
	Email  string      `json:"email"`
	Role   shared.Role `json:"role"`
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

// Issue creates a token for the actor and registers it in the per-user set
// so RevokeAll can find it.
func (s *TokenStore) Issue(ctx context.Context, actor shared.Actor) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(tokenPayload{UserID: actor.ID, Email: actor.Email, Role: actor.Role})
	if err != nil {
		return "", err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, tokenKey(token), payload, s.ttl)
	pipe.SAdd(ctx, userKey(actor.ID), token)
	pipe.Expire(ctx, userKey(actor.ID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("auth: issue token: %w", err)
	}
	return token, nil
}

// Resolve returns the actor behind a token and refreshes its expiry.
func (s *TokenStore) Resolve(ctx context.Context, token string) (shared.Actor, error) {
	raw, err := s.client.Get(ctx, tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.Actor{}, shared.ErrInvalidCredentials
		}
		return shared.Actor{}, fmt.Errorf("auth: resolve token: %w", err)
	}
	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return shared.Actor{}, fmt.Errorf("auth: resolve token: %w", err)
	}
	// sliding expiry
	_ = s.client.Expire(ctx, tokenKey(token), s.ttl).Err()
	return shared.Actor{ID: payload.UserID, Email: payload.Email, Role: payload.Role}, nil
}

// Revoke invalidates one token.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	actor, err := s.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			return nil
		}
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, tokenKey(token))
	pipe.SRem(ctx, userKey(actor.ID), token)
	_, err = pipe.Exec(ctx)
	return err
}

// RevokeAll invalidates every token of one user, e.g. after deactivation or
// a password reset.
func (s *TokenStore) RevokeAll(ctx context.Context, userID int64) error {
	tokens, err := s.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("auth: revoke all: %w", err)
	}
	pipe := s.client.TxPipeline()
	for _, token := range tokens {
		pipe.Del(ctx, tokenKey(token))
	}
	pipe.Del(ctx, userKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}

func tokenKey(token string) string {
	return "auth:token:" + token
}

func userKey(userID int64) string {
	return fmt.Sprintf("auth:user:%d", userID)
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
