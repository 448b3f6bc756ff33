// internal/otp/store.go
package otp

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Code kinds stored by the platform.
const (
	KindEmailVerify   = "verify"
	KindPasswordReset = "pwreset"
)

// CodeStore keeps short-lived verification codes in Redis so any instance of
// the server can check a code issued by another.
type CodeStore struct {
	client *goredis.Client
}

// NewCodeStore creates a CodeStore backed by the provided Redis client.
func NewCodeStore(client *goredis.Client) *CodeStore {
	return &CodeStore{client: client}
}

func key(kind, email string) string {
	return fmt.Sprintf("otp:%s:%s", kind, email)
}

// Put stores a code for the recipient with the given TTL, replacing any
// previous code of the same kind.
func (s *CodeStore) Put(ctx context.Context, kind, email, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key(kind, email), code, ttl).Err(); err != nil {
		return fmt.Errorf("otp store: put %s code for %s: %w", kind, email, err)
	}
	return nil
}

// Check reports whether the presented code matches the stored one. A missing
// or expired code is a plain mismatch, not an error.
func (s *CodeStore) Check(ctx context.Context, kind, email, code string) (bool, error) {
	stored, err := s.client.Get(ctx, key(kind, email)).Result()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("otp store: check %s code for %s: %w", kind, email, err)
	}
	return stored == code, nil
}

// Delete removes a code once consumed.
func (s *CodeStore) Delete(ctx context.Context, kind, email string) error {
	if err := s.client.Del(ctx, key(kind, email)).Err(); err != nil {
		return fmt.Errorf("otp store: delete %s code for %s: %w", kind, email, err)
	}
	return nil
}
