package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCodeNotFound = errors.New("no pending verification code")

// CodeStore keeps pending login codes in redis instead of process memory, so
// a code survives restarts and works behind more than one instance. Keys
// expire on their own; a successful login deletes the code so it can't be
// replayed.
type CodeStore struct {
	R *redis.Client
}

func NewCodeStore(r *redis.Client) *CodeStore {
	return &CodeStore{R: r}
}

func codeKey(email string) string {
	return fmt.Sprintf("verify_code:%s", email)
}

func (s *CodeStore) Save(ctx context.Context, email, token string, ttl time.Duration) error {
	return s.R.Set(ctx, codeKey(email), token, ttl).Err()
}

func (s *CodeStore) Get(ctx context.Context, email string) (string, error) {
	token, err := s.R.Get(ctx, codeKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCodeNotFound
		}
		return "", err
	}

	return token, nil
}

func (s *CodeStore) Delete(ctx context.Context, email string) error {
	return s.R.Del(ctx, codeKey(email)).Err()
}
