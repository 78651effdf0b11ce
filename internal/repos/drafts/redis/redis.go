package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fleepgift/coinledger/internal/repos/drafts"
)

const keyPrefix = "broadcast:draft:"

type Store struct {
	client goredis.UniversalClient
}

var _ drafts.Store = (*Store)(nil)

func New(client goredis.UniversalClient) *Store {
	return &Store{client: client}
}

func key(operatorID int64) string {
	return keyPrefix + strconv.FormatInt(operatorID, 10)
}

func (s *Store) Load(ctx context.Context, operatorID int64) (drafts.Draft, error) {
	raw, err := s.client.Get(ctx, key(operatorID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return drafts.Draft{}, drafts.ErrDraftNotFound
	}
	if err != nil {
		return drafts.Draft{}, fmt.Errorf("drafts load: %w", err)
	}

	var d drafts.Draft

	err = json.Unmarshal(raw, &d)
	if err != nil {
		return drafts.Draft{}, fmt.Errorf("drafts load: decode: %w", err)
	}

	return d, nil
}

// Save stores d; a non-positive ttl keeps it until deleted.
func (s *Store) Save(ctx context.Context, operatorID int64, d drafts.Draft, ttl time.Duration) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("drafts save: encode: %w", err)
	}

	if ttl < 0 {
		ttl = 0
	}

	err = s.client.Set(ctx, key(operatorID), raw, ttl).Err()
	if err != nil {
		return fmt.Errorf("drafts save: %w", err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, operatorID int64) error {
	err := s.client.Del(ctx, key(operatorID)).Err()
	if err != nil {
		return fmt.Errorf("drafts delete: %w", err)
	}

	return nil
}
