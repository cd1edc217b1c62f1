package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	answerPrefix = "q:"
	codePrefix   = "code:"
)

// Redis stores each module state as one hash, refreshed to ttl on every write.
// Fields are "q:<question id>" holding an Answer as JSON and "code:<exercise id>".
type Redis struct {
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedis(rdb goredis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "lms:quiz"
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *Redis) key(k Key) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, k.SessionID, k.ModuleID)
}

func (s *Redis) Load(ctx context.Context, k Key) (*ModuleState, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(k)).Result()
	if err != nil {
		return nil, fmt.Errorf("quiz: load state: %w", err)
	}
	out := NewModuleState()
	for f, v := range fields {
		switch {
		case strings.HasPrefix(f, answerPrefix):
			var a Answer
			if err := json.Unmarshal([]byte(v), &a); err != nil {
				return nil, fmt.Errorf("quiz: decode %s: %w", f, err)
			}
			out.Board.Answers[strings.TrimPrefix(f, answerPrefix)] = a
		case strings.HasPrefix(f, codePrefix):
			out.Code[strings.TrimPrefix(f, codePrefix)] = v
		}
	}
	return out, nil
}

func (s *Redis) PutAnswer(ctx context.Context, k Key, a Answer) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.put(ctx, k, answerPrefix+a.QuestionID, string(raw))
}

func (s *Redis) PutCode(ctx context.Context, k Key, exerciseID, code string) error {
	return s.put(ctx, k, codePrefix+exerciseID, code)
}

func (s *Redis) Reset(ctx context.Context, k Key) error {
	if err := s.rdb.Del(ctx, s.key(k)).Err(); err != nil {
		return fmt.Errorf("quiz: reset state: %w", err)
	}
	return nil
}

func (s *Redis) put(ctx context.Context, k Key, field, value string) error {
	key := s.key(k)
	_, err := s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSet(ctx, key, field, value)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("quiz: save %s: %w", field, err)
	}
	return nil
}
