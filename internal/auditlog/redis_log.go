package auditlog

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/example/field-dispatch/internal/models"
)

// RedisLog stores each job's entries in a redis list. RPUSH is an
// atomic list append at the storage layer, which gives the append-only
// guarantee without any application-level locking.
type RedisLog struct {
	client *redis.Client
	prefix string
}

func NewRedisLog(addr, password, prefix string) *RedisLog {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if prefix == "" {
		prefix = "acceptlog"
	}
	return &RedisLog{client: c, prefix: prefix}
}

// NewRedisLogFromClient reuses an existing client (auditor mirror path).
func NewRedisLogFromClient(c *redis.Client, prefix string) *RedisLog {
	if prefix == "" {
		prefix = "acceptlog"
	}
	return &RedisLog{client: c, prefix: prefix}
}

func (r *RedisLog) key(jobID string) string { return r.prefix + ":" + jobID }

func (r *RedisLog) Append(ctx context.Context, jobID string, entry models.AcceptanceLog) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return &PersistenceError{Op: "append", JobID: jobID, Err: err}
	}
	if err := r.client.RPush(ctx, r.key(jobID), b).Err(); err != nil {
		return &PersistenceError{Op: "append", JobID: jobID, Err: err}
	}
	return nil
}

func (r *RedisLog) ListFor(ctx context.Context, jobID string) ([]models.AcceptanceLog, error) {
	raw, err := r.client.LRange(ctx, r.key(jobID), 0, -1).Result()
	if err != nil {
		return nil, &PersistenceError{Op: "list", JobID: jobID, Err: err}
	}
	out := make([]models.AcceptanceLog, 0, len(raw))
	for _, v := range raw {
		var e models.AcceptanceLog
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, &PersistenceError{Op: "list", JobID: jobID, Err: err}
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *RedisLog) ListAll(ctx context.Context) (map[string][]models.AcceptanceLog, error) {
	out := make(map[string][]models.AcceptanceLog)
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+":*", 100).Result()
		if err != nil {
			return nil, &PersistenceError{Op: "scan", Err: err}
		}
		for _, k := range keys {
			jobID := strings.TrimPrefix(k, r.prefix+":")
			entries, err := r.ListFor(ctx, jobID)
			if err != nil {
				return nil, err
			}
			out[jobID] = entries
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}
