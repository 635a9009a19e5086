// Package redisstore implements service.Store on Redis.
//
// Layout:
//
//	taskmate:task-seq          INCR counter for task ids
//	taskmate:task:{id}         hash with title, completed, dueDate, createdAt, userId
//	taskmate:owner:{userId}    sorted set of task ids scored by createdAt (µs)
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskmate/internal/config"
	"taskmate/internal/logging"
	"taskmate/internal/service"
)

const (
	keyPrefix = "taskmate:"
	seqKey    = keyPrefix + "task-seq"

	// APITimeout is the timeout for each store call.
	APITimeout = 5 * time.Second
)

// setCompletion flips the completed field only when the task exists.
var setCompletion = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'completed', ARGV[1])
return 1
`)

// Store implements service.Store using Redis.
type Store struct {
	rdb *redis.Client
	log log.FieldLogger
}

// New connects to the Redis server at cfg.Redis.URL.
func New(cfg *config.Config, logger log.FieldLogger) (*Store, error) {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis.url: %w", err)
	}
	return NewWithClient(redis.NewClient(opts), logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, logger log.FieldLogger) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{rdb: rdb, log: logger}
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func taskKey(id string) string {
	return keyPrefix + "task:" + id
}

func ownerKey(ownerID string) string {
	return keyPrefix + "owner:" + ownerID
}

// ListTasks returns the owner's tasks, newest first.
func (s *Store) ListTasks(ctx context.Context, ownerID string) ([]service.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	ids, err := s.rdb.ZRevRange(ctx, ownerKey(ownerID), 0, -1).Result()
	if err != nil {
		s.log.WithError(err).WithFields(log.Fields{"op": "list", "owner": ownerID}).Error("Error fetching tasks")
		return nil, wrapError("list", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, taskKey(id))
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithFields(log.Fields{"op": "list", "owner": ownerID}).Error("Error fetching tasks")
		return nil, wrapError("list", err)
	}

	tasks := make([]service.Task, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Index entry outlived its hash.
			continue
		}
		t, err := decodeTask(ids[i], fields)
		if err != nil {
			return nil, service.NewStoreError("list", service.KindInvalid, err.Error(), err)
		}
		if t.UserID != ownerID {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// CreateTask stores a new pending task. The id comes from a server-side
// counter and the creation time from the server clock.
func (s *Store) CreateTask(ctx context.Context, title, ownerID string, dueDate *time.Time) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	seq, err := s.rdb.Incr(ctx, seqKey).Result()
	if err != nil {
		s.log.WithError(err).WithFields(log.Fields{"op": "create", "owner": ownerID}).Error("Error adding task")
		return "", wrapError("create", err)
	}
	now, err := s.rdb.Time(ctx).Result()
	if err != nil {
		s.log.WithError(err).WithFields(log.Fields{"op": "create", "owner": ownerID}).Error("Error adding task")
		return "", wrapError("create", err)
	}

	id := strconv.FormatInt(seq, 10)
	micros := now.UnixMicro()
	due := ""
	if dueDate != nil {
		due = dueDate.UTC().Format(time.RFC3339)
	}

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, taskKey(id), map[string]any{
			"title":     title,
			"completed": "0",
			"dueDate":   due,
			"createdAt": micros,
			"userId":    ownerID,
		})
		p.ZAdd(ctx, ownerKey(ownerID), redis.Z{Score: float64(micros), Member: id})
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithFields(log.Fields{"op": "create", "owner": ownerID}).Error("Error adding task")
		return "", wrapError("create", err)
	}
	return id, nil
}

// SetTaskCompletion updates only the completed field.
func (s *Store) SetTaskCompletion(ctx context.Context, taskID string, completed bool) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	val := "0"
	if completed {
		val = "1"
	}
	n, err := setCompletion.Run(ctx, s.rdb, []string{taskKey(taskID)}, val).Int()
	if err != nil {
		s.log.WithError(err).WithFields(log.Fields{"op": "update", "task_id": taskID}).Error("Error updating task")
		return wrapError("update", err)
	}
	if n == 0 {
		return service.NewStoreError("update", service.KindNotFound, "task not found", nil)
	}
	return nil
}

// DeleteTask removes the task and its index entry. Deleting a missing
// task succeeds.
func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	owner, err := s.rdb.HGet(ctx, taskKey(taskID), "userId").Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		s.log.WithError(err).WithFields(log.Fields{"op": "delete", "task_id": taskID}).Error("Error deleting task")
		return wrapError("delete", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, taskKey(taskID))
		p.ZRem(ctx, ownerKey(owner), taskID)
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithFields(log.Fields{"op": "delete", "task_id": taskID}).Error("Error deleting task")
		return wrapError("delete", err)
	}
	return nil
}

func decodeTask(id string, fields map[string]string) (service.Task, error) {
	t := service.Task{
		ID:        id,
		Title:     fields["title"],
		Completed: fields["completed"] == "1",
		UserID:    fields["userId"],
	}
	micros, err := strconv.ParseInt(fields["createdAt"], 10, 64)
	if err != nil {
		return service.Task{}, fmt.Errorf("task %s: invalid createdAt: %w", id, err)
	}
	t.CreatedAt = time.UnixMicro(micros).UTC()
	if due := fields["dueDate"]; due != "" {
		d, err := time.Parse(time.RFC3339, due)
		if err != nil {
			return service.Task{}, fmt.Errorf("task %s: invalid dueDate: %w", id, err)
		}
		t.DueDate = &d
	}
	return t, nil
}

func wrapError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return service.NewStoreError(op, service.KindTimeout, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return service.NewStoreError(op, service.KindCanceled, "request canceled", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return service.NewStoreError(op, service.KindTimeout, "request timed out", err)
		}
		return service.NewStoreError(op, service.KindNetwork, "network error: "+err.Error(), err)
	}
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return service.NewStoreError(op, service.KindInvalid, redisErr.Error(), err)
	}
	return service.NewStoreError(op, service.KindNetwork, err.Error(), err)
}
