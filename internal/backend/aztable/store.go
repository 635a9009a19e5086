// Package aztable implements service.Store on Azure Table Storage.
//
// Tasks are partitioned by owner. Row keys start with the inverted creation
// time so the natural table order is newest first. A task id is
// "{PartitionKey}:{RowKey}", which lets point operations address the entity
// without knowing the owner.
package aztable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskmate/internal/config"
	"taskmate/internal/logging"
	"taskmate/internal/service"
)

// APITimeout is the timeout for each store call.
const APITimeout = 10 * time.Second

const edmDateTime = "Edm.DateTime"

// tableAPI is the subset of *aztables.Client used by Store.
type tableAPI interface {
	NewListEntitiesPager(options *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse]
	AddEntity(ctx context.Context, entity []byte, options *aztables.AddEntityOptions) (aztables.AddEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, options *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
	DeleteEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error)
}

type taskEntity struct {
	PartitionKey  string `json:"PartitionKey"`
	RowKey        string `json:"RowKey"`
	Title         string `json:"Title"`
	Completed     bool   `json:"Completed"`
	DueDate       string `json:"DueDate,omitempty"`
	DueDateType   string `json:"DueDate@odata.type,omitempty"`
	CreatedAt     string `json:"CreatedAt"`
	CreatedAtType string `json:"CreatedAt@odata.type,omitempty"`
	UserID        string `json:"UserId"`
}

type completionUpdate struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
	Completed    bool   `json:"Completed"`
}

// Store implements service.Store using an Azure table.
type Store struct {
	table tableAPI
	log   log.FieldLogger
	now   func() time.Time
}

// New connects to the configured table and creates it when missing.
func New(ctx context.Context, cfg *config.Config, logger log.FieldLogger) (*Store, error) {
	if cfg.AzTables.ConnectionString == "" {
		return nil, errors.New("aztables.connection_string is not set in config.yaml")
	}
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    APITimeout,
				RetryDelay:    time.Second,
				MaxRetryDelay: 5 * time.Second,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(cfg.AzTables.ConnectionString, &opts)
	if err != nil {
		return nil, fmt.Errorf("invalid aztables.connection_string: %w", err)
	}
	client := svc.NewClient(cfg.AzTables.Table)

	if _, err := client.CreateTable(ctx, nil); err != nil {
		var respErr *azcore.ResponseError
		if !errors.As(err, &respErr) || respErr.StatusCode != http.StatusConflict {
			return nil, fmt.Errorf("create table %s: %w", cfg.AzTables.Table, err)
		}
	}
	return newStore(client, logger, time.Now), nil
}

func newStore(table tableAPI, logger log.FieldLogger, now func() time.Time) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{table: table, log: logger, now: now}
}

// rowKey sorts newest first: the inverted creation time is zero padded so
// lexical and numeric order agree.
func rowKey(created time.Time) string {
	return fmt.Sprintf("%019d-%s", math.MaxInt64-created.UnixNano(), uuid.NewString())
}

func splitID(op, taskID string) (string, string, error) {
	i := strings.LastIndex(taskID, ":")
	if i <= 0 || i == len(taskID)-1 {
		return "", "", service.NewStoreError(op, service.KindInvalid, "invalid task id: "+taskID, nil)
	}
	return taskID[:i], taskID[i+1:], nil
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ListTasks returns the owner's tasks, newest first.
func (s *Store) ListTasks(ctx context.Context, ownerID string) ([]service.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	filter := "PartitionKey eq " + quote(ownerID)
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})

	var tasks []service.Task
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			s.log.WithError(err).WithFields(log.Fields{"op": "list", "owner": ownerID}).Error("Error fetching tasks")
			return nil, wrapError("list", err)
		}
		for _, raw := range resp.Entities {
			t, err := decodeTask(raw)
			if err != nil {
				return nil, service.NewStoreError("list", service.KindInvalid, err.Error(), err)
			}
			tasks = append(tasks, t)
		}
	}

	slices.SortStableFunc(tasks, func(a, b service.Task) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return tasks, nil
}

// CreateTask inserts a new pending task. Table storage has no server-side
// creation time, so it is taken from the local clock.
func (s *Store) CreateTask(ctx context.Context, title, ownerID string, dueDate *time.Time) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	created := s.now().UTC()
	ent := taskEntity{
		PartitionKey:  ownerID,
		RowKey:        rowKey(created),
		Title:         title,
		CreatedAt:     created.Format(time.RFC3339Nano),
		CreatedAtType: edmDateTime,
		UserID:        ownerID,
	}
	if dueDate != nil {
		ent.DueDate = dueDate.UTC().Format(time.RFC3339Nano)
		ent.DueDateType = edmDateTime
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return "", service.NewStoreError("create", service.KindInvalid, "", err)
	}

	if _, err := s.table.AddEntity(ctx, payload, nil); err != nil {
		s.log.WithError(err).WithFields(log.Fields{"op": "create", "owner": ownerID}).Error("Error adding task")
		return "", wrapError("create", err)
	}
	return ent.PartitionKey + ":" + ent.RowKey, nil
}

// SetTaskCompletion merges the completed field into an existing entity.
func (s *Store) SetTaskCompletion(ctx context.Context, taskID string, completed bool) error {
	pk, rk, err := splitID("update", taskID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	payload, err := json.Marshal(completionUpdate{PartitionKey: pk, RowKey: rk, Completed: completed})
	if err != nil {
		return service.NewStoreError("update", service.KindInvalid, "", err)
	}
	et := azcore.ETagAny
	_, err = s.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if err != nil {
		s.log.WithError(err).WithFields(log.Fields{"op": "update", "task_id": taskID}).Error("Error updating task")
		return wrapError("update", err)
	}
	return nil
}

// DeleteTask removes the entity. Deleting a missing task succeeds.
func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	pk, rk, err := splitID("delete", taskID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	et := azcore.ETagAny
	_, err = s.table.DeleteEntity(ctx, pk, rk, &aztables.DeleteEntityOptions{IfMatch: &et})
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil
		}
		s.log.WithError(err).WithFields(log.Fields{"op": "delete", "task_id": taskID}).Error("Error deleting task")
		return wrapError("delete", err)
	}
	return nil
}

func decodeTask(raw []byte) (service.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(raw, &ent); err != nil {
		return service.Task{}, fmt.Errorf("decode task entity: %w", err)
	}
	t := service.Task{
		ID:        ent.PartitionKey + ":" + ent.RowKey,
		Title:     ent.Title,
		Completed: ent.Completed,
		UserID:    ent.UserID,
	}
	created, err := time.Parse(time.RFC3339Nano, ent.CreatedAt)
	if err != nil {
		return service.Task{}, fmt.Errorf("task %s: invalid CreatedAt: %w", t.ID, err)
	}
	t.CreatedAt = created
	if ent.DueDate != "" {
		due, err := time.Parse(time.RFC3339Nano, ent.DueDate)
		if err != nil {
			return service.Task{}, fmt.Errorf("task %s: invalid DueDate: %w", t.ID, err)
		}
		t.DueDate = &due
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

	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return service.NewStoreError(op, service.KindNetwork, "network error: "+err.Error(), err)
	}
	msg := respErr.ErrorCode
	if msg == "" {
		msg = http.StatusText(respErr.StatusCode)
	}
	switch code := respErr.StatusCode; {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return service.NewStoreError(op, service.KindPermission, "permission denied: "+msg, err)
	case code == http.StatusNotFound:
		return service.NewStoreError(op, service.KindNotFound, "task not found", err)
	case code == http.StatusBadRequest || code == http.StatusConflict || code == http.StatusPreconditionFailed:
		return service.NewStoreError(op, service.KindInvalid, msg, err)
	case code >= 500:
		return service.NewStoreError(op, service.KindNetwork, msg, err)
	default:
		return service.NewStoreError(op, service.KindUnknown, msg, err)
	}
}
