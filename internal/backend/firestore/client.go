// Package firestore implements service.Store on the Cloud Firestore REST API.
package firestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	fs "google.golang.org/api/firestore/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"taskmate/internal/config"
	"taskmate/internal/logging"
	"taskmate/internal/service"
)

const (
	// Collection is the collection holding task documents.
	Collection = "tasks"

	// APITimeout is the timeout for API calls.
	APITimeout = 10 * time.Second
)

// Document field names.
const (
	fieldTitle     = "title"
	fieldCompleted = "completed"
	fieldDueDate   = "dueDate"
	fieldCreatedAt = "createdAt"
	fieldUserID    = "userId"
)

// Client implements service.Store using Cloud Firestore.
type Client struct {
	svc        *fs.Service
	httpClient *http.Client
	projectID  string
	log        log.FieldLogger
}

// New creates a Firestore client for the configured project. Requests are
// authorized with tokens from ts, normally the signed-in user's ID token.
func New(ctx context.Context, cfg *config.Config, ts oauth2.TokenSource, logger log.FieldLogger) (*Client, error) {
	if cfg.Firebase.ProjectID == "" {
		return nil, errors.New("firebase.project_id is not set in config.yaml")
	}
	httpClient := oauth2.NewClient(ctx, ts)
	c, err := NewWithHTTPClient(ctx, httpClient, cfg.Firebase.FirestoreEndpoint, cfg.Firebase.ProjectID)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		c.log = logger
	}
	return c, nil
}

// NewWithHTTPClient creates a client with a custom HTTP client and an
// optional endpoint override (for testing and the emulator).
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, endpoint, projectID string) (*Client, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := fs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore service: %w", err)
	}
	return &Client{
		svc:        svc,
		httpClient: httpClient,
		projectID:  projectID,
		log:        logging.Discard(),
	}, nil
}

func (c *Client) database() string {
	return "projects/" + c.projectID + "/databases/(default)"
}

func (c *Client) parent() string {
	return c.database() + "/documents"
}

func (c *Client) docName(taskID string) string {
	return c.parent() + "/" + Collection + "/" + taskID
}

// ListTasks returns the owner's tasks, newest first.
func (c *Client) ListTasks(ctx context.Context, ownerID string) ([]service.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	req := &fs.RunQueryRequest{
		StructuredQuery: &fs.StructuredQuery{
			From: []*fs.CollectionSelector{{CollectionId: Collection}},
			Where: &fs.Filter{
				FieldFilter: &fs.FieldFilter{
					Field: &fs.FieldReference{FieldPath: fieldUserID},
					Op:    "EQUAL",
					Value: &fs.Value{StringValue: ownerID},
				},
			},
			OrderBy: []*fs.Order{{
				Field:     &fs.FieldReference{FieldPath: fieldCreatedAt},
				Direction: "DESCENDING",
			}},
		},
	}

	results, err := c.runQuery(ctx, req)
	if err != nil {
		c.log.WithError(err).WithFields(log.Fields{"op": "list", "owner": ownerID}).Error("Error fetching tasks")
		return nil, wrapError("list", err)
	}

	var tasks []service.Task
	for _, r := range results {
		if r.Document == nil {
			// Progress frames carry only a read time.
			continue
		}
		t, err := decodeTask(r.Document)
		if err != nil {
			return nil, service.NewStoreError("list", service.KindInvalid, err.Error(), err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// runQuery posts a structured query. The generated RunQuery call cannot be
// used because the endpoint streams a JSON array of responses.
func (c *Client) runQuery(ctx context.Context, req *fs.RunQueryRequest) ([]*fs.RunQueryResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	url := c.svc.BasePath + "v1/" + c.parent() + ":runQuery"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer googleapi.CloseBody(res)
	if err := googleapi.CheckResponse(res); err != nil {
		return nil, err
	}

	var out []*fs.RunQueryResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode runQuery response: %w", err)
	}
	return out, nil
}

// CreateTask writes a new pending task in a single commit. The id is
// generated on the client the way Firestore auto-ids are; createdAt is the
// commit time, set by a REQUEST_TIME transform on the same write.
func (c *Client) CreateTask(ctx context.Context, title, ownerID string, dueDate *time.Time) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	id := newDocID()
	doc := encodeTask(title, ownerID, dueDate)
	doc.Name = c.docName(id)

	_, err := c.svc.Projects.Databases.Documents.Commit(c.database(), &fs.CommitRequest{
		Writes: []*fs.Write{{
			Update: doc,
			UpdateTransforms: []*fs.FieldTransform{{
				FieldPath:        fieldCreatedAt,
				SetToServerValue: "REQUEST_TIME",
			}},
			CurrentDocument: &fs.Precondition{Exists: false, ForceSendFields: []string{"Exists"}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		c.log.WithError(err).WithFields(log.Fields{"op": "create", "owner": ownerID}).Error("Error adding task")
		return "", wrapError("create", err)
	}
	return id, nil
}

// SetTaskCompletion patches only the completed field.
func (c *Client) SetTaskCompletion(ctx context.Context, taskID string, completed bool) error {
	if err := checkID("update", taskID); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	patch := &fs.Document{
		Fields: map[string]fs.Value{
			fieldCompleted: boolValue(completed),
		},
	}
	_, err := c.svc.Projects.Databases.Documents.Patch(c.docName(taskID), patch).
		UpdateMaskFieldPaths(fieldCompleted).
		CurrentDocumentExists(true).
		Context(ctx).
		Do()
	if err != nil {
		c.log.WithError(err).WithFields(log.Fields{"op": "update", "task_id": taskID}).Error("Error updating task")
		return wrapError("update", err)
	}
	return nil
}

// DeleteTask deletes a task. Deleting a missing task succeeds.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	if err := checkID("delete", taskID); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	_, err := c.svc.Projects.Databases.Documents.Delete(c.docName(taskID)).Context(ctx).Do()
	err = wrapError("delete", err)
	if err != nil && !service.IsNotFound(err) {
		c.log.WithError(err).WithFields(log.Fields{"op": "delete", "task_id": taskID}).Error("Error deleting task")
		return err
	}
	return nil
}

func checkID(op, taskID string) error {
	if taskID == "" || strings.Contains(taskID, "/") {
		return service.NewStoreError(op, service.KindInvalid, "invalid task id: "+taskID, nil)
	}
	return nil
}

// wrapError translates API errors into a StoreError with a user-friendly message.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return service.NewStoreError(op, service.KindTimeout, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return service.NewStoreError(op, service.KindCanceled, "request canceled", err)
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return service.NewStoreError(op, service.KindNetwork, "network error: "+err.Error(), err)
	}

	msg := gerr.Message
	if msg == "" {
		msg = http.StatusText(gerr.Code)
	}
	switch {
	case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
		return service.NewStoreError(op, service.KindPermission, "permission denied (run: taskmate login)", err)
	case gerr.Code == http.StatusNotFound:
		return service.NewStoreError(op, service.KindNotFound, "task not found", err)
	case gerr.Code == http.StatusBadRequest || gerr.Code == http.StatusConflict || gerr.Code == http.StatusPreconditionFailed:
		return service.NewStoreError(op, service.KindInvalid, msg, err)
	case gerr.Code >= 500:
		return service.NewStoreError(op, service.KindNetwork, msg, err)
	default:
		return service.NewStoreError(op, service.KindUnknown, msg, err)
	}
}
