package cli

import (
	"context"
	"errors"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus/hooks/test"

	"taskmate/internal/auth"
	"taskmate/internal/backend/firestore"
	"taskmate/internal/backend/redisstore"
	"taskmate/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestDefaultBackend_SessionWithoutAPIKey(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)

	session, err := DefaultBackend{}.OpenSession(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("expected session without api key, got %v", err)
	}
	if owner := session.CurrentOwner(); owner != "" {
		t.Errorf("expected no owner, got %q", owner)
	}

	_, err = session.SignIn(context.Background(), "ada@example.com", "pw")
	if !errors.Is(err, auth.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestDefaultBackend_OpenRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)
	cfg.Backend = config.BackendRedis
	cfg.Redis.URL = "redis://" + mr.Addr() + "/0"

	store, err := DefaultBackend{}.OpenStore(context.Background(), cfg, nil, logger)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	rs, ok := store.(*redisstore.Store)
	if !ok {
		t.Fatalf("expected *redisstore.Store, got %T", store)
	}
	defer rs.Close()

	id, err := rs.CreateTask(context.Background(), "Buy milk", "u1", nil)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	list, err := rs.ListTasks(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(list) != 1 || list[0].ID != id {
		t.Errorf("expected the created task, got %v", list)
	}
}

func TestDefaultBackend_OpenFirestoreStore(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)
	cfg.Firebase.ProjectID = "demo"
	tracker := auth.NewTracker(unconfiguredProvider{err: auth.ErrNotConfigured}, cfg.SessionPath(), logger)

	store, err := DefaultBackend{}.OpenStore(context.Background(), cfg, tracker, logger)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	if _, ok := store.(*firestore.Client); !ok {
		t.Errorf("expected *firestore.Client, got %T", store)
	}
}

func TestDefaultBackend_OpenStoreErrors(t *testing.T) {
	logger, _ := test.NewNullLogger()

	tests := []struct {
		name    string
		backend string
		setup   func(cfg *config.Config)
		want    string
	}{
		{"firestore without token source", config.BackendFirestore, func(cfg *config.Config) {
			cfg.Firebase.ProjectID = "demo"
		}, "firestore backend needs a session that issues ID tokens"},
		{"bad redis url", config.BackendRedis, func(cfg *config.Config) {
			cfg.Redis.URL = "mysql://localhost"
		}, "invalid redis.url"},
		{"bad connection string", config.BackendAzTables, func(cfg *config.Config) {
			cfg.AzTables.ConnectionString = "not-a-connection-string"
		}, "invalid aztables.connection_string"},
		{"unknown backend", "sqlite", func(cfg *config.Config) {}, "unknown backend: sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Backend = tt.backend
			tt.setup(cfg)

			store, err := DefaultBackend{}.OpenStore(context.Background(), cfg, nil, logger)
			if err == nil {
				t.Fatalf("expected error, got store %T", store)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %q", tt.want, err.Error())
			}
		})
	}
}
