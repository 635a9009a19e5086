package cli

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"taskmate/internal/auth"
	"taskmate/internal/backend/aztable"
	"taskmate/internal/backend/firestore"
	"taskmate/internal/backend/redisstore"
	"taskmate/internal/commands"
	"taskmate/internal/config"
	"taskmate/internal/service"
)

// Backend opens the session and the task store a command runs against.
type Backend interface {
	// OpenSession restores the stored session, if any.
	OpenSession(ctx context.Context, cfg *config.Config, logger log.FieldLogger) (commands.Session, error)

	// OpenStore connects to the configured task store. If the returned
	// store implements io.Closer it is closed after the command.
	OpenStore(ctx context.Context, cfg *config.Config, session commands.Session, logger log.FieldLogger) (service.Store, error)
}

// DefaultBackend uses Firebase Authentication for sessions and the store
// named by the backend setting.
type DefaultBackend struct{}

// OpenSession implements Backend.
func (DefaultBackend) OpenSession(ctx context.Context, cfg *config.Config, logger log.FieldLogger) (commands.Session, error) {
	var provider auth.Provider
	client, err := auth.New(ctx, cfg)
	if err != nil {
		// Commands that only read the stored session still work.
		provider = unconfiguredProvider{err: err}
	} else {
		provider = client
	}

	tracker := auth.NewTracker(provider, cfg.SessionPath(), logger)
	if cfg.Firebase.VerifyTokens {
		v, err := auth.NewVerifier(ctx, cfg.Firebase.ProjectID, logger)
		if err != nil {
			return nil, err
		}
		tracker.WithVerifier(v)
	}
	if err := tracker.Load(); err != nil {
		return nil, err
	}
	return tracker, nil
}

// OpenStore implements Backend.
func (DefaultBackend) OpenStore(ctx context.Context, cfg *config.Config, session commands.Session, logger log.FieldLogger) (service.Store, error) {
	switch cfg.Backend {
	case config.BackendFirestore:
		ts, ok := session.(oauth2.TokenSource)
		if !ok {
			return nil, errors.New("firestore backend needs a session that issues ID tokens")
		}
		c, err := firestore.New(ctx, cfg, ts, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendRedis:
		s, err := redisstore.New(cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendAzTables:
		s, err := aztable.New(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
}

// unconfiguredProvider fails every auth call with the configuration error.
type unconfiguredProvider struct {
	err error
}

func (p unconfiguredProvider) SignIn(ctx context.Context, email, password string) (auth.Identity, error) {
	return auth.Identity{}, p.err
}

func (p unconfiguredProvider) SignUp(ctx context.Context, email, password string) (auth.Identity, error) {
	return auth.Identity{}, p.err
}

func (p unconfiguredProvider) Refresh(ctx context.Context, refreshToken string) (auth.Identity, error) {
	return auth.Identity{}, p.err
}
