package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"taskmate/internal/logging"
)

// refreshSkew refreshes ID tokens this long before they expire.
const refreshSkew = time.Minute

// Tracker holds the current session and announces owner changes. It also
// serves the session's ID token as an oauth2.TokenSource, refreshing it
// when it is about to expire.
type Tracker struct {
	provider Provider
	path     string
	log      log.FieldLogger
	now      func() time.Time

	// check validates the ID token of a new session. Defaults to
	// ParseUnverified; WithVerifier installs signature checking.
	check func(idToken string) (Claims, error)

	mu      sync.Mutex
	current Identity

	subMu   sync.Mutex
	subs    map[uint64]func(owner string)
	nextSub uint64
}

// NewTracker creates a signed-out Tracker that persists sessions at sessionPath.
func NewTracker(provider Provider, sessionPath string, logger log.FieldLogger) *Tracker {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Tracker{
		provider: provider,
		path:     sessionPath,
		log:      logger,
		now:      time.Now,
		check:    ParseUnverified,
		subs:     make(map[uint64]func(string)),
	}
}

// WithVerifier makes new sessions pass signature verification.
func (t *Tracker) WithVerifier(v *Verifier) *Tracker {
	t.check = v.Verify
	return t
}

// Load restores the stored session, if any. Subscribers are not notified.
func (t *Tracker) Load() error {
	id, err := loadSession(t.path)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.current = id
	t.mu.Unlock()
	if id.UserID != "" {
		t.log.WithField("owner", id.UserID).Debug("session restored")
	}
	return nil
}

// CurrentOwner returns the signed-in user id, empty when signed out.
func (t *Tracker) CurrentOwner() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current.UserID
}

// Identity returns the current session.
func (t *Tracker) Identity() (Identity, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.current.UserID != ""
}

// SignIn starts a session for an existing account.
func (t *Tracker) SignIn(ctx context.Context, email, password string) (Identity, error) {
	id, err := t.provider.SignIn(ctx, email, password)
	if err != nil {
		return Identity{}, err
	}
	return id, t.start(id)
}

// SignUp creates an account and starts its session.
func (t *Tracker) SignUp(ctx context.Context, email, password string) (Identity, error) {
	id, err := t.provider.SignUp(ctx, email, password)
	if err != nil {
		return Identity{}, err
	}
	return id, t.start(id)
}

func (t *Tracker) start(id Identity) error {
	claims, err := t.check(id.IDToken)
	if err != nil {
		return err
	}
	if claims.UserID != id.UserID {
		return fmt.Errorf("id token belongs to %s, expected %s", claims.UserID, id.UserID)
	}
	if id.Email == "" {
		id.Email = claims.Email
	}
	if err := saveSession(t.path, id); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	t.mu.Lock()
	t.current = id
	t.mu.Unlock()

	t.log.WithField("owner", id.UserID).Debug("signed in")
	t.notify(id.UserID)
	return nil
}

// SignOut ends the session and removes it from disk.
func (t *Tracker) SignOut() error {
	t.mu.Lock()
	wasSignedIn := t.current.UserID != ""
	t.current = Identity{}
	t.mu.Unlock()

	if err := removeSession(t.path); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	if wasSignedIn {
		t.log.Debug("signed out")
		t.notify("")
	}
	return nil
}

// Token implements oauth2.TokenSource with the session's ID token.
func (t *Tracker) Token() (*oauth2.Token, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current.UserID == "" {
		return nil, ErrNotSignedIn
	}
	if t.current.expiresWithin(t.now(), refreshSkew) {
		ctx, cancel := context.WithTimeout(context.Background(), APITimeout)
		defer cancel()

		id, err := t.provider.Refresh(ctx, t.current.RefreshToken)
		if err != nil {
			return nil, err
		}
		if id.Email == "" {
			id.Email = t.current.Email
		}
		t.current = id
		if err := saveSession(t.path, id); err != nil {
			t.log.WithError(err).Warn("failed to save refreshed session")
		}
		t.log.WithField("owner", id.UserID).Debug("id token refreshed")
	}

	return &oauth2.Token{
		AccessToken: t.current.IDToken,
		TokenType:   "Bearer",
		Expiry:      t.current.Expiry,
	}, nil
}

// Subscribe registers fn to be called with the new owner id after every
// sign-in and sign-out. The returned function cancels the subscription.
func (t *Tracker) Subscribe(fn func(owner string)) (cancel func()) {
	t.subMu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.subMu.Lock()
			delete(t.subs, id)
			t.subMu.Unlock()
		})
	}
}

func (t *Tracker) notify(owner string) {
	t.subMu.Lock()
	fns := make([]func(string), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.subMu.Unlock()

	for _, fn := range fns {
		fn(owner)
	}
}
