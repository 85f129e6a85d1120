// Package account holds the logged-in identity and its profile statistics.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/verbo/internal/apperr"
	"github.com/starford/verbo/internal/models"
	"github.com/starford/verbo/internal/progress"
)

// ProfileStore persists profiles. *remote.Store implements it.
type ProfileStore interface {
	Profile(ctx context.Context, userID string) (models.Profile, error)
	SaveProfile(ctx context.Context, p models.Profile) error
}

// Account tracks the authenticated user, if any. Stat updates are applied in
// memory first and written to the store best-effort.
type Account struct {
	store  ProfileStore
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	profile *models.Profile
}

// Option configures an Account.
type Option func(*Account)

// WithClock overrides the clock used for daily check-ins.
func WithClock(now func() time.Time) Option {
	return func(a *Account) { a.now = now }
}

// New creates an Account with nobody logged in.
func New(store ProfileStore, logger *slog.Logger, opts ...Option) *Account {
	a := &Account{store: store, logger: logger, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Login loads the profile of user, creating it on first login.
func (a *Account) Login(ctx context.Context, user models.User) (models.Profile, error) {
	if user.ID == "" {
		return models.Profile{}, apperr.ErrInvalidInput
	}
	p, err := a.store.Profile(ctx, user.ID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		p = models.Profile{UserID: user.ID, Name: user.Name}
		if err := a.store.SaveProfile(ctx, p); err != nil {
			return models.Profile{}, fmt.Errorf("account: create profile: %w", err)
		}
	case err != nil:
		return models.Profile{}, fmt.Errorf("account: load profile: %w", err)
	}
	if user.Name != "" && p.Name != user.Name {
		p.Name = user.Name
	}

	a.mu.Lock()
	a.profile = &p
	a.mu.Unlock()
	a.logger.Info("account: logged in", slog.String("user", user.ID))
	return p, nil
}

// Logout forgets the current user.
func (a *Account) Logout() {
	a.mu.Lock()
	a.profile = nil
	a.mu.Unlock()
}

// Current returns the profile of the logged-in user.
func (a *Account) Current() (models.Profile, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.profile == nil {
		return models.Profile{}, false
	}
	return *a.profile, true
}

// User returns the logged-in identity.
func (a *Account) User() (models.User, bool) {
	p, ok := a.Current()
	if !ok {
		return models.User{}, false
	}
	return models.User{ID: p.UserID, Name: p.Name}, true
}

// update applies fn to the in-memory stats and saves the result. It is a
// no-op when nobody is logged in or fn reports no change.
func (a *Account) update(ctx context.Context, fn func(*models.Stats) bool) {
	a.mu.Lock()
	if a.profile == nil || !fn(&a.profile.Stats) {
		a.mu.Unlock()
		return
	}
	snapshot := *a.profile
	a.mu.Unlock()

	if err := a.store.SaveProfile(ctx, snapshot); err != nil {
		a.logger.Error("account: save stats failed", slog.String("user", snapshot.UserID), slog.String("error", err.Error()))
	}
}

// IncrementChaptersRead adds one completed chapter.
func (a *Account) IncrementChaptersRead(ctx context.Context) {
	a.update(ctx, func(s *models.Stats) bool {
		s.ChaptersRead++
		return true
	})
}

// IncrementNotes adds one written note.
func (a *Account) IncrementNotes(ctx context.Context) {
	a.update(ctx, func(s *models.Stats) bool {
		s.NotesCount++
		return true
	})
}

// CheckInDaily applies the streak rule for today.
func (a *Account) CheckInDaily(ctx context.Context) {
	today := a.now()
	a.update(ctx, func(s *models.Stats) bool {
		next, changed := progress.CheckIn(*s, today)
		*s = next
		return changed
	})
}
