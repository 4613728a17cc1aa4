package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/and161185/servicecenter/internal/errs"
	"github.com/and161185/servicecenter/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserStorage interface {
	CreateUser(ctx context.Context, profile model.UserProfile, passwordHash string) error
	GetUserByEmail(ctx context.Context, email string) (model.UserProfile, string, error)
	GetProfile(ctx context.Context, id string) (model.UserProfile, error)
	UpdateProfile(ctx context.Context, profile model.UserProfile) error
}

type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SessionEventKind string

const (
	SessionRegistered SessionEventKind = "registered"
	SessionLoggedIn   SessionEventKind = "logged_in"
	SessionLoggedOut  SessionEventKind = "logged_out"
)

type SessionEvent struct {
	Kind   SessionEventKind
	UserID string
}

const minPasswordLength = 6

// Identity registers users, issues and revokes sessions and owns profiles.
type Identity struct {
	store  UserStorage
	tokens *TokenManager
	logger *zap.SugaredLogger

	mu        sync.RWMutex
	listeners map[int]func(SessionEvent)
	nextID    int
}

func NewIdentity(store UserStorage, tokens *TokenManager, logger *zap.SugaredLogger) *Identity {
	return &Identity{
		store:     store,
		tokens:    tokens,
		logger:    logger,
		listeners: map[int]func(SessionEvent){},
	}
}

func (id *Identity) Register(ctx context.Context, email, password, name string) (model.UserProfile, Session, error) {
	email = strings.TrimSpace(email)

	verr := errs.NewValidationError()
	if _, err := mail.ParseAddress(email); email == "" || err != nil {
		verr.Add("email", "invalid email")
	}
	if len(password) < minPasswordLength {
		verr.Add("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if err := verr.OrNil(); err != nil {
		return model.UserProfile{}, Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.UserProfile{}, Session{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	profile := model.UserProfile{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: strings.TrimSpace(name),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := id.store.CreateUser(ctx, profile, string(hash)); err != nil {
		return model.UserProfile{}, Session{}, fmt.Errorf("create user: %w", err)
	}

	session, err := id.issue(profile.ID)
	if err != nil {
		return model.UserProfile{}, Session{}, err
	}

	id.logger.Infow("user registered", "user_id", profile.ID)
	id.notify(SessionEvent{Kind: SessionRegistered, UserID: profile.ID})
	return profile, session, nil
}

func (id *Identity) Login(ctx context.Context, email, password string) (Session, error) {
	profile, hash, err := id.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, errs.ErrUserNotFound) {
			return Session{}, errs.ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Session{}, errs.ErrInvalidCredentials
	}

	session, err := id.issue(profile.ID)
	if err != nil {
		return Session{}, err
	}

	id.notify(SessionEvent{Kind: SessionLoggedIn, UserID: profile.ID})
	return session, nil
}

func (id *Identity) Logout(ctx context.Context, token string) error {
	userID, err := id.tokens.Revoke(token)
	if err != nil {
		return err
	}

	id.notify(SessionEvent{Kind: SessionLoggedOut, UserID: userID})
	return nil
}

func (id *Identity) GetProfile(ctx context.Context, userID string) (model.UserProfile, error) {
	profile, err := id.store.GetProfile(ctx, userID)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("get profile %s: %w", userID, err)
	}
	return profile, nil
}

func (id *Identity) UpdateProfile(ctx context.Context, userID string, patch model.ProfilePatch) (model.UserProfile, error) {
	profile, err := id.store.GetProfile(ctx, userID)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("get profile %s: %w", userID, err)
	}

	patch.Apply(&profile)
	profile.UpdatedAt = time.Now().UTC()

	if err := id.store.UpdateProfile(ctx, profile); err != nil {
		return model.UserProfile{}, fmt.Errorf("update profile %s: %w", userID, err)
	}
	return profile, nil
}

// OnSessionChange subscribes to register, login and logout events.
// The returned func removes the subscription.
func (id *Identity) OnSessionChange(callback func(SessionEvent)) func() {
	id.mu.Lock()
	defer id.mu.Unlock()

	key := id.nextID
	id.nextID++
	id.listeners[key] = callback

	return func() {
		id.mu.Lock()
		defer id.mu.Unlock()
		delete(id.listeners, key)
	}
}

func (id *Identity) notify(event SessionEvent) {
	id.mu.RLock()
	callbacks := make([]func(SessionEvent), 0, len(id.listeners))
	for _, cb := range id.listeners {
		callbacks = append(callbacks, cb)
	}
	id.mu.RUnlock()

	for _, cb := range callbacks {
		cb(event)
	}
}

func (id *Identity) issue(userID string) (Session, error) {
	token, expiresAt, err := id.tokens.GenerateToken(userID)
	if err != nil {
		return Session{}, fmt.Errorf("generate token: %w", err)
	}
	return Session{Token: token, UserID: userID, ExpiresAt: expiresAt}, nil
}
