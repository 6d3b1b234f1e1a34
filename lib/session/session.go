package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"reviewlens-client/lib/gateway"
	"reviewlens-client/lib/kvstore"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("session")

var validate = validator.New(validator.WithRequiredStructEnabled())

const (
	tokenKey = "session:token"
	userKey  = "session:user"
)

// UserProfile is the id-less bag of profile fields the backend hands
// out. It is always replaced wholesale, never field-patched.
type UserProfile struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Company   string `json:"company"`
	Role      string `json:"role"`
	Avatar    string `json:"avatar"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Registration struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Company  string `json:"company"`
}

// ProfileUpdate carries the mutable profile fields. Email is absent
// on purpose, it cannot be changed through this layer.
type ProfileUpdate struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Role    string `json:"role"`
	Avatar  string `json:"avatar"`
}

// Manager is the single source of truth for "is the user logged in"
// and "who are they". It is the only writer of session state; every
// other component observes it through accessors.
type Manager struct {
	mu    sync.RWMutex
	token string
	user  *UserProfile

	api   *gateway.Client
	store kvstore.Store
}

func NewManager(api *gateway.Client, store kvstore.Store) *Manager {
	return &Manager{
		api:   api,
		store: store,
	}
}

type authResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    *UserProfile `json:"user"`
	Error   string       `json:"error"`
}

// InitializeAuth restores a persisted session and re-validates it
// with the backend. It fails closed: any verification error clears
// the session and returns false.
func (m *Manager) InitializeAuth(ctx context.Context) bool {
	ctx, span := tracer.Start(ctx, "InitializeAuth")
	defer span.End()

	token, err := m.store.Get(ctx, tokenKey)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			slog.WarnContext(ctx, "failed to read persisted token", "err", err)
		}
		return false
	}

	var user *UserProfile
	rawUser, err := m.store.Get(ctx, userKey)
	if err == nil {
		user = &UserProfile{}
		if json.Unmarshal(rawUser, user) != nil {
			user = nil
		}
	}

	m.mu.Lock()
	m.token = string(token)
	m.user = user
	m.mu.Unlock()

	return m.VerifyToken(ctx)
}

// Login authenticates with the backend and stores the returned
// session. A failed login leaves any prior session untouched.
func (m *Manager) Login(ctx context.Context, creds Credentials) error {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	err := validate.Struct(creds)
	if err != nil {
		return &gateway.ValidationError{
			Message: "Please provide a valid email address and password.",
		}
	}

	var res authResponse
	err = m.api.Request(ctx, "/auth/login", gateway.RequestOptions{
		Method: "POST",
		Body:   creds,
		NoAuth: true,
	}, &res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login request failed")
		return err
	}
	if res.Token == "" || res.User == nil {
		msg := res.Error
		if msg == "" {
			msg = "Login failed, please try again."
		}
		span.SetStatus(codes.Error, "login rejected")
		return fmt.Errorf("%s", msg)
	}

	m.setSession(ctx, res.Token, res.User)
	return nil
}

// Register creates an account and stores the returned session, with
// the same failure semantics as Login.
func (m *Manager) Register(ctx context.Context, reg Registration) error {
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	err := validate.Struct(reg)
	if err != nil {
		return &gateway.ValidationError{
			Message: "Please fill out every required field (passwords need at least 8 characters).",
		}
	}

	var res authResponse
	err = m.api.Request(ctx, "/auth/register", gateway.RequestOptions{
		Method: "POST",
		Body:   reg,
		NoAuth: true,
	}, &res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "register request failed")
		return err
	}
	if res.Token == "" || res.User == nil {
		msg := res.Error
		if msg == "" {
			msg = "Registration failed, please try again."
		}
		span.SetStatus(codes.Error, "registration rejected")
		return fmt.Errorf("%s", msg)
	}

	m.setSession(ctx, res.Token, res.User)
	return nil
}

// Logout notifies the backend on a best-effort basis and always
// clears local state.
func (m *Manager) Logout(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "Logout")
	defer span.End()

	if m.Token() != "" {
		err := m.api.Post(ctx, "/auth/logout", nil, nil)
		if err != nil {
			slog.WarnContext(ctx, "remote logout failed, clearing locally anyway", "err", err)
		}
	}
	m.ClearSession()
}

type verifyResponse struct {
	Valid bool         `json:"valid"`
	User  *UserProfile `json:"user"`
}

// VerifyToken re-validates the current token. Any transport error or
// a valid:false verdict clears the session; a valid:true verdict
// refreshes the cached user profile.
func (m *Manager) VerifyToken(ctx context.Context) bool {
	ctx, span := tracer.Start(ctx, "VerifyToken")
	defer span.End()

	if m.Token() == "" {
		return false
	}

	var res verifyResponse
	err := m.api.Post(ctx, "/auth/verify-token", nil, &res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token verification failed")
		m.ClearSession()
		return false
	}
	if !res.Valid {
		span.SetStatus(codes.Error, "token no longer valid")
		m.ClearSession()
		return false
	}

	if res.User != nil {
		m.mu.Lock()
		m.user = res.User
		m.mu.Unlock()
		m.persist(ctx)
	}
	return true
}

type profileResponse struct {
	Success bool         `json:"success"`
	User    *UserProfile `json:"user"`
	Error   string       `json:"error"`
}

func (m *Manager) Profile(ctx context.Context) (*UserProfile, error) {
	ctx, span := tracer.Start(ctx, "Profile")
	defer span.End()

	err := m.api.EnsureAuthenticated()
	if err != nil {
		return nil, err
	}

	var res profileResponse
	err = m.api.Get(ctx, "/auth/profile", &res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch profile")
		return nil, err
	}
	if res.User == nil {
		return nil, fmt.Errorf("The server returned no profile.")
	}

	m.mu.Lock()
	m.user = res.User
	m.mu.Unlock()
	m.persist(ctx)

	return res.User, nil
}

func (m *Manager) UpdateProfile(ctx context.Context, update ProfileUpdate) (*UserProfile, error) {
	ctx, span := tracer.Start(ctx, "UpdateProfile")
	defer span.End()

	err := m.api.EnsureAuthenticated()
	if err != nil {
		return nil, err
	}

	var res profileResponse
	err = m.api.Put(ctx, "/auth/profile", update, &res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update profile")
		return nil, err
	}
	if res.User == nil {
		return nil, fmt.Errorf("The server returned no profile.")
	}

	m.mu.Lock()
	m.user = res.User
	m.mu.Unlock()
	m.persist(ctx)

	return res.User, nil
}

// setSession replaces token and user together so observers never see
// a half-updated session.
func (m *Manager) setSession(ctx context.Context, token string, user *UserProfile) {
	m.mu.Lock()
	m.token = token
	m.user = user
	m.mu.Unlock()
	m.persist(ctx)
}

// persist mirrors in-memory state into the store. When a write fails
// the in-memory session stays authoritative for this process; the
// user just won't survive a restart.
func (m *Manager) persist(ctx context.Context) {
	m.mu.RLock()
	token := m.token
	user := m.user
	m.mu.RUnlock()

	err := m.store.Set(ctx, tokenKey, []byte(token))
	if err != nil {
		slog.WarnContext(ctx, "failed to persist session token", "err", err)
		return
	}
	rawUser, err := json.Marshal(user)
	if err == nil {
		err = m.store.Set(ctx, userKey, rawUser)
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to persist session user", "err", err)
	}
}

// ClearSession wipes both in-memory and persisted state. It is also
// the gateway's auth-expired callback target.
func (m *Manager) ClearSession() {
	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.mu.Unlock()

	ctx := context.Background()
	err := m.store.Delete(ctx, tokenKey)
	if err == nil {
		err = m.store.Delete(ctx, userKey)
	}
	if err != nil {
		slog.Warn("failed to clear persisted session", "err", err)
	}
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token != "" && m.user != nil
}

func (m *Manager) CurrentUser() *UserProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// Token implements gateway.TokenSource.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *Manager) HasRole(role string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil && m.user.Role == role
}

// DisplayName prefers the profile name, then the local part of the
// email address.
func (m *Manager) DisplayName() string {
	user := m.CurrentUser()
	if user == nil {
		return ""
	}
	if user.Name != "" {
		return user.Name
	}
	at := strings.Index(user.Email, "@")
	if at > 0 {
		return user.Email[:at]
	}
	return user.Email
}

// Initials returns up to two uppercase initials for avatar
// placeholders.
func (m *Manager) Initials() string {
	name := m.DisplayName()
	if name == "" {
		return ""
	}
	fields := strings.Fields(name)
	initials := ""
	for i, f := range fields {
		if i >= 2 {
			break
		}
		initials += strings.ToUpper(f[:1])
	}
	if initials == "" {
		initials = strings.ToUpper(name[:1])
	}
	return initials
}
