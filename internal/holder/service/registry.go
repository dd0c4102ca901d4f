package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aussiebroadwan/userholder/internal/holder/domain"
	"github.com/aussiebroadwan/userholder/internal/holder/metrics"
	"github.com/aussiebroadwan/userholder/pkg/slogx"
)

// Registry holds every known identity keyed by login. It lives only as long
// as the process.
//
// Identities are built without holding the lock, so Factory.Sender may block
// or call back into the registry.
type Registry struct {
	Factory domain.Factory
	Metrics *metrics.Metrics

	mu    sync.RWMutex
	users map[string]*domain.Identity
	// pending holds phone logins whose identity is being built.
	pending map[string]struct{}
}

func NewRegistry(factory domain.Factory, m *metrics.Metrics) *Registry {
	return &Registry{
		Factory: factory,
		Metrics: m,
		users:   make(map[string]*domain.Identity),
		pending: make(map[string]struct{}),
	}
}

// RegisterByEmail creates a password identity. fullName must be "First" or
// "First Last". Validation errors win over a login conflict.
func (r *Registry) RegisterByEmail(ctx context.Context, fullName, email, password string) (*domain.Identity, error) {
	first, last, err := domain.SplitFullName(fullName)
	if err != nil {
		r.Metrics.Registration("email", metrics.OutcomeInvalid)
		return nil, err
	}

	id, err := r.Factory.New(domain.ByPassword{
		FirstName: first,
		LastName:  last,
		Email:     email,
		Password:  password,
	})
	if err != nil {
		r.rejected("email", err)
		return nil, err
	}
	return r.insert(ctx, "email", id)
}

// RegisterByPhone creates an sms identity and sends its first access code.
// The login is reserved before the identity is built, so a conflicting
// registration never triggers a delivery.
func (r *Registry) RegisterByPhone(ctx context.Context, fullName, rawPhone string) (*domain.Identity, error) {
	first, last, err := domain.SplitFullName(fullName)
	if err != nil {
		r.Metrics.Registration("phone", metrics.OutcomeInvalid)
		return nil, err
	}
	phone, err := domain.NormalizePhone(rawPhone)
	if err != nil {
		r.Metrics.Registration("phone", metrics.OutcomeInvalid)
		return nil, err
	}

	if err := r.reserve(ctx, "phone", phone); err != nil {
		return nil, err
	}
	defer r.release(phone)

	id, err := r.Factory.New(domain.ByPhone{
		FirstName: first,
		LastName:  last,
		Phone:     phone,
	})
	if err != nil {
		r.rejected("phone", err)
		return nil, err
	}
	return r.insert(ctx, "phone", id)
}

func (r *Registry) reserve(ctx context.Context, method, login string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, taken := r.users[login]
	_, building := r.pending[login]
	if taken || building {
		return r.duplicate(ctx, method, login)
	}
	r.pending[login] = struct{}{}
	return nil
}

func (r *Registry) release(login string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, login)
}

// insert stores id unless its login is already registered. Pending
// reservations are not consulted; the caller owns its own.
func (r *Registry) insert(ctx context.Context, method string, id *domain.Identity) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.users[id.Login()]; taken {
		return nil, r.duplicate(ctx, method, id.Login())
	}
	if _, building := r.pending[id.Login()]; building && method != "phone" {
		return nil, r.duplicate(ctx, method, id.Login())
	}

	r.users[id.Login()] = id
	r.Metrics.Registration(method, metrics.OutcomeOK)
	slogx.FromContext(ctx).Info("user registered",
		slog.String("method", method),
		slog.String("user_id", id.ID().String()),
		slog.String("login", id.Login()),
		slog.Time("created_at", id.ID().Time()),
	)
	return id, nil
}

func (r *Registry) duplicate(ctx context.Context, method, login string) error {
	slogx.FromContext(ctx).Warn("registration rejected: login taken",
		slog.String("method", method),
		slog.String("login", login),
	)
	r.Metrics.Registration(method, metrics.OutcomeDuplicate)
	return fmt.Errorf("%w: %s", domain.ErrDuplicateLogin, login)
}

func (r *Registry) rejected(method string, err error) {
	outcome := metrics.OutcomeError
	if errors.Is(err, domain.ErrValidation) {
		outcome = metrics.OutcomeInvalid
	}
	r.Metrics.Registration(method, outcome)
}

// Lookup finds an identity by trimmed login, falling back to the login with
// everything but digits and '+' removed.
func (r *Registry) Lookup(login string) (*domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.users[strings.TrimSpace(login)]; ok {
		return id, true
	}
	id, ok := r.users[domain.StripPhone(login)]
	return id, ok
}

// Login returns the identity's info block when the password matches. Unknown
// logins and wrong passwords both yield ok=false.
func (r *Registry) Login(ctx context.Context, login, password string) (string, bool) {
	log := slogx.FromContext(ctx)

	id, found := r.Lookup(login)
	if !found {
		r.Metrics.Login(metrics.OutcomeNotFound)
		log.Debug("login for unknown user")
		return "", false
	}
	if !id.CheckPassword(password) {
		r.Metrics.Login(metrics.OutcomeFailed)
		log.Warn("login failed: wrong password", slog.String("user_id", id.ID().String()))
		return "", false
	}

	r.Metrics.Login(metrics.OutcomeOK)
	return id.UserInfo(), true
}

// RequestAccessCode issues a fresh code to the phone identity matching login.
// An unknown login is not an error; identity errors are returned unchanged.
func (r *Registry) RequestAccessCode(ctx context.Context, login string) error {
	log := slogx.FromContext(ctx)

	r.mu.RLock()
	id, found := r.users[domain.StripPhone(login)]
	r.mu.RUnlock()

	if !found {
		r.Metrics.AccessCode(metrics.OutcomeNotFound)
		return nil
	}

	if err := id.RequestAccessCode(); err != nil {
		r.Metrics.AccessCode(metrics.OutcomeError)
		log.Warn("access code refresh failed",
			slog.String("user_id", id.ID().String()),
			slog.Any("error", err),
		)
		return err
	}

	r.Metrics.AccessCode(metrics.OutcomeOK)
	log.Info("access code refreshed", slog.String("user_id", id.ID().String()))
	return nil
}

// Len reports the number of registered identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Clear forgets every identity.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.users)
}
