package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/userholder/internal/holder/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu    sync.Mutex
	codes map[string][]string // phone -> codes in send order
}

func (s *recordingSender) Send(phone, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codes == nil {
		s.codes = make(map[string][]string)
	}
	s.codes[phone] = append(s.codes[phone], code)
}

func (s *recordingSender) sent(phone string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.codes[phone]...)
}

func newTestRegistry(t *testing.T) (*Registry, *recordingSender) {
	t.Helper()
	sender := &recordingSender{}
	r := NewRegistry(domain.Factory{Sender: sender}, nil)
	t.Cleanup(r.Clear)
	return r, sender
}

func TestRegisterByEmailThenLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _ := newTestRegistry(t)

	id, err := r.RegisterByEmail(ctx, "John Doe", "John_Doe@unknown.com", "testPass")
	require.NoError(t, err)
	require.Equal(t, "john_doe@unknown.com", id.Login())

	info, ok := r.Login(ctx, " john_doe@unknown.com ", "testPass")
	require.True(t, ok)
	require.Equal(t, id.UserInfo(), info)
	require.Contains(t, info, "fullName: John Doe")

	info, ok = r.Login(ctx, "john_doe@unknown.com", "wrong")
	require.False(t, ok)
	require.Empty(t, info)

	_, ok = r.Login(ctx, "nobody@unknown.com", "testPass")
	require.False(t, ok)
}

func TestRegisterByEmail_Duplicate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _ := newTestRegistry(t)

	_, err := r.RegisterByEmail(ctx, "John Doe", "john@example.com", "p1")
	require.NoError(t, err)

	_, err = r.RegisterByEmail(ctx, "Jane Doe", " John@Example.com ", "p2")
	require.ErrorIs(t, err, domain.ErrDuplicateLogin)

	// The first registration is untouched
	_, ok := r.Login(ctx, "john@example.com", "p1")
	require.True(t, ok)
	require.Equal(t, 1, r.Len())
}

func TestRegister_FullNameRules(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name      string
		fullName  string
		wantFirst string
		wantLast  string
		wantErr   bool
	}{
		{"first and last", "John Smith", "John", "Smith", false},
		{"first only", "John", "John", "", false},
		{"three names", "John Smith Doe", "", "", true},
		{"blank", " ", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRegistry(t)

			id, err := r.RegisterByEmail(ctx, tt.fullName, "j@x.io", "p")
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrValidation)
				require.Zero(t, r.Len())
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantFirst, id.FirstName())
			require.Equal(t, tt.wantLast, id.LastName())
		})
	}
}

func TestRegisterByEmail_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _ := newTestRegistry(t)

	_, err := r.RegisterByEmail(ctx, "John", "  ", "p")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = r.RegisterByEmail(ctx, "John", "j@x.io", "")
	require.ErrorIs(t, err, domain.ErrValidation)

	require.Zero(t, r.Len())
}

func TestRegisterByPhone_AccessCodeLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, sender := newTestRegistry(t)

	id, err := r.RegisterByPhone(ctx, "John Doe", "+7 (916) 123-45-67")
	require.NoError(t, err)
	require.Equal(t, "+79161234567", id.Login())

	codes := sender.sent("+79161234567")
	require.Len(t, codes, 1)
	first := codes[0]
	require.Equal(t, first, id.AccessCode())

	// The code is the password, and formatted phone input still finds the user
	info, ok := r.Login(ctx, "+7 (916) 123-45-67", first)
	require.True(t, ok)
	require.Contains(t, info, "meta: {auth=sms}")

	require.NoError(t, r.RequestAccessCode(ctx, "+7 916 123 45 67"))

	codes = sender.sent("+79161234567")
	require.Len(t, codes, 2)
	second := codes[1]

	_, ok = r.Login(ctx, "+79161234567", second)
	require.True(t, ok)
	if first != second {
		_, ok = r.Login(ctx, "+79161234567", first)
		require.False(t, ok, "a refreshed code must invalidate the previous one")
	}
}

func TestRegisterByPhone_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, sender := newTestRegistry(t)

	for _, phone := range []string{"79161234567", "+7916123456", ""} {
		_, err := r.RegisterByPhone(ctx, "John", phone)
		require.ErrorIs(t, err, domain.ErrValidation, phone)
	}
	require.Zero(t, r.Len())
	require.Empty(t, sender.sent("+79161234567"))
}

func TestRegisterByPhone_DuplicateSendsNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, sender := newTestRegistry(t)

	_, err := r.RegisterByPhone(ctx, "John", "+79161234567")
	require.NoError(t, err)

	_, err = r.RegisterByPhone(ctx, "Jane", "+7 916 123-45-67")
	require.ErrorIs(t, err, domain.ErrDuplicateLogin)
	require.Len(t, sender.sent("+79161234567"), 1)
}

func TestRegister_ValidationBeforeDuplicate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, sender := newTestRegistry(t)

	_, err := r.RegisterByEmail(ctx, "John", "a@b.com", "p")
	require.NoError(t, err)
	_, err = r.RegisterByEmail(ctx, "Digits", "123", "p")
	require.NoError(t, err)

	tests := []struct {
		name     string
		register func() error
	}{
		{
			name: "blank password on taken email",
			register: func() error {
				_, err := r.RegisterByEmail(ctx, "Jane", "a@b.com", "")
				return err
			},
		},
		{
			name: "invalid phone matching a stored login",
			register: func() error {
				_, err := r.RegisterByPhone(ctx, "Jane", "1-2-3")
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.register()
			require.ErrorIs(t, err, domain.ErrValidation)
			require.NotErrorIs(t, err, domain.ErrDuplicateLogin)
		})
	}
	require.Equal(t, 2, r.Len())
	require.Empty(t, sender.sent("123"))
}

type callbackSender struct {
	fn func(phone, code string)
}

func (s callbackSender) Send(phone, code string) { s.fn(phone, code) }

func TestRegisterByPhone_SenderRunsOutsideLock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var (
		r        *Registry
		innerErr error
		sizeSeen int
	)
	r = NewRegistry(domain.Factory{Sender: callbackSender{fn: func(phone, _ string) {
		sizeSeen = r.Len()
		_, innerErr = r.RegisterByPhone(ctx, "Jane", phone)
	}}}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := r.RegisterByPhone(ctx, "John", "+79161234567")
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("registration blocked inside Send")
	}

	require.Zero(t, sizeSeen)
	require.ErrorIs(t, innerErr, domain.ErrDuplicateLogin)
	require.Equal(t, 1, r.Len())

	// The reservation is released once registration completes
	_, err := r.RegisterByPhone(ctx, "Jane", "+79161234567")
	require.ErrorIs(t, err, domain.ErrDuplicateLogin)
	r.Clear()
	_, err = r.RegisterByPhone(ctx, "Jane", "+79161234567")
	require.NoError(t, err)
}

func TestRequestAccessCode_Misses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _ := newTestRegistry(t)

	// Unknown login is a silent no-op
	require.NoError(t, r.RequestAccessCode(ctx, "+70000000000"))

	// Email logins are not reachable through the phone normalization
	_, err := r.RegisterByEmail(ctx, "John", "j@x.io", "p")
	require.NoError(t, err)
	require.NoError(t, r.RequestAccessCode(ctx, "j@x.io"))
}

func TestRequestAccessCode_PropagatesIdentityErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _ := newTestRegistry(t)

	_, err := r.ImportBatch(ctx, []string{"John Smith;;a1b2c3:deadbeef;+79161234567"})
	require.NoError(t, err)

	err = r.RequestAccessCode(ctx, "+79161234567")
	require.ErrorIs(t, err, domain.ErrNoAccessCode)
}

func TestLookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _ := newTestRegistry(t)

	reg, err := r.RegisterByPhone(ctx, "John", "+79161234567")
	require.NoError(t, err)

	id, ok := r.Lookup("+7-916-123-45-67")
	require.True(t, ok)
	require.Same(t, reg, id)

	_, ok = r.Lookup("")
	require.False(t, ok)
}

func TestClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _ := newTestRegistry(t)

	_, err := r.RegisterByEmail(ctx, "John", "j@x.io", "p")
	require.NoError(t, err)
	require.Equal(t, 1, r.Len())

	r.Clear()
	require.Zero(t, r.Len())

	// Login is free again
	_, err = r.RegisterByEmail(ctx, "John", "j@x.io", "p")
	require.NoError(t, err)
}

func TestConcurrentRegistrationIsUnique(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _ := newTestRegistry(t)

	const workers = 32
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Everyone races for the same login, plus one unique login each
			if _, err := r.RegisterByEmail(ctx, "Same", "same@x.io", "p"); err == nil {
				successes.Add(1)
			} else {
				assert.ErrorIs(t, err, domain.ErrDuplicateLogin)
			}
			_, err := r.RegisterByEmail(ctx, "Own", fmt.Sprintf("user%d@x.io", i), "p")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), successes.Load())
	require.Equal(t, workers+1, r.Len())
}
