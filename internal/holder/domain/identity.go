package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/aussiebroadwan/userholder/pkg/cryptox"
	"github.com/aussiebroadwan/userholder/pkg/idx"
)

// Meta records where an identity came from, e.g. auth=password or src=csv.
type Meta map[string]string

// String renders meta as {k=v, k2=v2} with sorted keys.
func (m Meta) String() string {
	pairs := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		pairs = append(pairs, k+"="+m[k])
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

// Identity is a single user. Name, contact details and login are fixed at
// construction; only the password hash and access code change afterwards.
type Identity struct {
	id        idx.ID
	firstName string
	lastName  string
	email     string
	phone     string
	login     string
	meta      Meta
	userInfo  string

	digest cryptox.Digest
	sender Sender
	salt   string

	mu           sync.Mutex
	passwordHash string
	accessCode   string
}

func (i *Identity) ID() idx.ID        { return i.id }
func (i *Identity) Login() string     { return i.login }
func (i *Identity) FirstName() string { return i.firstName }
func (i *Identity) LastName() string  { return i.lastName }
func (i *Identity) Email() string     { return i.email }
func (i *Identity) Phone() string     { return i.phone }
func (i *Identity) Salt() string      { return i.salt }
func (i *Identity) Meta() Meta        { return maps.Clone(i.meta) }

// FullName is first and last name joined by a space, first letter capitalized.
func (i *Identity) FullName() string { return fullName(i.firstName, i.lastName) }

// Initials are the uppercased first letters of each name, space separated.
func (i *Identity) Initials() string { return initials(i.firstName, i.lastName) }

// UserInfo returns the profile block captured at construction. It is not
// refreshed when the password or access code change later.
func (i *Identity) UserInfo() string { return i.userInfo }

func (i *Identity) PasswordHash() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.passwordHash
}

// AccessCode returns the current one-time code, empty for identities that
// were not registered by phone.
func (i *Identity) AccessCode() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.accessCode
}

// CheckPassword reports whether candidate hashes to the stored hash.
func (i *Identity) CheckPassword(candidate string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.matches(candidate)
}

// ChangePassword installs newPass if oldPass is the current password.
// On ErrPasswordMismatch the identity is unchanged.
func (i *Identity) ChangePassword(oldPass, newPass string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.changePassword(oldPass, newPass)
}

// RequestAccessCode replaces the current access code with a fresh one, which
// also becomes the password, and hands it to the sender.
func (i *Identity) RequestAccessCode() error {
	i.mu.Lock()
	if i.accessCode == "" {
		i.mu.Unlock()
		return ErrNoAccessCode
	}

	code, err := cryptox.GenerateAccessCode()
	if err != nil {
		i.mu.Unlock()
		return err
	}
	if err := i.changePassword(i.accessCode, code); err != nil {
		i.mu.Unlock()
		return err
	}
	i.accessCode = code
	i.mu.Unlock()

	i.deliver(code)
	return nil
}

// caller holds i.mu
func (i *Identity) matches(candidate string) bool {
	return cryptox.EqualHash(i.digest.Sum(i.salt, candidate), i.passwordHash)
}

// caller holds i.mu
func (i *Identity) changePassword(oldPass, newPass string) error {
	if !i.matches(oldPass) {
		return ErrPasswordMismatch
	}
	i.passwordHash = i.digest.Sum(i.salt, newPass)
	return nil
}

func (i *Identity) deliver(code string) {
	if i.sender != nil {
		i.sender.Send(i.phone, code)
	}
}

func (i *Identity) snapshot() string {
	return strings.Join([]string{
		"firstName: " + i.firstName,
		"lastName: " + orNull(i.lastName),
		"login: " + i.login,
		"fullName: " + i.FullName(),
		"initials: " + i.Initials(),
		"email: " + orNull(i.email),
		"phone: " + orNull(i.phone),
		fmt.Sprintf("meta: %s", i.meta),
	}, "\n")
}

func orNull(s string) string {
	if s == "" {
		return "null"
	}
	return s
}
