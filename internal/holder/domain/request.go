package domain

import (
	"fmt"

	"github.com/aussiebroadwan/userholder/pkg/cryptox"
	"github.com/aussiebroadwan/userholder/pkg/idx"
)

// Sender transmits an access code to a phone. Delivery is fire-and-forget:
// the identity never learns whether the code arrived.
type Sender interface {
	Send(phone, code string)
}

// Request is one of ByPassword, ByPhone or ByImport.
type Request interface {
	request()
}

// ByPassword registers a user by email and password.
type ByPassword struct {
	FirstName string
	LastName  string // optional
	Email     string
	Password  string
}

// ByPhone registers a user by phone; the password is a generated access code.
type ByPhone struct {
	FirstName string
	LastName  string // optional
	Phone     string
}

// ByImport rebuilds a user from a bulk record. Salt and PasswordHash are
// trusted and used verbatim.
type ByImport struct {
	FirstName    string
	LastName     string // optional
	Email        string // optional
	Phone        string // optional
	Salt         string
	PasswordHash string
}

func (ByPassword) request() {}
func (ByPhone) request()    {}
func (ByImport) request()   {}

// Factory builds identities. The zero value hashes with MD5 and delivers
// no access codes.
type Factory struct {
	Digest cryptox.Digest
	Sender Sender
}

// New validates req and returns the identity it describes. Every failure on
// caller input wraps ErrValidation.
func (f Factory) New(req Request) (*Identity, error) {
	digest := f.Digest
	if digest == nil {
		digest = cryptox.MD5
	}

	switch r := req.(type) {
	case ByPassword:
		if isBlank(r.Password) {
			return nil, fmt.Errorf("%w: password must not be blank", ErrValidation)
		}
		if isBlank(r.Email) {
			return nil, fmt.Errorf("%w: email must not be blank", ErrValidation)
		}
		id, err := build(r.FirstName, r.LastName, r.Email, "", Meta{"auth": "password"})
		if err != nil {
			return nil, err
		}
		if id.salt, err = cryptox.GenerateSalt(); err != nil {
			return nil, err
		}
		id.digest = digest
		id.passwordHash = digest.Sum(id.salt, r.Password)
		return id, nil

	case ByPhone:
		id, err := build(r.FirstName, r.LastName, "", r.Phone, Meta{"auth": "sms"})
		if err != nil {
			return nil, err
		}
		if id.salt, err = cryptox.GenerateSalt(); err != nil {
			return nil, err
		}
		code, err := cryptox.GenerateAccessCode()
		if err != nil {
			return nil, err
		}
		id.digest = digest
		id.sender = f.Sender
		id.passwordHash = digest.Sum(id.salt, code)
		id.accessCode = code
		id.deliver(code)
		return id, nil

	case ByImport:
		id, err := build(r.FirstName, r.LastName, r.Email, r.Phone, Meta{"src": "csv"})
		if err != nil {
			return nil, err
		}
		id.digest = digest
		id.salt = r.Salt
		id.passwordHash = r.PasswordHash
		return id, nil

	default:
		return nil, fmt.Errorf("%w: unsupported request %T", ErrValidation, req)
	}
}

// build is the validation path shared by every request variant. Nothing is
// allocated until all checks pass.
func build(first, last, email, rawPhone string, meta Meta) (*Identity, error) {
	if isBlank(first) {
		return nil, fmt.Errorf("%w: first name must not be blank", ErrValidation)
	}
	if isBlank(email) && isBlank(rawPhone) {
		return nil, fmt.Errorf("%w: email or phone must not be blank", ErrValidation)
	}
	if isBlank(last) {
		last = ""
	}
	if isBlank(email) {
		email = ""
	}

	var phone string
	if !isBlank(rawPhone) {
		var err error
		if phone, err = NormalizePhone(rawPhone); err != nil {
			return nil, err
		}
	}

	login := phone
	if email != "" {
		login = EmailLogin(email)
	}

	id := &Identity{
		id:        idx.New(),
		firstName: first,
		lastName:  last,
		email:     email,
		phone:     phone,
		login:     login,
		meta:      meta,
	}
	id.userInfo = id.snapshot()
	return id, nil
}
