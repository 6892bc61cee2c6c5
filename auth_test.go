package main

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestAuth(t *testing.T, db *DB) *Auth {
	t.Helper()
	a := NewAuth(db, "")
	a.cost = bcrypt.MinCost
	return a
}

func TestRegisterAndLogin(t *testing.T) {
	a := newTestAuth(t, openTestDB(t))

	token, err := a.Register("  maverick ", "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if name, err := a.ValidateToken(token); err != nil || name != "maverick" {
		t.Errorf("ValidateToken = %q, %v", name, err)
	}
	if _, err := a.Register("maverick", "other pass"); !errors.Is(err, ErrNameTaken) {
		t.Errorf("duplicate register: %v", err)
	}

	token, err = a.Login("maverick", "hunter2", "10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if name, _ := a.ValidateToken(token); name != "maverick" {
		t.Errorf("login token names %q", name)
	}
	if _, err := a.Login("maverick", "wrong", "10.0.0.1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: %v", err)
	}
	if _, err := a.Login("goose", "hunter2", "10.0.0.1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown pilot: %v", err)
	}
	if reserved, err := a.Reserved("maverick"); err != nil || !reserved {
		t.Errorf("Reserved = %v, %v", reserved, err)
	}
}

func TestRegisterValidation(t *testing.T) {
	a := newTestAuth(t, openTestDB(t))
	for _, tc := range []struct{ name, password string }{
		{"x", "longenough"},
		{"waytoolongapilotname", "longenough"},
		{"iceman", "abc"},
	} {
		if _, err := a.Register(tc.name, tc.password); !errors.Is(err, ErrInvalidAccount) {
			t.Errorf("Register(%q, %q) = %v, want ErrInvalidAccount", tc.name, tc.password, err)
		}
	}
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	db := openTestDB(t)
	a := newTestAuth(t, db)
	token, err := a.Register("viper", "secret")
	if err != nil {
		t.Fatal(err)
	}

	// the generated secret is persisted, so a restart still accepts it
	again := NewAuth(db, "")
	if name, err := again.ValidateToken(token); err != nil || name != "viper" {
		t.Errorf("after restart: %q, %v", name, err)
	}

	other := NewAuth(db, "a different secret")
	if _, err := other.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign secret: %v", err)
	}
	if _, err := a.ValidateToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token: %v", err)
	}
}

func TestLoginRateLimit(t *testing.T) {
	a := newTestAuth(t, openTestDB(t))
	var err error
	for i := 0; i <= maxLoginAttempts; i++ {
		_, err = a.Login("nobody", "pw", "10.0.0.9")
	}
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Errorf("attempt %d: %v, want ErrTooManyAttempts", maxLoginAttempts+1, err)
	}
	if _, err := a.Login("nobody", "pw", "10.0.0.10"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("other address limited too: %v", err)
	}
}

func TestCleanName(t *testing.T) {
	cases := map[string]string{
		"  ace  ":                 "ace",
		"":                        "",
		"abcdefghijklmnopqrstuvw": "abcdefghijklmnop",
	}
	for in, want := range cases {
		if got := CleanName(in); got != want {
			t.Errorf("CleanName(%q) = %q, want %q", in, got, want)
		}
	}
}
