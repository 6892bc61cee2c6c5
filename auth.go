package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	jwtExpiry        = 7 * 24 * time.Hour // 7 days
	bcryptCost       = 12
	minPasswordLen   = 4
	minNameLen       = 2
	maxNameLen       = 16
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10
)

var (
	ErrNameReserved       = errors.New("name reserved")
	ErrNameTaken          = errors.New("name already taken")
	ErrInvalidCredentials = errors.New("invalid name or password")
	ErrTooManyAttempts    = errors.New("too many login attempts, try again later")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidAccount     = errors.New("invalid account")
)

// Auth manages registered pilot names
type Auth struct {
	db        *DB
	jwtSecret []byte
	cost      int

	// Rate limiting for login attempts (IP -> attempts)
	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

// NewAuth creates a new Auth handler. A non-empty secret overrides the one
// stored in the database.
func NewAuth(db *DB, secret string) *Auth {
	key := []byte(secret)
	if secret == "" {
		key = loadOrCreateSecret(db)
	}
	return &Auth{
		db:        db,
		jwtSecret: key,
		cost:      bcryptCost,
		rateMap:   make(map[string]*rateEntry),
	}
}

// loadOrCreateSecret loads the JWT secret from the database, or generates
// and persists a new one if none exists.
func loadOrCreateSecret(db *DB) []byte {
	if h := db.GetSetting("jwt_secret"); h != "" {
		if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
			return b
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate JWT secret: " + err.Error())
	}
	if err := db.SetSetting("jwt_secret", hex.EncodeToString(secret)); err != nil {
		log.Printf("auth: could not persist JWT secret: %v", err)
	}
	return secret
}

// CleanName trims a requested pilot name and caps its length.
func CleanName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return name
}

// Register creates a pilot account and returns a token for it
func (a *Auth) Register(name, password string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) < minNameLen || len(name) > maxNameLen {
		return "", fmt.Errorf("%w: name must be %d-%d characters", ErrInvalidAccount, minNameLen, maxNameLen)
	}
	if len(password) < minPasswordLen {
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidAccount, minPasswordLen)
	}

	exists, err := a.db.PilotExists(name)
	if err != nil {
		return "", fmt.Errorf("register %q: %w", name, err)
	}
	if exists {
		return "", ErrNameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return "", fmt.Errorf("register %q: %w", name, err)
	}
	if _, err := a.db.CreatePilot(name, string(hash)); err != nil {
		return "", fmt.Errorf("register %q: %w", name, err)
	}
	return a.generateToken(name)
}

// Login checks a pilot's password and returns a token
func (a *Auth) Login(name, password, ip string) (string, error) {
	if !a.checkRate(ip) {
		return "", ErrTooManyAttempts
	}
	pilot, err := a.db.GetPilotByName(strings.TrimSpace(name))
	if err != nil {
		return "", fmt.Errorf("login %q: %w", name, err)
	}
	if pilot == nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(pilot.PassHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return a.generateToken(pilot.Name)
}

// ValidateToken returns the pilot name a token was issued for
func (a *Auth) ValidateToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	name, ok := claims["usr"].(string)
	if !ok || name == "" {
		return "", ErrInvalidToken
	}
	return name, nil
}

// Reserved reports whether name belongs to a registered pilot
func (a *Auth) Reserved(name string) (bool, error) {
	return a.db.PilotExists(name)
}

func (a *Auth) generateToken(name string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"usr": name,
		"exp": now.Add(jwtExpiry).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

func (a *Auth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := time.Now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(loginRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxLoginAttempts
}
