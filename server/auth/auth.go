// server/auth/auth.go
package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/zillionme/2023-naaga/server/api"
	"github.com/zillionme/2023-naaga/shared/protocol"
)

var (
	ErrInvalidLogin  = api.NewError(http.StatusUnauthorized, protocol.CodeInvalidLogin, "invalid credentials")
	ErrUsernameTaken = api.NewError(http.StatusConflict, protocol.CodeUsernameTaken, "username already exists")
	ErrBadSignup     = api.NewError(http.StatusBadRequest, protocol.CodeInvalidRequest, "invalid username or password mismatch / too short")
)

const tokenTTL = 24 * time.Hour

// User is one account as stored in users.json.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type userStore struct {
	mu    sync.RWMutex
	path  string
	users map[string]*User
}

func newUserStore(path string) (*userStore, error) {
	us := &userStore{path: path, users: map[string]*User{}}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}
	b, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(b, &us.users); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return us, nil
}

func (s *userStore) save() error {
	// Read under RLock, then write file without holding the lock
	s.mu.RLock()
	b, err := json.MarshalIndent(s.users, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *userStore) get(username string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(username)]
	return u, ok
}

// add stores u unless the name is taken.
func (s *userStore) add(u *User) error {
	key := strings.ToLower(u.Username)
	s.mu.Lock()
	if _, ok := s.users[key]; ok {
		s.mu.Unlock()
		return ErrUsernameTaken
	}
	s.users[key] = u
	s.mu.Unlock()
	return s.save()
}

// Auth issues and checks bearer tokens for registered users.
type Auth struct {
	users  *userStore
	jwtKey []byte
	issuer string
	now    func() time.Time
}

// NewAuth loads users.json and jwt.key from dataDir, generating the key on first start.
func NewAuth(dataDir string) (*Auth, error) {
	users, err := newUserStore(filepath.Join(dataDir, "users.json"))
	if err != nil {
		return nil, err
	}
	keyPath := filepath.Join(dataDir, "jwt.key")
	key, err := os.ReadFile(keyPath)
	if err != nil || len(key) < 32 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, errors.Wrap(err, "generate jwt key")
		}
		if err := os.WriteFile(keyPath, key, 0o600); err != nil {
			return nil, errors.Wrap(err, "write jwt key")
		}
	}
	return &Auth{users: users, jwtKey: key, issuer: "naaga", now: time.Now}, nil
}

// HandleRegister handles POST /auth/register.
func (a *Auth) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req protocol.RegisterReq
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Password) < 6 || req.Password != req.PasswordConfirm {
		api.WriteError(w, ErrBadSignup)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		api.WriteError(w, errors.Wrap(err, "hash password"))
		return
	}
	u := &User{Username: req.Username, PasswordHash: string(hash), CreatedAt: a.now()}
	if err := a.users.add(u); err != nil {
		api.WriteError(w, err)
		return
	}
	log.Printf("registered %s", u.Username)
	api.WriteJSON(w, http.StatusOK, protocol.RegisterResp{OK: true})
}

// HandleLogin handles POST /auth/login and returns a signed token.
func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req protocol.LoginReq
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	u, ok := a.users.get(req.Username)
	if !ok || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		api.WriteError(w, ErrInvalidLogin)
		return
	}
	signed, err := a.IssueToken(u.Username)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, protocol.LoginResp{Token: signed, Username: u.Username})
}

// IssueToken signs an HS256 token for username.
func (a *Auth) IssueToken(username string) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"sub": username,
		"iss": a.issuer,
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtKey)
	return signed, errors.Wrap(err, "sign token")
}

// ParseToken validates tok and returns its subject.
func (a *Auth) ParseToken(tok string) (string, error) {
	if tok == "" {
		return "", errors.New("missing token")
	}
	t, err := jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) {
		return a.jwtKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !t.Valid {
		return "", errors.New("invalid token")
	}
	if claims, ok := t.Claims.(jwt.MapClaims); ok {
		if sub, ok := claims["sub"].(string); ok && sub != "" {
			return sub, nil
		}
	}
	return "", errors.New("bad claims")
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

type ctxKey struct{}

// WithUser returns a context carrying the authenticated username.
func WithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ctxKey{}, username)
}

// UserFrom returns the username stored by RequireAuth.
func UserFrom(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(ctxKey{}).(string)
	return u, ok && u != ""
}

// RequireAuth rejects requests without a valid bearer token (or ?token=) and
// passes the username on through the request context.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.ParseToken(tokenFrom(r))
		if err != nil {
			api.WriteError(w, api.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}
