package directory

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Directory is the user directory the session engine authenticates
// against. Credentials are either a stored password or a signed bearer
// token issued by IssueToken (for the auth service's single-sign-on flow).
type Directory struct {
	db          *sql.DB
	tokenSecret []byte // empty disables token credentials
}

// New wraps the shared database's users table. tokenSecret may be empty.
func New(db *sql.DB, tokenSecret string) *Directory {
	var secret []byte
	if tokenSecret != "" {
		secret = []byte(tokenSecret)
	}
	return &Directory{db: db, tokenSecret: secret}
}

// Authenticate checks a credential for username. A credential shaped like a
// JWT is verified as a token first, then as a password, so a user whose
// password happens to contain dots is not locked out.
func (d *Directory) Authenticate(username, credential string) (bool, error) {
	if username == "" || credential == "" {
		return false, nil
	}

	if d.tokenSecret != nil && strings.Count(credential, ".") == 2 {
		if d.verifyToken(username, credential) {
			return true, nil
		}
	}

	var hash string
	err := d.db.QueryRow("SELECT password_hash FROM users WHERE username = ?", username).Scan(&hash)
	if err == sql.ErrNoRows {
		// Burn comparable time so probing cannot distinguish a missing
		// user from a wrong password.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(credential))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up user %q: %v", username, err)
	}
	if hash == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)) == nil, nil
}

// CreateUser adds a user with a bcrypt-hashed password, or updates the
// password if the user exists.
func (d *Directory) CreateUser(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %v", err)
	}
	_, err = d.db.Exec(`
		INSERT INTO users (username, password_hash) VALUES (?, ?)
		ON CONFLICT(username) DO UPDATE SET password_hash = excluded.password_hash
	`, username, string(hash))
	return err
}

// IssueToken creates a signed bearer token for username, valid for ttl.
func (d *Directory) IssueToken(username string, ttl time.Duration) (string, error) {
	if d.tokenSecret == nil {
		return "", fmt.Errorf("token authentication is not configured")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(d.tokenSecret)
}

func (d *Directory) verifyToken(username, credential string) bool {
	token, err := jwt.ParseWithClaims(credential, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return d.tokenSecret, nil
	})
	if err != nil || !token.Valid {
		return false
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	return ok && claims.Subject == username
}
