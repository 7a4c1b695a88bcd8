// Package store is the durable key-value storage that keeps the session
// across runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/idilsaglam/board/internal/model"
)

// Keys holding the session.
const (
	KeyToken       = "token"
	KeyDisplayName = "displayName"
	KeyLogin       = "login"
)

// TokenEnv overrides the stored token when set.
const TokenEnv = "BOARD_TOKEN"

var sessionKeys = []string{KeyToken, KeyDisplayName, KeyLogin}

// Store is a small string key-value store. Get reports ok=false for a
// missing key; Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// LoadSession returns the stored session, or nil when there is no token.
// A token from TokenEnv wins over the stored one. When the store cannot be
// read, the error comes back together with the TokenEnv session, if any.
func LoadSession(ctx context.Context, s Store) (*model.Session, error) {
	var sess model.Session
	for _, k := range sessionKeys {
		v, _, err := s.Get(ctx, k)
		if err != nil {
			err = fmt.Errorf("load %s: %w", k, err)
			if env := envToken(); env != "" {
				return &model.Session{Token: env}, err
			}
			return nil, err
		}
		switch k {
		case KeyToken:
			sess.Token = StripBearer(v)
		case KeyDisplayName:
			sess.DisplayName = v
		case KeyLogin:
			sess.Login = v
		}
	}
	if env := envToken(); env != "" {
		sess.Token = env
	}
	if sess.Token == "" {
		return nil, nil
	}
	return &sess, nil
}

func envToken() string {
	return StripBearer(os.Getenv(TokenEnv))
}

// SaveSession writes every session field.
func SaveSession(ctx context.Context, s Store, sess model.Session) error {
	token := StripBearer(strings.TrimSpace(sess.Token))
	if token == "" {
		return errors.New("empty token")
	}
	values := map[string]string{
		KeyToken:       token,
		KeyDisplayName: sess.DisplayName,
		KeyLogin:       sess.Login,
	}
	for _, k := range sessionKeys {
		if err := s.Set(ctx, k, values[k]); err != nil {
			return fmt.Errorf("save %s: %w", k, err)
		}
	}
	return nil
}

// ClearSession deletes every session field. All deletes are attempted.
func ClearSession(ctx context.Context, s Store) error {
	var errs []error
	for _, k := range sessionKeys {
		if err := s.Delete(ctx, k); err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

// StripBearer drops a leading "Bearer " so pasted headers work as tokens.
func StripBearer(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 7 && strings.EqualFold(s[:7], "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
