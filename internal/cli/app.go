package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/idilsaglam/board/internal/apperr"
	"github.com/idilsaglam/board/internal/config"
	"github.com/idilsaglam/board/internal/controller"
	"github.com/idilsaglam/board/internal/remote"
	"github.com/idilsaglam/board/internal/store"
	"github.com/idilsaglam/board/internal/store/jsonstore"
	"github.com/idilsaglam/board/internal/store/memory"
	redisstore "github.com/idilsaglam/board/internal/store/redis"
	"github.com/idilsaglam/board/internal/store/sqlite"
)

// app is everything a subcommand needs, wired from configuration.
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	store store.Store
	ctrl  *controller.Controller
}

func newApp(ctx context.Context, opt Options) (*app, error) {
	cfg := opt.Config
	st := opt.Store
	if st == nil {
		var err error
		if st, err = openStore(ctx, cfg.Storage); err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
		}
	}

	client := remote.New(remote.Options{
		CollectionURL: cfg.API.CollectionURL(),
		LoginURL:      cfg.API.LoginURL(),
		Encoding:      remote.Encoding(cfg.API.Encoding),
		EscapeHTML:    cfg.API.EscapeHTML(),
		Timeout:       cfg.API.Timeout,
		UserAgent:     cfg.API.UserAgent,
		HTTPClient:    opt.HTTPClient,
		Logger:        opt.Logger,
	})

	variant := controller.Authenticated
	if cfg.Mode.Variant == config.VariantGuest {
		variant = controller.Guest
	}
	ctrl := controller.New(controller.Options{
		Remote:        client,
		Store:         st,
		Variant:       variant,
		RequireAuthor: variant == controller.Guest && cfg.Mode.Kind == config.KindComments,
		ForceError:    cfg.API.ForceError,
		NewestFirst:   cfg.UI.NewestFirst,
		Logger:        opt.Logger,
	})

	return &app{cfg: cfg, log: opt.Logger, store: st, ctrl: ctrl}, nil
}

func (a *app) close() {
	a.ctrl.Dispose()
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close store")
	}
}

// openStore builds the session backend named in cfg. File backends live
// under ~/.board unless a path is configured.
func openStore(ctx context.Context, cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.StorageMemory:
		return memory.New(), nil

	case config.StorageRedis:
		return redisstore.Connect(ctx, redisstore.Config{
			Addr:   cfg.RedisAddr,
			DB:     cfg.RedisDB,
			Prefix: cfg.RedisPrefix,
		})

	case config.StorageSQLite:
		path, err := dataPath(cfg.Path, "board.db")
		if err != nil {
			return nil, err
		}
		return sqlite.Open(ctx, path)

	case config.StorageFile, "":
		path, err := dataPath(cfg.Path, jsonstore.FileName)
		if err != nil {
			return nil, err
		}
		return jsonstore.New(path), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func dataPath(configured, name string) (string, error) {
	path := configured
	if path == "" {
		dir, err := config.DataDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(dir, name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	return path, nil
}

// exitCode maps an operation error to 0 ok, 1 failure or 2 usage.
func exitCode(err error) int {
	var ve *apperr.ValidationError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ve),
		errors.Is(err, apperr.ErrMustAuthenticate),
		errors.Is(err, controller.ErrGuestMode):
		return 2
	}
	return 1
}

// message is the line shown for a failed operation: the controller's
// notice when it set one.
func (a *app) message(err error) string {
	if n := a.ctrl.State().Notice; n.Severity == controller.SeverityError && !n.Empty() {
		return n.Text
	}
	return apperr.UserMessage(err)
}

// tokenSource says where the active token comes from.
func (a *app) tokenSource() string {
	if os.Getenv(store.TokenEnv) != "" {
		return "env"
	}
	return a.cfg.Storage.Backend
}
