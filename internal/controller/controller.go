// Package controller keeps a local, ordered mirror of a remote collection
// and the viewer's session, and runs every user operation against it.
//
// The local list is always the result of the last successful fetch,
// possibly overlaid with a pending optimistic change that the next fetch
// supersedes. Rendering layers subscribe to state changes and redraw from
// the copy they receive; the controller itself never draws anything.
package controller

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/idilsaglam/board/internal/apperr"
	"github.com/idilsaglam/board/internal/model"
	"github.com/idilsaglam/board/internal/store"
)

// Remote is the board API as the controller needs it.
type Remote interface {
	List(ctx context.Context, token string) ([]model.Item, error)
	Create(ctx context.Context, token string, in model.NewItem) error
	Delete(ctx context.Context, token string, id model.ID) error
	ToggleLike(ctx context.Context, token string, id model.ID) (model.LikeState, error)
	Login(ctx context.Context, login, password string) (model.Session, error)
}

var ErrGuestMode = errors.New("not available in guest mode")

type Options struct {
	Remote  Remote
	Store   store.Store
	Variant Variant
	// RequireAuthor makes the guest author name mandatory (comment boards).
	RequireAuthor bool
	// ForceError asks the server to fail randomly (demo of an unreliable API).
	ForceError bool
	// NewestFirst sorts by creation time instead of keeping server order.
	NewestFirst bool
	Logger      zerolog.Logger
}

type Controller struct {
	remote        Remote
	store         store.Store
	variant       Variant
	requireAuthor bool
	forceError    bool
	newestFirst   bool
	log           zerolog.Logger

	mu       sync.Mutex
	state    State
	gen      uint64 // bumped by every refresh
	subs     map[int]func(State)
	nextSub  int
	disposed bool
}

func New(opts Options) *Controller {
	return &Controller{
		remote:        opts.Remote,
		store:         opts.Store,
		variant:       opts.Variant,
		requireAuthor: opts.RequireAuthor,
		forceError:    opts.ForceError,
		newestFirst:   opts.NewestFirst,
		log:           opts.Logger.With().Str("component", "controller").Logger(),
		state:         State{Variant: opts.Variant, Items: []model.Item{}},
		subs:          make(map[int]func(State)),
	}
}

// ---------------------------------------------------
// lifecycle & subscriptions
// ---------------------------------------------------

// Init restores a stored session (authenticated variant) and loads the list.
func (c *Controller) Init(ctx context.Context) error {
	c.Restore(ctx)
	c.notify()
	return c.Refresh(ctx)
}

// Restore reads the stored session without touching the network. An
// unreadable store leaves the viewer logged out unless BOARD_TOKEN is set.
func (c *Controller) Restore(ctx context.Context) {
	if c.variant != Authenticated || c.store == nil {
		return
	}
	sess, err := store.LoadSession(ctx, c.store)
	if err != nil {
		c.log.Warn().Err(err).Msg("restore session")
	}
	c.mu.Lock()
	c.state.Session = sess
	c.mu.Unlock()
	if sess != nil {
		c.log.Debug().Str("login", sess.Login).Msg("session restored")
	}
}

// Dispose drops all subscribers. Later operations fail with apperr.ErrDisposed.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposed = true
	c.subs = make(map[int]func(State))
}

// Subscribe registers fn to receive a copy of the state after every
// change. It returns the function that removes the subscription.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// SetDraft keeps in-progress input. It does not notify subscribers.
func (c *Controller) SetDraft(text, author string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.DraftText = text
	c.state.DraftAuthor = author
}

func (c *Controller) notify() {
	c.mu.Lock()
	snap := c.state.clone()
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snap.clone())
	}
}

// ---------------------------------------------------
// operations
// ---------------------------------------------------

// Refresh replaces the list with the server's. On failure the list stays
// as it was. A response that arrives after a newer refresh started is
// dropped.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return apperr.ErrDisposed
	}
	c.gen++
	gen := c.gen
	token := c.tokenLocked()
	c.state.Loading = true
	if c.state.Notice.Severity == SeverityError {
		c.state.Notice = Notice{}
	}
	c.mu.Unlock()
	c.notify()

	items, err := c.remote.List(ctx, token)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.log.Debug().Uint64("gen", gen).Msg("stale refresh dropped")
		return nil
	}
	c.state.Loading = false
	if err != nil {
		drop := c.failLocked(err, token)
		c.mu.Unlock()
		c.afterFail(ctx, drop)
		c.notify()
		return fmt.Errorf("refresh: %w", err)
	}
	c.state.Items = c.normalize(items)
	c.state.Loaded = true
	c.mu.Unlock()

	c.log.Debug().Int("items", len(items)).Msg("refreshed")
	c.notify()
	return nil
}

type guestDraft struct {
	Author string `validate:"min=3" label:"name"`
	Text   string `validate:"min=3" label:"text"`
}

type textDraft struct {
	Text string `validate:"min=3" label:"text"`
}

// Submit creates a new item from text (and author, in the guest variant).
// The drafts keep the input as typed and are cleared only when the server
// accepted the item.
func (c *Controller) Submit(ctx context.Context, rawText, rawAuthor string) error {
	text := strings.TrimSpace(rawText)
	author := strings.TrimSpace(rawAuthor)

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return apperr.ErrDisposed
	}
	if c.state.Submitting {
		c.mu.Unlock()
		return apperr.ErrBusy
	}
	c.state.DraftText, c.state.DraftAuthor = rawText, rawAuthor
	c.state.Notice = Notice{}

	var draft any = textDraft{Text: text}
	if c.variant == Guest && c.requireAuthor {
		draft = guestDraft{Author: author, Text: text}
	}
	if err := apperr.Validate(draft); err != nil {
		c.state.Notice = Notice{Severity: SeverityError, Text: apperr.UserMessage(err)}
		c.mu.Unlock()
		c.notify()
		return fmt.Errorf("submit: %w", err)
	}
	if c.variant == Authenticated && c.state.Session == nil {
		c.state.Notice = Notice{Severity: SeverityError, Text: apperr.MsgMustAuthenticate}
		c.mu.Unlock()
		c.notify()
		return fmt.Errorf("submit: %w", apperr.ErrMustAuthenticate)
	}

	token := c.tokenLocked()
	in := model.NewItem{Text: text, ForceError: c.forceError}
	if c.variant == Guest {
		in.Author = author
	}
	c.state.Submitting = true
	c.mu.Unlock()
	c.notify()

	defer func() {
		c.mu.Lock()
		c.state.Submitting = false
		c.mu.Unlock()
		c.notify()
	}()

	err := c.mutate(ctx, mutation{
		op:    "submit",
		token: token,
		call: func(ctx context.Context) error {
			return c.remote.Create(ctx, token, in)
		},
		reconcile: func(s *State) {
			s.DraftText, s.DraftAuthor = "", ""
		},
	})
	if err != nil {
		return err
	}
	return c.Refresh(ctx)
}

// ToggleLike flips the viewer's like on an item. In the guest variant the
// flip is local and lost on the next refresh; in the authenticated variant
// the server's answer is taken as is.
func (c *Controller) ToggleLike(ctx context.Context, id model.ID) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return apperr.ErrDisposed
	}
	c.state.Notice = Notice{}

	if c.variant == Guest {
		i := indexOf(c.state.Items, id)
		if i < 0 {
			c.mu.Unlock()
			return fmt.Errorf("toggle like %s: %w", id, apperr.ErrNotFound)
		}
		it := &c.state.Items[i]
		it.LikedByViewer = !it.LikedByViewer
		if it.LikedByViewer {
			it.LikeCount++
		} else if it.LikeCount > 0 {
			it.LikeCount--
		}
		c.mu.Unlock()
		c.notify()
		return nil
	}

	if c.state.Session == nil {
		c.state.Notice = Notice{Severity: SeverityError, Text: apperr.MsgMustAuthenticate}
		c.mu.Unlock()
		c.notify()
		return fmt.Errorf("toggle like %s: %w", id, apperr.ErrMustAuthenticate)
	}
	token := c.tokenLocked()
	c.mu.Unlock()

	var got model.LikeState
	return c.mutate(ctx, mutation{
		op:    "toggle like " + id.String(),
		token: token,
		call: func(ctx context.Context) error {
			var err error
			got, err = c.remote.ToggleLike(ctx, token, id)
			return err
		},
		reconcile: func(s *State) {
			if i := indexOf(s.Items, id); i >= 0 {
				s.Items[i].LikedByViewer = got.LikedByViewer
				s.Items[i].LikeCount = got.LikeCount
				s.Items[i].ServerLikes = got.LikeCount
			}
		},
	})
}

// Delete removes an item optimistically and refetches once the server
// agreed. A 404 means it is already gone.
func (c *Controller) Delete(ctx context.Context, id model.ID) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return apperr.ErrDisposed
	}
	c.state.Notice = Notice{}
	if c.variant == Authenticated && c.state.Session == nil {
		c.state.Notice = Notice{Severity: SeverityError, Text: apperr.MsgMustAuthenticate}
		c.mu.Unlock()
		c.notify()
		return fmt.Errorf("delete %s: %w", id, apperr.ErrMustAuthenticate)
	}
	token := c.tokenLocked()
	c.mu.Unlock()

	var (
		removed model.Item
		at      = -1
	)
	err := c.mutate(ctx, mutation{
		op:    "delete " + id.String(),
		token: token,
		apply: func(s *State) {
			if i := indexOf(s.Items, id); i >= 0 {
				removed, at = s.Items[i], i
				s.Items = append(s.Items[:i:i], s.Items[i+1:]...)
			}
		},
		rollback: func(s *State) {
			// a refresh that landed meanwhile may already hold it again
			if at < 0 || indexOf(s.Items, id) >= 0 {
				return
			}
			s.Items = slices.Insert(slices.Clone(s.Items), min(at, len(s.Items)), removed)
		},
		call: func(ctx context.Context) error {
			err := c.remote.Delete(ctx, token, id)
			if errors.Is(err, apperr.ErrNotFound) {
				return nil
			}
			return err
		},
	})
	if err != nil {
		return err
	}
	return c.Refresh(ctx)
}

type credentials struct {
	Login    string `validate:"required" label:"login"`
	Password string `validate:"required" label:"password"`
}

// Login authenticates, persists the session and reloads the list.
func (c *Controller) Login(ctx context.Context, login, password string) error {
	login = strings.TrimSpace(login)

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return apperr.ErrDisposed
	}
	if c.variant != Authenticated {
		c.mu.Unlock()
		return fmt.Errorf("login: %w", ErrGuestMode)
	}
	if c.state.Submitting {
		c.mu.Unlock()
		return apperr.ErrBusy
	}
	c.state.Notice = Notice{}
	if err := apperr.Validate(credentials{Login: login, Password: password}); err != nil {
		c.state.Notice = Notice{Severity: SeverityError, Text: apperr.UserMessage(err)}
		c.mu.Unlock()
		c.notify()
		return fmt.Errorf("login: %w", err)
	}
	c.state.Submitting = true
	c.mu.Unlock()
	c.notify()

	sess, err := c.remote.Login(ctx, login, password)

	c.mu.Lock()
	c.state.Submitting = false
	if err != nil {
		msg := apperr.UserMessage(err)
		if apperr.IsAuth(err) {
			msg = apperr.MsgInvalidCreds
		}
		c.state.Notice = Notice{Severity: SeverityError, Text: msg}
		c.mu.Unlock()
		c.notify()
		c.log.Info().Err(err).Str("login", login).Msg("login failed")
		return fmt.Errorf("login: %w", err)
	}
	c.state.Session = &sess
	c.state.Notice = Notice{Severity: SeverityInfo, Text: "Logged in as " + displayName(sess)}
	c.mu.Unlock()

	if c.store != nil {
		if err := store.SaveSession(ctx, c.store, sess); err != nil {
			c.log.Warn().Err(err).Msg("persist session")
		}
	}
	c.log.Info().Str("login", sess.Login).Msg("logged in")
	c.notify()
	return c.Refresh(ctx)
}

// Logout forgets the session locally and in storage. The server is not
// contacted: the list keeps its items with the viewer's likes dropped, and
// any refresh still in flight with the old token is discarded.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return apperr.ErrDisposed
	}
	c.gen++
	c.state.Loading = false
	c.state.Session = nil
	c.state.Notice = Notice{Severity: SeverityInfo, Text: "Logged out"}
	for i := range c.state.Items {
		c.state.Items[i].LikedByViewer = false
		c.state.Items[i].LikeCount = c.state.Items[i].ServerLikes
	}
	c.mu.Unlock()

	c.clearStore(ctx)
	c.log.Info().Msg("logged out")
	c.notify()
	return nil
}

// ---------------------------------------------------
// helpers
// ---------------------------------------------------

func (c *Controller) tokenLocked() string {
	if c.variant != Authenticated || c.state.Session == nil {
		return ""
	}
	return c.state.Session.Token
}

// failLocked records err as the current notice. A 401 drops the session it
// was made with; the returned flag says storage must be cleared too.
func (c *Controller) failLocked(err error, token string) (clearStore bool) {
	c.state.Notice = Notice{Severity: SeverityError, Text: apperr.UserMessage(err)}
	if !apperr.IsAuth(err) || c.variant != Authenticated {
		return false
	}
	if c.state.Session != nil && c.state.Session.Token == token {
		c.state.Session = nil
		return true
	}
	return false
}

func (c *Controller) afterFail(ctx context.Context, clearStore bool) {
	if clearStore {
		c.log.Info().Msg("session expired")
		c.clearStore(context.WithoutCancel(ctx))
	}
}

func (c *Controller) clearStore(ctx context.Context) {
	if c.store == nil {
		return
	}
	if err := store.ClearSession(ctx, c.store); err != nil {
		c.log.Warn().Err(err).Msg("clear stored session")
	}
}

func (c *Controller) normalize(items []model.Item) []model.Item {
	out := make([]model.Item, len(items))
	for i, it := range items {
		if c.variant == Guest {
			it.LikedByViewer = false
		}
		it.LikeCount = it.ServerLikes
		out[i] = it
	}
	if c.newestFirst {
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	return out
}

func displayName(s model.Session) string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Login
}
