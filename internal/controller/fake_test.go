package controller

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/idilsaglam/board/internal/model"
)

// fakeRemote is an in-memory board. Errors set on it are returned by the
// matching call; every call is counted.
type fakeRemote struct {
	mu sync.Mutex

	items  []model.Item
	nextID int

	listErr   error
	createErr error
	deleteErr error
	toggleErr error
	loginErr  error

	likes    []model.LikeState // answers for successive toggle calls
	sessions map[string]model.Session
	passwd   map[string]string

	// listHook and deleteHook, when set, replace List and Delete entirely.
	listHook   func(call int, token string) ([]model.Item, error)
	deleteHook func(id model.ID) error

	calls      map[string]int
	listTokens []string
	created    []model.NewItem
}

func newFakeRemote(items ...model.Item) *fakeRemote {
	return &fakeRemote{
		items:    items,
		nextID:   100,
		calls:    map[string]int{},
		sessions: map[string]model.Session{},
		passwd:   map[string]string{},
	}
}

func (f *fakeRemote) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeRemote) lastListToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.listTokens) == 0 {
		return "<none>"
	}
	return f.listTokens[len(f.listTokens)-1]
}

func (f *fakeRemote) List(ctx context.Context, token string) ([]model.Item, error) {
	f.mu.Lock()
	f.calls["list"]++
	call := f.calls["list"]
	f.listTokens = append(f.listTokens, token)
	hook := f.listHook
	f.mu.Unlock()

	if hook != nil {
		return hook(call, token)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return slices.Clone(f.items), nil
}

func (f *fakeRemote) Create(ctx context.Context, token string, in model.NewItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["create"]++
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	f.created = append(f.created, in)
	f.items = append(f.items, model.Item{
		ID:        model.ID(fmt.Sprint(f.nextID)),
		Text:      in.Text,
		Author:    &model.Author{Name: in.Author},
		CreatedAt: time.Date(2024, 5, 1, 12, 0, f.nextID%60, 0, time.UTC),
	})
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, token string, id model.ID) error {
	f.mu.Lock()
	f.calls["delete"]++
	hook := f.deleteHook
	f.mu.Unlock()

	if hook != nil {
		return hook(id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.items = slices.DeleteFunc(f.items, func(it model.Item) bool { return it.ID == id })
	return nil
}

func (f *fakeRemote) ToggleLike(ctx context.Context, token string, id model.ID) (model.LikeState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["toggle"]++
	if f.toggleErr != nil {
		return model.LikeState{}, f.toggleErr
	}
	if len(f.likes) == 0 {
		return model.LikeState{}, fmt.Errorf("fake: no like answer queued")
	}
	st := f.likes[0]
	f.likes = f.likes[1:]
	return st, nil
}

func (f *fakeRemote) Login(ctx context.Context, login, password string) (model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["login"]++
	if f.loginErr != nil {
		return model.Session{}, f.loginErr
	}
	if pw, ok := f.passwd[login]; !ok || pw != password {
		return model.Session{}, fmt.Errorf("fake: unknown user %q", login)
	}
	return f.sessions[login], nil
}

// recorder collects every state a subscriber receives.
type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.states)
}

func (r *recorder) countNotice(text string) int {
	n := 0
	for _, s := range r.all() {
		if s.Notice.Text == text {
			n++
		}
	}
	return n
}
