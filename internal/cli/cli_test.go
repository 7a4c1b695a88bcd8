package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/board/internal/config"
	"github.com/idilsaglam/board/internal/model"
	"github.com/idilsaglam/board/internal/store"
	"github.com/idilsaglam/board/internal/store/jsonstore"
	"github.com/idilsaglam/board/internal/store/memory"
	"github.com/idilsaglam/board/internal/ui"
)

// ---------------------------------------------------
// fake board API
// ---------------------------------------------------

type apiComment struct {
	ID      int       `json:"id"`
	Text    string    `json:"text"`
	Date    time.Time `json:"date"`
	Likes   int       `json:"likes"`
	IsLiked bool      `json:"isLiked"`
	Author  struct {
		Name string `json:"name"`
	} `json:"author"`
}

type fakeAPI struct {
	mu       sync.Mutex
	comments []apiComment
	nextID   int
	liked    map[int]bool // by the "good" token's owner
	token    string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{nextID: 2, liked: map[int]bool{}, token: "good"}
	c := apiComment{ID: 1, Text: "Первый", Date: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), Likes: 2}
	c.Author.Name = "Глеб"
	api.comments = []apiComment{c}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/comments", api.list)
	mux.HandleFunc("POST /api/comments", api.create)
	mux.HandleFunc("DELETE /api/comments/{id}", api.remove)
	mux.HandleFunc("POST /api/comments/{id}/toggle-like", api.toggle)
	mux.HandleFunc("POST /api/user/login", api.login)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return api, srv
}

func (f *fakeAPI) authed(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+f.token
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h := r.Header.Get("Authorization"); h != "" && !f.authed(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad token"})
		return
	}
	out := make([]apiComment, len(f.comments))
	for i, c := range f.comments {
		c.IsLiked = f.authed(r) && f.liked[c.ID]
		out[i] = c
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": out})
}

func (f *fakeAPI) create(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Text string `json:"text"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := apiComment{ID: f.nextID, Text: in.Text, Date: time.Now()}
	c.Author.Name = in.Name
	if f.authed(r) {
		c.Author.Name = "Алина"
	}
	f.nextID++
	f.comments = append(f.comments, c)
	writeJSON(w, http.StatusCreated, map[string]string{"result": "ok"})
}

func (f *fakeAPI) remove(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.comments {
		if fmt.Sprint(c.ID) == r.PathValue("id") {
			f.comments = append(f.comments[:i], f.comments[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"comments": f.comments})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func (f *fakeAPI) toggle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.authed(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "auth"})
		return
	}
	for i := range f.comments {
		c := &f.comments[i]
		if fmt.Sprint(c.ID) != r.PathValue("id") {
			continue
		}
		f.liked[c.ID] = !f.liked[c.ID]
		if f.liked[c.ID] {
			c.Likes++
		} else {
			c.Likes--
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{"isLiked": f.liked[c.ID], "likes": c.Likes}})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func (f *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var in struct{ Login, Password string }
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.Login != "alina" || in.Password != "secret" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Неверный логин или пароль"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": map[string]string{
		"token": f.token, "name": "Алина", "login": "alina",
	}})
}

// ---------------------------------------------------
// harness
// ---------------------------------------------------

type harness struct {
	opt      Options
	st       *memory.Store
	out, err *bytes.Buffer
}

func newHarness(t *testing.T, srv *httptest.Server, variant string) *harness {
	t.Helper()
	t.Setenv(store.TokenEnv, "")

	ui.SetTheme("mono")
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	ui.Out, ui.Err = out, errOut
	t.Cleanup(func() {
		ui.Out, ui.Err = os.Stdout, os.Stderr
		ui.SetTheme("classic")
	})

	cfg := &config.Config{
		API: config.APIConfig{
			BaseURL:        srv.URL,
			CollectionPath: "/api/comments",
			LoginPath:      "/api/user/login",
			Encoding:       "json",
			UserAgent:      "board-test",
		},
		Mode:    config.ModeConfig{Variant: variant, Kind: config.KindComments},
		Storage: config.StorageConfig{Backend: config.StorageMemory},
	}
	st := memory.New()
	return &harness{
		opt: Options{
			Config:     cfg,
			Logger:     zerolog.Nop(),
			HTTPClient: srv.Client(),
			Store:      st,
		},
		st:  st,
		out: out,
		err: errOut,
	}
}

func (h *harness) run(args ...string) int {
	h.out.Reset()
	h.err.Reset()
	return Run(context.Background(), args, h.opt)
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	require.NoError(t, store.SaveSession(context.Background(), h.st, model.Session{Token: "good", DisplayName: "Алина", Login: "alina"}))
}

// ---------------------------------------------------
// tests
// ---------------------------------------------------

func TestUsage(t *testing.T) {
	_, srv := newFakeAPI(t)
	h := newHarness(t, srv, config.VariantGuest)

	require.Equal(t, 2, h.run())
	require.Equal(t, 0, h.run("help"))
	require.Contains(t, h.out.String(), "Subcommands:")

	require.Equal(t, 2, h.run("frobnicate"))
	require.Contains(t, h.err.String(), "unknown subcommand: frobnicate")

	require.Equal(t, 2, h.run("like"))
	require.Equal(t, 2, h.run("rm", "two"))
	require.Contains(t, h.err.String(), "rm: not a number: two")
	require.Equal(t, 2, h.run("add"))
	require.Equal(t, 2, h.run("auth"))
	require.Equal(t, 2, h.run("auth", "frob"))
}

func TestList(t *testing.T) {
	_, srv := newFakeAPI(t)
	h := newHarness(t, srv, config.VariantGuest)

	require.Equal(t, 0, h.run("ls"))
	out := h.out.String()
	require.Contains(t, out, "Comments")
	require.Contains(t, out, " 1. Глеб")
	require.Contains(t, out, "Первый")
	require.Contains(t, out, "-- 2")
	require.Contains(t, out, "guest")
}

func TestListOffline(t *testing.T) {
	_, srv := newFakeAPI(t)
	h := newHarness(t, srv, config.VariantGuest)
	srv.Close()

	require.Equal(t, 1, h.run("ls"))
	require.Contains(t, h.err.String(), "No connection to the server")
}

func TestGuestAdd(t *testing.T) {
	api, srv := newFakeAPI(t)
	h := newHarness(t, srv, config.VariantGuest)

	require.Equal(t, 2, h.run("add", "--author", "Ян", "hello"))
	require.Contains(t, h.err.String(), "name must be at least 3 characters")

	require.Equal(t, 2, h.run("add", "--author", "Алина", "hi"))
	require.Contains(t, h.err.String(), "text must be at least 3 characters")

	require.Equal(t, 0, h.run("add", "--author", "Алина", "Всем", "привет"))
	require.Contains(t, h.out.String(), "added (2 total)")

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.comments, 2)
	require.Equal(t, "Всем привет", api.comments[1].Text)
	require.Equal(t, "Алина", api.comments[1].Author.Name)
}

func TestAuthAddRequiresSession(t *testing.T) {
	_, srv := newFakeAPI(t)
	h := newHarness(t, srv, config.VariantAuth)

	require.Equal(t, 2, h.run("add", "some text"))
	require.Contains(t, h.err.String(), "You must log in")
	require.Contains(t, h.err.String(), "board auth login")

	h.login(t)
	require.Equal(t, 0, h.run("add", "some text"))
}

func TestLikeGuestAndAuth(t *testing.T) {
	api, srv := newFakeAPI(t)

	g := newHarness(t, srv, config.VariantGuest)
	require.Equal(t, 0, g.run("like", "1"))
	require.Contains(t, g.out.String(), "<3 3")
	require.Contains(t, g.out.String(), "not saved")
	require.Equal(t, 2, api.comments[0].Likes)

	a := newHarness(t, srv, config.VariantAuth)
	require.Equal(t, 2, a.run("like", "1"))
	require.Contains(t, a.err.String(), "You must log in")

	a.login(t)
	require.Equal(t, 0, a.run("like", "1"))
	require.Contains(t, a.out.String(), "<3 3")
	require.Equal(t, 0, a.run("like", "1"))
	require.Contains(t, a.out.String(), "-- 2")

	require.Equal(t, 2, a.run("like", "9"))
	require.Contains(t, a.err.String(), "index out of range: have 1, got 9")
}

func TestExpiredTokenClearsStore(t *testing.T) {
	_, srv := newFakeAPI(t)
	h := newHarness(t, srv, config.VariantAuth)
	require.NoError(t, store.SaveSession(context.Background(), h.st, model.Session{Token: "stale"}))

	require.Equal(t, 1, h.run("ls"))
	require.Contains(t, h.err.String(), "session has expired")
	require.Zero(t, h.st.Len())
}

func TestRemove(t *testing.T) {
	api, srv := newFakeAPI(t)
	h := newHarness(t, srv, config.VariantAuth)
	h.login(t)

	require.Equal(t, 0, h.run("rm", "1"))
	require.Contains(t, h.out.String(), "removed")
	require.Empty(t, api.comments)
}

func TestAuthLoginLogout(t *testing.T) {
	_, srv := newFakeAPI(t)
	h := newHarness(t, srv, config.VariantAuth)

	h.opt.Stdin = strings.NewReader("alina\nwrong\n")
	require.Equal(t, 1, h.run("auth", "login"))
	require.Contains(t, h.err.String(), "Неверный логин или пароль")
	require.Zero(t, h.st.Len())

	h.opt.Stdin = strings.NewReader("secret\n")
	require.Equal(t, 0, h.run("auth", "login", "alina"))
	require.Contains(t, h.out.String(), "logged in as Алина")

	sess, err := store.LoadSession(context.Background(), h.st)
	require.NoError(t, err)
	require.Equal(t, "good", sess.Token)

	require.Equal(t, 0, h.run("auth", "status"))
	require.Contains(t, h.out.String(), "source: memory")
	require.Contains(t, h.out.String(), "login: alina")
	require.Contains(t, h.out.String(), "expires: (unknown)")

	require.Equal(t, 0, h.run("auth", "logout"))
	require.Zero(t, h.st.Len())

	require.Equal(t, 0, h.run("auth", "status"))
	require.Contains(t, h.out.String(), "not logged in")
}

func TestAuthLoginGuestMode(t *testing.T) {
	_, srv := newFakeAPI(t)
	h := newHarness(t, srv, config.VariantGuest)
	require.Equal(t, 2, h.run("auth", "login", "alina"))
}

func TestLogoutWithEnvToken(t *testing.T) {
	_, srv := newFakeAPI(t)
	h := newHarness(t, srv, config.VariantAuth)
	h.login(t)
	t.Setenv(store.TokenEnv, "from-env")

	require.Equal(t, 0, h.run("auth", "logout"))
	require.Contains(t, h.out.String(), "nothing to delete")
	require.NotZero(t, h.st.Len())
}

func TestWhoAmI(t *testing.T) {
	_, srv := newFakeAPI(t)
	h := newHarness(t, srv, config.VariantAuth)

	require.Equal(t, 2, h.run("auth", "whoami"))

	h.login(t)
	require.Equal(t, 0, h.run("auth", "whoami"))
	require.Contains(t, h.out.String(), "Opaque token")
	require.Contains(t, h.out.String(), "login: alina")

	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alina",
		"exp": exp.Unix(),
	}).SignedString([]byte("irrelevant"))
	require.NoError(t, err)
	require.NoError(t, h.st.Set(context.Background(), store.KeyToken, signed))

	require.Equal(t, 0, h.run("auth", "whoami"))
	require.Contains(t, h.out.String(), "JWT claims:")
	require.Contains(t, h.out.String(), `"sub": "alina"`)

	require.Equal(t, 0, h.run("auth", "status"))
	require.Contains(t, h.out.String(), "expires: 2030-01-02T03:04:05Z")
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st, err := openStore(ctx, config.StorageConfig{Backend: config.StorageFile, Path: filepath.Join(dir, "nested", "creds.json")})
	require.NoError(t, err)
	js, ok := st.(*jsonstore.Store)
	require.True(t, ok)
	require.Equal(t, filepath.Join(dir, "nested", "creds.json"), js.Path())

	st, err = openStore(ctx, config.StorageConfig{Backend: config.StorageSQLite, Path: filepath.Join(dir, "db", "board.db")})
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "k", "v"))
	require.NoError(t, st.Close())

	st, err = openStore(ctx, config.StorageConfig{Backend: config.StorageMemory})
	require.NoError(t, err)
	require.IsType(t, &memory.Store{}, st)

	_, err = openStore(ctx, config.StorageConfig{Backend: "tape"})
	require.Error(t, err)
}
