// Package remote talks to the board's REST API: the collection resource,
// its per-item toggle-like action and the login endpoint.
//
// Every non-success answer comes back as an *apperr.Error; transport
// failures become apperr.KindConnectivity unless the context was cancelled.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/idilsaglam/board/internal/apperr"
	"github.com/idilsaglam/board/internal/model"
)

type Encoding string

const (
	EncodingJSON Encoding = "json"
	EncodingForm Encoding = "form"
)

const maxErrorBody = 64 << 10

// Options configure a Client.
type Options struct {
	CollectionURL string
	LoginURL      string
	Encoding      Encoding
	// EscapeHTML escapes markup in user text before it is sent.
	EscapeHTML bool
	// Timeout per request; zero leaves it to the transport.
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type Client struct {
	collection string
	login      string
	encoding   Encoding
	escape     bool
	userAgent  string
	http       *http.Client
	log        zerolog.Logger
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	enc := opts.Encoding
	if enc == "" {
		enc = EncodingJSON
	}
	return &Client{
		collection: strings.TrimRight(opts.CollectionURL, "/"),
		login:      opts.LoginURL,
		encoding:   enc,
		escape:     opts.EscapeHTML,
		userAgent:  opts.UserAgent,
		http:       hc,
		log:        opts.Logger.With().Str("component", "remote").Logger(),
	}
}

// ---------------------------------------------------
// wire types
// ---------------------------------------------------

type listResponse struct {
	Comments []model.Item `json:"comments"`
	Todos    []model.Item `json:"todos"`
	Items    []model.Item `json:"items"`
}

func (r listResponse) items() []model.Item {
	switch {
	case r.Comments != nil:
		return r.Comments
	case r.Todos != nil:
		return r.Todos
	case r.Items != nil:
		return r.Items
	}
	return []model.Item{}
}

type createRequest struct {
	Text       string `json:"text"`
	Name       string `json:"name,omitempty"`
	ForceError bool   `json:"forceError,omitempty"`
}

type toggleLikeResponse struct {
	Result model.LikeState `json:"result"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	User model.Session `json:"user"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ---------------------------------------------------
// operations
// ---------------------------------------------------

// List fetches the whole collection. token may be empty.
func (c *Client) List(ctx context.Context, token string) ([]model.Item, error) {
	resp, err := c.do(ctx, http.MethodGet, c.collection, token, nil, "")
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list: %w", statusError(resp))
	}
	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("list: decode: %w", err)
	}
	return body.items(), nil
}

// Create posts a new item. Any 2xx counts as created; the API answers 201.
func (c *Client) Create(ctx context.Context, token string, in model.NewItem) error {
	req := createRequest{Text: in.Text, Name: in.Author, ForceError: in.ForceError}
	if c.escape {
		req.Text = html.EscapeString(req.Text)
		req.Name = html.EscapeString(req.Name)
	}

	body, contentType, err := c.encodeCreate(req)
	if err != nil {
		return fmt.Errorf("create: encode: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, c.collection, token, body, contentType)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("create: %w", statusError(resp))
	}
	return nil
}

// Delete removes an item. A 404 is reported as apperr.ErrNotFound.
func (c *Client) Delete(ctx context.Context, token string, id model.ID) error {
	resp, err := c.do(ctx, http.MethodDelete, c.itemURL(id), token, nil, "")
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("delete %s: %w", id, apperr.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("delete %s: %w", id, statusError(resp))
	}
	return nil
}

// ToggleLike flips the viewer's like and returns the server's resulting
// state.
func (c *Client) ToggleLike(ctx context.Context, token string, id model.ID) (model.LikeState, error) {
	resp, err := c.do(ctx, http.MethodPost, c.itemURL(id)+"/toggle-like", token, nil, "")
	if err != nil {
		return model.LikeState{}, fmt.Errorf("toggle like %s: %w", id, err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.LikeState{}, fmt.Errorf("toggle like %s: %w", id, statusError(resp))
	}
	var body toggleLikeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.LikeState{}, fmt.Errorf("toggle like %s: decode: %w", id, err)
	}
	return body.Result, nil
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, login, password string) (model.Session, error) {
	b, err := json.Marshal(loginRequest{Login: login, Password: password})
	if err != nil {
		return model.Session{}, fmt.Errorf("login: encode: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, c.login, "", bytes.NewReader(b), "application/json")
	if err != nil {
		return model.Session{}, fmt.Errorf("login: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.Session{}, fmt.Errorf("login: %w", statusError(resp))
	}
	var body loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.Session{}, fmt.Errorf("login: decode: %w", err)
	}
	if body.User.Token == "" {
		return model.Session{}, errors.New("login: response carries no token")
	}
	if body.User.Login == "" {
		body.User.Login = login
	}
	return body.User, nil
}

// ---------------------------------------------------
// plumbing
// ---------------------------------------------------

func (c *Client) itemURL(id model.ID) string {
	return c.collection + "/" + url.PathEscape(id.String())
}

func (c *Client) encodeCreate(req createRequest) (io.Reader, string, error) {
	if c.encoding == EncodingForm {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		if req.Name != "" {
			if err := w.WriteField("name", req.Name); err != nil {
				return nil, "", err
			}
		}
		if err := w.WriteField("text", req.Text); err != nil {
			return nil, "", err
		}
		if req.ForceError {
			if err := w.WriteField("forceError", "true"); err != nil {
				return nil, "", err
			}
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	}

	b, err := json.Marshal(req)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(b), "application/json", nil
}

func (c *Client) do(ctx context.Context, method, target, token string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	rid := uuid.NewString()
	req.Header.Set("X-Request-Id", rid)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	ev := c.log.Debug().
		Str("method", method).
		Str("path", req.URL.Path).
		Str("request_id", rid).
		Dur("took", time.Since(start))
	if err != nil {
		ev.Err(err).Msg("request failed")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperr.Connectivity(err)
	}
	ev.Int("status", resp.StatusCode).Msg("request done")
	return resp, nil
}

// statusError classifies resp and keeps the server's error text.
func statusError(resp *http.Response) *apperr.Error {
	var body errorResponse
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(b) > 0 {
		_ = json.Unmarshal(b, &body)
	}
	return apperr.FromStatus(resp.StatusCode, strings.TrimSpace(body.Error))
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
