package controller

import (
	"slices"

	"github.com/idilsaglam/board/internal/model"
)

// Variant decides how likes and authorship behave.
type Variant int

const (
	// Guest: anyone may post with a self-chosen name; likes are local only.
	Guest Variant = iota
	// Authenticated: posting and liking need a session; likes live on the server.
	Authenticated
)

func (v Variant) String() string {
	if v == Authenticated {
		return "auth"
	}
	return "guest"
}

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityError
)

// Notice is the inline message currently shown to the user.
type Notice struct {
	Severity Severity
	Text     string
}

func (n Notice) Empty() bool { return n.Text == "" }

// State is what a rendering layer draws. Subscribers receive copies.
type State struct {
	Variant Variant
	Items   []model.Item
	Session *model.Session

	// in-progress input, kept across re-renders and failed submits
	DraftText   string
	DraftAuthor string

	Loading    bool
	Submitting bool
	// Loaded is set after the first successful fetch.
	Loaded bool

	Notice Notice
}

// Authenticated reports whether a session is present.
func (s State) Authenticated() bool { return s.Session != nil }

// FormVisible reports whether the add form should be shown.
func (s State) FormVisible() bool { return s.Variant == Guest || s.Session != nil }

// Item returns the item with the given id.
func (s State) Item(id model.ID) (model.Item, bool) {
	i := indexOf(s.Items, id)
	if i < 0 {
		return model.Item{}, false
	}
	return s.Items[i], true
}

func (s State) clone() State {
	out := s
	out.Items = slices.Clone(s.Items)
	if s.Session != nil {
		sess := *s.Session
		out.Session = &sess
	}
	return out
}

func indexOf(items []model.Item, id model.ID) int {
	return slices.IndexFunc(items, func(it model.Item) bool { return it.ID == id })
}
