package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ID is the server-assigned item identifier. The API sends it either as a
// JSON number or a string; both decode to the same textual form.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Author of a comment. Todo items carry none.
type Author struct {
	Name  string `json:"name"`
	Login string `json:"login,omitempty"`
}

// Item is a comment or todo entry as mirrored from the remote collection.
type Item struct {
	ID        ID        `json:"id"`
	Text      string    `json:"text"`
	Author    *Author   `json:"author,omitempty"`
	CreatedAt time.Time `json:"date"`

	// ServerLikes is the count from the last fetch; LikeCount is what the
	// viewer sees and may be changed locally (guest likes).
	ServerLikes   int  `json:"likes"`
	LikeCount     int  `json:"-"`
	LikedByViewer bool `json:"isLiked"`
}

// DateLayout is how creation times are shown: dd.mm.yy hh:mm.
const DateLayout = "02.01.06 15:04"

// DateLabel formats CreatedAt in local time, or "" when it is unknown.
func (it Item) DateLabel() string {
	if it.CreatedAt.IsZero() {
		return ""
	}
	return it.CreatedAt.Local().Format(DateLayout)
}

func (it Item) AuthorName() string {
	if it.Author == nil {
		return ""
	}
	return it.Author.Name
}

// NewItem carries the user-authored fields of a create request.
type NewItem struct {
	Text       string
	Author     string
	ForceError bool
}

// LikeState is the server's answer to a toggle-like request.
type LikeState struct {
	LikedByViewer bool `json:"isLiked"`
	LikeCount     int  `json:"likes"`
}
