package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/idilsaglam/board/internal/model"
)

// listItem adapts model.Item to bubbles/list.Item.
type listItem struct {
	model.Item
}

func (i listItem) Title() string       { return i.Text }
func (i listItem) Description() string { return i.AuthorName() }
func (i listItem) FilterValue() string { return i.AuthorName() + " " + i.Text }

func toListItems(items []model.Item) []list.Item {
	out := make([]list.Item, 0, len(items))
	for _, it := range items {
		out = append(out, listItem{it})
	}
	return out
}

// itemDelegate draws an entry as a header line (author, date, likes) and
// the text below it.
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 2 }
func (d itemDelegate) Spacing() int                              { return 1 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}

	var head []string
	if name := it.AuthorName(); name != "" {
		head = append(head, authorStyle.Render(name))
	}
	if date := it.DateLabel(); date != "" {
		head = append(head, mutedStyle.Render(date))
	}
	heart := mutedStyle.Render(heartOff)
	if it.LikedByViewer {
		heart = likeOnStyle.Render(heartOn)
	}
	likes := fmt.Sprintf("%s %d", heart, it.LikeCount)

	left := strings.Join(head, mutedStyle.Render(" · "))
	gap := m.Width() - lipgloss.Width(left) - lipgloss.Width(likes) - 4
	if gap < 1 {
		gap = 1
	}

	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render(">") + " "
	}
	fmt.Fprintln(w, prefix+left+strings.Repeat(" ", gap)+likes)
	fmt.Fprint(w, "  "+singleLine(it.Text))
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
