package cli

import (
	"fmt"

	"github.com/idilsaglam/board/internal/config"
	"github.com/idilsaglam/board/internal/controller"
	"github.com/idilsaglam/board/internal/model"
	"github.com/idilsaglam/board/internal/ui"
)

const textWidth = 76

func (a *app) title() string {
	if a.cfg.Mode.Kind == config.KindTodo {
		return "Todos"
	}
	return "Comments"
}

func (a *app) emptyText() string {
	if a.cfg.Mode.Kind == config.KindTodo {
		return "Nothing to do."
	}
	return "No comments yet."
}

func (a *app) listLines(st controller.State, group bool) []string {
	t := ui.Current()
	liked := 0
	for _, it := range st.Items {
		if it.LikedByViewer {
			liked++
		}
	}

	who := "guest"
	if st.Variant == controller.Authenticated {
		who = "not logged in"
		if s := st.Session; s != nil {
			who = "logged in as " + displayName(*s)
		}
	}
	header := fmt.Sprintf("%s  %s %d  %s %d  %s",
		ui.C(t.Title, a.title()),
		ui.C(t.Like, t.LikeOn), liked,
		ui.C(t.Accent, "Total"), len(st.Items),
		ui.C(t.Muted, who),
	)

	lines := []string{header, ""}
	if group {
		lines = append(lines, groupLines(st.Items, a.emptyText())...)
	} else {
		lines = append(lines, flatLines(st.Items, nil, a.emptyText())...)
	}
	lines = append(lines, "")
	lines = append(lines, ui.C(t.Muted, "Tip: add with `board add \"Nice post\"`"))
	return lines
}

// flatLines renders items two lines each. idx holds their 1-based
// positions in the full list; nil means 1..n.
func flatLines(items []model.Item, idx []int, empty string) []string {
	t := ui.Current()
	if len(items) == 0 {
		return []string{ui.C(t.Muted, empty)}
	}
	out := make([]string, 0, 2*len(items))
	for i, it := range items {
		n := i + 1
		if idx != nil {
			n = idx[i]
		}
		mark, color := t.LikeOff, t.Muted
		if it.LikedByViewer {
			mark, color = t.LikeOn, t.Like
		}

		head := ui.C(t.Muted, fmt.Sprintf("%2d.", n))
		if name := it.AuthorName(); name != "" {
			head += " " + ui.C(t.Author, name)
		}
		if date := it.DateLabel(); date != "" {
			head += " " + ui.C(t.Muted, date)
		}
		head += "  " + ui.C(color, mark) + fmt.Sprintf(" %d", it.LikeCount)

		out = append(out, head, "    "+ui.Truncate(it.Text, textWidth))
	}
	return out
}

func groupLines(items []model.Item, empty string) []string {
	var liked, rest []model.Item
	var likedIdx, restIdx []int
	for i, it := range items {
		if it.LikedByViewer {
			liked, likedIdx = append(liked, it), append(likedIdx, i+1)
		} else {
			rest, restIdx = append(rest, it), append(restIdx, i+1)
		}
	}
	t := ui.Current()
	var lines []string
	lines = append(lines, ui.C(t.Accent, "Liked"))
	lines = append(lines, flatLines(liked, likedIdx, "(none)")...)
	lines = append(lines, "")
	lines = append(lines, ui.C(t.Accent, "Others"))
	if len(items) == 0 {
		return append(lines, ui.C(t.Muted, empty))
	}
	return append(lines, flatLines(rest, restIdx, "(none)")...)
}

func displayName(s model.Session) string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Login
}
