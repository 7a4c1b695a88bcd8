package ui

import "strings"

// Theme bundles palette, like markers and box borders.
// All UI helpers pull from `current`.
type Theme struct {
	Name                                   string
	Title, Muted, Accent, Success, Error   string
	Author, Like                           string
	LikeOn, LikeOff                        string
	CornerTL, CornerTR, CornerBL, CornerBR string
	H, V                                   string
}

var current = classic()

func classic() Theme {
	return Theme{
		Name:  "classic",
		Title: bold, Muted: fgGray, Accent: fgBlue,
		Success: fgGreen, Error: fgRed,
		Author: fgYellow, Like: fgRed,
		LikeOn: "♥", LikeOff: "♡",
		CornerTL: "┌", CornerTR: "┐", CornerBL: "└", CornerBR: "┘",
		H: "─", V: "│",
	}
}

// SetTheme switches the palette; unknown names fall back to classic.
func SetTheme(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "neon":
		disableColor = false
		current = Theme{
			Name:  "neon",
			Title: "\033[95m", Muted: fgGray, Accent: "\033[96m",
			Success: fgGreen, Error: fgRed,
			Author: "\033[93m", Like: fgMagenta,
			LikeOn: "❤", LikeOff: "♡",
			CornerTL: "╭", CornerTR: "╮", CornerBL: "╰", CornerBR: "╯",
			H: "─", V: "│",
		}
	case "mono":
		disableColor = true
		current = Theme{
			Name:   "mono",
			LikeOn: "<3", LikeOff: "--",
			CornerTL: "+", CornerTR: "+", CornerBL: "+", CornerBR: "+",
			H: "-", V: "|",
		}
	default:
		disableColor = false
		current = classic()
	}
}

// Current returns the active theme.
func Current() Theme { return current }
