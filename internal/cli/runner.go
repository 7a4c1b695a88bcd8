package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/idilsaglam/board/internal/config"
	"github.com/idilsaglam/board/internal/controller"
	"github.com/idilsaglam/board/internal/model"
	"github.com/idilsaglam/board/internal/store"
	"github.com/idilsaglam/board/internal/tui"
	"github.com/idilsaglam/board/internal/ui"
)

// Options tune behavior from root flags and wiring.
type Options struct {
	Config *config.Config
	Group  bool // ls: liked entries first, then the rest
	Logger zerolog.Logger

	// Stdin feeds prompts; nil means os.Stdin.
	Stdin io.Reader
	// HTTPClient and Store replace the configured ones when set.
	HTTPClient *http.Client
	Store      store.Store
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(ctx context.Context, args []string, opt Options) int {
	if len(args) == 0 {
		PrintHelp()
		return 2
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp()
		return 0

	case "ls":
		return withApp(ctx, opt, func(app *app) int { return app.doList(ctx, opt.Group) })

	case "tui":
		return withApp(ctx, opt, func(app *app) int { return app.doTUI(ctx) })

	case "add":
		fs := flag.NewFlagSet("add", flag.ContinueOnError)
		fs.SetOutput(ui.Err)
		author := fs.String("author", "", "your name (guest comment boards)")
		if err := fs.Parse(a); err != nil {
			return 2
		}
		if fs.NArg() == 0 {
			ui.Fail("usage: board add [--author NAME] <text...>")
			return 2
		}
		text := strings.Join(fs.Args(), " ")
		return withApp(ctx, opt, func(app *app) int { return app.doAdd(ctx, text, *author) })

	case "like", "rm":
		if len(a) != 1 {
			ui.Fail(fmt.Sprintf("usage: board %s <index>", cmd))
			return 2
		}
		n, err := strconv.Atoi(a[0])
		if err != nil {
			ui.Fail(cmd + ": not a number: " + a[0])
			return 2
		}
		if cmd == "like" {
			return withApp(ctx, opt, func(app *app) int { return app.doLike(ctx, n) })
		}
		return withApp(ctx, opt, func(app *app) int { return app.doRemove(ctx, n) })

	case "auth":
		if len(a) == 0 {
			ui.Fail("usage: board auth <login|logout|status|whoami>")
			return 2
		}
		switch a[0] {
		case "login":
			return withApp(ctx, opt, func(app *app) int { return app.doAuthLogin(ctx, a[1:], opt.Stdin) })
		case "logout":
			return withApp(ctx, opt, func(app *app) int { return app.doAuthLogout(ctx) })
		case "status":
			return withApp(ctx, opt, func(app *app) int { return app.doAuthStatus(ctx) })
		case "whoami":
			return withApp(ctx, opt, func(app *app) int { return app.doAuthWhoAmI(ctx) })
		default:
			ui.Fail("usage: board auth <login|logout|status|whoami>")
			return 2
		}
	}

	ui.Fail("unknown subcommand: " + cmd)
	fmt.Fprintln(ui.Err)
	PrintHelp()
	return 2
}

func withApp(ctx context.Context, opt Options, fn func(*app) int) int {
	a, err := newApp(ctx, opt)
	if err != nil {
		ui.Fail(err.Error())
		return 1
	}
	defer a.close()
	return fn(a)
}

func PrintHelp() {
	fmt.Fprint(ui.Out, `board - a terminal client for a comment board

Usage:
  board [flags] <subcommand> [args]

Subcommands:
  ls                     List entries
  add [--author NAME] <text...>
                         Post a new entry (text can be multiple words)
  like <index>           Toggle your like on the entry at 1-based index
  rm <index>             Delete the entry at 1-based index
  tui                    Interactive board
  auth <login|logout|status|whoami>
                         Session management

Examples:
  board ls
  board add --author Alina "Nice post"
  board like 2
  board auth login alina
`)
}

// -------------- subcommand impls ----------------

func (a *app) doList(ctx context.Context, group bool) int {
	if err := a.ctrl.Init(ctx); err != nil {
		ui.Fail("load: " + a.message(err))
		return exitCode(err)
	}
	ui.Panel(ui.Out, a.listLines(a.ctrl.State(), group))
	return 0
}

func (a *app) doTUI(ctx context.Context) int {
	st := a.ctrl.State()
	err := tui.Run(ctx, a.ctrl, tui.Options{
		Title:      a.title(),
		EmptyText:  a.emptyText(),
		ShowAuthor: st.Variant == controller.Guest,
		Logger:     a.log,
	})
	if err != nil {
		ui.Fail(err.Error())
		return 1
	}
	return 0
}

func (a *app) doAdd(ctx context.Context, text, author string) int {
	a.ctrl.Restore(ctx)
	if err := a.ctrl.Submit(ctx, text, author); err != nil {
		ui.Fail("add: " + a.message(err))
		hintLogin(err)
		return exitCode(err)
	}
	ui.OK(fmt.Sprintf("added (%d total)", len(a.ctrl.State().Items)))
	return 0
}

func (a *app) doLike(ctx context.Context, userIndex int) int {
	it, code := a.pick(ctx, userIndex)
	if code != 0 {
		return code
	}
	if err := a.ctrl.ToggleLike(ctx, it.ID); err != nil {
		ui.Fail("like: " + a.message(err))
		hintLogin(err)
		return exitCode(err)
	}
	now, _ := a.ctrl.State().Item(it.ID)
	t := ui.Current()
	mark := t.LikeOff
	if now.LikedByViewer {
		mark = t.LikeOn
	}
	ui.OK(fmt.Sprintf("%s %d", mark, now.LikeCount))
	if a.ctrl.State().Variant == controller.Guest {
		ui.Info("guest likes are not saved on the server")
	}
	return 0
}

func (a *app) doRemove(ctx context.Context, userIndex int) int {
	it, code := a.pick(ctx, userIndex)
	if code != 0 {
		return code
	}
	if err := a.ctrl.Delete(ctx, it.ID); err != nil {
		ui.Fail("rm: " + a.message(err))
		hintLogin(err)
		return exitCode(err)
	}
	ui.OK("removed")
	return 0
}

// pick loads the list and resolves a 1-based index as shown by ls.
func (a *app) pick(ctx context.Context, userIndex int) (model.Item, int) {
	if err := a.ctrl.Init(ctx); err != nil {
		ui.Fail("load: " + a.message(err))
		return model.Item{}, exitCode(err)
	}
	items := a.ctrl.State().Items
	if userIndex < 1 || userIndex > len(items) {
		ui.Fail(fmt.Sprintf("index out of range: have %d, got %d", len(items), userIndex))
		fmt.Fprintln(ui.Err, ui.C(ui.Current().Muted, "Hint: run `board ls` to see valid indexes"))
		return model.Item{}, 2
	}
	return items[userIndex-1], 0
}
