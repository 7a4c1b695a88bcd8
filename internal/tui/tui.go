// Package tui is the interactive Bubble Tea front end. It subscribes to a
// board controller, redraws from every state it receives and turns key
// presses into controller operations run as commands, so the UI goroutine
// never waits on the network.
package tui

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/idilsaglam/board/internal/apperr"
	"github.com/idilsaglam/board/internal/controller"
	"github.com/idilsaglam/board/internal/model"
)

// Board is the controller surface the TUI drives.
type Board interface {
	Init(ctx context.Context) error
	Refresh(ctx context.Context) error
	Submit(ctx context.Context, text, author string) error
	ToggleLike(ctx context.Context, id model.ID) error
	Delete(ctx context.Context, id model.ID) error
	Login(ctx context.Context, login, password string) error
	Logout(ctx context.Context) error
	SetDraft(text, author string)
	State() controller.State
	Subscribe(fn func(controller.State)) (unsubscribe func())
}

type Options struct {
	Title     string // header, e.g. "Comments"
	EmptyText string // shown when the loaded list is empty
	// ShowAuthor adds the name field to the add form (guest comment board).
	ShowAuthor bool
	Logger     zerolog.Logger
}

type mode int

const (
	modeBrowse mode = iota
	modeAdd
	modeLogin
)

// stateMsg carries a fresh controller snapshot.
type stateMsg controller.State

// opDoneMsg reports the end of a controller operation. The user-facing
// outcome is already in the state's notice.
type opDoneMsg struct {
	op  string
	err error
}

type Model struct {
	ctx   context.Context
	board Board
	opts  Options
	log   zerolog.Logger
	keys  keyMap

	changed     chan struct{}
	unsubscribe func()

	state   controller.State
	list    list.Model
	spinner spinner.Model
	help    help.Model

	mode   mode
	inputs []textinput.Model
	focus  int
	hint   string

	width, height int
}

// New builds the model and subscribes it to board. Call Close when the
// program has ended.
func New(ctx context.Context, board Board, opts Options) Model {
	if opts.Title == "" {
		opts.Title = "Comments"
	}
	if opts.EmptyText == "" {
		opts.EmptyText = "No comments yet. Press a to write the first one."
	}

	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(true)
	l.SetShowPagination(true)
	l.SetFilteringEnabled(true)
	l.Styles.PaginationStyle = helpStyle
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("item", "items")

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(accentStyle))

	// one pending signal is enough: the receiver always reads the latest state
	changed := make(chan struct{}, 1)
	unsubscribe := board.Subscribe(func(controller.State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	w, h := termSize()
	m := Model{
		ctx:         ctx,
		board:       board,
		opts:        opts,
		log:         opts.Logger.With().Str("component", "tui").Logger(),
		keys:        defaultKeys(),
		changed:     changed,
		unsubscribe: unsubscribe,
		state:       board.State(),
		list:        l,
		spinner:     sp,
		help:        help.New(),
	}
	m.resize(w, h)
	return m
}

// Close drops the controller subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Run starts the program full screen and blocks until the user quits or
// ctx is done.
func Run(ctx context.Context, board Board, opts Options) error {
	m := New(ctx, board, opts)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForState(),
		m.run("init", m.board.Init),
	)
}

// waitForState blocks until the controller reports a change.
func (m Model) waitForState() tea.Cmd {
	ch, board, ctx := m.changed, m.board, m.ctx
	return func() tea.Msg {
		select {
		case <-ch:
			return stateMsg(board.State())
		case <-ctx.Done():
			return nil
		}
	}
}

func (m Model) run(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.applyState(controller.State(msg))
		return m, m.waitForState()

	case opDoneMsg:
		if msg.err != nil {
			m.log.Debug().Err(msg.err).Str("op", msg.op).Msg("operation failed")
			return m, nil
		}
		switch msg.op {
		case "submit", "login":
			m.closeForm()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		m.hint = ""
		if m.mode != modeBrowse {
			return m.updateForm(msg)
		}
		if m.list.FilterState() == list.Filtering {
			break
		}
		return m.updateBrowse(msg)
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	cmds = append(cmds, cmd)
	if m.mode != modeBrowse && len(m.inputs) > 0 {
		// cursor blink
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Refresh):
		return m, m.run("refresh", m.board.Refresh)

	case key.Matches(msg, m.keys.Like):
		id, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.run("like", func(ctx context.Context) error { return m.board.ToggleLike(ctx, id) })

	case key.Matches(msg, m.keys.Delete):
		id, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.run("delete", func(ctx context.Context) error { return m.board.Delete(ctx, id) })

	case key.Matches(msg, m.keys.Add):
		if !m.state.FormVisible() {
			m.hint = apperr.MsgMustAuthenticate
			return m, nil
		}
		cmd := m.openAdd()
		return m, cmd

	case key.Matches(msg, m.keys.Login):
		if m.state.Variant != controller.Authenticated {
			m.hint = "Logging in is not available in guest mode."
			return m, nil
		}
		cmd := m.openLogin()
		return m, cmd

	case key.Matches(msg, m.keys.Logout):
		if !m.state.Authenticated() {
			m.hint = "Not logged in."
			return m, nil
		}
		return m, m.run("logout", m.board.Logout)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		if m.mode == modeAdd {
			text, author := m.draft()
			m.board.SetDraft(text, author)
		}
		m.closeForm()
		return m, nil

	case key.Matches(msg, m.keys.Next):
		step := 1
		if msg.String() == "shift+tab" {
			step = len(m.inputs) - 1
		}
		cmd := m.focusInput((m.focus + step) % len(m.inputs))
		return m, cmd

	case key.Matches(msg, m.keys.Submit):
		if m.focus < len(m.inputs)-1 {
			cmd := m.focusInput(m.focus + 1)
			return m, cmd
		}
		if m.state.Submitting {
			m.hint = apperr.MsgBusy
			return m, nil
		}
		if m.mode == modeLogin {
			login, password := m.inputs[0].Value(), m.inputs[1].Value()
			return m, m.run("login", func(ctx context.Context) error { return m.board.Login(ctx, login, password) })
		}
		text, author := m.draft()
		m.board.SetDraft(text, author)
		return m, m.run("submit", func(ctx context.Context) error { return m.board.Submit(ctx, text, author) })
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// ---------------------------------------------------
// state & forms
// ---------------------------------------------------

func (m *Model) applyState(s controller.State) {
	keep, hadSel := m.selected()
	m.state = s
	m.list.SetItems(toListItems(s.Items))
	if hadSel {
		for i, it := range s.Items {
			if it.ID == keep {
				m.list.Select(i)
				break
			}
		}
	}
	// a session that expired while the add form was open hides it
	if m.mode == modeAdd && !s.FormVisible() {
		m.closeForm()
	}
}

func (m Model) selected() (model.ID, bool) {
	it, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return "", false
	}
	return it.ID, true
}

func (m *Model) openAdd() tea.Cmd {
	m.mode = modeAdd
	text := newInput("Text", 500)
	text.SetValue(m.state.DraftText)
	m.inputs = []textinput.Model{text}
	if m.opts.ShowAuthor {
		author := newInput("Your name", 60)
		author.SetValue(m.state.DraftAuthor)
		m.inputs = []textinput.Model{author, text}
	}
	return m.focusInput(0)
}

func (m *Model) openLogin() tea.Cmd {
	m.mode = modeLogin
	login := newInput("Login", 60)
	password := newInput("Password", 120)
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	m.inputs = []textinput.Model{login, password}
	return m.focusInput(0)
}

func (m *Model) closeForm() {
	m.mode = modeBrowse
	m.inputs = nil
	m.focus = 0
}

func (m *Model) focusInput(i int) tea.Cmd {
	for j := range m.inputs {
		m.inputs[j].Blur()
	}
	m.focus = i
	return m.inputs[i].Focus()
}

// draft returns the add form's text and author.
func (m Model) draft() (text, author string) {
	if len(m.inputs) == 2 {
		return m.inputs[1].Value(), m.inputs[0].Value()
	}
	if len(m.inputs) == 1 {
		return m.inputs[0].Value(), ""
	}
	return "", ""
}

func newInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	return ti
}

// ---------------------------------------------------
// view
// ---------------------------------------------------

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")
	b.WriteString(m.body())

	if m.mode != modeBrowse {
		b.WriteString("\n")
		b.WriteString(m.form())
	}
	if status := m.status(); status != "" {
		b.WriteString("\n")
		b.WriteString(status)
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.keys.browse()))
	return frameStyle.Render(b.String())
}

func (m Model) header() string {
	who := "guest"
	if m.state.Variant == controller.Authenticated {
		who = "not logged in"
		if s := m.state.Session; s != nil {
			name := s.DisplayName
			if name == "" {
				name = s.Login
			}
			who = "logged in as " + accentStyle.Render(name)
		}
	}
	return fmt.Sprintf("%s  %s  %s",
		titleStyle.Render(m.opts.Title),
		mutedStyle.Render(fmt.Sprintf("%d total", len(m.state.Items))),
		mutedStyle.Render(who),
	)
}

func (m Model) body() string {
	switch {
	case !m.state.Loaded && m.state.Loading:
		return m.spinner.View() + " Loading..."
	case !m.state.Loaded && m.state.Notice.Severity == controller.SeverityError:
		return errorStyle.Render("Could not load the list.") + " " + mutedStyle.Render("Press r to retry.")
	case !m.state.Loaded:
		return ""
	case len(m.state.Items) == 0:
		return mutedStyle.Render(m.opts.EmptyText)
	}
	return m.list.View()
}

func (m Model) form() string {
	title := "New entry"
	if m.mode == modeLogin {
		title = "Log in"
	}
	lines := []string{titleStyle.Render(title)}
	for _, in := range m.inputs {
		lines = append(lines, in.View())
	}
	lines = append(lines, helpStyle.Render("enter send · tab next · esc cancel"))
	return formStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) status() string {
	var parts []string
	if m.state.Loading || m.state.Submitting {
		parts = append(parts, m.spinner.View())
	}
	if n := m.state.Notice; !n.Empty() {
		style := infoStyle
		if n.Severity == controller.SeverityError {
			style = errorStyle
		}
		parts = append(parts, style.Render(n.Text))
	}
	if m.hint != "" {
		parts = append(parts, mutedStyle.Render(m.hint))
	}
	return strings.Join(parts, " ")
}

// ---------------------------------------------------
// layout
// ---------------------------------------------------

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	m.help.Width = w - 4
	// frame, header, status, help and a possible form
	reserved := 10
	if m.mode != modeBrowse {
		reserved += 4 + len(m.inputs)
	}
	m.list.SetSize(max(w-4, 20), max(h-reserved, 3))
}

func termSize() (int, int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return 80, 24
	}
	return w, h
}

var _ tea.Model = Model{}
