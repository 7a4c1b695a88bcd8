package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/term"

	"github.com/idilsaglam/board/internal/apperr"
	"github.com/idilsaglam/board/internal/config"
	"github.com/idilsaglam/board/internal/store"
	"github.com/idilsaglam/board/internal/ui"
)

// ---------------------------------------------------
// Auth subcommands
// ---------------------------------------------------

func (a *app) doAuthLogin(ctx context.Context, args []string, in io.Reader) int {
	if a.cfg.Mode.Variant == config.VariantGuest {
		ui.Fail("login is not available in guest mode (mode.variant: guest)")
		return 2
	}
	if in == nil {
		in = os.Stdin
	}
	r := bufio.NewReader(in)

	var login string
	if len(args) > 0 {
		login = args[0]
	} else {
		fmt.Fprint(ui.Out, "Login: ")
		line, err := readLine(r)
		if err != nil {
			ui.Fail("read login: " + err.Error())
			return 1
		}
		login = line
	}
	fmt.Fprint(ui.Out, "Password: ")
	password, err := readPassword(in, r)
	if err != nil {
		ui.Fail("read password: " + err.Error())
		return 1
	}

	err = a.ctrl.Login(ctx, login, password)
	sess := a.ctrl.State().Session
	if sess == nil {
		ui.Fail("login: " + a.message(err))
		return exitCode(err)
	}
	if err != nil {
		// logged in, but the follow-up refresh failed
		a.log.Warn().Err(err).Msg("refresh after login")
	}
	ui.OK("logged in as " + displayName(*sess))
	if os.Getenv(store.TokenEnv) != "" {
		ui.Info(store.TokenEnv + " is set and overrides the saved token")
	}
	return 0
}

func (a *app) doAuthLogout(ctx context.Context) int {
	if a.tokenSource() == "env" {
		ui.OK("token is provided by " + store.TokenEnv + " env var (nothing to delete)")
		return 0
	}
	if err := store.ClearSession(ctx, a.store); err != nil {
		ui.Fail("logout: " + err.Error())
		return 1
	}
	ui.OK("logged out")
	return 0
}

func (a *app) doAuthStatus(ctx context.Context) int {
	sess, err := store.LoadSession(ctx, a.store)
	if err != nil {
		ui.Fail("status: " + err.Error())
		return 1
	}
	if sess == nil {
		fmt.Fprintln(ui.Out, ui.C(ui.Current().Muted, "not logged in"))
		fmt.Fprintln(ui.Out, "Run: board auth login")
		return 0
	}
	fmt.Fprintf(ui.Out, "source: %s\n", a.tokenSource())
	if sess.Login != "" {
		fmt.Fprintf(ui.Out, "login: %s\n", sess.Login)
	}
	if sess.DisplayName != "" {
		fmt.Fprintf(ui.Out, "name: %s\n", sess.DisplayName)
	}
	if exp, ok := tokenExpiry(sess.Token); ok {
		fmt.Fprintf(ui.Out, "expires: %s\n", exp.UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintln(ui.Out, "expires: (unknown)")
	}
	fmt.Fprintf(ui.Out, "env override: %s\n", store.TokenEnv)
	return 0
}

// whoami decodes a JWT locally without verifying it; opaque tokens print
// the identity cached at login.
func (a *app) doAuthWhoAmI(ctx context.Context) int {
	sess, err := store.LoadSession(ctx, a.store)
	if err != nil {
		ui.Fail("whoami: " + err.Error())
		return 1
	}
	if sess == nil {
		ui.Fail("not logged in. Run: board auth login")
		return 2
	}

	if claims, ok := decodeClaims(sess.Token); ok {
		b, err := json.MarshalIndent(claims, "", "  ")
		if err == nil {
			fmt.Fprintln(ui.Out, "JWT claims:")
			fmt.Fprintln(ui.Out, string(b))
			return 0
		}
	}
	fmt.Fprintln(ui.Out, "Opaque token (cannot introspect locally).")
	if sess.Login != "" {
		fmt.Fprintln(ui.Out, "login:", sess.Login)
	}
	if sess.DisplayName != "" {
		fmt.Fprintln(ui.Out, "name:", sess.DisplayName)
	}
	fmt.Fprintln(ui.Out, "source:", a.tokenSource())
	return 0
}

func decodeClaims(token string) (jwt.MapClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

func tokenExpiry(token string) (time.Time, bool) {
	claims, ok := decodeClaims(token)
	if !ok {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// ---------------------------------------------------
// prompts
// ---------------------------------------------------

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readPassword reads without echo from a terminal, or a plain line
// otherwise (pipes, tests).
func readPassword(in io.Reader, r *bufio.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(ui.Out)
		return string(b), err
	}
	return readLine(r)
}

func hintLogin(err error) {
	if errors.Is(err, apperr.ErrMustAuthenticate) || apperr.IsAuth(err) {
		fmt.Fprintln(ui.Err, ui.C(ui.Current().Muted, "Hint: run `board auth login`"))
	}
}
