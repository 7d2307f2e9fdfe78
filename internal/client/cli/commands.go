package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/foliokeeper/internal/client/client"
	"github.com/dmitrijs2005/foliokeeper/internal/common"
)

// getSimpleText and getPassword are swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// describeError turns client errors into a line for the user.
func describeError(err error) string {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrUnavailable):
		return "Server unavailable, try again later"
	case errors.Is(err, client.ErrNotLoggedIn):
		return "Not logged in, use 'login' first"
	case errors.As(err, &apiErr):
		return apiErr.Error()
	case errors.Is(err, client.ErrUnauthorized):
		return "Session expired, please log in again"
	}
	return err.Error()
}

// report prints err and returns it. Unavailability flips the prompt to
// offline right away.
func (a *App) report(err error) error {
	if errors.Is(err, client.ErrUnavailable) {
		a.setMode(ModeOffline)
	}
	fmt.Fprintln(a.out, "Error:", describeError(err))
	return err
}

func (a *App) readCredentials() (string, []byte, error) {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return "", nil, err
	}
	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return "", nil, err
	}
	return email, password, nil
}

func (a *App) Register(ctx context.Context) error {
	email, password, err := a.readCredentials()
	if err != nil {
		return a.report(err)
	}
	defer common.WipeByteArray(password)

	fullName, err := getSimpleText(a.reader, "Enter full name (optional)", a.out)
	if err != nil {
		return a.report(err)
	}

	if err := a.authService.Register(ctx, email, password, fullName); err != nil {
		if errors.Is(err, client.ErrConflict) {
			fmt.Fprintln(a.out, "Error: an account with this email already exists")
			return err
		}
		return a.report(err)
	}

	return a.loggedIn(ctx, "Registered")
}

func (a *App) Login(ctx context.Context) error {
	email, password, err := a.readCredentials()
	if err != nil {
		return a.report(err)
	}
	defer common.WipeByteArray(password)

	if err := a.authService.Login(ctx, email, password); err != nil {
		return a.report(err)
	}

	return a.loggedIn(ctx, "Login successful")
}

func (a *App) loggedIn(ctx context.Context, msg string) error {
	email, err := a.authService.CurrentEmail(ctx)
	if err != nil {
		return a.report(err)
	}
	a.setEmail(email)
	a.setMode(ModeOnline)
	fmt.Fprintf(a.out, "%s, logged in as %s\n", msg, email)
	return nil
}

// Logout forgets the local session.
func (a *App) Logout(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}
	if err := a.authService.Logout(ctx); err != nil {
		return a.report(err)
	}
	a.setEmail("")
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	u, err := a.authService.WhoAmI(ctx)
	if err != nil {
		return a.report(err)
	}

	fmt.Fprintln(a.out, "Subject: ", u.Sub)
	if u.Email != "" {
		fmt.Fprintln(a.out, "Email:   ", u.Email)
	}
	if u.FullName != nil && *u.FullName != "" {
		fmt.Fprintln(a.out, "Name:    ", *u.FullName)
	}
	if u.Username != "" {
		fmt.Fprintln(a.out, "Username:", u.Username)
	}
	if len(u.Groups) > 0 {
		fmt.Fprintln(a.out, "Groups:  ", strings.Join(u.Groups, ", "))
	}
	return nil
}

func (a *App) Status(ctx context.Context) error {
	st, err := a.authService.Status(ctx)
	if err != nil {
		return a.report(err)
	}
	if !st.Authenticated || st.User == nil {
		fmt.Fprintln(a.out, "Not authenticated")
		return nil
	}

	who := st.User.Email
	if who == "" {
		who = st.User.Username
	}
	if who == "" {
		who = st.User.Sub
	}
	fmt.Fprintln(a.out, "Authenticated as", who)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.authService.Refresh(ctx); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Tokens refreshed")
	return nil
}

// Reset requests a password reset token for an email.
func (a *App) Reset(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return a.report(err)
	}

	res, err := a.authService.RequestReset(ctx, email)
	if err != nil {
		return a.report(err)
	}

	fmt.Fprintln(a.out, res.Message)
	if res.ResetToken != "" {
		fmt.Fprintln(a.out, "Reset token:", res.ResetToken)
	}
	return nil
}

// Confirm sets a new password using a reset token.
func (a *App) Confirm(ctx context.Context) error {
	token, err := getSimpleText(a.reader, "Enter reset token", a.out)
	if err != nil {
		return a.report(err)
	}
	password, err := getPassword(a.out, "Enter new password")
	if err != nil {
		return a.report(err)
	}
	defer common.WipeByteArray(password)

	msg, err := a.authService.ConfirmReset(ctx, token, password)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, msg)
	return nil
}
