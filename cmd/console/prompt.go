package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jrsteele09/go-console-session/activity"
	"github.com/jrsteele09/go-console-session/auth"
	"github.com/jrsteele09/go-console-session/navigation"
	"golang.org/x/term"
)

const maxAttempts = 3

type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

func (p *prompter) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

func (p *prompter) line(label string) (string, error) {
	p.printf("%s", label)
	text, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && text != "") {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// secret reads without echo when stdin is a terminal.
func (p *prompter) secret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return p.line(label)
	}
	p.printf("%s", label)
	data, err := term.ReadPassword(fd)
	p.printf("\n")
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(label, ": "), err)
	}
	return string(data), nil
}

func signIn(ctx context.Context, p *prompter, manager *auth.Manager, location navigation.Location) error {
	signedIn := false
	for attempt := 0; attempt < maxAttempts && !signedIn; attempt++ {
		email, err := p.line("Email: ")
		if err != nil {
			return err
		}
		password, err := p.secret("Password: ")
		if err != nil {
			return err
		}

		res, err := manager.LoginWithTenantLookup(ctx, email, password)
		if err != nil {
			return err
		}
		if res.Redirected {
			p.printf("Continuing on %s\n", location.URL().Host)
			res, err = manager.LoginWithTenantLookup(ctx, email, password)
			if err != nil {
				return err
			}
		}

		switch {
		case res.Reason != "":
			p.printf("No workspace found for %s (%s)\n", email, res.Reason)
		case !res.OK:
			p.printf("Sign in failed: %s\n", res.Message)
		default:
			signedIn = true
		}
	}
	if !signedIn {
		return errors.New("too many failed sign in attempts")
	}

	for attempt := 0; attempt < maxAttempts; {
		code, err := p.line("One-time code (r to resend): ")
		if err != nil {
			return err
		}
		if strings.EqualFold(code, "r") {
			res, err := manager.ResendChallenge(ctx)
			if err != nil {
				return err
			}
			p.printf("%s\n", res.Message)
			continue
		}

		res, err := manager.VerifyOneTimeCode(ctx, code)
		if err != nil {
			return err
		}
		if res.OK {
			p.printf("Signed in to %s\n", res.Subdomain)
			return nil
		}
		p.printf("Verification failed: %s\n", res.Message)
		attempt++
	}
	return errors.New("too many failed verification attempts")
}

// session feeds every input line to the tracker until the user quits, logs out
// or ctx is cancelled.
func session(ctx context.Context, p *prompter, manager *auth.Manager, tracker *activity.Tracker, location navigation.Location) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			text, err := p.in.ReadString('\n')
			if text != "" {
				lines <- strings.TrimSpace(text)
			}
			if err != nil {
				return
			}
		}
	}()

	p.printf("Type whoami, where, logout or quit.\n")
	for {
		select {
		case <-ctx.Done():
			return nil
		case text, ok := <-lines:
			if !ok {
				return nil
			}
			tracker.OnInput(activity.KeyPress)

			switch text {
			case "whoami":
				state := manager.Snapshot()
				if !state.IsLoggedIn {
					p.printf("Signed out\n")
					continue
				}
				company := "unknown company"
				if state.Company != nil {
					company = state.Company.Name
				}
				p.printf("%s (%s) at %s, session %s\n", state.User.Email, state.User.User(), company, tracker.SessionID())
			case "where":
				p.printf("%s\n", location.URL())
			case "logout":
				manager.Logout()
				p.printf("Signed out\n")
				return nil
			case "quit", "exit":
				return nil
			}
		}
	}
}
