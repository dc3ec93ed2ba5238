// Package cli is the operator command line. It acts directly on the store,
// bypassing HTTP: the monthly counter sweep, plan and password changes,
// manual status transitions and per-user statistics.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/reembolsai/internal/server/services"
)

// ErrUsage is returned for an unknown command or wrong arguments.
var ErrUsage = errors.New("usage error")

type App struct {
	users          *services.UserService
	reimbursements *services.ReimbursementService
	reader         *bufio.Reader
	out            io.Writer
}

func NewApp(us *services.UserService, rs *services.ReimbursementService, in io.Reader, out io.Writer) *App {
	return &App{users: us, reimbursements: rs, reader: bufio.NewReader(in), out: out}
}

type command struct {
	usage string
	nargs int
	run   func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"reset-counters": {usage: "reset-counters", nargs: 0, run: (*App).resetCounters},
	"set-plan":       {usage: "set-plan <email> <free|pro|premium>", nargs: 2, run: (*App).setPlan},
	"set-password":   {usage: "set-password <email>", nargs: 1, run: (*App).setPassword},
	"set-status":     {usage: "set-status <reimbursement-id> <status>", nargs: 2, run: (*App).setStatus},
	"stats":          {usage: "stats <email>", nargs: 1, run: (*App).stats},
}

var commandOrder = []string{"reset-counters", "set-plan", "set-password", "set-status", "stats"}

// Run executes one command. args[0] is the command name.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" {
		a.help()
		if len(args) == 0 {
			return ErrUsage
		}
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		a.help()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}
	if len(args)-1 != cmd.nargs {
		return fmt.Errorf("%w: %s", ErrUsage, cmd.usage)
	}

	if err := cmd.run(a, ctx, args[1:]); err != nil {
		return describe(err)
	}
	return nil
}

func (a *App) help() {
	fmt.Fprintln(a.out, "Available commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(a.out, "  %s\n", commands[name].usage)
	}
}

// describe replaces typed service errors with their user-facing reason.
func describe(err error) error {
	var (
		validation *services.ValidationError
		notFound   *services.NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		return errors.New(validation.Reason)
	case errors.As(err, &notFound):
		return errors.New(notFound.Reason)
	}
	return err
}
