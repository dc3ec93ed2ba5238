package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/reembolsai/internal/common"
	"github.com/dmitrijs2005/reembolsai/internal/server/models"
)

func (a *App) resetCounters(ctx context.Context, _ []string) error {
	n, err := a.users.ResetMonthlyCounters(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Monthly counters reset for %d user(s)\n", n)
	return nil
}

func (a *App) setPlan(ctx context.Context, args []string) error {
	u, err := a.users.SetPlan(ctx, args[0], models.Plan(args[1]))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is now on plan %s\n", u.Email, u.Plan)
	return nil
}

func (a *App) setPassword(ctx context.Context, args []string) error {
	pw, err := GetPassword(a.out, "New password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	confirm, err := GetPassword(a.out, "Repeat password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if string(pw) != string(confirm) {
		return errors.New("passwords do not match")
	}

	u, err := a.users.SetPassword(ctx, args[0], string(pw))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Password changed for %s\n", u.Email)
	return nil
}

func (a *App) setStatus(ctx context.Context, args []string) error {
	r, err := a.reimbursements.Transition(ctx, args[0], models.Status(args[1]))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is now %s\n", r.Protocolo, r.Status.Label())
	return nil
}

func (a *App) stats(ctx context.Context, args []string) error {
	u, st, err := a.reimbursements.StatsByEmail(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "User:            %s (%s)\n", u.Email, u.Plan)
	fmt.Fprintf(a.out, "This month:      %d\n", u.ReimbursementsThisMonth)
	fmt.Fprintf(a.out, "Reimbursements:  %d\n", st.TotalReimbursements)
	fmt.Fprintf(a.out, "Total claimed:   R$ %.2f\n", st.TotalValue)
	fmt.Fprintf(a.out, "Total refunded:  R$ %.2f\n", st.TotalReimbursed)

	statuses := make([]string, 0, len(st.ByStatus))
	for s := range st.ByStatus {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(a.out, "  %-12s %d\n", s, st.ByStatus[models.Status(s)])
	}
	return nil
}
