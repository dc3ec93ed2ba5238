// Package plans holds the static capability table of the subscription tiers
// and the yes/no checks the workflow runs before each gated action. Nothing
// here performs I/O.
package plans

import (
	"fmt"

	"github.com/dmitrijs2005/reembolsai/internal/server/models"
)

// Unlimited marks a tier without a monthly cap.
const Unlimited = -1

// Limits describes what a tier may do. The priority and dashboard flags are
// advisory: nothing in the server enforces them.
type Limits struct {
	Name                      string `json:"name"`
	MaxReimbursementsPerMonth int    `json:"maxReimbursementsPerMonth"`
	CanGeneratePDF            bool   `json:"canGeneratePDF"`
	CanSendToOperator         bool   `json:"canSendToOperator"`
	HasFullHistory            bool   `json:"hasFullHistory"`
	HasAutomaticSend          bool   `json:"hasAutomaticSend"`
	HasPriorityProcessing     bool   `json:"hasPriorityProcessing"`
	HasAdvancedDashboard      bool   `json:"hasAdvancedDashboard"`
}

var table = map[models.Plan]Limits{
	models.PlanFree: {
		Name:                      "Gratuito",
		MaxReimbursementsPerMonth: 1,
	},
	models.PlanPro: {
		Name:                      "Pro",
		MaxReimbursementsPerMonth: 10,
		CanGeneratePDF:            true,
		CanSendToOperator:         true,
		HasFullHistory:            true,
	},
	models.PlanPremium: {
		Name:                      "Premium",
		MaxReimbursementsPerMonth: Unlimited,
		CanGeneratePDF:            true,
		CanSendToOperator:         true,
		HasFullHistory:            true,
		HasAutomaticSend:          true,
		HasPriorityProcessing:     true,
		HasAdvancedDashboard:      true,
	},
}

// Tiers lists the plans from cheapest to most expensive.
var Tiers = []models.Plan{models.PlanFree, models.PlanPro, models.PlanPremium}

// For returns the limits of plan. Unknown plans get the free tier.
func For(plan models.Plan) Limits {
	if l, ok := table[plan]; ok {
		return l
	}
	return table[models.PlanFree]
}

// Unbounded reports whether the tier has no monthly cap.
func (l Limits) Unbounded() bool {
	return l.MaxReimbursementsPerMonth == Unlimited
}

// Decision is the outcome of a capability check. When Allowed is false,
// Reason is user facing and names RequiredPlan.
type Decision struct {
	Allowed      bool
	Reason       string
	CurrentPlan  models.Plan
	RequiredPlan models.Plan
}

func allow(u *models.User) Decision {
	return Decision{Allowed: true, CurrentPlan: u.Plan}
}

// CanCreateReimbursement checks the monthly cap against the user's counter.
func CanCreateReimbursement(u *models.User) Decision {
	limits := For(u.Plan)
	if limits.Unbounded() || u.ReimbursementsThisMonth < limits.MaxReimbursementsPerMonth {
		return allow(u)
	}

	required := nextTierWith(u.Plan, func(l Limits) bool {
		return l.Unbounded() || l.MaxReimbursementsPerMonth > limits.MaxReimbursementsPerMonth
	})
	return Decision{
		CurrentPlan:  u.Plan,
		RequiredPlan: required,
		Reason: fmt.Sprintf(
			"Você atingiu o limite de %d reembolso(s) por mês do plano %s. Faça upgrade para o plano %s para continuar.",
			limits.MaxReimbursementsPerMonth, limits.Name, For(required).Name),
	}
}

// CanGeneratePDF checks the PDF capability.
func CanGeneratePDF(u *models.User) Decision {
	limits := For(u.Plan)
	if limits.CanGeneratePDF {
		return allow(u)
	}
	required := nextTierWith(u.Plan, func(l Limits) bool { return l.CanGeneratePDF })
	return Decision{
		CurrentPlan:  u.Plan,
		RequiredPlan: required,
		Reason: fmt.Sprintf(
			"Geração de PDF não está disponível no plano %s. Faça upgrade para o plano %s ou superior.",
			limits.Name, For(required).Name),
	}
}

// CanSendToOperator checks the send-to-operator capability.
func CanSendToOperator(u *models.User) Decision {
	limits := For(u.Plan)
	if limits.CanSendToOperator {
		return allow(u)
	}
	required := nextTierWith(u.Plan, func(l Limits) bool { return l.CanSendToOperator })
	return Decision{
		CurrentPlan:  u.Plan,
		RequiredPlan: required,
		Reason: fmt.Sprintf(
			"Envio para operadora não está disponível no plano %s. Faça upgrade para o plano %s ou superior.",
			limits.Name, For(required).Name),
	}
}

// nextTierWith returns the cheapest tier above current that satisfies ok,
// or the top tier when none does.
func nextTierWith(current models.Plan, ok func(Limits) bool) models.Plan {
	if !current.Valid() {
		current = models.PlanFree
	}
	above := false
	for _, p := range Tiers {
		if p == current {
			above = true
			continue
		}
		if above && ok(table[p]) {
			return p
		}
	}
	return Tiers[len(Tiers)-1]
}

// Info is a tier's limits together with the user's usage this month.
type Info struct {
	Limits
	Plan         models.Plan `json:"plan"`
	CurrentUsage int         `json:"currentUsage"`
}

func UserInfo(u *models.User) Info {
	return Info{Limits: For(u.Plan), Plan: u.Plan, CurrentUsage: u.ReimbursementsThisMonth}
}

// Catalog returns every tier in order, for the public plans endpoint.
func Catalog() []Info {
	out := make([]Info, 0, len(Tiers))
	for _, p := range Tiers {
		out = append(out, Info{Limits: table[p], Plan: p})
	}
	return out
}
