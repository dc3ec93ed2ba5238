package models

import (
	"fmt"
	"time"
)

// Status is the processing state of a reimbursement request.
type Status string

const (
	StatusPending  Status = "pendente"
	StatusInReview Status = "em_analise"
	StatusApproved Status = "aprovado"
	StatusRejected Status = "recusado"
	StatusSent     Status = "enviado"
)

var transitions = map[Status][]Status{
	StatusPending:  {StatusInReview, StatusSent},
	StatusInReview: {StatusApproved, StatusRejected, StatusSent},
	StatusApproved: {StatusSent},
	StatusRejected: {StatusSent},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInReview, StatusApproved, StatusRejected, StatusSent:
		return true
	}
	return false
}

// CanTransition reports whether a record may move from s to next. Statuses
// only move forward and enviado is final.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Label is the human readable form used in documents.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "PENDENTE"
	case StatusInReview:
		return "EM ANÁLISE"
	case StatusApproved:
		return "APROVADO"
	case StatusRejected:
		return "RECUSADO"
	case StatusSent:
		return "ENVIADO PARA OPERADORA"
	}
	return string(s)
}

// Reimbursement is a request owned by exactly one user. UserID never changes
// after creation and ValorReembolso never exceeds Valor.
type Reimbursement struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	Tipo             string     `json:"tipo"`
	Profissional     string     `json:"profissional"`
	Valor            float64    `json:"valor"`
	ValorReembolso   float64    `json:"valorReembolso"`
	Data             string     `json:"data"`
	Status           Status     `json:"status"`
	Operadora        string     `json:"operadora"`
	Protocolo        string     `json:"protocolo"`
	CreatedAt        time.Time  `json:"createdAt"`
	SentToOperatorAt *time.Time `json:"sentToOperatorAt,omitempty"`
}

// Clone returns a deep copy safe to mutate.
func (r *Reimbursement) Clone() *Reimbursement {
	c := *r
	if r.SentToOperatorAt != nil {
		t := *r.SentToOperatorAt
		c.SentToOperatorAt = &t
	}
	return &c
}

// ReimbursedPercent is the share of the claimed amount being reimbursed.
func (r *Reimbursement) ReimbursedPercent() float64 {
	if r.Valor <= 0 {
		return 0
	}
	return r.ValorReembolso / r.Valor * 100
}

// String is used in log lines.
func (r *Reimbursement) String() string {
	return fmt.Sprintf("%s (%s, R$ %.2f)", r.Protocolo, r.Status, r.ValorReembolso)
}

// Stats summarizes one user's reimbursements.
type Stats struct {
	TotalReimbursements int            `json:"totalReimbursements"`
	TotalValue          float64        `json:"totalValue"`
	TotalReimbursed     float64        `json:"totalReimbursed"`
	ByStatus            map[Status]int `json:"byStatus"`
}
