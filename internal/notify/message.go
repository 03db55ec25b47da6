// Package notify renders and delivers the emails produced by the periodic
// jobs: budget alerts and monthly reports.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindBudgetAlert   Kind = "budget_alert"
	KindMonthlyReport Kind = "monthly_report"
)

// BudgetAlert carries preformatted values for the alert template.
type BudgetAlert struct {
	AccountName   string `json:"accountName"`
	PercentUsed   string `json:"percentUsed"`
	BudgetAmount  string `json:"budgetAmount"`
	TotalExpenses string `json:"totalExpenses"`
	Remaining     string `json:"remaining"`
}

type CategoryLine struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

// MonthlyReport carries preformatted values for the report template.
type MonthlyReport struct {
	Month         string         `json:"month"`
	TotalIncome   string         `json:"totalIncome"`
	TotalExpenses string         `json:"totalExpenses"`
	Net           string         `json:"net"`
	Categories    []CategoryLine `json:"categories,omitempty"`
	Insights      []string       `json:"insights,omitempty"`
}

// Message is a notification before rendering. Exactly one payload matches Kind.
type Message struct {
	Kind          Kind           `json:"kind"`
	To            string         `json:"to"`
	UserName      string         `json:"userName"`
	Subject       string         `json:"subject"`
	BudgetAlert   *BudgetAlert   `json:"budgetAlert,omitempty"`
	MonthlyReport *MonthlyReport `json:"monthlyReport,omitempty"`
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("recipient is required")
	}
	switch m.Kind {
	case KindBudgetAlert:
		if m.BudgetAlert == nil {
			return errors.New("budget alert payload missing")
		}
	case KindMonthlyReport:
		if m.MonthlyReport == nil {
			return errors.New("monthly report payload missing")
		}
	default:
		return fmt.Errorf("unknown message kind %q", m.Kind)
	}
	return nil
}

// Email is a rendered message ready for delivery.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a rendered email.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// Dispatcher accepts a notification for delivery. Implementations either
// send it inline or hand it to the mail queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, m Message) error
}
