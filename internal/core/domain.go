package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Savings    AccountType = "SAVINGS"
	Current    AccountType = "CURRENT"
	Credit     AccountType = "CREDIT"
	Investment AccountType = "INVESTMENT"
)

const (
	Expense Kind = "EXPENSE"
	Income  Kind = "INCOME"
)

const (
	Daily   Interval = "DAILY"
	Weekly  Interval = "WEEKLY"
	Monthly Interval = "MONTHLY"
	Yearly  Interval = "YEARLY"
)

// DefaultCurrency is used when an account is created without one.
const DefaultCurrency = "INR"

type (
	AccountType string
	Kind        string
	Interval    string

	User struct {
		ID               string
		Subject          string // identity provider user id
		Email            string
		Name             string
		ImageURL         string
		LastReportPeriod string // YYYY-MM of the last monthly report sent
		CreatedAt        time.Time
	}

	Account struct {
		ID        string
		UserID    string
		Name      string
		Type      AccountType
		Currency  string
		Balance   decimal.Decimal
		IsDefault bool
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Transaction struct {
		ID                string
		AccountID         string
		UserID            string
		Kind              Kind
		Amount            decimal.Decimal // always positive, Kind carries the sign
		Category          string
		Date              time.Time
		Description       string
		IsRecurring       bool
		Interval          Interval
		NextRecurringDate *time.Time
		CreatedAt         time.Time
		UpdatedAt         time.Time
	}

	Budget struct {
		ID            string
		AccountID     string
		Name          string
		Category      string
		Amount        decimal.Decimal
		Spent         decimal.Decimal
		LastAlertSent *time.Time
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}
)

func (t AccountType) Validate() error {
	switch t {
	case Savings, Current, Credit, Investment:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidAccountType, string(t))
}

func (k Kind) Validate() error {
	switch k {
	case Expense, Income:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidKind, string(k))
}

func (i Interval) Validate() error {
	if _, ok := recurrenceSteps[i]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidInterval, string(i))
}

// ParseKind accepts EXPENSE/INCOME in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	return k, k.Validate()
}

// ParseAccountType accepts SAVINGS/CURRENT/CREDIT/INVESTMENT in any case.
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Validate()
}

// ParseInterval accepts DAILY/WEEKLY/MONTHLY/YEARLY in any case.
func ParseInterval(s string) (Interval, error) {
	i := Interval(strings.ToUpper(strings.TrimSpace(s)))
	return i, i.Validate()
}

// Delta is the signed effect of the transaction on its account balance.
func (t Transaction) Delta() decimal.Decimal {
	return Delta(t.Kind, t.Amount)
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.AccountID) == "" {
		return fmt.Errorf("%w: account is required", ErrInvalidInput)
	}
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if len(t.Description) > 500 {
		return fmt.Errorf("%w: description too long (max 500 characters)", ErrInvalidInput)
	}
	if t.IsRecurring {
		if err := t.Interval.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: account name is required", ErrInvalidInput)
	}
	if len(a.Name) > 100 {
		return fmt.Errorf("%w: account name too long (max 100 characters)", ErrInvalidInput)
	}
	if err := a.Type.Validate(); err != nil {
		return err
	}
	if len(a.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3 letter code", ErrInvalidInput)
	}
	return ValidatePrecision(a.Balance)
}

func (b Budget) Validate() error {
	if b.Amount.IsNegative() {
		return fmt.Errorf("%w: budget amount cannot be negative", ErrInvalidInput)
	}
	return ValidatePrecision(b.Amount)
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
