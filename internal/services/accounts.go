package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/storage"
)

// Identity is what the identity provider tells us about the caller.
type Identity struct {
	Subject  string
	Email    string
	Name     string
	ImageURL string
}

type AccountInput struct {
	Name      string
	Type      core.AccountType
	Currency  string
	Balance   decimal.Decimal // opening balance
	IsDefault bool
}

// AccountDetail is an account with its transactions, newest first.
type AccountDetail struct {
	Account      core.Account
	Transactions []core.Transaction
	Count        int
}

type AccountService struct {
	store  storage.Store
	cache  Invalidator
	logger *log.Logger
	now    func() time.Time
}

func NewAccountService(store storage.Store, cache Invalidator) *AccountService {
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &AccountService{
		store:  store,
		cache:  cache,
		logger: log.ForComponent(log.ComponentAccounts),
		now:    utcNow,
	}
}

// EnsureUser maps an identity to a local user: by subject, else by email
// (relinking the subject), else a new user is created.
func (s *AccountService) EnsureUser(ctx context.Context, id Identity) (core.User, error) {
	if strings.TrimSpace(id.Subject) == "" {
		return core.User{}, core.ErrUnauthorized
	}
	if u, err := s.store.GetUserBySubject(ctx, id.Subject); err == nil {
		return u, nil
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.User{}, fmt.Errorf("lookup user: %w", err)
	}

	var user core.User
	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		if id.Email != "" {
			existing, err := tx.GetUserByEmail(ctx, id.Email)
			switch {
			case err == nil:
				existing.Subject = id.Subject
				if id.Name != "" {
					existing.Name = id.Name
				}
				if id.ImageURL != "" {
					existing.ImageURL = id.ImageURL
				}
				user = existing
				return tx.UpdateUser(ctx, existing)
			case !errors.Is(err, core.ErrNotFound):
				return err
			}
		}
		user = core.User{
			ID:        newID(),
			Subject:   id.Subject,
			Email:     id.Email,
			Name:      id.Name,
			ImageURL:  id.ImageURL,
			CreatedAt: s.now(),
		}
		return tx.InsertUser(ctx, user)
	})
	if err != nil {
		return core.User{}, fmt.Errorf("ensure user: %w", err)
	}
	s.logger.InfoContext(ctx, "User linked", log.FieldUserID, user.ID, "subject", id.Subject)
	return user, nil
}

// CreateAccount adds an account. The user's first account is always the
// default; asking for default on a later one clears the previous default.
func (s *AccountService) CreateAccount(ctx context.Context, userID string, in AccountInput) (core.Account, error) {
	if err := requireUser(userID); err != nil {
		return core.Account{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = core.DefaultCurrency
	}
	now := s.now()
	a := core.Account{
		ID:        newID(),
		UserID:    userID,
		Name:      strings.TrimSpace(in.Name),
		Type:      in.Type,
		Currency:  currency,
		Balance:   in.Balance,
		IsDefault: in.IsDefault,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}

	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		existing, err := tx.ListAccounts(ctx, userID)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			a.IsDefault = true
		}
		if a.IsDefault {
			if err := tx.ClearDefaultAccount(ctx, userID); err != nil {
				return err
			}
		}
		return tx.InsertAccount(ctx, a)
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	s.cache.InvalidateUser(ctx, userID)
	s.logger.InfoContext(ctx, "Account created",
		log.FieldUserID, userID,
		log.FieldAccountID, a.ID,
		"default", a.IsDefault)
	return a, nil
}

func (s *AccountService) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.store.ListAccounts(ctx, userID)
}

func (s *AccountService) GetAccount(ctx context.Context, userID, id string) (core.Account, error) {
	if err := requireUser(userID); err != nil {
		return core.Account{}, err
	}
	return s.store.GetAccount(ctx, userID, id)
}

func (s *AccountService) GetAccountWithTransactions(ctx context.Context, userID, id string) (AccountDetail, error) {
	if err := requireUser(userID); err != nil {
		return AccountDetail{}, err
	}
	a, err := s.store.GetAccount(ctx, userID, id)
	if err != nil {
		return AccountDetail{}, err
	}
	txs, err := s.store.ListTransactions(ctx, userID, storage.TransactionFilter{AccountID: id})
	if err != nil {
		return AccountDetail{}, fmt.Errorf("list transactions: %w", err)
	}
	return AccountDetail{Account: a, Transactions: txs, Count: len(txs)}, nil
}

// UpdateAccount edits name, type and currency. Balances are never set here.
func (s *AccountService) UpdateAccount(ctx context.Context, userID, id string, in AccountInput) (core.Account, error) {
	if err := requireUser(userID); err != nil {
		return core.Account{}, err
	}
	var updated core.Account
	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		a, err := tx.GetAccount(ctx, userID, id)
		if err != nil {
			return err
		}
		a.Name = strings.TrimSpace(in.Name)
		a.Type = in.Type
		if c := strings.ToUpper(strings.TrimSpace(in.Currency)); c != "" {
			a.Currency = c
		}
		a.UpdatedAt = s.now()
		if err := a.Validate(); err != nil {
			return err
		}
		if err := tx.UpdateAccountDetails(ctx, a); err != nil {
			return err
		}
		if in.IsDefault && !a.IsDefault {
			if err := tx.ClearDefaultAccount(ctx, userID); err != nil {
				return err
			}
			if err := tx.SetDefaultAccount(ctx, userID, a.ID); err != nil {
				return err
			}
			a.IsDefault = true
		}
		updated = a
		return nil
	})
	if err != nil {
		return core.Account{}, err
	}
	s.cache.InvalidateUser(ctx, userID)
	s.logger.InfoContext(ctx, "Account updated", log.FieldUserID, userID, log.FieldAccountID, id)
	return updated, nil
}

// SetDefaultAccount makes id the only default account of the user.
func (s *AccountService) SetDefaultAccount(ctx context.Context, userID, id string) (core.Account, error) {
	if err := requireUser(userID); err != nil {
		return core.Account{}, err
	}
	var a core.Account
	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		var err error
		if a, err = tx.GetAccount(ctx, userID, id); err != nil {
			return err
		}
		if err := tx.ClearDefaultAccount(ctx, userID); err != nil {
			return err
		}
		if err := tx.SetDefaultAccount(ctx, userID, id); err != nil {
			return err
		}
		a.IsDefault = true
		return nil
	})
	if err != nil {
		return core.Account{}, err
	}
	s.cache.InvalidateUser(ctx, userID)
	s.logger.InfoContext(ctx, "Default account changed", log.FieldUserID, userID, log.FieldAccountID, id)
	return a, nil
}

// DeleteAccount removes an account with its transactions and budget. The
// last account cannot be deleted; deleting the default promotes the most
// recently created remaining account.
func (s *AccountService) DeleteAccount(ctx context.Context, userID, id string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	var promoted string
	err := s.store.Atomic(ctx, func(tx storage.Tx) error {
		target, err := tx.GetAccount(ctx, userID, id)
		if err != nil {
			return err
		}
		accounts, err := tx.ListAccounts(ctx, userID)
		if err != nil {
			return err
		}
		if len(accounts) <= 1 {
			return fmt.Errorf("%w: cannot delete the last account", core.ErrInvalidInput)
		}
		if err := tx.DeleteAccount(ctx, userID, id); err != nil {
			return err
		}
		if !target.IsDefault {
			return nil
		}
		// accounts is newest first
		for _, a := range accounts {
			if a.ID != id {
				promoted = a.ID
				break
			}
		}
		return tx.SetDefaultAccount(ctx, userID, promoted)
	})
	if err != nil {
		return err
	}
	s.cache.InvalidateUser(ctx, userID)
	s.logger.InfoContext(ctx, "Account deleted",
		log.FieldUserID, userID,
		log.FieldAccountID, id,
		"promoted", promoted)
	return nil
}
