package fixtures

import (
	"encoding/json"
	"errors"
	"sync"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

// Account is a small but complete event-sourced aggregate used across the
// package tests: raises events through the base, folds them back on replay,
// and implements SnapshotSource. Events are raised and registered as
// pointers so they round-trip through record-based stores.
type Account struct {
	*rd.AggregateBase

	Balance int64
	Active  bool
}

// Account events.

type AmountDeposited struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
}

func (e AmountDeposited) AggregateID() string { return e.AccountID }
func (e AmountDeposited) EventType() string   { return "AmountDeposited" }

type AmountWithdrawn struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
}

func (e AmountWithdrawn) AggregateID() string { return e.AccountID }
func (e AmountWithdrawn) EventType() string   { return "AmountWithdrawn" }

type AccountDeactivated struct {
	AccountID string `json:"account_id"`
}

func (e AccountDeactivated) AggregateID() string { return e.AccountID }
func (e AccountDeactivated) EventType() string   { return "AccountDeactivated" }

// Account commands.

type DepositAmount struct {
	rd.CorrelatedCommand
	AccountID string
	Amount    int64
}

func (c DepositAmount) AggregateID() string { return c.AccountID }

type WithdrawAmount struct {
	rd.CorrelatedCommand
	AccountID string
	Amount    int64
}

func (c WithdrawAmount) AggregateID() string { return c.AccountID }

type DeactivateAccount struct {
	rd.CorrelatedCommand
	AccountID string
}

func (c DeactivateAccount) AggregateID() string { return c.AccountID }

var registerAccountEventsOnce sync.Once

// RegisterAccountEvents registers the account event factories with the event
// registry. Safe to call from multiple tests.
func RegisterAccountEvents() {
	registerAccountEventsOnce.Do(func() {
		rd.RegisterEventByType(func() rd.Event { return &AmountDeposited{} })
		rd.RegisterEventByType(func() rd.Event { return &AmountWithdrawn{} })
		rd.RegisterEventByType(func() rd.Event { return &AccountDeactivated{} })
	})
}

// NewAccount creates an Account aggregate with its apply table wired.
func NewAccount(id string) (*Account, error) {
	a := &Account{Active: true}

	base, err := rd.NewAggregateBase(id, rd.NewApplier(
		rd.OnApply(func(e *AmountDeposited) {
			a.Balance += e.Amount
		}),
		rd.OnApply(func(e *AmountWithdrawn) {
			a.Balance -= e.Amount
		}),
		rd.OnApply(func(e *AccountDeactivated) {
			a.Active = false
		}),
	))
	if err != nil {
		return nil, err
	}

	a.AggregateBase = base
	return a, nil
}

// MustNewAccount is NewAccount for test setup where the id is known valid.
func MustNewAccount(id string) *Account {
	a, err := NewAccount(id)
	if err != nil {
		panic(err)
	}
	return a
}

var (
	ErrAccountInactive   = errors.New("account is deactivated")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Deposit raises AmountDeposited after validating the request.
func (a *Account) Deposit(amount int64) error {
	if !a.Active {
		return ErrAccountInactive
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return a.Raise(&AmountDeposited{AccountID: a.EntityID(), Amount: amount})
}

// Withdraw raises AmountWithdrawn if the balance covers the request.
func (a *Account) Withdraw(amount int64) error {
	if !a.Active {
		return ErrAccountInactive
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > a.Balance {
		return ErrInsufficientFunds
	}
	return a.Raise(&AmountWithdrawn{AccountID: a.EntityID(), Amount: amount})
}

// Deactivate raises AccountDeactivated. Deactivating an already inactive
// account is a no-op, not an error: the decision holds, no new fact needed.
func (a *Account) Deactivate() error {
	if !a.Active {
		return nil
	}
	return a.Raise(&AccountDeactivated{AccountID: a.EntityID()})
}

type accountSnapshot struct {
	Balance int64 `json:"balance"`
	Active  bool  `json:"active"`
}

// TakeSnapshot implements SnapshotSource.
func (a *Account) TakeSnapshot() (rd.Snapshot, error) {
	data, err := json.Marshal(accountSnapshot{Balance: a.Balance, Active: a.Active})
	if err != nil {
		return rd.Snapshot{}, err
	}
	return rd.Snapshot{
		Version: a.AggregateVersion(),
		Data:    data,
	}, nil
}

// RestoreFromSnapshot implements SnapshotSource.
func (a *Account) RestoreFromSnapshot(snap rd.Snapshot) error {
	var state accountSnapshot
	if err := json.Unmarshal(snap.Data, &state); err != nil {
		return err
	}
	a.Balance = state.Balance
	a.Active = state.Active
	a.SetAggregateVersion(snap.Version)
	return nil
}
