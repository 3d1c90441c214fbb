package balance

import (
	"errors"
	"time"
)

// Balance is the remaining leave entitlement for an employee in a reference
// year. Days carry halves, so the amount is a float.
type Balance struct {
	EmployeeID    int64
	Year          int
	DaysRemaining float64
	UpdatedAt     time.Time
}

var (
	// ErrNotFound indicates no balance row exists for the employee and year.
	ErrNotFound = errors.New("balance: not found")
	// ErrInsufficientBalance occurs when a decrement would push the balance
	// below zero.
	ErrInsufficientBalance = errors.New("balance: insufficient days remaining")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("balance: invalid input")
)
