package balance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu       sync.Mutex
	balances map[[2]int64]float64
}

func newMemRepo() *memRepo {
	return &memRepo{balances: map[[2]int64]float64{}}
}

func (m *memRepo) key(employeeID int64, year int) [2]int64 {
	return [2]int64{employeeID, int64(year)}
}

func (m *memRepo) Get(_ context.Context, employeeID int64, year int) (Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	days, ok := m.balances[m.key(employeeID, year)]
	if !ok {
		return Balance{}, ErrNotFound
	}
	return Balance{EmployeeID: employeeID, Year: year, DaysRemaining: days, UpdatedAt: time.Now()}, nil
}

func (m *memRepo) ListForEmployee(_ context.Context, employeeID int64) ([]Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Balance
	for key, days := range m.balances {
		if key[0] == employeeID {
			out = append(out, Balance{EmployeeID: employeeID, Year: int(key[1]), DaysRemaining: days})
		}
	}
	return out, nil
}

func (m *memRepo) Set(_ context.Context, employeeID int64, year int, days float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[m.key(employeeID, year)] = days
	return nil
}

func (m *memRepo) Restore(_ context.Context, employeeID int64, year int, days float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.key(employeeID, year)
	current, ok := m.balances[key]
	if !ok {
		return ErrNotFound
	}
	m.balances[key] = current + days
	return nil
}

func TestSetAndGet(t *testing.T) {
	svc := NewService(newMemRepo(), nil)
	ctx := context.Background()

	require.ErrorIs(t, svc.Set(ctx, 1, 7, 2025, -1), ErrValidation)
	require.NoError(t, svc.Set(ctx, 1, 7, 2025, 25))

	b, err := svc.Get(ctx, 7, 2025)
	require.NoError(t, err)
	require.Equal(t, 25.0, b.DaysRemaining)

	_, err = svc.Get(ctx, 7, 2024)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRestoreCreditsExistingRow(t *testing.T) {
	svc := NewService(newMemRepo(), nil)
	ctx := context.Background()

	require.ErrorIs(t, svc.Restore(ctx, 1, 7, 2025, 2), ErrNotFound)
	require.ErrorIs(t, svc.Restore(ctx, 1, 7, 2025, 0), ErrValidation)

	require.NoError(t, svc.Set(ctx, 1, 7, 2025, 10))
	require.NoError(t, svc.Restore(ctx, 1, 7, 2025, 2.5))

	b, err := svc.Get(ctx, 7, 2025)
	require.NoError(t, err)
	require.Equal(t, 12.5, b.DaysRemaining)
}
