package absence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-hr/meridian-hr/internal/balance"
	"github.com/meridian-hr/meridian-hr/internal/shared"
)

type memRepo struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	requests map[int64]Request
	types    map[string]Type
	balances map[[2]int64]float64
	nextReq  int64
	nextType int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		requests: map[int64]Request{},
		types:    map[string]Type{},
		balances: map[[2]int64]float64{},
	}
}

// WithTx serialises transactions and restores state when fn fails, imitating
// a rollback.
func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	requests := make(map[int64]Request, len(m.requests))
	for id, req := range m.requests {
		requests[id] = req
	}
	balances := make(map[[2]int64]float64, len(m.balances))
	for key, days := range m.balances {
		balances[key] = days
	}
	m.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.requests = requests
		m.balances = balances
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memRepo) InsertRequest(_ context.Context, req Request) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextReq++
	req.ID = m.nextReq
	req.CreatedAt = time.Now()
	m.requests[req.ID] = req
	return req.ID, nil
}

func (m *memRepo) UpdateStatusIf(_ context.Context, id int64, from, to Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = to
	m.requests[id] = req
	return true, nil
}

func (m *memRepo) SetManagerDecision(_ context.Context, id, validator int64, comment string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	req.ManagerValidator = validator
	req.ManagerComment = comment
	atCopy := at
	req.ManagerDecidedAt = &atCopy
	m.requests[id] = req
	return nil
}

func (m *memRepo) SetRHDecision(_ context.Context, id, validator int64, comment string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	req.RHValidator = validator
	req.RHComment = comment
	atCopy := at
	req.RHDecidedAt = &atCopy
	m.requests[id] = req
	return nil
}

func (m *memRepo) DecrementBalance(_ context.Context, employeeID int64, year int, days float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int64{employeeID, int64(year)}
	if m.balances[key] < days {
		return balance.ErrInsufficientBalance
	}
	m.balances[key] -= days
	return nil
}

func (m *memRepo) GetRequest(_ context.Context, id int64) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return req, nil
}

func (m *memRepo) ListForRequester(_ context.Context, employeeID int64) ([]Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Request
	for _, req := range m.requests {
		if req.RequesterID == employeeID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (m *memRepo) ListByStatus(_ context.Context, status Status) ([]Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Request
	for _, req := range m.requests {
		if req.Status == status {
			out = append(out, req)
		}
	}
	return out, nil
}

func (m *memRepo) GetTypeByCode(_ context.Context, code string) (Type, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.types[code]
	if !ok {
		return Type{}, ErrNotFound
	}
	return t, nil
}

func (m *memRepo) ListTypes(_ context.Context) ([]Type, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Type, 0, len(m.types))
	for _, t := range m.types {
		out = append(out, t)
	}
	return out, nil
}

func (m *memRepo) CreateType(_ context.Context, t Type) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextType++
	t.ID = m.nextType
	m.types[t.Code] = t
	return t.ID, nil
}

func (m *memRepo) setBalance(employeeID int64, year int, days float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[[2]int64{employeeID, int64(year)}] = days
}

func (m *memRepo) balanceOf(employeeID int64, year int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[[2]int64{employeeID, int64(year)}]
}

type stubPermissions struct {
	roles map[int64][]string
	caps  map[int64][]string
}

func (s stubPermissions) HasRole(_ context.Context, employeeID int64, roleCode string) (bool, error) {
	for _, code := range s.roles[employeeID] {
		if code == roleCode {
			return true, nil
		}
	}
	return false, nil
}

func (s stubPermissions) HasCapability(_ context.Context, employeeID int64, capability string) (bool, error) {
	for _, c := range s.caps[employeeID] {
		if c == capability {
			return true, nil
		}
	}
	return false, nil
}

type stubHierarchy struct {
	managerOf map[int64]int64
}

func (s stubHierarchy) IsManagerOf(_ context.Context, candidateID, subordinateID int64) (bool, error) {
	return s.managerOf[subordinateID] == candidateID, nil
}

const (
	empRequester = int64(100)
	empManager   = int64(200)
	empRH        = int64(300)
	empStranger  = int64(400)
)

func newFixture(t *testing.T) (*memRepo, *Service) {
	t.Helper()
	repo := newMemRepo()
	perms := stubPermissions{
		roles: map[int64][]string{
			empRH: {shared.RoleRHValidation},
		},
		caps: map[int64][]string{},
	}
	hierarchy := stubHierarchy{managerOf: map[int64]int64{empRequester: empManager}}
	svc := NewService(repo, perms, hierarchy, nil, nil)

	_, err := repo.CreateType(context.Background(), Type{Code: "AUT", Label: "Authorised absence", DeductsBalance: true, Active: true})
	require.NoError(t, err)
	_, err = repo.CreateType(context.Background(), Type{Code: "SICK", Label: "Sick leave", DeductsBalance: false, Active: true})
	require.NoError(t, err)
	repo.setBalance(empRequester, 2025, 25)
	return repo, svc
}

func submitFixture(t *testing.T, svc *Service) Request {
	t.Helper()
	req, err := svc.Submit(context.Background(), SubmitInput{
		RequesterID: empRequester,
		TypeCode:    "AUT",
		StartDate:   time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
		Reason:      "family event",
	})
	require.NoError(t, err)
	require.Equal(t, StatusPendingManager, req.Status)
	return req
}

func TestSubmitValidatesDateRange(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := svc.Submit(ctx, SubmitInput{RequesterID: empRequester, TypeCode: "AUT", StartDate: start, EndDate: start.AddDate(0, 0, -1)})
	require.ErrorIs(t, err, ErrInvalidDateRange)

	// A single-day request is valid, half or full.
	_, err = svc.Submit(ctx, SubmitInput{RequesterID: empRequester, TypeCode: "AUT", StartDate: start, EndDate: start})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, SubmitInput{RequesterID: empRequester, TypeCode: "AUT", StartDate: start, EndDate: start, HalfDay: true})
	require.NoError(t, err)

	// A half-day cannot span multiple days.
	_, err = svc.Submit(ctx, SubmitInput{RequesterID: empRequester, TypeCode: "AUT", StartDate: start, EndDate: start.AddDate(0, 0, 1), HalfDay: true})
	require.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestSubmitRejectsUnknownType(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := svc.Submit(ctx, SubmitInput{RequesterID: empRequester, TypeCode: "NOPE", StartDate: start, EndDate: start})
	require.ErrorIs(t, err, ErrUnknownType)

	_, err = repo.CreateType(ctx, Type{Code: "OLD", Label: "Retired", Active: false})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, SubmitInput{RequesterID: empRequester, TypeCode: "OLD", StartDate: start, EndDate: start})
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestFullApprovalFlow(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()
	req := submitFixture(t, svc)

	afterManager, err := svc.DecideAsManager(ctx, empManager, req.ID, DecisionApprove, "ok for me")
	require.NoError(t, err)
	require.Equal(t, StatusPendingRH, afterManager.Status)
	require.Equal(t, empManager, afterManager.ManagerValidator)
	require.NotNil(t, afterManager.ManagerDecidedAt)

	afterRH, err := svc.DecideAsRH(ctx, empRH, req.ID, DecisionApprove, "validated")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, afterRH.Status)
	require.Equal(t, empRH, afterRH.RHValidator)
	require.NotNil(t, afterRH.RHDecidedAt)

	// Three inclusive days deducted from the 2025 balance.
	require.Equal(t, 22.0, repo.balanceOf(empRequester, 2025))
}

func TestManagerRejectShortCircuits(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()
	req := submitFixture(t, svc)

	rejected, err := svc.DecideAsManager(ctx, empManager, req.ID, DecisionReject, "busy period")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Equal(t, "busy period", rejected.ManagerComment)

	// The second stage can never touch a rejected request.
	_, err = svc.DecideAsRH(ctx, empRH, req.ID, DecisionApprove, "")
	require.ErrorIs(t, err, ErrInvalidState)

	final, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, final.Status)
	require.Zero(t, final.RHValidator)
	require.Nil(t, final.RHDecidedAt)
	require.Equal(t, 25.0, repo.balanceOf(empRequester, 2025))
}

func TestCancelLifecycle(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	req := submitFixture(t, svc)
	cancelled, err := svc.Cancel(ctx, empRequester, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	// Terminal states cannot be cancelled.
	_, err = svc.Cancel(ctx, empRequester, req.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	rejected := submitFixture(t, svc)
	_, err = svc.DecideAsManager(ctx, empManager, rejected.ID, DecisionReject, "")
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, empRequester, rejected.ID)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelAuthorization(t *testing.T) {
	repo := newMemRepo()
	perms := stubPermissions{
		roles: map[int64][]string{},
		caps:  map[int64][]string{empRH: {shared.CapCancelAnyAbsence}},
	}
	svc := NewService(repo, perms, stubHierarchy{managerOf: map[int64]int64{}}, nil, nil)
	ctx := context.Background()
	_, err := repo.CreateType(ctx, Type{Code: "AUT", Label: "Authorised absence", Active: true})
	require.NoError(t, err)

	req, err := svc.Submit(ctx, SubmitInput{
		RequesterID: empRequester, TypeCode: "AUT",
		StartDate: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, empStranger, req.ID)
	require.ErrorIs(t, err, ErrNotAuthorized)

	// The override capability allows cancelling someone else's request.
	cancelled, err := svc.Cancel(ctx, empRH, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
}

func TestManagerGateRejectsStrangers(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()
	req := submitFixture(t, svc)

	_, err := svc.DecideAsManager(ctx, empStranger, req.ID, DecisionApprove, "")
	require.ErrorIs(t, err, ErrNotAuthorized)

	unchanged, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingManager, unchanged.Status)
	require.Zero(t, unchanged.ManagerValidator)
}

func TestManagerGateAcceptsRoleTag(t *testing.T) {
	repo := newMemRepo()
	// No hierarchy relation at all; the MANAGER role alone opens the gate.
	perms := stubPermissions{
		roles: map[int64][]string{empStranger: {shared.RoleManager}},
		caps:  map[int64][]string{},
	}
	svc := NewService(repo, perms, stubHierarchy{managerOf: map[int64]int64{}}, nil, nil)
	ctx := context.Background()
	_, err := repo.CreateType(ctx, Type{Code: "AUT", Label: "Authorised absence", Active: true})
	require.NoError(t, err)

	req, err := svc.Submit(ctx, SubmitInput{
		RequesterID: empRequester, TypeCode: "AUT",
		StartDate: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	decided, err := svc.DecideAsManager(ctx, empStranger, req.ID, DecisionApprove, "")
	require.NoError(t, err)
	require.Equal(t, StatusPendingRH, decided.Status)
}

func TestRHGateAcceptsCapabilityAlone(t *testing.T) {
	repo := newMemRepo()
	perms := stubPermissions{
		roles: map[int64][]string{},
		caps:  map[int64][]string{empStranger: {shared.CapValidateAbsenceRH}},
	}
	hierarchy := stubHierarchy{managerOf: map[int64]int64{empRequester: empManager}}
	svc := NewService(repo, perms, hierarchy, nil, nil)
	ctx := context.Background()
	_, err := repo.CreateType(ctx, Type{Code: "AUT", Label: "Authorised absence", Active: true})
	require.NoError(t, err)

	req, err := svc.Submit(ctx, SubmitInput{
		RequesterID: empRequester, TypeCode: "AUT",
		StartDate: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = svc.DecideAsManager(ctx, empManager, req.ID, DecisionApprove, "")
	require.NoError(t, err)

	_, err = svc.DecideAsRH(ctx, empRequester, req.ID, DecisionApprove, "")
	require.ErrorIs(t, err, ErrNotAuthorized)

	decided, err := svc.DecideAsRH(ctx, empStranger, req.ID, DecisionApprove, "")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, decided.Status)
}

func TestReapprovingApprovedRequestFails(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()
	req := submitFixture(t, svc)

	_, err := svc.DecideAsManager(ctx, empManager, req.ID, DecisionApprove, "")
	require.NoError(t, err)
	first, err := svc.DecideAsRH(ctx, empRH, req.ID, DecisionApprove, "")
	require.NoError(t, err)

	_, err = svc.DecideAsRH(ctx, empRH, req.ID, DecisionApprove, "")
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = svc.DecideAsManager(ctx, empManager, req.ID, DecisionApprove, "")
	require.ErrorIs(t, err, ErrInvalidState)

	// Validators and timestamps were set exactly once.
	final, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, first.RHValidator, final.RHValidator)
	require.Equal(t, *first.RHDecidedAt, *final.RHDecidedAt)
	require.Equal(t, 22.0, repo.balanceOf(empRequester, 2025))
}

func TestInsufficientBalanceRollsBackApproval(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()
	repo.setBalance(empRequester, 2025, 1)
	req := submitFixture(t, svc)

	_, err := svc.DecideAsManager(ctx, empManager, req.ID, DecisionApprove, "")
	require.NoError(t, err)

	_, err = svc.DecideAsRH(ctx, empRH, req.ID, DecisionApprove, "")
	require.ErrorIs(t, err, balance.ErrInsufficientBalance)

	// The status change rolled back with the decrement.
	current, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingRH, current.Status)
	require.Zero(t, current.RHValidator)
	require.Equal(t, 1.0, repo.balanceOf(empRequester, 2025))

	// A rejection still works afterwards.
	rejected, err := svc.DecideAsRH(ctx, empRH, req.ID, DecisionReject, "no balance left")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
}

func TestHalfDayDeductsHalf(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()
	day := time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC)

	req, err := svc.Submit(ctx, SubmitInput{
		RequesterID: empRequester, TypeCode: "AUT",
		StartDate: day, EndDate: day, HalfDay: true,
	})
	require.NoError(t, err)
	_, err = svc.DecideAsManager(ctx, empManager, req.ID, DecisionApprove, "")
	require.NoError(t, err)
	_, err = svc.DecideAsRH(ctx, empRH, req.ID, DecisionApprove, "")
	require.NoError(t, err)

	require.Equal(t, 24.5, repo.balanceOf(empRequester, 2025))
}

func TestNonDeductingTypeLeavesBalanceAlone(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()

	req, err := svc.Submit(ctx, SubmitInput{
		RequesterID: empRequester, TypeCode: "SICK",
		StartDate: time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 5, 9, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = svc.DecideAsManager(ctx, empManager, req.ID, DecisionApprove, "")
	require.NoError(t, err)
	_, err = svc.DecideAsRH(ctx, empRH, req.ID, DecisionApprove, "")
	require.NoError(t, err)

	require.Equal(t, 25.0, repo.balanceOf(empRequester, 2025))
}

func TestConcurrentManagerDecisionsHaveOneWinner(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()
	req := submitFixture(t, svc)

	// Both actors pass the gate: one by hierarchy, one by role tag.
	perms := stubPermissions{
		roles: map[int64][]string{empStranger: {shared.RoleManager}},
		caps:  map[int64][]string{},
	}
	svc = NewService(repo, perms, stubHierarchy{managerOf: map[int64]int64{empRequester: empManager}}, nil, nil)

	var g errgroup.Group
	results := make([]error, 2)
	actors := []int64{empManager, empStranger}
	for i, actor := range actors {
		i, actor := i, actor
		g.Go(func() error {
			_, err := svc.DecideAsManager(ctx, actor, req.ID, DecisionApprove, "")
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var winners, losers int
	var winner int64
	for i, err := range results {
		switch {
		case err == nil:
			winners++
			winner = actors[i]
		case errors.Is(err, ErrInvalidState):
			losers++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, winners)
	require.Equal(t, 1, losers)

	final, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingRH, final.Status)
	require.Equal(t, winner, final.ManagerValidator)
}

type failingAudit struct{}

func (failingAudit) Record(context.Context, shared.AuditLog) error {
	return errors.New("audit sink down")
}

func TestAuditFailureNeverBlocksTransitions(t *testing.T) {
	repo := newMemRepo()
	perms := stubPermissions{roles: map[int64][]string{empRH: {shared.RoleRHValidation}}, caps: map[int64][]string{}}
	hierarchy := stubHierarchy{managerOf: map[int64]int64{empRequester: empManager}}
	svc := NewService(repo, perms, hierarchy, failingAudit{}, nil)
	ctx := context.Background()
	_, err := repo.CreateType(ctx, Type{Code: "AUT", Label: "Authorised absence", Active: true})
	require.NoError(t, err)

	req, err := svc.Submit(ctx, SubmitInput{
		RequesterID: empRequester, TypeCode: "AUT",
		StartDate: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	decided, err := svc.DecideAsManager(ctx, empManager, req.ID, DecisionApprove, "")
	require.NoError(t, err)
	require.Equal(t, StatusPendingRH, decided.Status)
}
