package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/meridian-hr/meridian-hr/internal/absence"
	"github.com/meridian-hr/meridian-hr/internal/directory"
)

// EmployeeLookup resolves the employee a notification should reach.
type EmployeeLookup interface {
	GetEmployee(ctx context.Context, id int64) (directory.Employee, error)
}

// EmailEnqueuer queues an email for out-of-band delivery.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// Notifier enqueues decision emails for absence requests. It satisfies the
// absence service's notifier port; enqueue failures surface as errors but the
// caller swallows them, so a Redis outage never blocks a decision.
type Notifier struct {
	client    EmailEnqueuer
	employees EmployeeLookup
}

// NewNotifier constructs a Notifier.
func NewNotifier(client EmailEnqueuer, employees EmployeeLookup) *Notifier {
	return &Notifier{client: client, employees: employees}
}

// RequestDecided emails the requester about the new status of their request.
func (n *Notifier) RequestDecided(ctx context.Context, req absence.Request) error {
	if n == nil || n.client == nil {
		return nil
	}
	employee, err := n.employees.GetEmployee(ctx, req.RequesterID)
	if err != nil {
		return err
	}
	if employee.Email == "" {
		return nil
	}
	payload := SendEmailPayload{
		To:        employee.Email,
		Subject:   fmt.Sprintf("Absence request %s: %s", req.TypeCode, req.Status),
		RequestID: req.ID,
		Body: fmt.Sprintf("Your %s request from %s to %s is now %s.",
			req.TypeCode,
			req.StartDate.Format("2006-01-02"),
			req.EndDate.Format("2006-01-02"),
			req.Status),
	}
	_, err = n.client.EnqueueSendEmail(ctx, payload)
	return err
}
