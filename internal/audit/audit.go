// Package audit runs the scheduled consistency sweep: the cached balance of
// every plan is checked against the balance recomputed from its schedule,
// drift beyond the rounding epsilon is repaired, and overdue installments
// are reported by email. The sweep is the external repair process for the
// concurrent-mutation drift the engine itself does not detect.
package audit

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ledgerline/installment-service/internal/ledger"
	"github.com/ledgerline/installment-service/internal/models"
	"github.com/ledgerline/installment-service/internal/notify"
	"github.com/ledgerline/installment-service/internal/repository"
)

// Auditor schedules and runs the consistency sweep.
type Auditor struct {
	store  repository.Store
	sender *notify.Sender
	log    *logrus.Logger
	cron   *cron.Cron
}

// NewAuditor creates an auditor over the given store.
func NewAuditor(store repository.Store, sender *notify.Sender, log *logrus.Logger) *Auditor {
	return &Auditor{
		store:  store,
		sender: sender,
		log:    log,
		cron:   cron.New(),
	}
}

// Start schedules the sweep with the given cron spec.
func (a *Auditor) Start(spec string) error {
	if _, err := a.cron.AddFunc(spec, func() {
		if err := a.Sweep(context.Background()); err != nil {
			a.log.Errorf("Audit sweep failed: %v", err)
		}
	}); err != nil {
		return err
	}
	a.cron.Start()
	a.log.Infof("Audit sweep scheduled: %s", spec)
	return nil
}

// Stop halts the schedule.
func (a *Auditor) Stop() {
	a.cron.Stop()
}

// Sweep checks every plan once. It repairs cached balances that drifted
// from the schedule and collects overdue entries for the summary email.
func (a *Auditor) Sweep(ctx context.Context) error {
	plans, err := a.store.ListPlans(ctx)
	if err != nil {
		return err
	}

	var overdue []notify.OverdueItem
	repaired := 0
	for i := range plans {
		plan := &plans[i]

		if ledger.Drifted(plan.RemainingBalance, plan.Schedule) {
			recomputed := ledger.RemainingBalance(plan.Schedule)
			if err := a.store.UpdatePlanLedger(ctx, plan.ID, plan.Schedule, recomputed); err != nil {
				a.log.Errorf("Failed to repair plan %d: %v", plan.ID, err)
				continue
			}
			a.log.Warnf("Plan %d balance drift repaired: %.2f -> %.2f",
				plan.ID, plan.RemainingBalance, recomputed)
			repaired++
		}

		overdue = append(overdue, overdueEntries(plan)...)
	}

	if a.sender != nil {
		if err := a.sender.SendOverdueSummary(overdue); err != nil {
			a.log.Errorf("Failed to send overdue summary: %v", err)
		}
	}

	a.log.Infof("Audit sweep done: %d plans, %d repaired, %d overdue entries",
		len(plans), repaired, len(overdue))
	return nil
}

// overdueEntries classifies entries at read time; overdue is never a
// persisted status.
func overdueEntries(plan *models.Plan) []notify.OverdueItem {
	now := time.Now()
	var items []notify.OverdueItem
	for i := range plan.Schedule {
		entry := &plan.Schedule[i]
		if entry.Overdue(now) {
			items = append(items, notify.OverdueItem{
				PlanID:  plan.ID,
				Month:   entry.Month,
				DueDate: entry.DueDate,
				Amount:  entry.Amount - entry.PaidAmount,
			})
		}
	}
	return items
}
