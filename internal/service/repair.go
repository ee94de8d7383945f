package service

import (
	"context"
	"log"
	"time"

	"course-checkout/internal/domain/billing"
)

type RepairReport struct {
	Scanned  int `json:"scanned"`
	Repaired int `json:"repaired"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Repair re-derives enrollments for paid orders that have none, e.g. after a
// crash between the order commit and the enrollment write on a store that
// could not span both in one transaction.
func (r *Reconciler) Repair(ctx context.Context, limit int) (RepairReport, error) {
	var report RepairReport

	orders, err := r.store.ListOrphanedOrders(ctx, limit)
	if err != nil {
		return report, err
	}
	report.Scanned = len(orders)

	for _, o := range orders {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if o.PaymentID == nil || *o.PaymentID == "" {
			log.Printf("ANOMALY: order %s is %s without a payment id", o.ID, o.Status)
			report.Skipped++
			continue
		}
		res, err := r.Reconcile(ctx, ReconcileInput{
			OrderID:   o.ID,
			PaymentID: *o.PaymentID,
			Method:    o.PaymentMethod,
			Via:       billing.SourceRepair,
		})
		if err != nil {
			log.Printf("repair of order %s failed: %v", o.ID, err)
			report.Failed++
			continue
		}
		log.Printf("repaired order %s -> enrollment %s", o.ID, res.EnrollmentID)
		report.Repaired++
	}
	return report, nil
}

// RepairWorker runs Repair on a fixed interval until its context ends.
type RepairWorker struct {
	reconciler *Reconciler
	interval   time.Duration
	batch      int
}

func NewRepairWorker(rec *Reconciler, interval time.Duration, batch int) *RepairWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &RepairWorker{reconciler: rec, interval: interval, batch: batch}
}

func (w *RepairWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Println("Repair worker started")

	for {
		select {
		case <-ctx.Done():
			log.Println("Repair worker stopped")
			return
		case <-ticker.C:
			report, err := w.reconciler.Repair(ctx, w.batch)
			if err != nil {
				log.Printf("Repair sweep failed: %v", err)
				continue
			}
			if report.Scanned > 0 {
				log.Printf("Repair sweep: %+v", report)
			}
		}
	}
}
