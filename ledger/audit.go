/*
audit.go - Background balance floor auditor

PURPOSE:
  Periodically re-checks the balance floor across all users. The engine
  enforces the floor inside every transaction, so a healthy ledger never
  reports anything; a finding means data was changed behind the engine's
  back (manual SQL, a restore, a bug) and needs a human.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Runs once immediately on Start
  - Each finding is logged at ERROR with user and wallet ids
  - The number of violating wallets is exported as a gauge

USAGE:
  auditor := ledger.NewAuditor(store, time.Hour, ledger.WithLogger(logger))
  auditor.Start()
  defer auditor.Stop()

SEE ALSO:
  - invariant.go: The floor check applied on every debit
*/
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FloorScanner finds non-cash wallets with a negative balance, across all
// users.
type FloorScanner interface {
	FloorViolations(ctx context.Context) ([]Wallet, error)
}

type Auditor struct {
	opts     options
	store    FloorScanner
	interval time.Duration
	gauge    prometheus.Gauge

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAuditor(store FloorScanner, interval time.Duration, opts ...Option) *Auditor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Auditor{
		opts:     buildOptions(opts),
		store:    store,
		interval: interval,
	}
}

// Register exports the last audit result as ledger_floor_violations.
func (a *Auditor) Register(reg prometheus.Registerer) {
	a.gauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledger",
		Name:      "floor_violations",
		Help:      "Non-cash wallets with a negative balance found by the last audit.",
	})
	reg.MustRegister(a.gauge)
}

// Start begins auditing. Calling Start on a running auditor is a no-op.
func (a *Auditor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.wg.Add(1)
	go a.run(ctx)

	a.opts.logger.Info("balance auditor started", "interval", a.interval)
}

// Stop cancels a running audit and waits for the goroutine to exit.
func (a *Auditor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel == nil {
		return
	}
	a.cancel()
	a.wg.Wait()
	a.cancel = nil
	a.opts.logger.Info("balance auditor stopped")
}

func (a *Auditor) run(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.RunOnce(ctx)
	for {
		select {
		case <-ticker.C:
			a.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce performs a single audit and returns the violating wallets.
func (a *Auditor) RunOnce(ctx context.Context) ([]Wallet, error) {
	wallets, err := a.store.FloorViolations(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.opts.logger.Error("balance audit failed", "error", err)
		}
		return nil, err
	}
	for _, w := range wallets {
		a.opts.logger.Error("balance floor violated",
			"user_id", w.UserID,
			"wallet_id", w.ID,
			"wallet_type", w.Type,
			"balance", w.Balance.StringFixed(MinorUnits))
	}
	if a.gauge != nil {
		a.gauge.Set(float64(len(wallets)))
	}
	a.opts.logger.Debug("balance audit complete", "violations", len(wallets))
	return wallets, nil
}
