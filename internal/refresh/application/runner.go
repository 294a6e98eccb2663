package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	billingapp "github.com/patrickjcash/delco-water-hass/internal/billing/application"
	billing "github.com/patrickjcash/delco-water-hass/internal/billing/domain"
	"github.com/patrickjcash/delco-water-hass/internal/delco"
	"github.com/patrickjcash/delco-water-hass/internal/observability/metrics"
	statsapp "github.com/patrickjcash/delco-water-hass/internal/statistics/application"
)

// ErrCycleInFlight is returned when a refresh is requested while one is
// already running.
var ErrCycleInFlight = errors.New("refresh: cycle already running")

// AccountAPI is the slice of the customer API one refresh cycle drives.
type AccountAPI interface {
	Account(ctx context.Context) (delco.Account, error)
	BillingHistory(ctx context.Context, acct delco.Account, from, to time.Time) ([]delco.BillEntry, error)
	PaymentHistory(ctx context.Context, acct delco.Account, from, to time.Time) ([]delco.Payment, error)
	Usage(ctx context.Context, acct delco.Account, frequency delco.Frequency, from, to time.Time) ([]delco.UsagePoint, error)
	BillDocument(ctx context.Context, acct delco.Account, billID, billDate string) ([]byte, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// CycleInfo describes the outcome of one refresh cycle.
type CycleInfo struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Err        string

	DocumentsFetched int
	RecordsParsed    int
	RecordsSkipped   int
	PointsAppended   int
	Degraded         bool
}

// Status is the runner state published to callers.
type Status struct {
	Snapshot    Snapshot
	HasSnapshot bool
	Records     []billing.Record
	Payments    []delco.Payment
	LastCycle   CycleInfo
}

// Runner executes refresh cycles against the customer API and publishes
// reconciled statistics plus the latest account state.
type Runner struct {
	api       AccountAPI
	assembler *billingapp.Assembler
	backfill  *statsapp.BackfillService
	cfg       Config
	clock     Clock
	logger    *log.Logger

	mu          sync.Mutex
	inFlight    bool
	snapshot    Snapshot
	hasSnapshot bool
	records     []billing.Record
	payments    []delco.Payment
	lastCycle   CycleInfo
}

// RunnerOption customizes the runner.
type RunnerOption func(*Runner)

// WithClock assigns a clock.
func WithClock(clock Clock) RunnerOption {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithRunnerLogger assigns a logger.
func WithRunnerLogger(logger *log.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner constructs a refresh runner.
func NewRunner(api AccountAPI, assembler *billingapp.Assembler, backfill *statsapp.BackfillService, cfg Config, opts ...RunnerOption) (*Runner, error) {
	if api == nil {
		return nil, errors.New("refresh: nil account api")
	}
	if assembler == nil {
		return nil, errors.New("refresh: nil assembler")
	}
	if backfill == nil {
		return nil, errors.New("refresh: nil backfill service")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BillingLookback <= 0 {
		cfg.BillingLookback = DefaultBillingLookback
	}
	if cfg.PaymentLookback <= 0 {
		cfg.PaymentLookback = DefaultPaymentLookback
	}
	runner := &Runner{
		api:       api,
		assembler: assembler,
		backfill:  backfill,
		cfg:       cfg,
		clock:     systemClock{},
		logger:    log.New(os.Stdout, "", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// Start runs refresh cycles until ctx is cancelled. The first cycle runs
// immediately, later ones on the configured interval.
func (r *Runner) Start(ctx context.Context) {
	if r == nil {
		return
	}
	r.runScheduled(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runScheduled(ctx)
		}
	}
}

func (r *Runner) runScheduled(ctx context.Context) {
	if _, err := r.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleInFlight) {
		r.logger.Printf("refresh cycle failed err=%v", err)
	}
}

// RunCycle executes one full refresh: account, histories, bill documents,
// statistics backfill, snapshot. Only one cycle runs at a time.
func (r *Runner) RunCycle(ctx context.Context) (CycleInfo, error) {
	if !r.begin() {
		return CycleInfo{}, ErrCycleInFlight
	}
	defer r.end()

	started := r.clock.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveRefreshCycle(result, time.Since(started))
	}()

	info := CycleInfo{ID: uuid.NewString(), StartedAt: started}

	acct, err := r.api.Account(ctx)
	if err != nil {
		result = metrics.ResultError
		return r.fail(info, fmt.Errorf("refresh: account: %w", err))
	}

	entries, err := r.api.BillingHistory(ctx, acct, started.Add(-r.cfg.BillingLookback), started)
	if err != nil {
		result = metrics.ResultError
		return r.fail(info, fmt.Errorf("refresh: billing history: %w", err))
	}

	usage, err := r.api.Usage(ctx, acct, delco.FrequencyMonthly, started.Add(-r.cfg.BillingLookback), started)
	if err != nil {
		result = metrics.ResultError
		return r.fail(info, fmt.Errorf("refresh: usage history: %w", err))
	}

	payments, err := r.api.PaymentHistory(ctx, acct, started.Add(-r.cfg.PaymentLookback), started)
	if err != nil {
		result = metrics.ResultError
		return r.fail(info, fmt.Errorf("refresh: payment history: %w", err))
	}

	report, err := r.assembler.Assemble(ctx, boundDocuments{api: r.api, acct: acct}, stubsFromEntries(entries))
	if err != nil {
		result = metrics.ResultError
		return r.fail(info, fmt.Errorf("refresh: assemble: %w", err))
	}

	info.DocumentsFetched = report.Fetched
	info.RecordsParsed = len(report.Records)
	info.RecordsSkipped = len(report.Skips)
	metrics.AddDocumentsFetched(report.Fetched)
	for _, reason := range []billingapp.SkipReason{
		billingapp.SkipDocumentUnavailable,
		billingapp.SkipUnrecognizedFormat,
		billingapp.SkipFieldParse,
	} {
		if count := report.SkipCount(reason); count > 0 {
			metrics.AddRecordsSkipped(string(reason), count)
		}
	}
	if report.Empty() && len(entries) > 0 {
		r.logger.Printf("no parsable bill documents cycle=%s entries=%d skips=%d", info.ID, len(entries), len(report.Skips))
	}

	res, err := r.backfill.Backfill(ctx, report.Records)
	if err != nil {
		result = metrics.ResultError
		return r.fail(info, err)
	}
	for _, series := range []statsapp.SeriesResult{res.Consumption, res.Cost} {
		metrics.AddStatisticsAppended(series.SeriesID, series.Emitted)
		if series.Degraded {
			metrics.IncBackfillDegraded(series.SeriesID)
		}
	}
	info.PointsAppended = res.Consumption.Emitted + res.Cost.Emitted
	info.Degraded = res.Consumption.Degraded || res.Cost.Degraded
	info.FinishedAt = r.clock.Now()

	snap := buildSnapshot(acct, usage, info.FinishedAt)
	metrics.SetAccountSnapshot(
		snap.AccountBalance.InexactFloat64(),
		snap.PreviousBalance.InexactFloat64(),
		snap.LatestBillAmount.InexactFloat64(),
		snap.LatestPayment.InexactFloat64(),
		snap.LatestUsageGallons,
	)

	r.mu.Lock()
	r.snapshot = snap
	r.hasSnapshot = true
	r.records = report.Records
	r.payments = payments
	r.lastCycle = info
	r.mu.Unlock()

	r.logger.Printf("refresh cycle complete cycle=%s records=%d skips=%d appended=%d", info.ID, info.RecordsParsed, info.RecordsSkipped, info.PointsAppended)
	return info, nil
}

// Status reports the latest published state. Slices are copied.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		Snapshot:    r.snapshot,
		HasSnapshot: r.hasSnapshot,
		Records:     append([]billing.Record(nil), r.records...),
		Payments:    append([]delco.Payment(nil), r.payments...),
		LastCycle:   r.lastCycle,
	}
}

func (r *Runner) begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight {
		return false
	}
	r.inFlight = true
	return true
}

func (r *Runner) end() {
	r.mu.Lock()
	r.inFlight = false
	r.mu.Unlock()
}

func (r *Runner) fail(info CycleInfo, err error) (CycleInfo, error) {
	info.FinishedAt = r.clock.Now()
	info.Err = err.Error()
	r.mu.Lock()
	r.lastCycle = info
	r.mu.Unlock()
	return info, err
}

// boundDocuments exposes document fetches bound to the cycle's account.
type boundDocuments struct {
	api  AccountAPI
	acct delco.Account
}

func (b boundDocuments) BillDocument(ctx context.Context, billID, billDate string) ([]byte, error) {
	return b.api.BillDocument(ctx, b.acct, billID, billDate)
}

func stubsFromEntries(entries []delco.BillEntry) []billing.Stub {
	stubs := make([]billing.Stub, 0, len(entries))
	for _, entry := range entries {
		stubs = append(stubs, billing.Stub{
			BillID:     entry.BillID,
			BillDate:   entry.BillDate,
			ReadDate:   entry.ReadDate,
			DueDate:    entry.DueDate,
			BillAmount: entry.BillAmount,
		})
	}
	return stubs
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
