package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/patrickjcash/delco-water-hass/internal/audit"
	"github.com/patrickjcash/delco-water-hass/internal/auth"
	billing "github.com/patrickjcash/delco-water-hass/internal/billing/domain"
	refresh "github.com/patrickjcash/delco-water-hass/internal/refresh/application"
)

const dateLayout = "2006-01-02"

// Runner is the slice of the refresh runner the API drives.
type Runner interface {
	Status() refresh.Status
	RunCycle(ctx context.Context) (refresh.CycleInfo, error)
}

type accountView struct {
	AccountID          string          `json:"account_id"`
	PremiseID          string          `json:"premise_id,omitempty"`
	BalanceDue         decimal.Decimal `json:"balance_due"`
	PreviousBalance    decimal.Decimal `json:"previous_balance"`
	LatestBillAmount   decimal.Decimal `json:"latest_bill_amount"`
	PaymentsReceived   decimal.Decimal `json:"payments_received"`
	LatestUsageGallons int64           `json:"latest_usage_gallons"`
	LatestUsagePeriod  string          `json:"latest_usage_period,omitempty"`
	TakenAt            time.Time       `json:"taken_at"`
}

type cycleView struct {
	ID               string     `json:"id"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	Error            string     `json:"error,omitempty"`
	DocumentsFetched int        `json:"documents_fetched"`
	RecordsParsed    int        `json:"records_parsed"`
	RecordsSkipped   int        `json:"records_skipped"`
	PointsAppended   int        `json:"points_appended"`
	Degraded         bool       `json:"degraded"`
}

type recordView struct {
	BillID         string          `json:"bill_id"`
	BillDate       string          `json:"bill_date"`
	ReadDate       string          `json:"read_date,omitempty"`
	DueDate        string          `json:"due_date,omitempty"`
	BillAmount     decimal.Decimal `json:"bill_amount"`
	ServiceFrom    string          `json:"service_from"`
	ServiceTo      string          `json:"service_to"`
	PriorReading   int64           `json:"prior_reading"`
	CurrentReading int64           `json:"current_reading"`
	UsageGallons   int64           `json:"usage_gallons"`
	ChargeAmount   decimal.Decimal `json:"charge_amount"`
	Layout         string          `json:"layout"`
}

type paymentView struct {
	PaymentDate string          `json:"payment_date"`
	Amount      decimal.Decimal `json:"amount"`
	TenderType  string          `json:"tender_type,omitempty"`
	Source      string          `json:"source,omitempty"`
}

// StatusHandler serves the account snapshot and last cycle outcome.
type StatusHandler struct {
	runner Runner
}

// NewStatusHandler constructs a StatusHandler.
func NewStatusHandler(runner Runner) *StatusHandler {
	return &StatusHandler{runner: runner}
}

// ServeHTTP handles GET /api/v1/status.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.runner == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	status := h.runner.Status()
	resp := struct {
		Account     *accountView `json:"account,omitempty"`
		LastCycle   *cycleView   `json:"last_cycle,omitempty"`
		RecordCount int          `json:"record_count"`
	}{
		RecordCount: len(status.Records),
	}
	if status.HasSnapshot {
		snap := status.Snapshot
		resp.Account = &accountView{
			AccountID:          snap.AccountID,
			PremiseID:          snap.PremiseID,
			BalanceDue:         snap.AccountBalance,
			PreviousBalance:    snap.PreviousBalance,
			LatestBillAmount:   snap.LatestBillAmount,
			PaymentsReceived:   snap.LatestPayment,
			LatestUsageGallons: snap.LatestUsageGallons,
			LatestUsagePeriod:  snap.LatestUsagePeriod,
			TakenAt:            snap.TakenAt,
		}
	}
	if view := newCycleView(status.LastCycle); view != nil {
		resp.LastCycle = view
	}

	writeJSON(w, resp)
}

// RecordsHandler serves the records assembled by the latest cycle.
type RecordsHandler struct {
	runner Runner
}

// NewRecordsHandler constructs a RecordsHandler.
func NewRecordsHandler(runner Runner) *RecordsHandler {
	return &RecordsHandler{runner: runner}
}

// ServeHTTP handles GET /api/v1/records.
func (h *RecordsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.runner == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	records := h.runner.Status().Records
	rows := make([]recordView, 0, len(records))
	for _, record := range records {
		rows = append(rows, newRecordView(record))
	}
	writeJSON(w, rows)
}

// PaymentsHandler serves the payment history of the latest cycle.
type PaymentsHandler struct {
	runner Runner
}

// NewPaymentsHandler constructs a PaymentsHandler.
func NewPaymentsHandler(runner Runner) *PaymentsHandler {
	return &PaymentsHandler{runner: runner}
}

// ServeHTTP handles GET /api/v1/payments.
func (h *PaymentsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.runner == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	payments := h.runner.Status().Payments
	rows := make([]paymentView, 0, len(payments))
	for _, payment := range payments {
		rows = append(rows, paymentView{
			PaymentDate: payment.PaymentDate,
			Amount:      payment.Amount,
			TenderType:  payment.TenderType,
			Source:      payment.Source,
		})
	}
	writeJSON(w, rows)
}

// RefreshHandler triggers an immediate refresh cycle.
type RefreshHandler struct {
	runner      Runner
	auditLogger audit.Logger
}

// NewRefreshHandler constructs a RefreshHandler.
func NewRefreshHandler(runner Runner, auditLogger audit.Logger) (*RefreshHandler, error) {
	if runner == nil {
		return nil, errors.New("refresh handler: nil runner")
	}
	return &RefreshHandler{runner: runner, auditLogger: auditLogger}, nil
}

// ServeHTTP handles POST /api/v1/refresh. The cycle runs synchronously;
// a request landing while one is in flight is rejected with 409.
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	info, err := h.runner.RunCycle(r.Context())
	if errors.Is(err, refresh.ErrCycleInFlight) {
		http.Error(w, "refresh already running", http.StatusConflict)
		return
	}
	logAudit(r, h.auditLogger, "refresh.trigger", "cycle", info.ID, map[string]any{
		"records_parsed":  info.RecordsParsed,
		"records_skipped": info.RecordsSkipped,
		"points_appended": info.PointsAppended,
	})
	if err != nil {
		http.Error(w, "refresh failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, newCycleView(info))
}

func newCycleView(info refresh.CycleInfo) *cycleView {
	if info.ID == "" {
		return nil
	}
	view := &cycleView{
		ID:               info.ID,
		StartedAt:        info.StartedAt,
		Error:            info.Err,
		DocumentsFetched: info.DocumentsFetched,
		RecordsParsed:    info.RecordsParsed,
		RecordsSkipped:   info.RecordsSkipped,
		PointsAppended:   info.PointsAppended,
		Degraded:         info.Degraded,
	}
	if !info.FinishedAt.IsZero() {
		finished := info.FinishedAt
		view.FinishedAt = &finished
	}
	return view
}

func newRecordView(record billing.Record) recordView {
	return recordView{
		BillID:         record.BillID,
		BillDate:       record.BillDate,
		ReadDate:       record.ReadDate,
		DueDate:        record.DueDate,
		BillAmount:     record.BillAmount,
		ServiceFrom:    record.ServiceFrom.Format(dateLayout),
		ServiceTo:      record.ServiceTo.Format(dateLayout),
		PriorReading:   record.PriorReading,
		CurrentReading: record.CurrentReading,
		UsageGallons:   record.UsageGallons,
		ChargeAmount:   record.ChargeAmount,
		Layout:         string(record.Layout),
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func logAudit(r *http.Request, logger audit.Logger, action, resourceType, resourceID string, meta map[string]any) {
	if logger == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = logger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}
