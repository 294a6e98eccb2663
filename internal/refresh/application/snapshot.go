package application

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/patrickjcash/delco-water-hass/internal/delco"
)

// Snapshot is the account state captured by the latest successful cycle.
type Snapshot struct {
	AccountID          string
	PremiseID          string
	AccountBalance     decimal.Decimal
	PreviousBalance    decimal.Decimal
	LatestBillAmount   decimal.Decimal
	LatestPayment      decimal.Decimal
	LatestUsageGallons int64
	LatestUsagePeriod  string
	TakenAt            time.Time
}

var hundredGallons = decimal.NewFromInt(100)

// buildSnapshot folds account and usage data into a Snapshot. The feed
// reports payments as negative amounts and usage in hundred-gallon units.
func buildSnapshot(acct delco.Account, usage []delco.UsagePoint, now time.Time) Snapshot {
	snap := Snapshot{
		AccountID:        acct.AccountID,
		PremiseID:        acct.PremiseID,
		AccountBalance:   acct.AccountBalance,
		PreviousBalance:  acct.PreviousBalance,
		LatestBillAmount: acct.LatestBillAmount,
		LatestPayment:    acct.LatestPayment.Abs(),
		TakenAt:          now,
	}
	if len(usage) > 0 {
		latest := usage[len(usage)-1]
		snap.LatestUsageGallons = latest.Value.Mul(hundredGallons).Round(0).IntPart()
		snap.LatestUsagePeriod = latest.Period
	}
	return snap
}
