package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Layout identifies which historical bill layout a document matched.
type Layout string

const (
	// LayoutNewGallons is the current layout: usage billed in gallons,
	// service dates printed side by side without a separator.
	LayoutNewGallons Layout = "new_gallons"
	// LayoutMidHGal is the 2022-2023 layout: usage billed in hundred-gallon
	// units, service dates separated by a hyphen, readings may carry
	// thousands separators.
	LayoutMidHGal Layout = "mid_hgal"
	// LayoutOldHGal is the pre-2022 layout: meter readings and the charge
	// sit on separate lines, usage in hundred-gallon units.
	LayoutOldHGal Layout = "old_hgal"
)

// Fields is the structured result of parsing one bill document.
// UsageGallons is always in gallons regardless of the layout's native unit.
type Fields struct {
	ServiceFrom    time.Time
	ServiceTo      time.Time
	PriorReading   int64
	CurrentReading int64
	UsageGallons   int64
	ChargeAmount   decimal.Decimal
	Layout         Layout
}

// Stub is one entry of the billing-history feed, before document parsing.
// Dates stay in the feed's YYYY-MM-DD form; only ServiceFrom/ServiceTo from
// the parsed document carry period semantics.
type Stub struct {
	BillID     string
	BillDate   string
	ReadDate   string
	DueDate    string
	BillAmount decimal.Decimal
}

// Record is a feed stub merged with the fields parsed from its document.
type Record struct {
	Stub
	Fields
}
