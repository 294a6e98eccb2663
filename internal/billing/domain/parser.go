package billing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// hundredGallons converts HGAL meter units to gallons.
const hundredGallons = 100

// The three known layouts, newest first. The first structural match decides
// the layout; a malformed field inside a matched layout is a field error,
// never a fallthrough to an older matcher.
var (
	// Water Residential Charge ADDR PREMISE MM/DD/YY MM/DD/YY PRIOR CURR USAGE $CHG
	newGallonsRe = regexp.MustCompile(`Water Residential Charge\s+.*?(\d{2}/\d{2}/\d{2})\s+(\d{2}/\d{2}/\d{2})\s+(\d+)\s+(\d+)\s+(\d+)\s+\$?([\d.]+)`)

	// Water (Residential Charge|Charges ...) ADDR PREMISE MM/DD/YY - MM/DD/YY PRIOR CURR USAGE $CHG
	midHGalRe = regexp.MustCompile(`Water (?:Residential Charge|Charges[^\d]*)\s+.*?(\d{2}/\d{2}/\d{2})\s*-\s*(\d{2}/\d{2}/\d{2})\s+([\d,]+)\s+([\d,]+)\s+(\d+)\s+\$?([\d.]+)`)

	// METER MM/DD/YY - MM/DD/YY Actual PRIOR CURR USAGE_HGAL
	oldReadingRe = regexp.MustCompile(`(\d+)\s+(\d{2}/\d{2}/\d{2})\s*-\s*(\d{2}/\d{2}/\d{2})\s+Actual\s+([\d,]+)\s+([\d,]+)\s+(\d+)`)
	// Water Residential Service DAYS TOTAL USAGE ALL METERS HGAL GPD $CHG
	oldChargeRe = regexp.MustCompile(`Water Residential Service\s+\d+\s+TOTAL USAGE ALL METERS\s+(\d+)\s+[\d.]+\s+\$?([\d.]+)`)
)

// ParseText extracts bill fields from the first-page text of a bill document.
func ParseText(text string) (Fields, error) {
	if strings.TrimSpace(text) == "" {
		return Fields{}, ErrNoText
	}

	if m := newGallonsRe.FindStringSubmatch(text); m != nil {
		return newGallonsFields(m)
	}
	if m := midHGalRe.FindStringSubmatch(text); m != nil {
		return midHGalFields(m)
	}
	reading := oldReadingRe.FindStringSubmatch(text)
	charge := oldChargeRe.FindStringSubmatch(text)
	if reading != nil && charge != nil {
		return oldHGalFields(reading, charge)
	}

	return Fields{}, ErrUnrecognizedFormat
}

func newGallonsFields(m []string) (Fields, error) {
	from, to, err := servicePeriod(m[1], m[2])
	if err != nil {
		return Fields{}, err
	}
	prior, err := parseReading(m[3])
	if err != nil {
		return Fields{}, err
	}
	current, err := parseReading(m[4])
	if err != nil {
		return Fields{}, err
	}
	usage, err := parseReading(m[5])
	if err != nil {
		return Fields{}, err
	}
	amount, err := parseCharge(m[6])
	if err != nil {
		return Fields{}, err
	}

	return Fields{
		ServiceFrom:    from,
		ServiceTo:      to,
		PriorReading:   prior,
		CurrentReading: current,
		UsageGallons:   usage,
		ChargeAmount:   amount,
		Layout:         LayoutNewGallons,
	}, nil
}

func midHGalFields(m []string) (Fields, error) {
	from, to, err := servicePeriod(m[1], m[2])
	if err != nil {
		return Fields{}, err
	}
	prior, err := parseReading(m[3])
	if err != nil {
		return Fields{}, err
	}
	current, err := parseReading(m[4])
	if err != nil {
		return Fields{}, err
	}
	usage, err := parseReading(m[5])
	if err != nil {
		return Fields{}, err
	}
	amount, err := parseCharge(m[6])
	if err != nil {
		return Fields{}, err
	}

	return Fields{
		ServiceFrom:    from,
		ServiceTo:      to,
		PriorReading:   prior,
		CurrentReading: current,
		UsageGallons:   usage * hundredGallons,
		ChargeAmount:   amount,
		Layout:         LayoutMidHGal,
	}, nil
}

func oldHGalFields(reading, charge []string) (Fields, error) {
	from, to, err := servicePeriod(reading[2], reading[3])
	if err != nil {
		return Fields{}, err
	}
	prior, err := parseReading(reading[4])
	if err != nil {
		return Fields{}, err
	}
	current, err := parseReading(reading[5])
	if err != nil {
		return Fields{}, err
	}
	usage, err := parseReading(reading[6])
	if err != nil {
		return Fields{}, err
	}
	amount, err := parseCharge(charge[2])
	if err != nil {
		return Fields{}, err
	}

	return Fields{
		ServiceFrom:    from,
		ServiceTo:      to,
		PriorReading:   prior,
		CurrentReading: current,
		UsageGallons:   usage * hundredGallons,
		ChargeAmount:   amount,
		Layout:         LayoutOldHGal,
	}, nil
}

func servicePeriod(fromRaw, toRaw string) (time.Time, time.Time, error) {
	from, err := ParseBillDate(fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := ParseBillDate(toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

// parseReading parses a meter reading, stripping thousands separators.
func parseReading(raw string) (int64, error) {
	n, err := strconv.ParseInt(strings.ReplaceAll(raw, ",", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: reading %q", ErrFieldParse, raw)
	}
	return n, nil
}

// parseCharge parses a currency amount, stripping an optional dollar prefix.
func parseCharge(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimPrefix(raw, "$"))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: charge %q", ErrFieldParse, raw)
	}
	return amount, nil
}
