package billing

import (
	"fmt"
	"time"
)

// billDateLayout is the two-digit-year date format printed on bills.
const billDateLayout = "01/02/06"

// ParseBillDate parses an MM/DD/YY service date from a bill document.
// Two-digit years 00-68 land in 20xx, matching the bills in circulation.
func ParseBillDate(s string) (time.Time, error) {
	t, err := time.Parse(billDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrFieldParse, s)
	}
	return t, nil
}
