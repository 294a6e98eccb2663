package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const newGallonsPage = `Del-Co Water Company, Inc.
Account Number 00123456-00 Bill Date 08/29/25
Service Address: 123 MAIN ST DELAWARE OH

Description Service Address Premise From To Prior Current Usage Amount
Water Residential Charge 123 MAIN ST 0012345 08/01/25 08/29/25 1234 1256 22 $41.10
Total Current Charges $41.10
`

const midHGalPage = `Del-Co Water Company, Inc.
Account Number 00123456-00 Bill Date 07/31/24

Description Service Period Prior Current Usage Amount
Water Charges - Residential 123 MAIN ST 07/01/24 - 07/31/24 1,200 1,222 3 $35.00
Total Amount Due $35.00
`

const oldHGalPage = `Del-Co Water Company, Inc.
Meter Read Period Type Prior Current Usage
65432100 06/01/21 - 06/30/21 Actual 1,100 1,120 20
Water Residential Service 30 TOTAL USAGE ALL METERS 20 66.7 $28.50
`

func TestParseTextNewGallons(t *testing.T) {
	fields, err := ParseText(newGallonsPage)
	if err != nil {
		t.Fatalf("parse new layout: %v", err)
	}

	if fields.Layout != LayoutNewGallons {
		t.Fatalf("expected layout %s, got %s", LayoutNewGallons, fields.Layout)
	}
	if want := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC); !fields.ServiceFrom.Equal(want) {
		t.Fatalf("expected service_from %s, got %s", want, fields.ServiceFrom)
	}
	if want := time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC); !fields.ServiceTo.Equal(want) {
		t.Fatalf("expected service_to %s, got %s", want, fields.ServiceTo)
	}
	if fields.PriorReading != 1234 || fields.CurrentReading != 1256 {
		t.Fatalf("expected readings 1234/1256, got %d/%d", fields.PriorReading, fields.CurrentReading)
	}
	if fields.UsageGallons != 22 {
		t.Fatalf("expected 22 gallons, got %d", fields.UsageGallons)
	}
	if want := decimal.RequireFromString("41.10"); !fields.ChargeAmount.Equal(want) {
		t.Fatalf("expected charge %s, got %s", want, fields.ChargeAmount)
	}
}

func TestParseTextMidHGal(t *testing.T) {
	fields, err := ParseText(midHGalPage)
	if err != nil {
		t.Fatalf("parse mid layout: %v", err)
	}

	if fields.Layout != LayoutMidHGal {
		t.Fatalf("expected layout %s, got %s", LayoutMidHGal, fields.Layout)
	}
	if fields.PriorReading != 1200 || fields.CurrentReading != 1222 {
		t.Fatalf("expected comma-stripped readings 1200/1222, got %d/%d", fields.PriorReading, fields.CurrentReading)
	}
	if fields.UsageGallons != 300 {
		t.Fatalf("expected 3 HGAL as 300 gallons, got %d", fields.UsageGallons)
	}
	if want := decimal.RequireFromString("35.00"); !fields.ChargeAmount.Equal(want) {
		t.Fatalf("expected charge %s, got %s", want, fields.ChargeAmount)
	}
}

func TestParseTextOldHGal(t *testing.T) {
	fields, err := ParseText(oldHGalPage)
	if err != nil {
		t.Fatalf("parse old layout: %v", err)
	}

	if fields.Layout != LayoutOldHGal {
		t.Fatalf("expected layout %s, got %s", LayoutOldHGal, fields.Layout)
	}
	if want := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC); !fields.ServiceFrom.Equal(want) {
		t.Fatalf("expected service_from %s, got %s", want, fields.ServiceFrom)
	}
	if want := time.Date(2021, 6, 30, 0, 0, 0, 0, time.UTC); !fields.ServiceTo.Equal(want) {
		t.Fatalf("expected service_to %s, got %s", want, fields.ServiceTo)
	}
	if fields.PriorReading != 1100 || fields.CurrentReading != 1120 {
		t.Fatalf("expected readings 1100/1120, got %d/%d", fields.PriorReading, fields.CurrentReading)
	}
	if fields.UsageGallons != 2000 {
		t.Fatalf("expected 20 HGAL as 2000 gallons, got %d", fields.UsageGallons)
	}
	if want := decimal.RequireFromString("28.50"); !fields.ChargeAmount.Equal(want) {
		t.Fatalf("expected charge %s, got %s", want, fields.ChargeAmount)
	}
}

func TestParseTextNewestLayoutWins(t *testing.T) {
	fields, err := ParseText(newGallonsPage + midHGalPage)
	if err != nil {
		t.Fatalf("parse combined page: %v", err)
	}
	if fields.Layout != LayoutNewGallons {
		t.Fatalf("expected newest layout to win, got %s", fields.Layout)
	}
}

func TestParseTextFailures(t *testing.T) {
	cases := []struct {
		name string
		text string
		want error
	}{
		{"empty", "", ErrNoText},
		{"whitespace only", " \n\t ", ErrNoText},
		{"unknown layout", "Sewer District Quarterly Statement 100.00", ErrUnrecognizedFormat},
		{
			// The meter line alone is not enough for the old layout.
			"old reading without charge line",
			"65432100 06/01/21 - 06/30/21 Actual 1,100 1,120 20\n",
			ErrUnrecognizedFormat,
		},
		{
			"impossible date in matched layout",
			"Water Residential Charge 123 MAIN ST 0012345 02/30/25 08/29/25 1234 1256 22 $41.10\n",
			ErrFieldParse,
		},
		{
			"malformed charge in matched layout",
			"Water Residential Charge 123 MAIN ST 0012345 08/01/25 08/29/25 1234 1256 22 $1.2.3\n",
			ErrFieldParse,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseText(tc.text)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestMalformedFieldDoesNotFallThrough(t *testing.T) {
	// The bad date keeps this page in the new layout; the mid-layout line
	// below it must not rescue the parse.
	page := "Water Residential Charge 123 MAIN ST 0012345 02/30/25 08/29/25 1234 1256 22 $41.10\n" + midHGalPage
	_, err := ParseText(page)
	if !errors.Is(err, ErrFieldParse) {
		t.Fatalf("expected field parse error, got %v", err)
	}
}
