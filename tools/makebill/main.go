// Command makebill renders a synthetic bill PDF in one of the historical
// Del-Co layouts. It exists to exercise the fetch, extract and parse path
// end to end without real customer documents.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

func main() {
	var (
		layout  = flag.String("layout", "new", "bill layout: new, mid or old")
		out     = flag.String("out", "bill.pdf", "output path")
		from    = flag.String("from", "08/01/25", "service from date (MM/DD/YY)")
		to      = flag.String("to", "08/29/25", "service to date (MM/DD/YY)")
		prior   = flag.Int("prior", 1234, "prior meter reading")
		current = flag.Int("current", 1256, "current meter reading")
		usage   = flag.Int("usage", 22, "usage in the layout's native unit")
		charge  = flag.String("charge", "41.10", "water charge in dollars")
		address = flag.String("address", "123 MAIN ST", "service address")
		premise = flag.String("premise", "0012345", "premise id")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	lines, err := billLines(*layout, *address, *premise, *from, *to, *prior, *current, *usage, *charge)
	if err != nil {
		logger.Fatal(err)
	}
	if err := writePDF(*out, lines); err != nil {
		logger.Fatalf("write pdf: %v", err)
	}
	logger.Printf("wrote %s layout=%s", *out, *layout)
}

func billLines(layout, address, premise, from, to string, prior, current, usage int, charge string) ([]string, error) {
	header := []string{
		"Del-Co Water Company, Inc.",
		"PO Box 4970  Delaware, OH 43015",
		"",
	}
	footer := []string{
		"",
		fmt.Sprintf("Total Current Charges $%s", charge),
		"Payment due upon receipt.",
	}

	var body []string
	switch layout {
	case "new":
		body = []string{fmt.Sprintf("Water Residential Charge %s %s %s %s %d %d %d $%s",
			address, premise, from, to, prior, current, usage, charge)}
	case "mid":
		body = []string{fmt.Sprintf("Water Residential Charge %s %s %s - %s %s %s %d $%s",
			address, premise, from, to, groupThousands(prior), groupThousands(current), usage, charge)}
	case "old":
		body = []string{
			fmt.Sprintf("12345678 %s - %s Actual %s %s %d",
				from, to, groupThousands(prior), groupThousands(current), usage),
			fmt.Sprintf("Water Residential Service 30 TOTAL USAGE ALL METERS %d %.1f $%s",
				usage, float64(usage*100)/30, charge),
		}
	default:
		return nil, fmt.Errorf("unknown layout %q", layout)
	}

	lines := append(append(header, body...), footer...)
	return lines, nil
}

// groupThousands formats n with comma separators the way older bills
// print meter readings.
func groupThousands(n int) string {
	raw := fmt.Sprintf("%d", n)
	if len(raw) <= 3 {
		return raw
	}
	var groups []string
	for len(raw) > 3 {
		groups = append([]string{raw[len(raw)-3:]}, groups...)
		raw = raw[:len(raw)-3]
	}
	return raw + "," + strings.Join(groups, ",")
}

func writePDF(path string, lines []string) error {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetFont("Courier", "", 9)
	pdf.AddPage()
	for _, line := range lines {
		pdf.Cell(0, 5, line)
		pdf.Ln(5)
	}
	return pdf.OutputFileAndClose(path)
}
