package application

import (
	"context"
	"errors"
	"log"
	"os"
	"sort"

	billing "github.com/patrickjcash/delco-water-hass/internal/billing/domain"
)

// DocumentFetcher retrieves one bill document by its feed identity.
type DocumentFetcher interface {
	BillDocument(ctx context.Context, billID, billDate string) ([]byte, error)
}

// TextExtractor turns a retrieved document into first-page plain text.
type TextExtractor interface {
	FirstPageText(content []byte) (string, error)
}

// Assembler merges billing-history stubs with their parsed bill documents.
type Assembler struct {
	extractor TextExtractor
	logger    *log.Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithAssemblerLogger sets the diagnostics logger.
func WithAssemblerLogger(logger *log.Logger) AssemblerOption {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAssembler builds an Assembler over a text extractor.
func NewAssembler(extractor TextExtractor, opts ...AssemblerOption) (*Assembler, error) {
	if extractor == nil {
		return nil, errors.New("billing: nil text extractor")
	}
	a := &Assembler{
		extractor: extractor,
		logger:    log.New(os.Stdout, "", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Assemble fetches and parses each stub's document sequentially, in feed
// order. docs is bound to the cycle's account. A failed bill is skipped
// with a recorded reason and assembly moves on; only context cancellation
// aborts the pass. The returned records are sorted ascending by service
// end date, same-date records in feed order.
func (a *Assembler) Assemble(ctx context.Context, docs DocumentFetcher, stubs []billing.Stub) (Report, error) {
	var report Report
	if docs == nil {
		return report, errors.New("billing: nil document fetcher")
	}
	for _, stub := range stubs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Fetched++

		content, err := docs.BillDocument(ctx, stub.BillID, stub.BillDate)
		if err != nil {
			a.skip(&report, stub, SkipDocumentUnavailable, err)
			continue
		}

		text, err := a.extractor.FirstPageText(content)
		if err != nil {
			a.skip(&report, stub, SkipDocumentUnavailable, err)
			continue
		}

		fields, err := billing.ParseText(text)
		if err != nil {
			a.skip(&report, stub, classifyParseErr(err), err)
			continue
		}

		report.Records = append(report.Records, billing.Record{Stub: stub, Fields: fields})
	}

	sort.SliceStable(report.Records, func(i, j int) bool {
		return report.Records[i].ServiceTo.Before(report.Records[j].ServiceTo)
	})
	return report, nil
}

func (a *Assembler) skip(report *Report, stub billing.Stub, reason SkipReason, err error) {
	report.Skips = append(report.Skips, Skip{
		BillID:   stub.BillID,
		BillDate: stub.BillDate,
		Reason:   reason,
		Err:      err,
	})
	a.logger.Printf("WARN bill skipped bill=%s date=%s reason=%s err=%v", stub.BillID, stub.BillDate, reason, err)
}

func classifyParseErr(err error) SkipReason {
	switch {
	case errors.Is(err, billing.ErrNoText):
		return SkipDocumentUnavailable
	case errors.Is(err, billing.ErrFieldParse):
		return SkipFieldParse
	default:
		return SkipUnrecognizedFormat
	}
}
