package application

import (
	billing "github.com/patrickjcash/delco-water-hass/internal/billing/domain"
)

// SkipReason classifies why a bill was left out of the assembled set.
type SkipReason string

const (
	// SkipDocumentUnavailable covers missing documents, fetch failures and
	// documents with no extractable text.
	SkipDocumentUnavailable SkipReason = "document_unavailable"
	// SkipUnrecognizedFormat covers documents no known layout matches.
	SkipUnrecognizedFormat SkipReason = "unrecognized_format"
	// SkipFieldParse covers matched layouts holding a malformed field.
	SkipFieldParse SkipReason = "field_parse"
)

// Skip records one bill excluded from the assembled set.
type Skip struct {
	BillID   string
	BillDate string
	Reason   SkipReason
	Err      error
}

// Report is the outcome of one assembly pass over the billing feed.
type Report struct {
	// Records is sorted ascending by service end date.
	Records []billing.Record
	Skips   []Skip
	// Fetched counts the feed stubs seen, skipped or not.
	Fetched int
}

// Empty reports whether assembly produced no usable records.
func (r Report) Empty() bool { return len(r.Records) == 0 }

// SkipCount counts skips with the given reason.
func (r Report) SkipCount(reason SkipReason) int {
	n := 0
	for _, s := range r.Skips {
		if s.Reason == reason {
			n++
		}
	}
	return n
}
