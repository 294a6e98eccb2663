package delco

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAccountParsesProfile(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"myAccount": {
			"accountId": "00123456-00",
			"billDisplayURL": "https://bills.example.com/out/00123456-00_B0_20250101.pdf",
			"accountBalance": "41.10",
			"previousBalance": 35.00,
			"latestBillAmount": "41.10",
			"latestPayment": "-35.00",
			"serviceAddresses": [{"premiseId": "P-9"}, {"premiseId": "P-ignored"}]
		}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "user@example.com", StaticToken("tok-1"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	acct, err := client.Account(context.Background())
	if err != nil {
		t.Fatalf("account: %v", err)
	}

	if gotAuth != "Bearer tok-1" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotBody["AccessToken"] != "tok-1" {
		t.Fatalf("expected access token in body, got %v", gotBody["AccessToken"])
	}
	if acct.AccountID != "00123456-00" || acct.PremiseID != "P-9" {
		t.Fatalf("unexpected account identity %s/%s", acct.AccountID, acct.PremiseID)
	}
	// Amounts arrive as strings or numbers depending on the endpoint.
	if acct.AccountBalance.String() != "41.1" {
		t.Fatalf("expected balance 41.1, got %s", acct.AccountBalance)
	}
	if acct.PreviousBalance.String() != "35" {
		t.Fatalf("expected previous balance 35, got %s", acct.PreviousBalance)
	}
	if !acct.LatestPayment.IsNegative() {
		t.Fatalf("expected negative latest payment, got %s", acct.LatestPayment)
	}
}

func TestBillingHistoryRequestShape(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/history/billing" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"billing": [
			{"billId": "B123", "billDate": "2025-08-29", "readDate": "2025-08-27", "dueDate": "2025-09-15", "billAmount": 41.1}
		]}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "user@example.com", StaticToken("tok-1"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	from := time.Date(2024, 8, 23, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 8, 23, 0, 0, 0, 0, time.UTC)
	bills, err := client.BillingHistory(context.Background(), Account{AccountID: "00123456-00"}, from, to)
	if err != nil {
		t.Fatalf("billing history: %v", err)
	}

	if gotBody["accountId"] != "00123456-00" || gotBody["email"] != "user@example.com" {
		t.Fatalf("unexpected request identity %v/%v", gotBody["accountId"], gotBody["email"])
	}
	if gotBody["startDate"] != "2024-08-23" || gotBody["endDate"] != "2025-08-23" {
		t.Fatalf("unexpected request range %v..%v", gotBody["startDate"], gotBody["endDate"])
	}
	if len(bills) != 1 || bills[0].BillID != "B123" {
		t.Fatalf("unexpected bills %+v", bills)
	}
	if bills[0].BillAmount.String() != "41.1" {
		t.Fatalf("expected amount 41.1, got %s", bills[0].BillAmount)
	}
}

func TestBillDocumentKeyAndNotFound(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path == "/out/00123456-00_B123_20250829.pdf" {
			w.Write([]byte("%PDF-1.4 stub"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "user@example.com", StaticToken("tok-1"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	acct := Account{
		AccountID:      "00123456-00",
		BillDisplayURL: server.URL + "/out/latest.pdf",
	}

	content, err := client.BillDocument(context.Background(), acct, "B123", "2025-08-29")
	if err != nil {
		t.Fatalf("bill document: %v", err)
	}
	if len(content) == 0 {
		t.Fatalf("expected document bytes")
	}
	if gotPath != "/out/00123456-00_B123_20250829.pdf" {
		t.Fatalf("unexpected document key path %s", gotPath)
	}
	// The document host takes no bearer auth.
	if gotAuth != "" {
		t.Fatalf("expected unauthenticated document fetch, got %q", gotAuth)
	}

	_, err = client.BillDocument(context.Background(), acct, "B999", "2025-07-31")
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected not found sentinel, got %v", err)
	}
}

func TestUsageUnwrapsHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/usage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["premiseId"] != "P-9" || body["frequency"] != "M" || body["service"] != "SEWER" {
			t.Errorf("unexpected usage request %v", body)
		}
		w.Write([]byte(`{"usage": {"usageHistory": [{"usageData": [
			{"period": "2025-07", "value": "22.0"},
			{"period": "2025-08", "value": "20.5"}
		]}]}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "user@example.com", StaticToken("tok-1"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	from := time.Date(2024, 8, 23, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 8, 23, 0, 0, 0, 0, time.UTC)
	acct := Account{AccountID: "00123456-00", PremiseID: "P-9"}
	points, err := client.Usage(context.Background(), acct, FrequencyMonthly, from, to)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if len(points) != 2 || points[1].Period != "2025-08" {
		t.Fatalf("unexpected usage points %+v", points)
	}

	if _, err := client.Usage(context.Background(), Account{AccountID: "x"}, FrequencyMonthly, from, to); err == nil {
		t.Fatalf("expected error without service address")
	}
}
