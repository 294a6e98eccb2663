// Package delco is a minimal client for the Del-Co Water customer API.
package delco

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the production customer API endpoint.
const DefaultBaseURL = "https://delco-api.cloud-esc.com/v2"

const wireDateLayout = "2006-01-02"

// Frequency selects the usage reporting interval.
// Only monthly is available for non-AMI meters.
type Frequency string

const (
	FrequencyDaily   Frequency = "D"
	FrequencyWeekly  Frequency = "W"
	FrequencyMonthly Frequency = "M"
)

// ErrDocumentNotFound is returned when a bill document does not exist on
// the document host. It is an expected outcome for older bills.
var ErrDocumentNotFound = errors.New("delco: bill document not found")

// TokenSource supplies bearer tokens for API calls. The credential
// exchange producing the tokens lives behind this interface.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token.
type StaticToken string

// Token returns the fixed token.
func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// TokenFunc adapts a function to a TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

// Token calls the function.
func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Account is the customer account profile.
type Account struct {
	AccountID        string
	PremiseID        string
	BillDisplayURL   string
	AccountBalance   decimal.Decimal
	PreviousBalance  decimal.Decimal
	LatestBillAmount decimal.Decimal
	LatestPayment    decimal.Decimal
}

// BillEntry is one issued bill in the billing-history feed.
type BillEntry struct {
	BillID     string          `json:"billId"`
	BillDate   string          `json:"billDate"`
	ReadDate   string          `json:"readDate"`
	DueDate    string          `json:"dueDate"`
	BillAmount decimal.Decimal `json:"billAmount"`
}

// Payment is one received payment in the payment-history feed.
type Payment struct {
	PaymentDate string          `json:"paymentDate"`
	Amount      decimal.Decimal `json:"paymentAmount"`
	TenderType  string          `json:"tenderType"`
	Source      string          `json:"paymentSource"`
}

// UsagePoint is one metered usage value. Value is in hundred-gallon units.
type UsagePoint struct {
	Period string          `json:"period"`
	Value  decimal.Decimal `json:"value"`
}

// Client is a minimal Del-Co customer API client bound to one customer.
type Client struct {
	baseURL string
	email   string
	tokens  TokenSource
	client  *http.Client
}

// NewClient constructs a client. An empty baseURL selects the production
// endpoint.
func NewClient(baseURL, email string, tokens TokenSource) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if email == "" {
		return nil, errors.New("delco: empty customer email")
	}
	if tokens == nil {
		return nil, errors.New("delco: nil token source")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		email:   email,
		tokens:  tokens,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Account fetches the account profile for the authenticated customer.
func (c *Client) Account(ctx context.Context) (Account, error) {
	var resp accountResponse
	if err := c.doJSON(ctx, "/account", map[string]any{}, &resp); err != nil {
		return Account{}, err
	}
	if resp.MyAccount.AccountID == "" {
		return Account{}, errors.New("delco: account response missing account id")
	}

	acct := Account{
		AccountID:        resp.MyAccount.AccountID,
		BillDisplayURL:   resp.MyAccount.BillDisplayURL,
		AccountBalance:   resp.MyAccount.AccountBalance,
		PreviousBalance:  resp.MyAccount.PreviousBalance,
		LatestBillAmount: resp.MyAccount.LatestBillAmount,
		LatestPayment:    resp.MyAccount.LatestPayment,
	}
	if len(resp.MyAccount.ServiceAddresses) > 0 {
		acct.PremiseID = resp.MyAccount.ServiceAddresses[0].PremiseID
	}
	return acct, nil
}

// BillingHistory lists bills issued within [from, to].
func (c *Client) BillingHistory(ctx context.Context, acct Account, from, to time.Time) ([]BillEntry, error) {
	body, err := c.historyBody(acct, from, to)
	if err != nil {
		return nil, err
	}
	var resp billingHistoryResponse
	if err := c.doJSON(ctx, "/history/billing", body, &resp); err != nil {
		return nil, err
	}
	return resp.Billing, nil
}

// PaymentHistory lists payments received within [from, to].
func (c *Client) PaymentHistory(ctx context.Context, acct Account, from, to time.Time) ([]Payment, error) {
	body, err := c.historyBody(acct, from, to)
	if err != nil {
		return nil, err
	}
	var resp paymentHistoryResponse
	if err := c.doJSON(ctx, "/history/payment", body, &resp); err != nil {
		return nil, err
	}
	return resp.Payment, nil
}

// Usage lists metered usage at the given frequency within [from, to].
func (c *Client) Usage(ctx context.Context, acct Account, frequency Frequency, from, to time.Time) ([]UsagePoint, error) {
	if acct.PremiseID == "" {
		return nil, errors.New("delco: account has no service address")
	}
	body, err := c.historyBody(acct, from, to)
	if err != nil {
		return nil, err
	}
	body["premiseId"] = acct.PremiseID
	body["frequency"] = string(frequency)
	body["service"] = "SEWER"

	var resp usageResponse
	if err := c.doJSON(ctx, "/usage", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Usage.UsageHistory) == 0 {
		return nil, nil
	}
	return resp.Usage.UsageHistory[0].UsageData, nil
}

// BillDocument downloads one bill document from the document host. The
// document key is <accountId>_<billId>_<billDate with separators removed>.
// Missing documents return ErrDocumentNotFound, never a plain error.
func (c *Client) BillDocument(ctx context.Context, acct Account, billID, billDate string) ([]byte, error) {
	if billID == "" || billDate == "" {
		return nil, errors.New("delco: empty bill identity")
	}
	base, err := documentBaseURL(acct)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s_%s_%s.pdf", acct.AccountID, billID, stripDateSeparators(billDate))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/"+key, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrDocumentNotFound
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("delco: http %d fetching %s", resp.StatusCode, key)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) historyBody(acct Account, from, to time.Time) (map[string]any, error) {
	if acct.AccountID == "" {
		return nil, errors.New("delco: empty account id")
	}
	if from.IsZero() || to.IsZero() {
		return nil, errors.New("delco: empty date range")
	}
	return map[string]any{
		"accountId": acct.AccountID,
		"startDate": from.Format(wireDateLayout),
		"endDate":   to.Format(wireDateLayout),
		"admin":     false,
		"email":     c.email,
	}, nil
}

func stripDateSeparators(billDate string) string {
	return strings.NewReplacer("-", "", "/", "").Replace(billDate)
}

func documentBaseURL(acct Account) (string, error) {
	if acct.BillDisplayURL == "" {
		return "", errors.New("delco: account missing bill display url")
	}
	i := strings.LastIndex(acct.BillDisplayURL, "/")
	if i <= 0 {
		return "", errors.New("delco: malformed bill display url")
	}
	return acct.BillDisplayURL[:i], nil
}

type accountResponse struct {
	MyAccount struct {
		AccountID        string          `json:"accountId"`
		BillDisplayURL   string          `json:"billDisplayURL"`
		AccountBalance   decimal.Decimal `json:"accountBalance"`
		PreviousBalance  decimal.Decimal `json:"previousBalance"`
		LatestBillAmount decimal.Decimal `json:"latestBillAmount"`
		LatestPayment    decimal.Decimal `json:"latestPayment"`
		ServiceAddresses []struct {
			PremiseID string `json:"premiseId"`
		} `json:"serviceAddresses"`
	} `json:"myAccount"`
}

type billingHistoryResponse struct {
	Billing []BillEntry `json:"billing"`
}

type paymentHistoryResponse struct {
	Payment []Payment `json:"payment"`
}

type usageResponse struct {
	Usage struct {
		UsageHistory []struct {
			UsageData []UsagePoint `json:"usageData"`
		} `json:"usageHistory"`
	} `json:"usage"`
}

// doJSON posts body to path with bearer auth and decodes the response.
// The API expects the access token both as a header and in the body.
func (c *Client) doJSON(ctx context.Context, path string, body map[string]any, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("delco: token: %w", err)
	}
	body["AccessToken"] = token

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("delco: http %d on %s", resp.StatusCode, path)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
