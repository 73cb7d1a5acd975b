package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	sslcommerzSandboxURL = "https://sandbox.sslcommerz.com"
	sslcommerzLiveURL    = "https://securepay.sslcommerz.com"
)

// SSLCommerzConfig holds merchant credentials and the browser return URLs.
type SSLCommerzConfig struct {
	StoreID       string
	StorePassword string
	Live          bool
	// ValidationURL receives the browser after a successful checkout; tran_id is appended.
	ValidationURL string
	FailURL       string
	CancelURL     string
	// BaseURL overrides the sandbox/live endpoint.
	BaseURL string
}

// SSLCommerz talks to the SSLCommerz v4 hosted checkout and transaction query APIs.
type SSLCommerz struct {
	cfg    SSLCommerzConfig
	base   string
	client *http.Client
}

func NewSSLCommerz(cfg SSLCommerzConfig, client *http.Client) *SSLCommerz {
	base := cfg.BaseURL
	if base == "" {
		base = sslcommerzSandboxURL
		if cfg.Live {
			base = sslcommerzLiveURL
		}
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &SSLCommerz{cfg: cfg, base: strings.TrimRight(base, "/"), client: client}
}

type sslInitResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

// Initialize opens a BDT checkout session and returns the hosted payment page URL.
func (s *SSLCommerz) Initialize(ctx context.Context, amount decimal.Decimal, transactionID string) (string, error) {
	form := url.Values{
		"store_id":         {s.cfg.StoreID},
		"store_passwd":     {s.cfg.StorePassword},
		"total_amount":     {amount.StringFixed(2)},
		"currency":         {"BDT"},
		"tran_id":          {transactionID},
		"success_url":      {withTranID(s.cfg.ValidationURL, transactionID)},
		"fail_url":         {s.cfg.FailURL},
		"cancel_url":       {s.cfg.CancelURL},
		"shipping_method":  {"NO"},
		"product_name":     {"Rent"},
		"product_category": {"Rental"},
		"product_profile":  {"non-physical-goods"},
		"cus_name":         {"N/A"},
		"cus_email":        {"N/A"},
		"cus_add1":         {"Dhaka"},
		"cus_city":         {"Dhaka"},
		"cus_postcode":     {"1000"},
		"cus_country":      {"Bangladesh"},
		"cus_phone":        {"01711111111"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/gwprocess/v4/api.php", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("gateway: build init request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out sslInitResponse
	if _, err := s.do(req, &out); err != nil {
		return "", err
	}
	if out.GatewayPageURL == "" {
		if out.FailedReason != "" {
			return "", fmt.Errorf("%w: %s", ErrNoRedirect, out.FailedReason)
		}
		return "", ErrNoRedirect
	}
	return out.GatewayPageURL, nil
}

type sslQueryResponse struct {
	APIConnect string            `json:"APIConnect"`
	Element    []json.RawMessage `json:"element"`
}

type sslElement struct {
	Status string `json:"status"`
	TranID string `json:"tran_id"`
}

// Query asks SSLCommerz for the outcome of transactionID. The first reported element is
// the authoritative one; no element means the gateway never saw the transaction.
func (s *SSLCommerz) Query(ctx context.Context, transactionID string) (Result, error) {
	q := url.Values{
		"tran_id":      {transactionID},
		"store_id":     {s.cfg.StoreID},
		"store_passwd": {s.cfg.StorePassword},
		"format":       {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/validator/api/merchantTransIDvalidationAPI.php?"+q.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("gateway: build query request: %w", err)
	}

	var out sslQueryResponse
	body, err := s.do(req, &out)
	if err != nil {
		return Result{}, err
	}
	if len(out.Element) == 0 {
		return Result{Status: StatusInvalid, TransactionID: transactionID, Raw: body}, nil
	}

	var el sslElement
	if err := json.Unmarshal(out.Element[0], &el); err != nil {
		return Result{}, fmt.Errorf("gateway: decode element: %w", err)
	}
	tranID := el.TranID
	if tranID == "" {
		tranID = transactionID
	}
	return Result{Status: Status(strings.ToUpper(el.Status)), TransactionID: tranID, Raw: out.Element[0]}, nil
}

func (s *SSLCommerz) do(req *http.Request, out any) (json.RawMessage, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: sslcommerz request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("gateway: read sslcommerz response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("gateway: sslcommerz returned %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("gateway: decode sslcommerz response: %w", err)
	}
	return body, nil
}

func withTranID(base, transactionID string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("tran_id", transactionID)
	u.RawQuery = q.Encode()
	return u.String()
}
