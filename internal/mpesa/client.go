package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	transactionType = "CustomerPayBillOnline"

	authPath     = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	maxAttempts  = 3
	retryBackoff = 500 * time.Millisecond
)

// Config holds the Daraja credentials for one merchant shortcode.
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
}

// Client issues the outbound calls to the M-Pesa Daraja API. It is
// constructed once at startup and safe for concurrent use; every
// operation fetches a fresh access token and request credential.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type STKPushRequest struct {
	Phone            string
	Amount           float64
	AccountReference string
	TransactionDesc  string
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type STKQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int    `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkQueryPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

var nonDigits = regexp.MustCompile(`\D`)

// FormatPhoneNumber canonicalizes a Kenyan phone number to the bare
// international form (254...). It is idempotent: a number already in
// canonical form comes back unchanged.
func FormatPhoneNumber(phone string) string {
	phone = nonDigits.ReplaceAllString(phone, "")

	switch {
	case strings.HasPrefix(phone, "0"):
		phone = "254" + phone[1:]
	case strings.HasPrefix(phone, "254"):
		// already canonical; the "+" was stripped with the non-digits
	default:
		phone = "254" + phone
	}
	return phone
}

// timestamp renders t as YYYYMMDDHHMMSS, the precision Daraja expects
// inside the request password.
func timestamp(t time.Time) string {
	return t.Format("20060102150405")
}

// password derives the request credential for the given timestamp.
// It must be rebuilt per request since the timestamp is part of it.
func (c *Client) password(ts string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.Shortcode + c.cfg.Passkey + ts))
}

// Authenticate exchanges the consumer key/secret for a short-lived
// bearer token. Tokens are not cached; callers get a fresh one per
// operation.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	var token string
	err := c.withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+authPath, nil)
		if err != nil {
			return err
		}
		req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return retryableStatus(resp.StatusCode)
		}

		var body struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return err
		}
		if body.AccessToken == "" {
			return fmt.Errorf("empty access token in response")
		}
		token = body.AccessToken
		return nil
	})
	if err != nil {
		return "", &AuthError{Err: err}
	}
	return token, nil
}

// InitiateSTKPush asks the gateway to prompt the payer's phone for
// approval. The amount is rounded to the nearest whole shilling since
// Daraja rejects fractional amounts. The caller must persist the
// returned CheckoutRequestID before the asynchronous callback can be
// correlated.
func (c *Client) InitiateSTKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	ts := timestamp(time.Now())
	phone := FormatPhoneNumber(req.Phone)
	payload := stkPushPayload{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          c.password(ts),
		Timestamp:         ts,
		TransactionType:   transactionType,
		Amount:            int(math.Round(req.Amount)),
		PartyA:            phone,
		PartyB:            c.cfg.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.TransactionDesc,
	}

	var out STKPushResponse
	if err := c.postJSON(ctx, "stk push", stkPushPath, token, payload, &out, true); err != nil {
		return nil, err
	}
	if out.ResponseCode != "0" {
		return nil, &GatewayError{Op: "stk push", ResponseCode: out.ResponseCode, Description: out.ResponseDescription}
	}
	return &out, nil
}

// QuerySTKStatus polls the gateway for the outcome of a previously
// initiated push. It is the reconciliation fallback for payments whose
// callback never arrived.
func (c *Client) QuerySTKStatus(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	ts := timestamp(time.Now())
	payload := stkQueryPayload{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          c.password(ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}

	var out STKQueryResponse
	if err := c.postJSON(ctx, "stk query", stkQueryPath, token, payload, &out, false); err != nil {
		return nil, err
	}
	if out.ResponseCode != "0" {
		return nil, &GatewayError{Op: "stk query", ResponseCode: out.ResponseCode, Description: out.ResponseDescription}
	}
	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, op, path, token string, payload, out interface{}, retry bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}

	do := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			var apiErr struct {
				ErrorCode    string `json:"errorCode"`
				ErrorMessage string `json:"errorMessage"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&apiErr)
			if retryable(resp.StatusCode) {
				return retryableStatus(resp.StatusCode)
			}
			return fmt.Errorf("gateway returned %d: %s %s", resp.StatusCode, apiErr.ErrorCode, apiErr.ErrorMessage)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	if retry {
		err = c.withRetry(ctx, do)
	} else {
		err = do()
	}
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	return nil
}

type statusError int

func (e statusError) Error() string {
	return fmt.Sprintf("gateway returned %d", int(e))
}

func retryableStatus(code int) error {
	return statusError(code)
}

func retryable(code int) bool {
	return code >= http.StatusInternalServerError
}

// withRetry runs fn up to maxAttempts times, backing off briefly
// between attempts. Initiation and auth are synchronous user-facing
// calls, so the retry budget is kept small.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		var se statusError
		if errors.As(err, &se) && !retryable(int(se)) {
			return err
		}
	}
	return err
}
