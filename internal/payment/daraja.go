// internal/payment/daraja.go
package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"masqanicore/internal/common/config"
	httpclient "masqanicore/internal/common/http"
	"masqanicore/internal/common/logger"
)

const (
	tokenPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	// Safaricom result code for a completed payment.
	resultCodeSuccess = "0"
)

// DarajaClient confirms payments through the Safaricom Daraja STK-push API.
// It pushes the charge to the payer's handset, then polls the query endpoint
// until the push resolves or the caller's context expires.
type DarajaClient struct {
	cfg          config.PaymentConfig
	http         *httpclient.Client
	logger       logger.Logger
	pollInterval time.Duration
}

// NewDarajaClient builds the production gateway client.
func NewDarajaClient(cfg config.PaymentConfig, log logger.Logger) *DarajaClient {
	return &DarajaClient{
		cfg:          cfg,
		http:         httpclient.NewClient(30 * time.Second),
		logger:       log.WithFields(map[string]interface{}{"gateway": "daraja"}),
		pollInterval: 3 * time.Second,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResponseCode      string `json:"ResponseCode"`
	ResponseDesc      string `json:"ResponseDescription"`
}

type stkQueryResponse struct {
	ResultCode        string `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	MpesaReceipt      string `json:"MpesaReceiptNumber"`
}

// Confirm implements Gateway.
func (c *DarajaClient) Confirm(ctx context.Context, req Request) (*Result, error) {
	token, err := c.fetchToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("daraja auth: %w", err)
	}

	checkoutID, err := c.push(ctx, token, req)
	if err != nil {
		return nil, fmt.Errorf("stk push: %w", err)
	}

	c.logger.Info("stk push sent", map[string]interface{}{
		"checkoutRequestId": checkoutID,
		"reference":         req.Reference,
	})

	// The push cannot be aborted once sent; poll until it resolves or the
	// deadline lapses.
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			status, err := c.query(ctx, token, checkoutID)
			if err != nil {
				c.logger.Warn("stk query failed, will retry", map[string]interface{}{
					"checkoutRequestId": checkoutID,
					"error":             err.Error(),
				})
				continue
			}
			if status == nil {
				continue // still pending
			}
			if status.ResultCode == resultCodeSuccess {
				receipt := status.MpesaReceipt
				if receipt == "" {
					receipt = checkoutID
				}
				return &Result{Confirmed: true, TransactionID: receipt}, nil
			}
			return &Result{Confirmed: false, FailureReason: status.ResultDesc}, nil
		}
	}
}

func (c *DarajaClient) fetchToken(ctx context.Context) (string, error) {
	req, err := http.NewRequest(http.MethodGet, c.cfg.BaseURL+tokenPath, nil)
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func (c *DarajaClient) push(ctx context.Context, token string, req Request) (string, error) {
	ts := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + ts))

	payload := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount,
		PartyA:            req.Phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       req.Phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  req.Reference,
		TransactionDesc:   req.Description,
	}

	var out stkPushResponse
	if err := c.postJSON(ctx, token, stkPushPath, payload, &out); err != nil {
		return "", err
	}
	if out.ResponseCode != resultCodeSuccess {
		return "", fmt.Errorf("push rejected: %s", out.ResponseDesc)
	}
	return out.CheckoutRequestID, nil
}

// query returns nil, nil while the push is still pending on the handset.
func (c *DarajaClient) query(ctx context.Context, token, checkoutID string) (*stkQueryResponse, error) {
	ts := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + ts))

	payload := map[string]string{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          password,
		"Timestamp":         ts,
		"CheckoutRequestID": checkoutID,
	}

	var out stkQueryResponse
	if err := c.postJSON(ctx, token, stkQueryPath, payload, &out); err != nil {
		return nil, err
	}
	if out.ResultCode == "" {
		return nil, nil
	}
	return &out, nil
}

func (c *DarajaClient) postJSON(ctx context.Context, token, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, string(raw))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
