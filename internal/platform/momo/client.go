package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/momobridge/pkg/config"
	"github.com/fatflowers/momobridge/pkg/tool"
)

// Client wraps the four remote collection operations. Stateless apart from
// the injected token cache.
type Client struct {
	cfg    cfgpkg.MomoConfig
	tokens *TokenCache
	http   *http.Client
	log    *zap.SugaredLogger
}

func NewClient(cfg *cfgpkg.Config, tokens *TokenCache, log *zap.SugaredLogger) *Client {
	return &Client{
		cfg:    cfg.Momo,
		tokens: tokens,
		http:   &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

type Payer struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

type RequestToPayInput struct {
	Amount       string
	Currency     string
	ExternalID   string
	PayerPhone   string
	PayerMessage string
	PayeeNote    string
}

type requestToPayBody struct {
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	ExternalID   string `json:"externalId"`
	Payer        Payer  `json:"payer"`
	PayerMessage string `json:"payerMessage"`
	PayeeNote    string `json:"payeeNote"`
}

// StatusReason is the failure reason of a collection request. The network
// reports it either as a bare code string or as a {code, message} object.
type StatusReason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r *StatusReason) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.Code = s
		return nil
	}
	type alias StatusReason
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = StatusReason(a)
	return nil
}

type TransactionStatusResponse struct {
	Amount                 string        `json:"amount"`
	Currency               string        `json:"currency"`
	FinancialTransactionID string        `json:"financialTransactionId"`
	ExternalID             string        `json:"externalId"`
	Payer                  Payer         `json:"payer"`
	Status                 string        `json:"status"`
	Reason                 *StatusReason `json:"reason,omitempty"`
}

type AccountBalance struct {
	AvailableBalance string `json:"availableBalance"`
	Currency         string `json:"currency"`
}

type BasicUserInfo struct {
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Birthdate  string `json:"birthdate"`
	Locale     string `json:"locale"`
	Gender     string `json:"gender"`
	Status     string `json:"status"`
}

// RequestToPay initiates a collection against the payer's wallet and returns
// the client-generated reference id. The network treats 200/201/202
// uniformly as accepted.
func (c *Client) RequestToPay(ctx context.Context, in *RequestToPayInput) (string, error) {
	referenceID := tool.NewReferenceID()
	body := &requestToPayBody{
		Amount:       in.Amount,
		Currency:     in.Currency,
		ExternalID:   in.ExternalID,
		Payer:        Payer{PartyIDType: "MSISDN", PartyID: in.PayerPhone},
		PayerMessage: in.PayerMessage,
		PayeeNote:    in.PayeeNote,
	}
	headers := map[string]string{
		"X-Reference-Id": referenceID,
		"X-Callback-Url": c.cfg.CallbackURL,
	}
	accepted := func(code int) bool {
		return code == http.StatusOK || code == http.StatusCreated || code == http.StatusAccepted
	}
	if err := c.do(ctx, "requesttopay", http.MethodPost, "/collection/v1_0/requesttopay", body, headers, nil, accepted); err != nil {
		return "", err
	}
	c.log.Infow("requesttopay accepted", "reference_id", referenceID, "external_id", in.ExternalID)
	return referenceID, nil
}

// GetTransactionStatus polls the network's authoritative view of a request.
func (c *Client) GetTransactionStatus(ctx context.Context, referenceID string) (*TransactionStatusResponse, error) {
	var out TransactionStatusResponse
	err := c.do(ctx, "requesttopay status", http.MethodGet, "/collection/v1_0/requesttopay/"+referenceID, nil, nil, &out, okOnly)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAccountBalance fetches the collection account balance, optionally for a
// specific currency.
func (c *Client) GetAccountBalance(ctx context.Context, currency string) (*AccountBalance, error) {
	path := "/collection/v1_0/account/balance"
	if currency != "" {
		path += "/" + currency
	}
	var out AccountBalance
	if err := c.do(ctx, "account balance", http.MethodGet, path, nil, nil, &out, okOnly); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBasicUserInfo looks up the account holder behind an msisdn.
func (c *Client) GetBasicUserInfo(ctx context.Context, msisdn string) (*BasicUserInfo, error) {
	var out BasicUserInfo
	err := c.do(ctx, "basic user info", http.MethodGet, "/collection/v1_0/accountholder/MSISDN/"+msisdn+"/basicuserinfo", nil, nil, &out, okOnly)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func okOnly(code int) bool { return code == http.StatusOK }

// do performs one authorized call. A single 401 clears the token cache and
// retries once with a fresh credential.
func (c *Client) do(ctx context.Context, op, method, path string, body any, headers map[string]string, out any, accepted func(int) bool) error {
	for attempt := 0; ; attempt++ {
		token, err := c.tokens.GetToken(ctx)
		if err != nil {
			return err
		}

		var rd io.Reader
		if body != nil {
			b, err := json.Marshal(body)
			if err != nil {
				return err
			}
			rd = bytes.NewReader(b)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rd)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Target-Environment", c.cfg.TargetEnvironment)
		req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return &NetworkError{Op: op, StatusCode: 0, Body: err.Error()}
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			c.log.Warnw("momo call unauthorized, refreshing token", "op", op)
			c.tokens.ClearCache()
			continue
		}
		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		if !accepted(resp.StatusCode) {
			return &NetworkError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
		}
		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return &NetworkError{Op: op, StatusCode: resp.StatusCode, Body: "malformed response: " + err.Error()}
			}
		}
		return nil
	}
}

// Module exposes the collection API client via Fx.
var Module = fx.Options(
	fx.Provide(NewTokenCache),
	fx.Provide(NewClient),
)
