package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// PayoutResult é a resposta do gateway a um repasse
type PayoutResult struct {
	ExternalID string       `json:"externalId"`
	Status     PayoutStatus `json:"status"` // disbursed | pending | failed
	Reason     string       `json:"reason,omitempty"`
}

// Gateway é o contrato com o provedor de pagamentos
type Gateway interface {
	Deposit(ctx context.Context, userID string, amount decimal.Decimal, metadata map[string]any) (string, error)
	// Payout usa payoutID como chave de idempotência: repetir devolve o mesmo resultado
	Payout(ctx context.Context, payoutID, userID string, amount decimal.Decimal, destination string) (*PayoutResult, error)
}

// HTTPGateway fala com o gateway via HTTP/JSON
type HTTPGateway struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPGateway(base string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type depositReq struct {
	UserID   string         `json:"userId"`
	Amount   string         `json:"amount"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type depositResp struct {
	ExternalID string `json:"externalId"`
}

type payoutReq struct {
	PayoutID    string `json:"payoutId"`
	UserID      string `json:"userId"`
	Amount      string `json:"amount"`
	Destination string `json:"destination"`
}

func (g *HTTPGateway) Deposit(ctx context.Context, userID string, amount decimal.Decimal, metadata map[string]any) (string, error) {
	var out depositResp
	if err := g.post(ctx, "/deposits", depositReq{UserID: userID, Amount: amount.String(), Metadata: metadata}, &out); err != nil {
		return "", err
	}
	if out.ExternalID == "" {
		return "", fmt.Errorf("gateway deposit: empty external id")
	}
	return out.ExternalID, nil
}

func (g *HTTPGateway) Payout(ctx context.Context, payoutID, userID string, amount decimal.Decimal, destination string) (*PayoutResult, error) {
	var out PayoutResult
	in := payoutReq{PayoutID: payoutID, UserID: userID, Amount: amount.String(), Destination: destination}
	if err := g.post(ctx, "/payouts", in, &out); err != nil {
		return nil, err
	}
	switch out.Status {
	case PayoutDisbursed, PayoutPending, PayoutFailed:
	default:
		return nil, fmt.Errorf("gateway payout: unknown status %q", out.Status)
	}
	return &out, nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := g.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("gateway %s http %d", path, res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
