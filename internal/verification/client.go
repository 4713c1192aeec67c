// Package verification fala com o serviço externo que lê prints de placar
// e devolve quem venceu, com a confiança da leitura.
package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/radieske/challenge-settlement-platform/internal/challenge"
)

// Client chama POST {base}/analyze. Qualquer falha vira challenge.ErrVerificationUnavailable.
type Client struct {
	base string
	http *http.Client
}

func NewClient(base string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Analyze(ctx context.Context, req challenge.AnalyzeRequest) (*challenge.Analysis, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", challenge.ErrVerificationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: analyze http %s: %s", challenge.ErrVerificationUnavailable, resp.Status, bytes.TrimSpace(msg))
	}

	var out challenge.Analysis
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode analysis: %v", challenge.ErrVerificationUnavailable, err)
	}
	return &out, nil
}
