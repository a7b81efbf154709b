package signing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nordstift/foundation-console/internal/application/port"
	"github.com/nordstift/foundation-console/internal/domain/workflow"
)

// Config holds signing provider configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Provider collects digital signatures from an external e-signing
// service. A declined signature is reported as
// workflow.ErrSignatureDeclined so the chain can block instead of
// failing.
type Provider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewProvider creates a new signing provider client
func NewProvider(cfg Config, logger *zap.Logger) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Provider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type signRequest struct {
	SignerID    string   `json:"signer_id"`
	DocumentIDs []string `json:"document_ids"`
}

type signResponse struct {
	Status   string `json:"status"`
	Method   string `json:"method"`
	SignedAt string `json:"signed_at"`
}

// VerifyAndSign implements port.SignatureProvider
func (p *Provider) VerifyAndSign(ctx context.Context, signerID string, documentIDs []string) (*workflow.SignatureRecord, error) {
	body, err := json.Marshal(signRequest{SignerID: signerID, DocumentIDs: documentIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/sign", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("signing service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("Signing service returned non-OK status",
			zap.String("signer_id", signerID),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("signing service returned status %d", resp.StatusCode)
	}

	var sr signResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode sign response: %w", err)
	}

	if sr.Status == "declined" {
		p.logger.Info("Signature declined", zap.String("signer_id", signerID))
		return nil, fmt.Errorf("signer %s: %w", signerID, workflow.ErrSignatureDeclined)
	}
	if sr.Status != "signed" {
		return nil, fmt.Errorf("unexpected signing status %q", sr.Status)
	}

	signedAt := time.Now()
	if sr.SignedAt != "" {
		if t, err := time.Parse(time.RFC3339, sr.SignedAt); err == nil {
			signedAt = t
		}
	}

	return &workflow.SignatureRecord{
		SignerID: signerID,
		Method:   sr.Method,
		SignedAt: signedAt,
	}, nil
}

// Verify interface compliance
var _ port.SignatureProvider = (*Provider)(nil)
