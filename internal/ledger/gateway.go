package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"ledgerdesk/internal/common"
	"ledgerdesk/internal/config"
	"ledgerdesk/internal/models"
)

// GatewayClient talks to the accounting gateway over REST. The gateway
// wraps the vendor SDK on the machine that hosts the company file; this
// client never sees SDK types, only JSON.
type GatewayClient struct {
	config     *config.GatewayConfig
	httpClient *http.Client
}

// NewGatewayClient creates a ledger gateway client.
func NewGatewayClient(cfg *config.GatewayConfig) *GatewayClient {
	httpClient := &http.Client{
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}

	return &GatewayClient{
		config:     cfg,
		httpClient: httpClient,
	}
}

type gatewayEnvelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// makeRequest performs an HTTP request against the gateway. Timeouts and
// connection drops are distinguished from gateway-reported failures so
// writes can be classified as uncertain rather than failed.
func (c *GatewayClient) makeRequest(ctx context.Context, method, endpoint string, payload any, out any) error {
	reqURL := fmt.Sprintf("%s%s", c.config.Endpoint, endpoint)

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.config.APIKey))

	op := fmt.Sprintf("%s %s", method, endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isUncertain(err) && method != http.MethodGet {
			return common.UncertainError(op, err)
		}
		return common.BackendError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return common.BackendError(op, err)
	}

	var env gatewayEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return common.BackendError(op, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(raw)))
	}
	if !env.OK {
		return common.BackendError(op, errors.New(env.Error))
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return common.BackendError(op, fmt.Errorf("decoding gateway response: %w", err))
		}
	}
	return nil
}

// isUncertain reports whether the transport failed in a way that leaves
// the write's outcome unknown: the request may have reached the gateway.
func isUncertain(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Timeout() || errors.Is(ue.Err, io.EOF) || errors.Is(ue.Err, context.DeadlineExceeded)
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// FindEntity queries the gateway name lists.
func (c *GatewayClient) FindEntity(ctx context.Context, kind EntityKind, nameQuery string) ([]models.EntityRef, error) {
	endpoint := fmt.Sprintf("/api/entities/%s?q=%s", kind, url.QueryEscape(nameQuery))
	var refs []models.EntityRef
	if err := c.makeRequest(ctx, http.MethodGet, endpoint, nil, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// CreateEntity adds a vendor, customer, item, account or other-name record.
func (c *GatewayClient) CreateEntity(ctx context.Context, kind EntityKind, fields EntityFields) (models.EntityRef, error) {
	endpoint := fmt.Sprintf("/api/entities/%s", kind)
	var ref models.EntityRef
	if err := c.makeRequest(ctx, http.MethodPost, endpoint, fields, &ref); err != nil {
		return models.EntityRef{}, err
	}
	return ref, nil
}

// UpdateEntity modifies an existing entity record.
func (c *GatewayClient) UpdateEntity(ctx context.Context, kind EntityKind, id string, fields EntityFields) error {
	endpoint := fmt.Sprintf("/api/entities/%s/%s", kind, url.PathEscape(id))
	return c.makeRequest(ctx, http.MethodPut, endpoint, fields, nil)
}

// CreateTransaction posts a transaction and returns the assigned ledger id.
func (c *GatewayClient) CreateTransaction(ctx context.Context, kind Kind, txn *models.Transaction) (string, error) {
	if err := ValidateKind(kind); err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("/api/transactions/%s", kind)
	var result struct {
		ID string `json:"id"`
	}
	if err := c.makeRequest(ctx, http.MethodPost, endpoint, txn, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// GetTransaction fetches one transaction with line items.
func (c *GatewayClient) GetTransaction(ctx context.Context, kind Kind, id string) (*models.Transaction, error) {
	if err := ValidateKind(kind); err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("/api/transactions/%s/%s", kind, url.PathEscape(id))
	txn := &models.Transaction{}
	if err := c.makeRequest(ctx, http.MethodGet, endpoint, nil, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// UpdateTransaction rewrites an existing transaction.
func (c *GatewayClient) UpdateTransaction(ctx context.Context, kind Kind, id string, txn *models.Transaction) error {
	if err := ValidateKind(kind); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("/api/transactions/%s/%s", kind, url.PathEscape(id))
	return c.makeRequest(ctx, http.MethodPut, endpoint, txn, nil)
}

// SearchTransactions runs a filtered search for one kind.
func (c *GatewayClient) SearchTransactions(ctx context.Context, kind Kind, filter SearchFilter) ([]*models.Transaction, error) {
	if err := ValidateKind(kind); err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("/api/transactions/%s/search", kind)
	var txns []*models.Transaction
	if err := c.makeRequest(ctx, http.MethodPost, endpoint, searchPayload(filter), &txns); err != nil {
		return nil, err
	}
	return txns, nil
}

// DeleteTransaction removes a transaction. The kind travels as its
// canonical string; the gateway's SDK bridge rejects anything else.
func (c *GatewayClient) DeleteTransaction(ctx context.Context, kind Kind, id string) error {
	if err := ValidateKind(kind); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("/api/transactions/%s/%s", kind, url.PathEscape(id))
	return c.makeRequest(ctx, http.MethodDelete, endpoint, nil, nil)
}

// ReportBasis reads the backend's configured report basis.
func (c *GatewayClient) ReportBasis(ctx context.Context) (Basis, error) {
	var result struct {
		Basis string `json:"basis"`
	}
	if err := c.makeRequest(ctx, http.MethodGet, "/api/preferences/report-basis", nil, &result); err != nil {
		return "", err
	}
	switch Basis(result.Basis) {
	case BasisCash, BasisAccrual:
		return Basis(result.Basis), nil
	default:
		return "", common.BackendError("GET /api/preferences/report-basis",
			fmt.Errorf("unrecognized report basis %q", result.Basis))
	}
}

func searchPayload(filter SearchFilter) map[string]any {
	payload := map[string]any{}
	if !filter.DateFrom.IsZero() {
		payload["date_from"] = filter.DateFrom.Format("2006-01-02")
	}
	if !filter.DateTo.IsZero() {
		payload["date_to"] = filter.DateTo.Format("2006-01-02")
	}
	if filter.Amount != 0 {
		payload["amount"] = filter.Amount
		payload["amount_tolerance"] = filter.AmountTolerance
	}
	if filter.Entity != "" {
		payload["entity"] = filter.Entity
	}
	if filter.Job != "" {
		payload["job"] = filter.Job
	}
	if filter.RefNumber != "" {
		payload["ref_number"] = filter.RefNumber
	}
	if filter.IncludeLines {
		payload["include_lines"] = true
	}
	if filter.MaxReturned > 0 {
		payload["max_returned"] = filter.MaxReturned
	}
	return payload
}
