// Package carrier integrates with the last-mile delivery provider: claims
// are created from normalized orders, accepted, and then tracked until the
// courier either delivers the order or brings it back.
package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"fulfillment_backend/platform/apperr"
	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/logger"
)

const apiPrefix = "/b2b/cargo/integration/v2"

// Client is the carrier claims API client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logger.Logger
}

// NewClient creates a carrier client from configuration.
func NewClient(cfg config.CarrierConfig, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: cfg.GetCarrierBaseURL(),
		token:   cfg.GetCarrierToken(),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// CreateClaim registers a new delivery claim. The generated request id makes
// the call idempotent on the carrier side.
func (c *Client) CreateClaim(ctx context.Context, payload map[string]interface{}) (Claim, error) {
	var resp claimResponse
	path := apiPrefix + "/claims/create?request_id=" + uuid.NewString()
	if err := c.do(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return Claim{}, apperr.Remote("failed to create delivery claim", err).WithOp("carrier.CreateClaim")
	}
	if resp.ID == "" {
		return Claim{}, apperr.Remote("claim creation returned no claim id", nil).WithOp("carrier.CreateClaim")
	}
	return resp.toClaim(), nil
}

// GetClaim fetches the current claim state.
func (c *Client) GetClaim(ctx context.Context, claimID string) (Claim, error) {
	var resp claimResponse
	path := apiPrefix + "/claims/info?claim_id=" + url.QueryEscape(claimID)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return Claim{}, apperr.Remote("failed to fetch claim", err).WithOp("carrier.GetClaim")
	}
	return resp.toClaim(), nil
}

// AcceptClaim confirms the claim at the given version, committing to the
// quoted price.
func (c *Client) AcceptClaim(ctx context.Context, claimID string, version int) (Claim, error) {
	var resp claimResponse
	path := apiPrefix + "/claims/accept?claim_id=" + url.QueryEscape(claimID)
	payload := map[string]int{"version": version}
	if err := c.do(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return Claim{}, apperr.Remote("failed to accept claim", err).WithOp("carrier.AcceptClaim")
	}
	return resp.toClaim(), nil
}

// TrackingLink returns the public courier tracking link for the claim, or
// empty when the carrier has not issued one yet.
func (c *Client) TrackingLink(ctx context.Context, claimID string) (string, error) {
	var resp trackingLinksResponse
	path := apiPrefix + "/claims/tracking-links?claim_id=" + url.QueryEscape(claimID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", apperr.Remote("failed to fetch tracking links", err).WithOp("carrier.TrackingLink")
	}
	for _, point := range resp.RoutePoints {
		if point.SharingLink != "" {
			return point.SharingLink, nil
		}
	}
	return "", nil
}

// CourierInfo fetches the courier's name and a voice-forwarding phone
// number for the claim.
func (c *Client) CourierInfo(ctx context.Context, claimID string) (CourierInfo, error) {
	var claim claimResponse
	infoPath := apiPrefix + "/claims/info?claim_id=" + url.QueryEscape(claimID)
	if err := c.do(ctx, http.MethodPost, infoPath, nil, &claim); err != nil {
		return CourierInfo{}, apperr.Remote("failed to fetch claim for courier info", err).WithOp("carrier.CourierInfo")
	}

	info := CourierInfo{}
	if claim.Performer != nil {
		info.Name = claim.Performer.Name
	}
	if claim.Due != "" {
		if due, err := time.Parse(time.RFC3339, claim.Due); err == nil {
			if minutes := int(time.Until(due).Minutes()); minutes > 0 {
				info.ETAMinutes = minutes
			}
		}
	}

	var voice voiceForwardingResponse
	payload := map[string]interface{}{"claim_id": claimID, "point_id": claim.CurrentPointID}
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/driver-voiceforwarding", payload, &voice); err != nil {
		// Courier name alone is still worth reporting.
		c.log.Warn("carrier: voice forwarding unavailable", "claimId", claimID, "error", err)
		return info, nil
	}
	info.Phone = voice.Phone
	info.Ext = voice.Ext
	return info, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept-Language", "en")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("carrier api %s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
