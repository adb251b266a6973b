// Package crm talks to the CRM collaborator over its JSON API. The CRM owns
// the sales lead that triggers a fulfillment run, the secondary "child" lead
// its automation creates, and the note trail that serves as the run's audit
// log.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fulfillment_backend/platform/apperr"
	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/logger"
	"fulfillment_backend/platform/retry"
)

// childLeadPolicy governs child-lead discovery: the child lead is created by
// the CRM's own automation asynchronously after the parent event, so polling
// is required.
var childLeadPolicy = retry.Fixed(5, 20*time.Second)

const catalogPageLimit = 250

// Client is the CRM API client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	cfg     config.CRMConfig
	log     *logger.Logger
}

// NewClient creates a CRM client from configuration.
func NewClient(cfg config.CRMConfig, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: cfg.GetCRMBaseURL(),
		token:   cfg.GetCRMAccessToken(),
		http:    &http.Client{Timeout: timeout},
		cfg:     cfg,
		log:     log,
	}
}

// FetchLead fetches a lead together with its linked catalog references.
// A missing links collection is not an error: the lead is returned with an
// empty reference list and the normalizer decides what that means.
func (c *Client) FetchLead(ctx context.Context, leadID int64) (Lead, []CatalogRef, error) {
	var lead Lead
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/leads/%d", leadID), nil, &lead); err != nil {
		return Lead{}, nil, apperr.Remote("failed to fetch lead", err).WithOp("crm.FetchLead")
	}

	var links struct {
		Embedded struct {
			Links []struct {
				ToEntityType string `json:"to_entity_type"`
				ToEntityID   int64  `json:"to_entity_id"`
				Metadata     struct {
					CatalogID int64       `json:"catalog_id"`
					Quantity  json.Number `json:"quantity"`
				} `json:"metadata"`
			} `json:"links"`
		} `json:"_embedded"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/leads/%d/links", leadID), nil, &links); err != nil {
		c.log.Warn("crm: lead has no reachable links collection", "leadId", leadID, "error", err)
		return lead, nil, nil
	}

	var refs []CatalogRef
	for _, link := range links.Embedded.Links {
		if link.ToEntityType != "catalog_elements" {
			continue
		}

		element, err := c.fetchCatalogElement(ctx, link.Metadata.CatalogID, link.ToEntityID)
		if err != nil {
			c.log.Warn("crm: could not fetch catalog element", "elementId", link.ToEntityID, "error", err)
			continue
		}

		productID := element.FieldByID(c.cfg.GetCRMProductFieldID())
		if productID == "" {
			c.log.Warn("crm: catalog element has no product reference", "elementId", link.ToEntityID)
			continue
		}

		quantity := 1
		if q, err := link.Metadata.Quantity.Int64(); err == nil && q > 0 {
			quantity = int(q)
		}

		refs = append(refs, CatalogRef{
			ProductID: productID,
			SizeID:    element.FieldByID(c.cfg.GetCRMSizeFieldID()),
			Quantity:  quantity,
		})
	}

	return lead, refs, nil
}

func (c *Client) fetchCatalogElement(ctx context.Context, catalogID, elementID int64) (CatalogElement, error) {
	var element CatalogElement
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/catalogs/%d/elements/%d", catalogID, elementID), nil, &element)
	return element, err
}

// FetchChildLeadID polls the parent lead's notes for the newest
// "lead_auto_created" note and returns the child lead id it references.
// Returns 0 (absent) after exhausting the discovery policy.
func (c *Client) FetchChildLeadID(ctx context.Context, parentLeadID int64) (int64, error) {
	for attempt := 0; attempt < childLeadPolicy.MaxAttempts; attempt++ {
		childID, err := c.findChildLeadNote(ctx, parentLeadID)
		if err != nil {
			c.log.Warn("crm: child lead lookup failed", "leadId", parentLeadID, "attempt", attempt+1, "error", err)
		} else if childID != 0 {
			return childID, nil
		}

		if attempt < childLeadPolicy.MaxAttempts-1 {
			if err := childLeadPolicy.Wait(ctx, attempt); err != nil {
				return 0, err
			}
		}
	}
	return 0, nil
}

func (c *Client) findChildLeadNote(ctx context.Context, leadID int64) (int64, error) {
	var resp struct {
		Embedded struct {
			Notes []struct {
				ID        int64  `json:"id"`
				NoteType  string `json:"note_type"`
				CreatedAt int64  `json:"created_at"`
				Params    struct {
					LeadID int64 `json:"lead_id"`
				} `json:"params"`
			} `json:"notes"`
		} `json:"_embedded"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/leads/%d/notes", leadID), nil, &resp); err != nil {
		return 0, err
	}

	var latestCreatedAt int64
	var childID int64
	for _, note := range resp.Embedded.Notes {
		if note.NoteType != "lead_auto_created" || note.Params.LeadID == 0 {
			continue
		}
		if note.CreatedAt >= latestCreatedAt {
			latestCreatedAt = note.CreatedAt
			childID = note.Params.LeadID
		}
	}
	return childID, nil
}

// AppendNote appends a text note to a lead. With a non-empty tag the note is
// recorded as a service message attributed to that external system.
func (c *Client) AppendNote(ctx context.Context, leadID int64, text, tag string) error {
	params := map[string]string{"text": text}
	noteType := "common"
	if tag != "" {
		noteType = "service_message"
		params["service"] = tag
	}

	payload := []map[string]interface{}{{
		"note_type": noteType,
		"params":    params,
	}}

	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/leads/%d/notes", leadID), payload, nil); err != nil {
		return apperr.Remote("failed to append note", err).WithOp("crm.AppendNote")
	}
	return nil
}

// PatchLeadPrice updates the lead's price field.
func (c *Client) PatchLeadPrice(ctx context.Context, leadID int64, price int64) error {
	payload := []map[string]interface{}{{
		"id":    leadID,
		"price": price,
	}}
	if err := c.do(ctx, http.MethodPatch, "/leads", payload, nil); err != nil {
		return apperr.Remote("failed to patch lead price", err).WithOp("crm.PatchLeadPrice")
	}
	return nil
}

// PatchLeadName updates the lead's display name.
func (c *Client) PatchLeadName(ctx context.Context, leadID int64, name string) error {
	payload := []map[string]interface{}{{
		"id":   leadID,
		"name": name,
	}}
	if err := c.do(ctx, http.MethodPatch, "/leads", payload, nil); err != nil {
		return apperr.Remote("failed to patch lead name", err).WithOp("crm.PatchLeadName")
	}
	return nil
}

// PatchLeadStatus moves the lead to the given pipeline status.
func (c *Client) PatchLeadStatus(ctx context.Context, leadID int64, statusID int) error {
	payload := map[string]interface{}{"status_id": statusID}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/leads/%d", leadID), payload, nil); err != nil {
		return apperr.Remote("failed to patch lead status", err).WithOp("crm.PatchLeadStatus")
	}
	return nil
}

// ListCatalogElements returns one page of the CRM's product catalog.
// An empty slice signals the end of the collection.
func (c *Client) ListCatalogElements(ctx context.Context, page int) ([]CatalogElement, error) {
	var resp struct {
		Embedded struct {
			Elements []CatalogElement `json:"elements"`
		} `json:"_embedded"`
	}
	path := fmt.Sprintf("/catalogs/%s/elements?page=%d&limit=%d", c.cfg.GetCRMCatalogID(), page, catalogPageLimit)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, apperr.Remote("failed to list catalog elements", err).WithOp("crm.ListCatalogElements")
	}
	return resp.Embedded.Elements, nil
}

// PatchCatalogElementPrice writes a new value into the catalog element's
// price custom field.
func (c *Client) PatchCatalogElementPrice(ctx context.Context, elementID int64, price string) error {
	payload := []map[string]interface{}{{
		"id": elementID,
		"custom_fields_values": []map[string]interface{}{{
			"field_id": c.cfg.GetCRMPriceFieldID(),
			"values":   []map[string]interface{}{{"value": price}},
		}},
	}}
	path := fmt.Sprintf("/catalogs/%s/elements", c.cfg.GetCRMCatalogID())
	if err := c.do(ctx, http.MethodPatch, path, payload, nil); err != nil {
		return apperr.Remote("failed to patch catalog element price", err).WithOp("crm.PatchCatalogElementPrice")
	}
	return nil
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
		return fmt.Errorf("crm api %s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(out)
}
