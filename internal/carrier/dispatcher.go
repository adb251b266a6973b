package carrier

import (
	"context"
	"strings"
	"time"

	"fulfillment_backend/internal/fulfillment/intent"
	"fulfillment_backend/platform/apperr"
	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/logger"
	"fulfillment_backend/platform/retry"
)

// acceptPolicy governs claim acceptance: the carrier prices the claim
// asynchronously, so ready_for_approval takes a few seconds to appear.
var acceptPolicy = retry.Fixed(5, 2*time.Second)

// defaultPrepTime is the kitchen lead time assumed when the lead carries no
// prep-time field.
const defaultPrepTime = 15 * time.Minute

// Address is the customer address split into the carrier's route-point
// fields.
type Address struct {
	Street    string
	Building  string
	Porch     string
	Floor     string
	Apartment string
}

// ParseAddress splits a free-text address on commas. Positions past the
// building are optional: "street, building[, porch[, floor[, apartment]]]".
func ParseAddress(raw string) Address {
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	addr := Address{}
	if len(parts) > 0 {
		addr.Street = parts[0]
	}
	if len(parts) > 1 {
		addr.Building = parts[1]
	}
	if len(parts) > 2 {
		addr.Porch = parts[2]
	}
	if len(parts) > 3 {
		addr.Floor = parts[3]
	}
	if len(parts) > 4 {
		addr.Apartment = parts[4]
	}
	return addr
}

// Dispatcher creates and accepts delivery claims for normalized orders.
type Dispatcher struct {
	client *Client
	cfg    config.CarrierConfig
	log    *logger.Logger
	now    func() time.Time
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(client *Client, cfg config.CarrierConfig, log *logger.Logger) *Dispatcher {
	return &Dispatcher{client: client, cfg: cfg, log: log, now: time.Now}
}

// Dispatch creates a claim for the order and drives it to accepted.
func (d *Dispatcher) Dispatch(ctx context.Context, order *intent.OrderIntent) (Claim, error) {
	payload := d.buildClaim(order)

	claim, err := d.client.CreateClaim(ctx, payload)
	if err != nil {
		return Claim{}, err
	}
	d.log.Info("carrier: claim created", "claimId", claim.ID, "leadId", order.LeadID)

	accepted, err := d.ensureAccepted(ctx, claim)
	if err != nil {
		return claim, err
	}
	return accepted, nil
}

// ensureAccepted polls the claim until it is priced, then accepts it at the
// observed version. A claim already in courier search was accepted out of
// band; every other state keeps polling.
func (d *Dispatcher) ensureAccepted(ctx context.Context, claim Claim) (Claim, error) {
	for attempt := 0; attempt < acceptPolicy.MaxAttempts; attempt++ {
		current, err := d.client.GetClaim(ctx, claim.ID)
		if err != nil {
			d.log.Warn("carrier: claim poll failed", "claimId", claim.ID, "attempt", attempt+1, "error", err)
		} else {
			switch current.Status {
			case StatusReadyForApproval:
				accepted, err := d.client.AcceptClaim(ctx, claim.ID, current.Version)
				if err != nil {
					d.log.Warn("carrier: claim accept failed", "claimId", claim.ID, "error", err)
				} else {
					return accepted, nil
				}
			case StatusPerformerLookup, StatusPerformerFound:
				// Accepted out of band.
				return current, nil
			default:
				// Still pricing, keep polling.
			}
		}

		if attempt < acceptPolicy.MaxAttempts-1 {
			if err := acceptPolicy.Wait(ctx, attempt); err != nil {
				return claim, err
			}
		}
	}
	return claim, apperr.Timeout("claim was not accepted in time").WithOp("carrier.ensureAccepted")
}

// buildClaim assembles the claim create payload: origin route point from
// configuration, destination from the parsed customer address, and a goods
// manifest filtered through the condiment denylist.
func (d *Dispatcher) buildClaim(order *intent.OrderIntent) map[string]interface{} {
	addr := ParseAddress(order.RawAddress)

	items := make([]map[string]interface{}, 0, len(order.Items))
	for _, item := range order.Items {
		if d.denylisted(item.Name) {
			continue
		}
		items = append(items, map[string]interface{}{
			"title":         item.Name,
			"quantity":      item.Quantity,
			"cost_value":    item.UnitPrice.String(),
			"cost_currency": "KZT",
			"pickup_point":  1,
			"droppof_point": 2,
		})
	}

	destination := map[string]interface{}{
		"fullname": order.RawAddress,
		"comment":  order.Comment,
	}
	if addr.Street != "" {
		destination["street"] = addr.Street
	}
	if addr.Building != "" {
		destination["building"] = addr.Building
	}
	if addr.Porch != "" {
		destination["porch"] = addr.Porch
	}
	if addr.Floor != "" {
		destination["sfloor"] = addr.Floor
	}
	if addr.Apartment != "" {
		destination["sflat"] = addr.Apartment
	}

	prep := order.PrepTime
	if prep <= 0 {
		prep = defaultPrepTime
	}
	due := d.now().Add(prep).Format(time.RFC3339)

	// The lead can carry a branch-specific courier line; the configured
	// origin phone is the fallback.
	originPhone := order.CourierPhone
	if originPhone == "" {
		originPhone = d.cfg.GetCarrierOriginContactPhone()
	}

	return map[string]interface{}{
		"items": items,
		"route_points": []map[string]interface{}{
			{
				"point_id":          1,
				"visit_order":       1,
				"type":              "source",
				"skip_confirmation": true,
				"address": map[string]interface{}{
					"fullname": d.cfg.GetCarrierOriginFullname(),
					"country":  d.cfg.GetCarrierOriginCountry(),
					"city":     d.cfg.GetCarrierOriginCity(),
					"street":   d.cfg.GetCarrierOriginStreet(),
					"building": d.cfg.GetCarrierOriginBuilding(),
					"comment":  d.cfg.GetCarrierOriginComment(),
				},
				"contact": map[string]interface{}{
					"name":  d.cfg.GetCarrierOriginContactName(),
					"phone": originPhone,
				},
			},
			{
				"point_id":          2,
				"visit_order":       2,
				"type":              "destination",
				"skip_confirmation": true,
				"address":           destination,
				"contact": map[string]interface{}{
					"name":  order.CustomerName,
					"phone": order.CustomerPhone,
				},
			},
		},
		"emergency_contact": map[string]interface{}{
			"name":  d.cfg.GetCarrierOriginContactName(),
			"phone": originPhone,
		},
		"client_requirements": map[string]interface{}{
			"taxi_class":    "courier",
			"cargo_options": []string{"thermobag"},
		},
		"due":                due,
		"comment":            order.Comment,
		"skip_door_to_door":  false,
		"skip_client_notify": false,
	}
}

func (d *Dispatcher) denylisted(name string) bool {
	for _, blocked := range d.cfg.GetCarrierManifestDenylist() {
		if strings.EqualFold(strings.TrimSpace(name), blocked) {
			return true
		}
	}
	return false
}
