package pos

import (
	"context"
	"sync/atomic"

	"fulfillment_backend/platform/apperr"
	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/logger"
)

// Catalog is an in-memory index of the POS external menu keyed by
// (productID, sizeID). Reads are lock-free; Reload swaps in a freshly built
// index atomically so concurrent lookups always see a consistent snapshot.
type Catalog struct {
	client *Client
	cfg    config.POSConfig
	log    *logger.Logger

	index atomic.Pointer[catalogIndex]
}

type catalogIndex struct {
	bySize    map[string]Product
	byProduct map[string]Product
}

func catalogKey(productID, sizeID string) string {
	return productID + "\x00" + sizeID
}

// NewCatalog creates an empty catalog. Call Reload before serving lookups.
func NewCatalog(client *Client, cfg config.POSConfig, log *logger.Logger) *Catalog {
	c := &Catalog{client: client, cfg: cfg, log: log}
	c.index.Store(&catalogIndex{
		bySize:    map[string]Product{},
		byProduct: map[string]Product{},
	})
	return c
}

// Reload fetches the external menu and rebuilds the index. The previous
// snapshot stays live until the new one is fully built.
func (c *Catalog) Reload(ctx context.Context) error {
	payload := map[string]interface{}{
		"externalMenuId":  c.cfg.GetPOSExternalMenuID(),
		"organizationIds": []string{c.cfg.GetPOSOrganizationID()},
	}

	var menu menuResponse
	if err := c.client.doMenu(ctx, "/api/2/menu/by_id", payload, &menu); err != nil {
		return apperr.Remote("failed to fetch external menu", err).WithOp("pos.Catalog.Reload")
	}

	next := &catalogIndex{
		bySize:    make(map[string]Product),
		byProduct: make(map[string]Product),
	}
	for _, category := range menu.ItemCategories {
		for _, item := range category.Items {
			for _, size := range item.ItemSizes {
				if len(size.Prices) == 0 {
					continue
				}
				owner := size.Prices[0].OrganizationID
				if owner == "" {
					owner = c.cfg.GetPOSOrganizationID()
				}
				product := Product{
					ProductID:    item.ItemID,
					SizeID:       size.SizeID,
					Name:         item.Name,
					Price:        size.Prices[0].Price,
					PriceOwnerID: owner,
				}
				next.bySize[catalogKey(item.ItemID, size.SizeID)] = product
				if _, seen := next.byProduct[item.ItemID]; !seen {
					next.byProduct[item.ItemID] = product
				}
			}
		}
	}

	c.index.Store(next)
	c.log.Info("pos: catalog reloaded", "products", len(next.byProduct), "positions", len(next.bySize))
	return nil
}

// Lookup resolves a product by id and size. With an empty size id the
// product's first listed size is used.
func (c *Catalog) Lookup(productID, sizeID string) (Product, bool) {
	idx := c.index.Load()
	if sizeID != "" {
		product, ok := idx.bySize[catalogKey(productID, sizeID)]
		return product, ok
	}
	product, ok := idx.byProduct[productID]
	return product, ok
}

// Size returns the number of indexed (product, size) positions.
func (c *Catalog) Size() int {
	return len(c.index.Load().bySize)
}
