// Package catalogsync reconciles the CRM product catalog against the POS
// menu so lead prices never drift from what the kitchen actually charges.
package catalogsync

import (
	"context"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fulfillment_backend/internal/crm"
	"fulfillment_backend/internal/pos"
	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/logger"
)

// patchConcurrency bounds parallel CRM writes within one page.
const patchConcurrency = 8

// ElementSource provides the CRM catalog. Satisfied by *crm.Client.
type ElementSource interface {
	ListCatalogElements(ctx context.Context, page int) ([]crm.CatalogElement, error)
	PatchCatalogElementPrice(ctx context.Context, elementID int64, price string) error
}

// CatalogLookup resolves POS menu products. Satisfied by *pos.Catalog.
type CatalogLookup interface {
	Lookup(productID, sizeID string) (pos.Product, bool)
}

// Result summarizes one reconciliation pass.
type Result struct {
	Checked int64 `json:"checked"`
	Updated int64 `json:"updated"`
	Missing int64 `json:"missing"`
}

// Service walks the CRM catalog and writes back POS prices where they
// differ.
type Service struct {
	elements ElementSource
	catalog  CatalogLookup
	cfg      config.CRMConfig
	log      *logger.Logger
}

// New creates the service.
func New(elements ElementSource, catalog CatalogLookup, cfg config.CRMConfig, log *logger.Logger) *Service {
	return &Service{elements: elements, catalog: catalog, cfg: cfg, log: log}
}

// SyncPrices reconciles every CRM catalog element against the POS menu.
// Elements without a product reference or missing from the menu are counted
// but left untouched.
func (s *Service) SyncPrices(ctx context.Context) (Result, error) {
	var checked, updated, missing atomic.Int64

	for page := 1; ; page++ {
		elements, err := s.elements.ListCatalogElements(ctx, page)
		if err != nil {
			return Result{}, err
		}
		if len(elements) == 0 {
			break
		}

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(patchConcurrency)

		for _, element := range elements {
			element := element
			group.Go(func() error {
				checked.Add(1)

				productID := element.FieldByID(s.cfg.GetCRMProductFieldID())
				if productID == "" {
					missing.Add(1)
					return nil
				}
				sizeID := element.FieldByID(s.cfg.GetCRMSizeFieldID())

				product, ok := s.catalog.Lookup(productID, sizeID)
				if !ok {
					s.log.Warn("catalogsync: element not on the menu",
						"elementId", element.ID, "productId", productID)
					missing.Add(1)
					return nil
				}

				current := element.FieldByID(s.cfg.GetCRMPriceFieldID())
				target := product.Price.String()
				if currentPrice, err := decimal.NewFromString(current); err == nil && currentPrice.Equal(product.Price) {
					return nil
				}

				if err := s.elements.PatchCatalogElementPrice(groupCtx, element.ID, target); err != nil {
					return err
				}
				updated.Add(1)
				s.log.Info("catalogsync: price updated",
					"elementId", element.ID, "from", current, "to", target)
				return nil
			})
		}

		if err := group.Wait(); err != nil {
			return Result{}, err
		}
	}

	result := Result{
		Checked: checked.Load(),
		Updated: updated.Load(),
		Missing: missing.Load(),
	}
	s.log.Info("catalogsync: reconciliation finished",
		"checked", result.Checked, "updated", result.Updated, "missing", result.Missing)
	return result, nil
}
