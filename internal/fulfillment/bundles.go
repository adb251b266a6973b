package fulfillment

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed bundles.yaml
var embeddedBundles []byte

// BundleComponent is one POS item a combo product expands into.
type BundleComponent struct {
	ProductID string `yaml:"product_id"`
	SizeID    string `yaml:"size_id"`
	Quantity  int    `yaml:"quantity"`
}

// BundleTable maps combo product ids to their components. Components are
// submitted zero-priced; the combo parent line carries the price.
type BundleTable struct {
	bundles map[string][]BundleComponent
}

type bundleFile struct {
	Bundles map[string][]BundleComponent `yaml:"bundles"`
}

// LoadBundleTable reads the bundle table from path, or from the embedded
// default when path is empty.
func LoadBundleTable(path string) (*BundleTable, error) {
	data := embeddedBundles
	if path != "" {
		external, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read bundle table: %w", err)
		}
		data = external
	}

	var file bundleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse bundle table: %w", err)
	}

	table := &BundleTable{bundles: make(map[string][]BundleComponent, len(file.Bundles))}
	for productID, components := range file.Bundles {
		for i := range components {
			if components[i].Quantity <= 0 {
				components[i].Quantity = 1
			}
		}
		table.bundles[productID] = components
	}
	return table, nil
}

// Components returns the expansion for a combo product id, or nil for a
// plain product.
func (t *BundleTable) Components(productID string) []BundleComponent {
	return t.bundles[productID]
}

// Size returns the number of combo products in the table.
func (t *BundleTable) Size() int {
	return len(t.bundles)
}
