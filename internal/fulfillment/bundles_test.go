package fulfillment

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadBundleTableEmbedded(t *testing.T) {
	table, err := LoadBundleTable("")
	if err != nil {
		t.Fatalf("LoadBundleTable: %v", err)
	}
	if table.Size() != 8 {
		t.Fatalf("embedded combos = %d, want 8", table.Size())
	}

	components := table.Components("1e2b0ce9-2c7a-4142-ab25-feb1bd703852")
	if len(components) != 1 {
		t.Fatalf("components = %d, want 1", len(components))
	}
	if components[0].ProductID != "9cf20e58-bea5-4348-93ca-cf38a8be6c15" || components[0].Quantity != 1 {
		t.Fatalf("component = %+v", components[0])
	}

	sized := table.Components("0b4a0d4c-1990-45f6-9dfd-e5db528663db")
	if len(sized) != 3 {
		t.Fatalf("components = %d, want 3", len(sized))
	}
	if sized[0].Quantity != 2 {
		t.Fatalf("first component quantity = %d, want 2", sized[0].Quantity)
	}
	if sized[1].SizeID != "70109d8e-3310-452b-b397-cab328ac4e70" {
		t.Fatalf("component size = %q, want pinned size", sized[1].SizeID)
	}

	if got := table.Components("not-a-combo"); got != nil {
		t.Fatalf("plain product expanded to %v", got)
	}
}

func TestLoadBundleTableExternalOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundles.yaml")
	content := `bundles:
  "combo-x":
    - product_id: "item-a"
    - product_id: "item-b"
      quantity: 3
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	table, err := LoadBundleTable(path)
	if err != nil {
		t.Fatalf("LoadBundleTable: %v", err)
	}
	if table.Size() != 1 {
		t.Fatalf("Size = %d, want external table to replace embedded one", table.Size())
	}

	components := table.Components("combo-x")
	if len(components) != 2 {
		t.Fatalf("components = %d", len(components))
	}
	if components[0].Quantity != 1 {
		t.Fatalf("quantity default = %d, want 1", components[0].Quantity)
	}
	if components[1].Quantity != 3 {
		t.Fatalf("quantity = %d", components[1].Quantity)
	}
}

func TestLoadBundleTableMissingFile(t *testing.T) {
	if _, err := LoadBundleTable("/nonexistent/bundles.yaml"); err == nil {
		t.Fatal("expected error for missing external table")
	}
}
