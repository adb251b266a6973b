package config

import "testing"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CRM_BASE_URL", "https://crm.example")
	t.Setenv("CRM_ACCESS_TOKEN", "tok")
	t.Setenv("POS_BASE_URL", "https://pos.example")
	t.Setenv("POS_API_LOGIN", "login")
	t.Setenv("CARRIER_BASE_URL", "https://carrier.example")
	t.Setenv("CARRIER_TOKEN", "carrier-tok")
}

func TestLoadParsesFieldIDsAsInt64(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CRM_PRODUCT_FIELD_ID", "4527450001234")
	t.Setenv("CRM_SIZE_FIELD_ID", "452747")
	t.Setenv("CRM_PRICE_FIELD_ID", "419879")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.GetCRMProductFieldID(); got != 4527450001234 {
		t.Fatalf("product field id = %d, want 4527450001234", got)
	}
	if got := cfg.GetCRMSizeFieldID(); got != 452747 {
		t.Fatalf("size field id = %d", got)
	}
	if got := cfg.GetCRMPriceFieldID(); got != 419879 {
		t.Fatalf("price field id = %d", got)
	}
}

func TestLoadRejectsMissingCRMCredentials(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CRM_ACCESS_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when CRM credentials are missing")
	}
}
