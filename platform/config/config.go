// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// CRMConfig provides settings for the CRM collaborator client.
type CRMConfig interface {
	GetCRMBaseURL() string
	GetCRMAccessToken() string
	GetCRMCatalogID() string
	GetCRMClosedStatusID() int
	GetCRMPriceFieldID() int64
	GetCRMProductFieldID() int64
	GetCRMSizeFieldID() int64
	GetCRMNoteRatePerSecond() float64
}

// LeadFieldConfig provides the CRM custom-field labels the normalizer reads.
type LeadFieldConfig interface {
	GetLeadFieldCustomerName() string
	GetLeadFieldCustomerPhone() string
	GetLeadFieldCourierPhone() string
	GetLeadFieldAddress() string
	GetLeadFieldComment() string
	GetLeadFieldBranch() string
	GetLeadFieldSource() string
	GetLeadFieldPaymentMethod() string
	GetLeadFieldPrepTime() string
}

// POSConfig provides settings for the POS collaborator client.
type POSConfig interface {
	GetPOSBaseURL() string
	GetPOSMenuBaseURL() string
	GetPOSAPILogin() string
	GetPOSOrganizationID() string
	GetPOSTerminalGroupID() string
	GetPOSExternalMenuID() string
	GetPOSOrderTypeID() string
	GetPOSPaymentTypeCashID() string
	GetPOSPaymentTypeCardID() string
}

// CarrierConfig provides settings for the last-mile carrier client.
type CarrierConfig interface {
	GetCarrierBaseURL() string
	GetCarrierToken() string
	GetCarrierOriginFullname() string
	GetCarrierOriginCountry() string
	GetCarrierOriginCity() string
	GetCarrierOriginStreet() string
	GetCarrierOriginBuilding() string
	GetCarrierOriginComment() string
	GetCarrierOriginContactName() string
	GetCarrierOriginContactPhone() string
	GetCarrierManifestDenylist() []string
	GetCarrierPortalURL() string
}

// SchedulerConfig provides settings for the asynq background job queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// BundleConfig provides settings for the combo bundle table.
type BundleConfig interface {
	GetBundleTablePath() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env      string
	HTTPAddr string

	CORSAllowAll bool
	CORSOrigins  []string

	CRMBaseURL           string
	CRMAccessToken       string
	CRMCatalogID         string
	CRMClosedStatusID    int
	CRMPriceFieldID      int64
	CRMProductFieldID    int64
	CRMSizeFieldID       int64
	CRMNoteRatePerSecond float64

	LeadFieldCustomerName  string
	LeadFieldCustomerPhone string
	LeadFieldCourierPhone  string
	LeadFieldAddress       string
	LeadFieldComment       string
	LeadFieldBranch        string
	LeadFieldSource        string
	LeadFieldPaymentMethod string
	LeadFieldPrepTime      string

	POSBaseURL         string
	POSMenuBaseURL     string
	POSAPILogin        string
	POSOrganizationID  string
	POSTerminalGroupID string
	POSExternalMenuID  string
	POSOrderTypeID     string
	POSPaymentCashID   string
	POSPaymentCardID   string

	CarrierBaseURL           string
	CarrierToken             string
	CarrierOriginFullname    string
	CarrierOriginCountry     string
	CarrierOriginCity        string
	CarrierOriginStreet      string
	CarrierOriginBuilding    string
	CarrierOriginComment     string
	CarrierOriginContactName  string
	CarrierOriginContactPhone string
	CarrierManifestDenylist   []string
	CarrierPortalURL         string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	BundleTablePath string

	HTTPClientTimeout time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// CRMConfig implementation
func (c *Config) GetCRMBaseURL() string           { return c.CRMBaseURL }
func (c *Config) GetCRMAccessToken() string       { return c.CRMAccessToken }
func (c *Config) GetCRMCatalogID() string         { return c.CRMCatalogID }
func (c *Config) GetCRMClosedStatusID() int       { return c.CRMClosedStatusID }
func (c *Config) GetCRMPriceFieldID() int64       { return c.CRMPriceFieldID }
func (c *Config) GetCRMProductFieldID() int64     { return c.CRMProductFieldID }
func (c *Config) GetCRMSizeFieldID() int64        { return c.CRMSizeFieldID }
func (c *Config) GetCRMNoteRatePerSecond() float64 { return c.CRMNoteRatePerSecond }

// LeadFieldConfig implementation
func (c *Config) GetLeadFieldCustomerName() string  { return c.LeadFieldCustomerName }
func (c *Config) GetLeadFieldCustomerPhone() string { return c.LeadFieldCustomerPhone }
func (c *Config) GetLeadFieldCourierPhone() string  { return c.LeadFieldCourierPhone }
func (c *Config) GetLeadFieldAddress() string       { return c.LeadFieldAddress }
func (c *Config) GetLeadFieldComment() string       { return c.LeadFieldComment }
func (c *Config) GetLeadFieldBranch() string        { return c.LeadFieldBranch }
func (c *Config) GetLeadFieldSource() string        { return c.LeadFieldSource }
func (c *Config) GetLeadFieldPaymentMethod() string { return c.LeadFieldPaymentMethod }
func (c *Config) GetLeadFieldPrepTime() string      { return c.LeadFieldPrepTime }

// POSConfig implementation
func (c *Config) GetPOSBaseURL() string         { return c.POSBaseURL }
func (c *Config) GetPOSMenuBaseURL() string     { return c.POSMenuBaseURL }
func (c *Config) GetPOSAPILogin() string        { return c.POSAPILogin }
func (c *Config) GetPOSOrganizationID() string  { return c.POSOrganizationID }
func (c *Config) GetPOSTerminalGroupID() string { return c.POSTerminalGroupID }
func (c *Config) GetPOSExternalMenuID() string  { return c.POSExternalMenuID }
func (c *Config) GetPOSOrderTypeID() string     { return c.POSOrderTypeID }
func (c *Config) GetPOSPaymentTypeCashID() string { return c.POSPaymentCashID }
func (c *Config) GetPOSPaymentTypeCardID() string { return c.POSPaymentCardID }

// CarrierConfig implementation
func (c *Config) GetCarrierBaseURL() string           { return c.CarrierBaseURL }
func (c *Config) GetCarrierToken() string             { return c.CarrierToken }
func (c *Config) GetCarrierOriginFullname() string    { return c.CarrierOriginFullname }
func (c *Config) GetCarrierOriginCountry() string     { return c.CarrierOriginCountry }
func (c *Config) GetCarrierOriginCity() string        { return c.CarrierOriginCity }
func (c *Config) GetCarrierOriginStreet() string      { return c.CarrierOriginStreet }
func (c *Config) GetCarrierOriginBuilding() string    { return c.CarrierOriginBuilding }
func (c *Config) GetCarrierOriginComment() string     { return c.CarrierOriginComment }
func (c *Config) GetCarrierOriginContactName() string  { return c.CarrierOriginContactName }
func (c *Config) GetCarrierOriginContactPhone() string { return c.CarrierOriginContactPhone }
func (c *Config) GetCarrierManifestDenylist() []string {
	return c.CarrierManifestDenylist
}
func (c *Config) GetCarrierPortalURL() string { return c.CarrierPortalURL }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// BundleConfig implementation
func (c *Config) GetBundleTablePath() string { return c.BundleTablePath }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		CORSAllowAll: strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true"),
		CORSOrigins:  splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200")),

		CRMBaseURL:           getEnv("CRM_BASE_URL", ""),
		CRMAccessToken:       getEnv("CRM_ACCESS_TOKEN", ""),
		CRMCatalogID:         getEnv("CRM_CATALOG_ID", ""),
		CRMClosedStatusID:    mustInt(getEnv("CRM_CLOSED_STATUS_ID", "142")),
		CRMPriceFieldID:      mustInt64(getEnv("CRM_PRICE_FIELD_ID", "419879")),
		CRMProductFieldID:    mustInt64(getEnv("CRM_PRODUCT_FIELD_ID", "452745")),
		CRMSizeFieldID:       mustInt64(getEnv("CRM_SIZE_FIELD_ID", "452747")),
		CRMNoteRatePerSecond: mustFloat(getEnv("CRM_NOTE_RATE_PER_SECOND", "5")),

		LeadFieldCustomerName:  getEnv("LEAD_FIELD_CUSTOMER_NAME", "Customer name"),
		LeadFieldCustomerPhone: getEnv("LEAD_FIELD_CUSTOMER_PHONE", "Customer phone"),
		LeadFieldCourierPhone:  getEnv("LEAD_FIELD_COURIER_PHONE", "Courier phone"),
		LeadFieldAddress:       getEnv("LEAD_FIELD_ADDRESS", "Delivery address"),
		LeadFieldComment:       getEnv("LEAD_FIELD_COMMENT", "Order comment"),
		LeadFieldBranch:        getEnv("LEAD_FIELD_BRANCH", "Branch"),
		LeadFieldSource:        getEnv("LEAD_FIELD_SOURCE", "Source"),
		LeadFieldPaymentMethod: getEnv("LEAD_FIELD_PAYMENT_METHOD", "Payment method"),
		LeadFieldPrepTime:      getEnv("LEAD_FIELD_PREP_TIME", "Prep time (min)"),

		POSBaseURL:         getEnv("POS_BASE_URL", ""),
		POSMenuBaseURL:     getEnv("POS_MENU_BASE_URL", ""),
		POSAPILogin:        getEnv("POS_API_LOGIN", ""),
		POSOrganizationID:  getEnv("POS_ORGANIZATION_ID", ""),
		POSTerminalGroupID: getEnv("POS_TERMINAL_GROUP_ID", ""),
		POSExternalMenuID:  getEnv("POS_EXTERNAL_MENU_ID", ""),
		POSOrderTypeID:     getEnv("POS_ORDER_TYPE_ID", ""),
		POSPaymentCashID:   getEnv("POS_PAYMENT_TYPE_CASH_ID", ""),
		POSPaymentCardID:   getEnv("POS_PAYMENT_TYPE_CARD_ID", ""),

		CarrierBaseURL:           getEnv("CARRIER_BASE_URL", ""),
		CarrierToken:             getEnv("CARRIER_TOKEN", ""),
		CarrierOriginFullname:    getEnv("CARRIER_ORIGIN_FULLNAME", ""),
		CarrierOriginCountry:     getEnv("CARRIER_ORIGIN_COUNTRY", ""),
		CarrierOriginCity:        getEnv("CARRIER_ORIGIN_CITY", ""),
		CarrierOriginStreet:      getEnv("CARRIER_ORIGIN_STREET", ""),
		CarrierOriginBuilding:    getEnv("CARRIER_ORIGIN_BUILDING", ""),
		CarrierOriginComment:     getEnv("CARRIER_ORIGIN_COMMENT", ""),
		CarrierOriginContactName:  getEnv("CARRIER_ORIGIN_CONTACT_NAME", ""),
		CarrierOriginContactPhone: getEnv("CARRIER_ORIGIN_CONTACT_PHONE", ""),
		CarrierManifestDenylist:  splitCSV(getEnv("CARRIER_MANIFEST_DENYLIST", "Ketchup,Cheese sauce,Hot sauce,Jalapeno,Bread 4pcs")),
		CarrierPortalURL:         getEnv("CARRIER_PORTAL_URL", ""),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "fulfillment"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		BundleTablePath: getEnv("BUNDLE_TABLE_PATH", ""),

		HTTPClientTimeout: mustDuration(getEnv("HTTP_CLIENT_TIMEOUT", "30s")),
	}

	if cfg.CRMBaseURL == "" || cfg.CRMAccessToken == "" {
		return nil, fmt.Errorf("CRM_BASE_URL and CRM_ACCESS_TOKEN are required")
	}
	if cfg.POSBaseURL == "" || cfg.POSAPILogin == "" {
		return nil, fmt.Errorf("POS_BASE_URL and POS_API_LOGIN are required")
	}
	if cfg.POSMenuBaseURL == "" {
		cfg.POSMenuBaseURL = cfg.POSBaseURL
	}
	if cfg.CarrierBaseURL == "" || cfg.CarrierToken == "" {
		return nil, fmt.Errorf("CARRIER_BASE_URL and CARRIER_TOKEN are required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}
