package pos

import (
	"github.com/shopspring/decimal"
)

// Product is one sellable menu position, keyed by product and size.
// PriceOwnerID is the organization whose price list the entry came from.
type Product struct {
	ProductID    string
	SizeID       string
	Name         string
	Price        decimal.Decimal
	PriceOwnerID string
}

// menuResponse mirrors the external menu document shape.
type menuResponse struct {
	ItemCategories []struct {
		Name  string `json:"name"`
		Items []struct {
			ItemID    string `json:"itemId"`
			Name      string `json:"name"`
			ItemSizes []struct {
				SizeID string `json:"sizeId"`
				Prices []struct {
					Price          decimal.Decimal `json:"price"`
					OrganizationID string          `json:"organizationId"`
				} `json:"prices"`
			} `json:"itemSizes"`
		} `json:"items"`
	} `json:"itemCategories"`
}

// SubmitResult is the outcome of an order submission.
type SubmitResult struct {
	OrderID string
}

type orderCreateResponse struct {
	OrderInfo struct {
		ID             string `json:"id"`
		CreationStatus string `json:"creationStatus"`
	} `json:"orderInfo"`
}

type orderStatusResponse struct {
	Orders []struct {
		ID             string `json:"id"`
		CreationStatus string `json:"creationStatus"`
		ErrorInfo      *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"errorInfo"`
	} `json:"orders"`
}

type terminalGroupsAliveResponse struct {
	IsAliveStatus []struct {
		TerminalGroupID string `json:"terminalGroupId"`
		IsAlive         bool   `json:"isAlive"`
	} `json:"isAliveStatus"`
}
