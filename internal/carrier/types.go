package carrier

// Claim is the carrier's view of a delivery claim after parsing.
type Claim struct {
	ID      string
	Status  Status
	Version int
}

// CourierInfo is the courier contact detail fetched once per claim.
// ETAMinutes is zero when the carrier reports no due time.
type CourierInfo struct {
	Name       string
	Phone      string
	Ext        string
	ETAMinutes int
}

type claimResponse struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Version        int    `json:"version"`
	Due            string `json:"due"`
	CurrentPointID int64  `json:"current_point_id"`
	Performer *struct {
		Name string `json:"name"`
	} `json:"performer_info"`
}

func (r claimResponse) toClaim() Claim {
	return Claim{
		ID:      r.ID,
		Status:  ParseStatus(r.Status),
		Version: r.Version,
	}
}

type trackingLinksResponse struct {
	RoutePoints []struct {
		SharingLink string `json:"sharing_link"`
	} `json:"route_points"`
}

type voiceForwardingResponse struct {
	Phone string `json:"phone"`
	Ext   string `json:"ext"`
}
