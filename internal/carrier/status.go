package carrier

// Status is the carrier claim lifecycle state. Raw strings from the carrier
// API are parsed into this enum at the ingress boundary; everything past the
// client works with typed values only.
type Status int

const (
	StatusUnknown Status = iota
	StatusNew
	StatusEstimating
	StatusReadyForApproval
	StatusAccepted
	StatusPerformerLookup
	StatusPerformerDraft
	StatusPerformerFound
	StatusPickupArrived
	StatusPickuped
	StatusDelivering
	StatusDeliveredFinish
	StatusCancelledByTaxi
	StatusReturning
	StatusReturnArrived
	StatusReturned
	StatusReturnedFinish
)

// Family groups statuses by how the tracker reacts to them.
type Family int

const (
	// FamilyObserve statuses only advance the claim; the tracker keeps polling.
	FamilyObserve Family = iota
	// FamilyCourier statuses mean a courier is assigned; courier details are
	// fetched once when the claim first enters this family.
	FamilyCourier
	// FamilySuccess ends tracking with a delivered order.
	FamilySuccess
	// FamilyFailure ends tracking with the goods coming back.
	FamilyFailure
	// FamilyAlert statuses are reported to the lead but tracking continues.
	FamilyAlert
	// FamilyUnknown covers statuses this build does not recognize.
	FamilyUnknown
)

var statusNames = map[Status]string{
	StatusNew:              "new",
	StatusEstimating:       "estimating",
	StatusReadyForApproval: "ready_for_approval",
	StatusAccepted:         "accepted",
	StatusPerformerLookup:  "performer_lookup",
	StatusPerformerDraft:   "performer_draft",
	StatusPerformerFound:   "performer_found",
	StatusPickupArrived:    "pickup_arrived",
	StatusPickuped:         "pickuped",
	StatusDelivering:       "delivering",
	StatusDeliveredFinish:  "delivered_finish",
	StatusCancelledByTaxi:  "cancelled_by_taxi",
	StatusReturning:        "returning",
	StatusReturnArrived:    "return_arrived",
	StatusReturned:         "returned",
	StatusReturnedFinish:   "returned_finish",
}

var statusValues = func() map[string]Status {
	m := make(map[string]Status, len(statusNames))
	for status, name := range statusNames {
		m[name] = status
	}
	return m
}()

// ParseStatus maps a raw carrier status string to the enum.
// Unrecognized strings parse to StatusUnknown.
func ParseStatus(raw string) Status {
	if status, ok := statusValues[raw]; ok {
		return status
	}
	return StatusUnknown
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Family classifies the status for the tracker.
func (s Status) Family() Family {
	switch s {
	case StatusNew, StatusEstimating, StatusReadyForApproval, StatusAccepted,
		StatusPerformerLookup, StatusPerformerDraft:
		return FamilyObserve
	case StatusPerformerFound, StatusPickupArrived, StatusPickuped, StatusDelivering:
		return FamilyCourier
	case StatusDeliveredFinish:
		return FamilySuccess
	case StatusReturned, StatusReturnedFinish:
		return FamilyFailure
	case StatusCancelledByTaxi, StatusReturning, StatusReturnArrived:
		return FamilyAlert
	default:
		return FamilyUnknown
	}
}

// Terminal reports whether tracking stops at this status.
func (s Status) Terminal() bool {
	family := s.Family()
	return family == FamilySuccess || family == FamilyFailure
}

// Message is the human-readable progress line posted to the lead when the
// claim enters this status.
func (s Status) Message() string {
	switch s {
	case StatusNew, StatusEstimating:
		return "Delivery claim is being estimated"
	case StatusReadyForApproval:
		return "Delivery claim is ready for approval"
	case StatusAccepted:
		return "Delivery claim accepted"
	case StatusPerformerLookup, StatusPerformerDraft:
		return "Looking for a courier"
	case StatusPerformerFound:
		return "Courier found"
	case StatusPickupArrived:
		return "Courier arrived for pickup"
	case StatusPickuped:
		return "Courier picked up the order"
	case StatusDelivering:
		return "Courier is delivering the order"
	case StatusDeliveredFinish:
		return "Order delivered"
	case StatusCancelledByTaxi:
		return "Carrier cancelled the claim"
	case StatusReturning:
		return "Courier is returning the order"
	case StatusReturnArrived:
		return "Courier arrived to return the order"
	case StatusReturned, StatusReturnedFinish:
		return "Order returned to the branch"
	default:
		return "Delivery status updated: " + s.String()
	}
}
