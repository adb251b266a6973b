package carrier

import "testing"

func TestParseStatusRoundTrip(t *testing.T) {
	for status, name := range statusNames {
		if got := ParseStatus(name); got != status {
			t.Errorf("ParseStatus(%q) = %v, want %v", name, got, status)
		}
	}
	if got := ParseStatus("some_future_status"); got != StatusUnknown {
		t.Errorf("ParseStatus(unrecognized) = %v, want StatusUnknown", got)
	}
}

func TestStatusFamilies(t *testing.T) {
	cases := []struct {
		status Status
		family Family
	}{
		{StatusNew, FamilyObserve},
		{StatusEstimating, FamilyObserve},
		{StatusReadyForApproval, FamilyObserve},
		{StatusAccepted, FamilyObserve},
		{StatusPerformerLookup, FamilyObserve},
		{StatusPerformerDraft, FamilyObserve},
		{StatusPerformerFound, FamilyCourier},
		{StatusPickupArrived, FamilyCourier},
		{StatusPickuped, FamilyCourier},
		{StatusDelivering, FamilyCourier},
		{StatusDeliveredFinish, FamilySuccess},
		{StatusReturned, FamilyFailure},
		{StatusReturnedFinish, FamilyFailure},
		{StatusCancelledByTaxi, FamilyAlert},
		{StatusReturning, FamilyAlert},
		{StatusReturnArrived, FamilyAlert},
		{StatusUnknown, FamilyUnknown},
	}
	for _, tc := range cases {
		if got := tc.status.Family(); got != tc.family {
			t.Errorf("%v.Family() = %v, want %v", tc.status, got, tc.family)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := []Status{StatusDeliveredFinish, StatusReturned, StatusReturnedFinish}
	for _, status := range terminal {
		if !status.Terminal() {
			t.Errorf("%v.Terminal() = false, want true", status)
		}
	}
	for status := range statusNames {
		switch status {
		case StatusDeliveredFinish, StatusReturned, StatusReturnedFinish:
			continue
		}
		if status.Terminal() {
			t.Errorf("%v.Terminal() = true, want false", status)
		}
	}
}
