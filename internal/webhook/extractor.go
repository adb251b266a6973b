// Package webhook is the CRM-facing ingress: it receives lead webhooks,
// acknowledges them immediately, and hands the lead id to the fulfillment
// orchestrator on a detached task.
package webhook

import (
	"net/url"
	"strconv"
)

// leadIDKeys are the form keys the CRM uses for lead events, in priority
// order. A creation event carries leads[add], a pipeline move leads[status].
var leadIDKeys = []string{
	"leads[add][0][id]",
	"leads[status][0][id]",
}

// ExtractLeadID pulls the lead id out of the CRM's form-encoded webhook
// body.
func ExtractLeadID(form url.Values) (int64, bool) {
	for _, key := range leadIDKeys {
		raw := form.Get(key)
		if raw == "" {
			continue
		}
		leadID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || leadID <= 0 {
			continue
		}
		return leadID, true
	}
	return 0, false
}
