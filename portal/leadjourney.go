// ABOUTME: Known lead-journey milestones in presentation order
// ABOUTME: Shared by the projection and the write path so both agree on valid keys
package portal

// LeadMilestone is one pre-sale milestone tracked in a case's leadJourney map.
type LeadMilestone struct {
	Key   string
	Label string
}

// Lead journey keys.
const (
	LeadCallInitiated      = "callInitiated"
	LeadSiteVisitCompleted = "siteVisitCompleted"
	LeadDesignPresented    = "designPresented"
	LeadQuotationShared    = "quotationShared"
	LeadBookingConfirmed   = "bookingConfirmed"
)

var leadMilestones = []LeadMilestone{
	{Key: LeadCallInitiated, Label: "Initial Call"},
	{Key: LeadSiteVisitCompleted, Label: "Site Visit"},
	{Key: LeadDesignPresented, Label: "Design Presentation"},
	{Key: LeadQuotationShared, Label: "Quotation Shared"},
	{Key: LeadBookingConfirmed, Label: "Booking Confirmed"},
}

// LeadMilestones returns the known milestones in display order.
func LeadMilestones() []LeadMilestone {
	out := make([]LeadMilestone, len(leadMilestones))
	copy(out, leadMilestones)
	return out
}

// IsLeadMilestone reports whether key is a known lead-journey key.
func IsLeadMilestone(key string) bool {
	for _, m := range leadMilestones {
		if m.Key == key {
			return true
		}
	}
	return false
}
