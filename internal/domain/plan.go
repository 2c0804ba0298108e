package domain

// PlanLimits maps each resource type to a monthly cap. A missing entry means
// unlimited.
type PlanLimits map[ResourceType]int

// planLimits is the static plan catalogue.
var planLimits = map[Plan]PlanLimits{
	PlanFree: {
		ResourceImage: 2,
		ResourceVideo: 1,
	},
	PlanPremium: {},
}

// LimitFor returns the monthly cap of a plan for a resource type, or nil when
// the plan is unlimited for it. Unknown plans fall back to the free caps.
func LimitFor(plan Plan, rt ResourceType) *int {
	limits, ok := planLimits[plan]
	if !ok {
		limits = planLimits[PlanFree]
	}
	v, ok := limits[rt]
	if !ok {
		return nil
	}
	return &v
}
