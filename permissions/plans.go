package permissions

// PlanTier is one of an ordered set of subscription tiers. Each gated
// feature declares its minimum required tier.
type PlanTier string

const (
	TierTrial      PlanTier = "trial"
	TierBasic      PlanTier = "basic"
	TierPro        PlanTier = "pro"
	TierEnterprise PlanTier = "enterprise"
)

// tierPriorities totally orders the tiers. An unrecognized tier name maps
// to zero, below trial, so unknown input fails closed.
var tierPriorities = map[PlanTier]int{
	TierTrial:      1,
	TierBasic:      2,
	TierPro:        3,
	TierEnterprise: 4,
}

// defaultFeatureTiers maps gated feature names to their minimum tier.
var defaultFeatureTiers = map[string]PlanTier{
	"mcp.playground":    TierTrial,
	"mcp.tools":         TierBasic,
	"mcp.custom-agents": TierPro,
	"analytics.export":  TierPro,
	"sso":               TierEnterprise,
	"audit-log":         TierEnterprise,
}

// Priority returns the tier's rank. Unrecognized tiers rank below trial.
func (t PlanTier) Priority() int {
	return tierPriorities[t]
}
