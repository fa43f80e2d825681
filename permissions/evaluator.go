// Package permissions decides feature-level access from an already
// verified caller: role verb tables and plan tier ordering, no I/O.
// Higher-level gates (subscription feature gates, admin menu visibility)
// consult the evaluator and render denials as upgrade prompts or 403s.
// A denial is a business outcome, never an authentication failure.
package permissions

import "fmt"

// Decision is the ephemeral result of an evaluation; it is never
// persisted.
type Decision struct {
	Allowed      bool     `json:"allowed"`
	Role         Role     `json:"role,omitempty"`
	RequiredPlan PlanTier `json:"requiredPlan,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}

// Evaluator holds the immutable permission tables. Construct once at
// startup; the zero-argument constructor installs the default tables.
type Evaluator struct {
	roleVerbs    map[Role]map[string]bool
	featureTiers map[string]PlanTier
}

type EvaluatorOption func(*Evaluator)

// WithFeatureTier overrides or adds a gated feature's minimum tier.
func WithFeatureTier(feature string, tier PlanTier) EvaluatorOption {
	return func(e *Evaluator) {
		e.featureTiers[feature] = tier
	}
}

// WithRoleVerbs replaces a role's verb set.
func WithRoleVerbs(role Role, verbs []string) EvaluatorOption {
	return func(e *Evaluator) {
		e.roleVerbs[role] = verbSet(verbs)
	}
}

func NewEvaluator(options ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		roleVerbs:    make(map[Role]map[string]bool, len(defaultRoleVerbs)),
		featureTiers: make(map[string]PlanTier, len(defaultFeatureTiers)),
	}
	for role, verbs := range defaultRoleVerbs {
		e.roleVerbs[role] = verbSet(verbs)
	}
	for feature, tier := range defaultFeatureTiers {
		e.featureTiers[feature] = tier
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// CheckRole tests whether a role's verb set contains the required verb.
// The owner wildcard is the only implicit grant; an unrecognized role has
// an empty verb set.
func (e *Evaluator) CheckRole(callerRole Role, requiredVerb string) Decision {
	verbs := e.roleVerbs[callerRole]
	if verbs[VerbWildcard] || verbs[requiredVerb] {
		return Decision{Allowed: true, Role: callerRole}
	}
	return Decision{
		Allowed: false,
		Role:    callerRole,
		Reason:  fmt.Sprintf("role %q lacks %q", callerRole, requiredVerb),
	}
}

// CheckPlan grants access iff the caller's tier ranks at or above the
// required tier.
func (e *Evaluator) CheckPlan(callerTier, requiredTier PlanTier) Decision {
	if callerTier.Priority() >= requiredTier.Priority() {
		return Decision{Allowed: true, RequiredPlan: requiredTier}
	}
	return Decision{
		Allowed:      false,
		RequiredPlan: requiredTier,
		Reason:       fmt.Sprintf("plan %q is below required %q", callerTier, requiredTier),
	}
}

// CheckFeature gates a named feature by the caller's tier. Unknown
// features require enterprise: an unregistered gate fails closed.
func (e *Evaluator) CheckFeature(callerTier PlanTier, feature string) Decision {
	requiredTier, ok := e.featureTiers[feature]
	if !ok {
		return Decision{
			Allowed:      false,
			RequiredPlan: TierEnterprise,
			Reason:       fmt.Sprintf("unknown feature %q", feature),
		}
	}
	return e.CheckPlan(callerTier, requiredTier)
}

// CheckScope tests membership of a scope in a verified token's scope set.
func (e *Evaluator) CheckScope(grantedScopes []string, requiredScope string) Decision {
	for _, scope := range grantedScopes {
		if scope == requiredScope {
			return Decision{Allowed: true}
		}
	}
	return Decision{
		Allowed: false,
		Reason:  fmt.Sprintf("scope %q not granted", requiredScope),
	}
}

func verbSet(verbs []string) map[string]bool {
	set := make(map[string]bool, len(verbs))
	for _, verb := range verbs {
		set[verb] = true
	}
	return set
}
