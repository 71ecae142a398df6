package eligibility

import (
	"fmt"
	"strings"

	"giveaway-poll-backend/internal/common/validation"
	"giveaway-poll-backend/internal/features/event/models"
)

// Requirement names reported in Result.Failed.
const (
	RequirementAccountAge = "account_age"
	RequirementRoles      = "roles"
	RequirementActivity   = "activity"
)

const (
	DefaultBaseWeight = 1
	// MaxWeight caps the entries of a single participant.
	MaxWeight = 100
)

// Result is the outcome of an eligibility check.
type Result struct {
	Passed bool   `json:"passed"`
	Failed string `json:"failed,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func pass() Result { return Result{Passed: true} }

func fail(requirement, format string, args ...interface{}) Result {
	return Result{Failed: requirement, Reason: fmt.Sprintf(format, args...)}
}

// Check evaluates attrs against req. Requirements are checked in the order
// account age, roles, activity and the first failure is reported. A nil or
// empty req always passes.
func Check(attrs models.Attributes, req *models.Requirements) Result {
	if req.IsEmpty() {
		return pass()
	}

	if req.MinAccountAge > 0 {
		if attrs.AccountAge == nil {
			return fail(RequirementAccountAge, "account age is unknown, at least %s is required",
				validation.FormatDuration(req.MinAccountAge.Std()))
		}
		if *attrs.AccountAge < req.MinAccountAge {
			return fail(RequirementAccountAge, "account must be at least %s old",
				validation.FormatDuration(req.MinAccountAge.Std()))
		}
	}

	if req.Roles != nil && len(req.Roles.IDs) > 0 {
		if r, ok := checkRoles(attrs, req.Roles); !ok {
			return r
		}
	}

	if req.MinActivity > 0 {
		if attrs.ActivityCount == nil {
			return fail(RequirementActivity, "activity is unknown, at least %d messages are required", req.MinActivity)
		}
		if *attrs.ActivityCount < req.MinActivity {
			return fail(RequirementActivity, "at least %d messages are required, have %d",
				req.MinActivity, *attrs.ActivityCount)
		}
	}

	return pass()
}

func checkRoles(attrs models.Attributes, roles *models.RoleRequirement) (Result, bool) {
	switch roles.EffectiveMode() {
	case models.RoleModeAll:
		var missing []string
		for _, id := range roles.IDs {
			if !attrs.HasRole(id) {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return fail(RequirementRoles, "missing required roles: %s", strings.Join(missing, ", ")), false
		}
	default:
		for _, id := range roles.IDs {
			if attrs.HasRole(id) {
				return pass(), true
			}
		}
		return fail(RequirementRoles, "one of these roles is required: %s", strings.Join(roles.IDs, ", ")), false
	}
	return pass(), true
}

// ComputeWeight returns base plus every bonus the participant qualifies for,
// clamped to [1, MaxWeight]. A base below 1 is replaced by DefaultBaseWeight.
func ComputeWeight(attrs models.Attributes, rules *models.WeightRules, base int) int {
	if base < 1 {
		base = DefaultBaseWeight
	}
	weight := base
	if rules != nil {
		for _, b := range rules.RoleBonuses {
			if attrs.HasRole(b.RoleID) {
				weight += b.Extra
			}
		}
		if attrs.ActivityCount != nil {
			for _, b := range rules.ActivityBonuses {
				if *attrs.ActivityCount >= b.MinActivity {
					weight += b.Extra
				}
			}
		}
	}

	if weight < 1 {
		return 1
	}
	if weight > MaxWeight {
		return MaxWeight
	}
	return weight
}
