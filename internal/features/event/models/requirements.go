package models

import (
	"encoding/json"
	"fmt"
	"time"

	"giveaway-poll-backend/internal/common/validation"
)

// Duration is a time.Duration that reads "7d"/"45m"-style strings from JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var ns int64
		if err := json.Unmarshal(b, &ns); err != nil {
			return fmt.Errorf("duration must be a string like \"7d\" or nanoseconds")
		}
		*d = Duration(ns)
		return nil
	}
	parsed, err := validation.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// RoleMode tells whether any or all of the listed roles are required.
type RoleMode string

const (
	RoleModeAny RoleMode = "any"
	RoleModeAll RoleMode = "all"
)

// RoleRequirement requires membership in a role set.
type RoleRequirement struct {
	IDs  []string `json:"ids"`
	Mode RoleMode `json:"mode,omitempty"`
}

// EffectiveMode defaults an empty mode to any-of.
func (r *RoleRequirement) EffectiveMode() RoleMode {
	if r.Mode == RoleModeAll {
		return RoleModeAll
	}
	return RoleModeAny
}

// Requirements are the eligibility constraints of an event. Zero values are
// unset constraints.
type Requirements struct {
	MinAccountAge Duration         `json:"minAccountAge,omitempty"`
	Roles         *RoleRequirement `json:"roles,omitempty"`
	MinActivity   int              `json:"minActivity,omitempty"`
}

// IsEmpty reports whether no constraint is configured.
func (r *Requirements) IsEmpty() bool {
	return r == nil || (r.MinAccountAge <= 0 && (r.Roles == nil || len(r.Roles.IDs) == 0) && r.MinActivity <= 0)
}

func (r *Requirements) Validate() error {
	if r == nil {
		return nil
	}
	if r.MinAccountAge < 0 {
		return fmt.Errorf("minAccountAge must not be negative")
	}
	if r.MinActivity < 0 {
		return fmt.Errorf("minActivity must not be negative")
	}
	if r.Roles != nil {
		switch r.Roles.Mode {
		case "", RoleModeAny, RoleModeAll:
		default:
			return fmt.Errorf("roles.mode must be %q or %q", RoleModeAny, RoleModeAll)
		}
		for _, id := range r.Roles.IDs {
			if id == "" {
				return fmt.Errorf("roles.ids must not contain empty ids")
			}
		}
	}
	return nil
}

func (r *Requirements) Clone() *Requirements {
	if r == nil {
		return nil
	}
	c := *r
	if r.Roles != nil {
		roles := *r.Roles
		roles.IDs = append([]string(nil), r.Roles.IDs...)
		c.Roles = &roles
	}
	return &c
}

// RoleBonus adds Extra entries for members holding the role.
type RoleBonus struct {
	RoleID string `json:"roleId"`
	Extra  int    `json:"extra"`
}

// ActivityBonus adds Extra entries for members with at least MinActivity messages.
type ActivityBonus struct {
	MinActivity int `json:"minActivity"`
	Extra       int `json:"extra"`
}

// WeightRules configure bonus entries on top of the base weight.
type WeightRules struct {
	RoleBonuses     []RoleBonus     `json:"roleBonuses,omitempty"`
	ActivityBonuses []ActivityBonus `json:"activityBonuses,omitempty"`
}

func (w *WeightRules) Validate() error {
	if w == nil {
		return nil
	}
	for _, b := range w.RoleBonuses {
		if b.RoleID == "" {
			return fmt.Errorf("roleBonuses.roleId must not be empty")
		}
		if b.Extra < 1 {
			return fmt.Errorf("roleBonuses.extra for role %s must be at least 1", b.RoleID)
		}
	}
	for _, b := range w.ActivityBonuses {
		if b.MinActivity < 1 {
			return fmt.Errorf("activityBonuses.minActivity must be at least 1")
		}
		if b.Extra < 1 {
			return fmt.Errorf("activityBonuses.extra must be at least 1")
		}
	}
	return nil
}

func (w *WeightRules) Clone() *WeightRules {
	if w == nil {
		return nil
	}
	return &WeightRules{
		RoleBonuses:     append([]RoleBonus(nil), w.RoleBonuses...),
		ActivityBonuses: append([]ActivityBonus(nil), w.ActivityBonuses...),
	}
}

// Attributes describe a participant as seen by the identity provider. Nil
// fields are unknown, and an unknown attribute never satisfies a requirement.
type Attributes struct {
	AccountAge    *Duration `json:"accountAge,omitempty"`
	Roles         []string  `json:"roles,omitempty"`
	ActivityCount *int      `json:"activityCount,omitempty"`
}

// HasRole reports whether the participant holds the role.
func (a Attributes) HasRole(id string) bool {
	for _, r := range a.Roles {
		if r == id {
			return true
		}
	}
	return false
}
