package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"giveaway-poll-backend/internal/common/validation"
	"giveaway-poll-backend/internal/features/event/models"
)

func age(d time.Duration) *models.Duration {
	v := models.Duration(d)
	return &v
}

func count(n int) *int { return &n }

func TestCheckNoRequirements(t *testing.T) {
	assert.True(t, Check(models.Attributes{}, nil).Passed)
	assert.True(t, Check(models.Attributes{}, &models.Requirements{}).Passed)
}

func TestCheckAccountAge(t *testing.T) {
	req := &models.Requirements{MinAccountAge: models.Duration(7 * validation.Day)}

	assert.True(t, Check(models.Attributes{AccountAge: age(8 * validation.Day)}, req).Passed)
	assert.True(t, Check(models.Attributes{AccountAge: age(7 * validation.Day)}, req).Passed)

	r := Check(models.Attributes{AccountAge: age(time.Hour)}, req)
	assert.False(t, r.Passed)
	assert.Equal(t, RequirementAccountAge, r.Failed)
	assert.Contains(t, r.Reason, "7d")

	r = Check(models.Attributes{}, req)
	assert.False(t, r.Passed)
	assert.Equal(t, RequirementAccountAge, r.Failed)
}

func TestCheckRoles(t *testing.T) {
	anyOf := &models.Requirements{Roles: &models.RoleRequirement{IDs: []string{"vip", "mod"}}}
	allOf := &models.Requirements{Roles: &models.RoleRequirement{IDs: []string{"vip", "mod"}, Mode: models.RoleModeAll}}

	assert.True(t, Check(models.Attributes{Roles: []string{"mod"}}, anyOf).Passed)
	assert.False(t, Check(models.Attributes{Roles: []string{"other"}}, anyOf).Passed)
	assert.False(t, Check(models.Attributes{}, anyOf).Passed)

	assert.True(t, Check(models.Attributes{Roles: []string{"mod", "vip"}}, allOf).Passed)
	r := Check(models.Attributes{Roles: []string{"vip"}}, allOf)
	assert.False(t, r.Passed)
	assert.Equal(t, RequirementRoles, r.Failed)
	assert.Contains(t, r.Reason, "mod")
	assert.NotContains(t, r.Reason, "vip")
}

func TestCheckActivity(t *testing.T) {
	req := &models.Requirements{MinActivity: 10}
	assert.True(t, Check(models.Attributes{ActivityCount: count(10)}, req).Passed)

	r := Check(models.Attributes{ActivityCount: count(3)}, req)
	assert.False(t, r.Passed)
	assert.Equal(t, RequirementActivity, r.Failed)

	assert.False(t, Check(models.Attributes{}, req).Passed)
}

func TestCheckReportsFirstFailure(t *testing.T) {
	req := &models.Requirements{
		MinAccountAge: models.Duration(validation.Day),
		Roles:         &models.RoleRequirement{IDs: []string{"vip"}},
		MinActivity:   5,
	}

	assert.Equal(t, RequirementAccountAge, Check(models.Attributes{}, req).Failed)
	assert.Equal(t, RequirementRoles, Check(models.Attributes{AccountAge: age(2 * validation.Day)}, req).Failed)
	assert.Equal(t, RequirementActivity, Check(models.Attributes{
		AccountAge: age(2 * validation.Day),
		Roles:      []string{"vip"},
	}, req).Failed)
	assert.True(t, Check(models.Attributes{
		AccountAge:    age(2 * validation.Day),
		Roles:         []string{"vip"},
		ActivityCount: count(5),
	}, req).Passed)
}

func TestComputeWeight(t *testing.T) {
	rules := &models.WeightRules{
		RoleBonuses:     []models.RoleBonus{{RoleID: "booster", Extra: 2}, {RoleID: "vip", Extra: 3}},
		ActivityBonuses: []models.ActivityBonus{{MinActivity: 10, Extra: 1}, {MinActivity: 100, Extra: 4}},
	}

	cases := []struct {
		name  string
		attrs models.Attributes
		base  int
		want  int
	}{
		{"no bonuses", models.Attributes{}, 1, 1},
		{"default base", models.Attributes{}, 0, 1},
		{"negative base", models.Attributes{}, -4, 1},
		{"one role", models.Attributes{Roles: []string{"booster"}}, 1, 3},
		{"both roles", models.Attributes{Roles: []string{"booster", "vip"}}, 1, 6},
		{"activity tiers stack", models.Attributes{ActivityCount: count(150)}, 1, 6},
		{"activity below tier", models.Attributes{ActivityCount: count(9)}, 1, 1},
		{"custom base", models.Attributes{Roles: []string{"vip"}}, 5, 8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeWeight(tc.attrs, rules, tc.base))
		})
	}
}

func TestComputeWeightClamps(t *testing.T) {
	assert.Equal(t, 1, ComputeWeight(models.Attributes{}, nil, 0))
	rules := &models.WeightRules{RoleBonuses: []models.RoleBonus{{RoleID: "whale", Extra: 500}}}
	assert.Equal(t, MaxWeight, ComputeWeight(models.Attributes{Roles: []string{"whale"}}, rules, 1))
}
