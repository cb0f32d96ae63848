package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateRatings(t *testing.T) {
	tests := []struct {
		name    string
		ratings []int
		want    RatingSummary
	}{
		{"no reviews", nil, RatingSummary{Average: 0, Count: 0}},
		{"single", []int{3}, RatingSummary{Average: 3.0, Count: 1}},
		{"5,5,4", []int{5, 5, 4}, RatingSummary{Average: 4.7, Count: 3}},
		{"5,5", []int{5, 5}, RatingSummary{Average: 5.0, Count: 2}},
		{"thirds round down", []int{1, 1, 2}, RatingSummary{Average: 1.3, Count: 3}},
		{"two thirds round up", []int{1, 2, 2}, RatingSummary{Average: 1.7, Count: 3}},
		{"exact half rounds away from zero", []int{4, 5, 5, 5, 5, 5, 4, 4, 5, 5, 5, 5, 4, 4, 5, 5, 4, 4, 5, 5}, RatingSummary{Average: 4.7, Count: 20}},
		{"x.x5 boundary below", []int{5, 4, 5, 5, 4, 5, 5, 4, 4, 5, 5, 5, 4, 4, 5, 5, 4, 4, 5, 5, 4, 5, 5, 4, 5}, RatingSummary{Average: 4.6, Count: 25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AggregateRatings(tt.ratings))
		})
	}
}

func TestComputeRating_MatchesAggregate(t *testing.T) {
	assert.Equal(t, AggregateRatings([]int{5, 5, 4}), ComputeRating(3, 14))
	assert.Equal(t, RatingSummary{}, ComputeRating(0, 0))
	assert.Equal(t, RatingSummary{}, ComputeRating(-1, 10))
}

// Reviews [5,5,4] -> delete the 4 -> delete the rest.
func TestRatingLifecycleScenario(t *testing.T) {
	assert.Equal(t, RatingSummary{Average: 4.7, Count: 3}, AggregateRatings([]int{5, 5, 4}))
	assert.Equal(t, RatingSummary{Average: 5.0, Count: 2}, AggregateRatings([]int{5, 5}))
	assert.Equal(t, RatingSummary{Average: 0, Count: 0}, AggregateRatings([]int{}))
}

func TestReviewPermissions(t *testing.T) {
	r := &Review{UserID: "user-1"}

	assert.True(t, r.CanEdit(Actor{ID: "user-1", Role: RoleCustomer}))
	assert.False(t, r.CanEdit(Actor{ID: "admin-1", Role: RoleAdmin}))
	assert.False(t, r.CanEdit(Actor{}))

	assert.True(t, r.CanDelete(Actor{ID: "user-1", Role: RoleCustomer}))
	assert.True(t, r.CanDelete(Actor{ID: "admin-1", Role: RoleAdmin}))
	assert.False(t, r.CanDelete(Actor{ID: "user-2", Role: RoleSeller}))
}

func TestValidators(t *testing.T) {
	assert.True(t, IsValidVoteType("helpful"))
	assert.True(t, IsValidVoteType("notHelpful"))
	assert.False(t, IsValidVoteType("unhelpful"))

	assert.True(t, IsValidRating(1))
	assert.True(t, IsValidRating(5))
	assert.False(t, IsValidRating(0))
	assert.False(t, IsValidRating(6))

	assert.True(t, IsValidApprovalStatus("rejected"))
	assert.False(t, IsValidApprovalStatus("draft"))
	assert.True(t, IsValidSort("rating_desc"))
	assert.False(t, IsValidSort("random"))
	assert.True(t, IsValidRole("seller"))
	assert.False(t, IsValidRole("root"))
}
