package overtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeDuration(t *testing.T) {
	policy := Policy{MinMinutes: 30, RoundTo: 30}

	tests := []struct {
		name          string
		raw           int
		policy        Policy
		wantDuration  int
		wantEarlyStop int
	}{
		{"rounds down", 47, policy, 30, 0},
		{"below minimum is discarded", 20, policy, 0, 0},
		{"exact multiple", 90, policy, 90, 0},
		{"no rounding", 47, Policy{MinMinutes: 30}, 47, 0},
		{"negative raw", -5, policy, 0, 0},
		{"early stop penalty", 50, Policy{MinMinutes: 15, RoundTo: 15, EarlyStopThreshold: 60, EarlyStopPenaltyMins: 10}, 30, 10},
		{"penalty not applied past threshold", 75, Policy{RoundTo: 15, EarlyStopThreshold: 60, EarlyStopPenaltyMins: 10}, 75, 0},
		{"penalty capped at raw", 5, Policy{EarlyStopThreshold: 60, EarlyStopPenaltyMins: 10}, 0, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, es := ComputeDuration(tt.raw, tt.policy)
			assert.Equal(t, tt.wantDuration, d)
			assert.Equal(t, tt.wantEarlyStop, es)
		})
	}
}
