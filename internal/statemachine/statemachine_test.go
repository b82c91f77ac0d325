package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertTransition_TableDriven(t *testing.T) {
	cases := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"created to ready", Created, Ready, false},
		{"created to blocked", Created, Blocked, false},
		{"created to failed", Created, Failed, false},
		{"created to in_progress rejected", Created, InProgress, true},
		{"ready to in_progress", Ready, InProgress, false},
		{"ready to blocked", Ready, Blocked, false},
		{"blocked to ready", Blocked, Ready, false},
		{"blocked to in_progress rejected", Blocked, InProgress, true},
		{"in_progress to done", InProgress, Done, false},
		{"in_progress to blocked", InProgress, Blocked, false},
		{"in_progress to failed", InProgress, Failed, false},
		{"done is terminal", Done, Ready, true},
		{"failed is terminal", Failed, Ready, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := AssertTransition(tc.from, tc.to)
			if tc.wantErr {
				require.Error(t, err)
				var illegal *IllegalTransition
				require.ErrorAs(t, err, &illegal)
				assert.Equal(t, tc.from, illegal.From)
				assert.Equal(t, tc.to, illegal.To)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAssertTransition_TerminalStatesRejectEverything(t *testing.T) {
	// B3: state transitions reject DONE -> * and FAILED -> * with IllegalTransition.
	for _, to := range []Status{Created, Ready, Blocked, InProgress, Done, Failed} {
		assert.Error(t, AssertTransition(Done, to))
		assert.Error(t, AssertTransition(Failed, to))
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(Done))
	assert.True(t, IsTerminal(Failed))
	assert.False(t, IsTerminal(Ready))
	assert.False(t, IsTerminal(Created))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(Ready))
	assert.False(t, Valid(Status("NOT_A_STATUS")))
}
