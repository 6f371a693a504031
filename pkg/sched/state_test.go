package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ValidatesCPUCountAndQuantum(t *testing.T) {
	_, err := New(0, 1)
	assert.ErrorIs(t, err, ErrInvalidCPUCount)

	_, err = New(129, 1)
	assert.ErrorIs(t, err, ErrInvalidCPUCount)

	_, err = New(1, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantum)

	s, err := New(1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, s.CPUCount())
	assert.EqualValues(t, 1, s.Quantum())
}

func TestNewFromConfig_DelegatesToNew(t *testing.T) {
	s, err := NewFromConfig(Config{CPUs: 4, Quantum: 2, Metadata: true})
	require.NoError(t, err)
	assert.Equal(t, 4, s.CPUCount())
	assert.EqualValues(t, 2, s.Quantum())
}

func TestScheduler_CgroupsIncludesDefault(t *testing.T) {
	s, err := New(1, 1)
	require.NoError(t, err)

	s.Tick(0, []Event{{Action: ActionCgroupCreate, CgroupID: "g1"}})

	ids := map[string]bool{}
	for _, c := range s.Cgroups() {
		ids[c.ID] = true
	}
	assert.True(t, ids["0"])
	assert.True(t, ids["g1"])
}
