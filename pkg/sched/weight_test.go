package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeight_Nice0IsReference(t *testing.T) {
	assert.Equal(t, ReferenceWeight, Weight(0))
}

func TestWeight_Monotonic(t *testing.T) {
	for n := MinNice; n < MaxNice; n++ {
		assert.Greater(t, Weight(n), Weight(n+1), "weight must strictly decrease as nice increases")
	}
}

func TestWeight_ClampsOutOfRange(t *testing.T) {
	assert.Equal(t, Weight(MinNice), Weight(-100))
	assert.Equal(t, Weight(MaxNice), Weight(100))
}

func TestEffectiveWeight_DefaultSharesIsIdentity(t *testing.T) {
	assert.Equal(t, int64(1024), EffectiveWeight(1024, 1024))
}

func TestEffectiveWeight_FloorsAtOne(t *testing.T) {
	assert.Equal(t, int64(1), EffectiveWeight(1, 1))
}

func TestEffectiveWeight_ScalesWithShares(t *testing.T) {
	assert.Equal(t, int64(2048), EffectiveWeight(1024, 2048))
	assert.Equal(t, int64(512), EffectiveWeight(1024, 512))
}

func TestVruntimeDelta_InverseOfWeight(t *testing.T) {
	assert.InDelta(t, 1.0, VruntimeDelta(1, 1024), 1e-9)
	assert.InDelta(t, 2.0, VruntimeDelta(1, 512), 1e-9)
	assert.InDelta(t, 0.5, VruntimeDelta(1, 2048), 1e-9)
}
