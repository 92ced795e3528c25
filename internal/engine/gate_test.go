package engine

import (
	"testing"

	"github.com/joelsfoster/gizmo/internal/common"
	"github.com/joelsfoster/gizmo/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_AdvisoryUntilSignalled(t *testing.T) {
	var g Gate
	assert.True(t, g.Admits(signal.Long))
	assert.True(t, g.Admits(signal.Short))
	assert.Equal(t, GateIdle, g.Phase())
}

func TestGate_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		signals []string
		long    bool
		short   bool
		phase   GatePhase
	}{
		{"basis only", []string{common.BandBasisBreached}, true, true, GateArmed},
		{"lower only", []string{common.BandLowerBreached}, true, true, GateIdle},
		{"activate", []string{common.BandActivate}, false, false, GateArmed},
		{"activate then lower", []string{common.BandActivate, common.BandLowerBreached}, true, false, GateLongApproved},
		{"activate then upper", []string{common.BandActivate, common.BandUpperBreached}, false, true, GateShortApproved},
		{"activate then both", []string{common.BandActivate, common.BandLowerBreached, common.BandUpperBreached}, true, true, GateArmed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var g Gate
			for _, s := range tt.signals {
				require.NoError(t, g.Apply(s))
			}
			assert.Equal(t, tt.long, g.Admits(signal.Long))
			assert.Equal(t, tt.short, g.Admits(signal.Short))
			assert.Equal(t, tt.phase, g.Phase())
		})
	}
}

func TestGate_ConsumeIsOneShot(t *testing.T) {
	var g Gate
	require.NoError(t, g.Apply(common.BandBasisBreached))
	require.NoError(t, g.Apply(common.BandUpperBreached))
	require.True(t, g.Admits(signal.Short))

	g.Consume(signal.Short)
	assert.Equal(t, Revoked, g.Trade)
	assert.Equal(t, Revoked, g.Short)
	assert.Equal(t, Unset, g.Long)
	assert.False(t, g.Admits(signal.Short))
	assert.False(t, g.Admits(signal.Long))

	require.NoError(t, g.Apply(common.BandBasisBreached))
	assert.True(t, g.Admits(signal.Long))
	assert.False(t, g.Admits(signal.Short))
}

func TestGate_ConsumeLeavesUnsetFlags(t *testing.T) {
	var g Gate
	g.Consume(signal.Long)
	assert.Equal(t, Gate{}, g)
}

func TestGate_UnknownSignal(t *testing.T) {
	var g Gate
	assert.Error(t, g.Apply("squeeze"))
	assert.Equal(t, Gate{}, g)
}

func TestState_Guards(t *testing.T) {
	s := State{LastAction: common.ActionLongEntry}
	assert.False(t, s.ShouldExecute(common.ActionLongEntry, false))
	assert.True(t, s.ShouldExecute(common.ActionLongEntry, true))
	assert.True(t, s.ShouldExecute(common.ActionShortEntry, false))

	assert.False(t, s.Locked(signal.Long))
	s.DirectionLock = signal.Short
	assert.True(t, s.Locked(signal.Long))
	assert.False(t, s.Locked(signal.Short))
	assert.False(t, s.Locked(signal.None))
}
