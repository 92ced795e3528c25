package signal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTrade(t *testing.T) {
	body := []byte(`{
		"auth_id": "secret",
		"action": "long_entry",
		"order_type": "limit",
		"leverage": 3,
		"tpp": 2,
		"slp": 1,
		"tslp": 0.5,
		"ltpp": [1, 2, 3],
		"limit_backtrace_percent": 0.1,
		"limit_cancel_time_seconds": 30,
		"limit_entry_attempts": 3,
		"override": true,
		"override_ltpp": false,
		"current_direction": "long"
	}`)

	tr, err := DecodeTrade(body)
	require.NoError(t, err)

	assert.Equal(t, "secret", tr.AuthID)
	assert.Equal(t, "long_entry", tr.Action)
	assert.Equal(t, Limit, tr.OrderType)
	assert.Equal(t, 3.0, tr.Leverage)
	assert.InDelta(t, 0.02, tr.TakeProfitPct, 1e-12)
	assert.InDelta(t, 0.01, tr.StopLossPct, 1e-12)
	assert.InDelta(t, 0.005, tr.TrailingStopPct, 1e-12)
	assert.InDelta(t, 0.001, tr.LimitBacktracePct, 1e-12)
	assert.Equal(t, 30*time.Second, tr.LimitCancelAfter)
	assert.Equal(t, 3, tr.LimitEntryAttempts)
	require.Len(t, tr.LadderTakeProfitPcts, 3)
	assert.InDelta(t, 0.03, tr.LadderTakeProfitPcts[2], 1e-12)
	assert.True(t, tr.OverrideRepeat)
	require.NotNil(t, tr.OverrideLadderReplace)
	assert.False(t, *tr.OverrideLadderReplace)
	assert.Equal(t, Long, tr.CurrentDirection)
	assert.Equal(t, Long, tr.Direction())

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(tr.Raw, &raw))
	assert.NotContains(t, raw, "auth_id")
	assert.Equal(t, "long_entry", raw["action"])
}

func TestDecodeTrade_Defaults(t *testing.T) {
	tr, err := DecodeTrade([]byte(`{"action":"short_exit"}`))
	require.NoError(t, err)

	assert.Equal(t, Market, tr.OrderType)
	assert.Equal(t, 1.0, tr.Leverage)
	assert.Equal(t, 1, tr.LimitEntryAttempts)
	assert.Nil(t, tr.OverrideLadderReplace)
	assert.Equal(t, None, tr.CurrentDirection)
	assert.Equal(t, None, tr.Direction())
	assert.Empty(t, tr.LadderTakeProfitPcts)
}

func TestDecodeTrade_UnknownActionPassesThrough(t *testing.T) {
	tr, err := DecodeTrade([]byte(`{"action":"moon"}`))
	require.NoError(t, err)
	assert.Equal(t, "moon", tr.Action)
}

func TestDecodeTrade_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"action":`},
		{"missing action", `{"order_type":"market"}`},
		{"bad order type", `{"action":"long_entry","order_type":"stop"}`},
		{"bad direction", `{"action":"long_entry","current_direction":"up"}`},
		{"negative leverage", `{"action":"long_entry","leverage":-2}`},
		{"negative tpp", `{"action":"long_entry","tpp":-1}`},
		{"stop loss of 100 percent", `{"action":"long_entry","slp":100}`},
		{"negative wait", `{"action":"long_entry","limit_cancel_time_seconds":-5}`},
		{"negative attempts", `{"action":"long_entry","limit_entry_attempts":-1}`},
		{"zero rung", `{"action":"long_entry","ltpp":[1,0]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTrade([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestActionDirection(t *testing.T) {
	assert.Equal(t, Long, ActionDirection("long_entry"))
	assert.Equal(t, Long, ActionDirection("reverse_short_to_long"))
	assert.Equal(t, Short, ActionDirection("short_entry"))
	assert.Equal(t, Short, ActionDirection("reverse_long_to_short"))
	assert.Equal(t, None, ActionDirection("long_exit"))
	assert.Equal(t, None, ActionDirection("set_trailing_stop"))
	assert.Equal(t, Short, Long.Opposite())
	assert.Equal(t, None, None.Opposite())
}

func TestDecodeBand(t *testing.T) {
	b, err := DecodeBand([]byte(`{"auth_id":"x","bb_signal":"lower_bound_breached"}`))
	require.NoError(t, err)
	assert.Equal(t, "x", b.AuthID)
	assert.Equal(t, "lower_bound_breached", b.Kind)

	_, err = DecodeBand([]byte(`{"auth_id":"x","bb_signal":"sideways"}`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeBand([]byte(`nope`))
	assert.ErrorIs(t, err, ErrMalformed)
}
