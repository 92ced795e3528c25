// Package signal decodes webhook payloads into immutable trade and band
// signals. Percentages arrive as points (tpp: 2 means 2%) and are held as
// fractions (0.02).
package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/joelsfoster/gizmo/internal/common"
)

// Direction is a position direction. The zero value means unset.
type Direction string

const (
	None  Direction = ""
	Long  Direction = "long"
	Short Direction = "short"
)

// Opposite returns the other direction; None stays None.
func (d Direction) Opposite() Direction {
	switch d {
	case Long:
		return Short
	case Short:
		return Long
	}
	return None
}

// OrderType selects market or limit execution for a signal.
type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
)

var (
	ErrMalformed     = errors.New("malformed signal")
	ErrMissingAction = errors.New("action is required")
)

// Trade is one /placeTrade signal.
type Trade struct {
	AuthID    string
	Action    string
	OrderType OrderType
	Leverage  float64

	TakeProfitPct   float64
	StopLossPct     float64
	TrailingStopPct float64

	LimitBacktracePct  float64
	LimitCancelAfter   time.Duration
	LimitEntryAttempts int

	LadderTakeProfitPcts []float64

	OverrideRepeat        bool
	OverrideLadderReplace *bool
	CurrentDirection      Direction

	// Raw is the body as received, minus auth_id.
	Raw json.RawMessage
}

type tradeWire struct {
	AuthID                 string    `json:"auth_id"`
	Action                 string    `json:"action"`
	OrderType              string    `json:"order_type"`
	Leverage               float64   `json:"leverage"`
	TPP                    float64   `json:"tpp"`
	SLP                    float64   `json:"slp"`
	TSLP                   float64   `json:"tslp"`
	LTPP                   []float64 `json:"ltpp"`
	LimitBacktracePercent  float64   `json:"limit_backtrace_percent"`
	LimitCancelTimeSeconds float64   `json:"limit_cancel_time_seconds"`
	LimitEntryAttempts     int       `json:"limit_entry_attempts"`
	Override               bool      `json:"override"`
	OverrideLTPP           *bool     `json:"override_ltpp"`
	CurrentDirection       string    `json:"current_direction"`
}

// DecodeTrade parses and validates a trade signal. Unknown actions are not
// rejected here; the engine reports them.
func DecodeTrade(body []byte) (Trade, error) {
	var w tradeWire
	if err := json.Unmarshal(body, &w); err != nil {
		return Trade{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.Action == "" {
		return Trade{}, ErrMissingAction
	}

	t := Trade{
		AuthID:                w.AuthID,
		Action:                w.Action,
		OrderType:             Market,
		Leverage:              w.Leverage,
		TakeProfitPct:         w.TPP / 100,
		StopLossPct:           w.SLP / 100,
		TrailingStopPct:       w.TSLP / 100,
		LimitBacktracePct:     w.LimitBacktracePercent / 100,
		LimitCancelAfter:      time.Duration(w.LimitCancelTimeSeconds * float64(time.Second)),
		LimitEntryAttempts:    w.LimitEntryAttempts,
		OverrideRepeat:        w.Override,
		OverrideLadderReplace: w.OverrideLTPP,
	}

	switch OrderType(w.OrderType) {
	case "", Market:
	case Limit:
		t.OrderType = Limit
	default:
		return Trade{}, fmt.Errorf("%w: order_type %q", ErrMalformed, w.OrderType)
	}

	switch Direction(w.CurrentDirection) {
	case None, Long, Short:
		t.CurrentDirection = Direction(w.CurrentDirection)
	default:
		return Trade{}, fmt.Errorf("%w: current_direction %q", ErrMalformed, w.CurrentDirection)
	}

	if t.Leverage < 0 {
		return Trade{}, fmt.Errorf("%w: leverage must be positive", ErrMalformed)
	}
	if t.Leverage == 0 {
		t.Leverage = 1
	}
	if t.TakeProfitPct < 0 || t.StopLossPct < 0 || t.TrailingStopPct < 0 || t.LimitBacktracePct < 0 {
		return Trade{}, fmt.Errorf("%w: percentages must not be negative", ErrMalformed)
	}
	if t.StopLossPct >= 1 {
		return Trade{}, fmt.Errorf("%w: slp must be below 100", ErrMalformed)
	}
	if t.LimitCancelAfter < 0 {
		return Trade{}, fmt.Errorf("%w: limit_cancel_time_seconds must not be negative", ErrMalformed)
	}
	if t.LimitEntryAttempts < 0 {
		return Trade{}, fmt.Errorf("%w: limit_entry_attempts must not be negative", ErrMalformed)
	}
	if t.LimitEntryAttempts == 0 {
		t.LimitEntryAttempts = 1
	}

	for _, rung := range w.LTPP {
		if rung <= 0 {
			return Trade{}, fmt.Errorf("%w: ltpp rungs must be positive", ErrMalformed)
		}
		t.LadderTakeProfitPcts = append(t.LadderTakeProfitPcts, rung/100)
	}

	raw, err := stripAuth(body)
	if err != nil {
		return Trade{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	t.Raw = raw

	return t, nil
}

// Direction returns the direction an entry or reversal action opens.
func (t Trade) Direction() Direction {
	return ActionDirection(t.Action)
}

// ActionDirection maps entry and reversal actions to the direction they
// open. Exits and maintenance actions map to None.
func ActionDirection(action string) Direction {
	switch action {
	case common.ActionLongEntry, common.ActionReverseShortToLong:
		return Long
	case common.ActionShortEntry, common.ActionReverseLongToShort:
		return Short
	}
	return None
}

func stripAuth(body []byte) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	delete(fields, "auth_id")
	return json.Marshal(fields)
}

// Band is one /bbSignal message.
type Band struct {
	AuthID string
	Kind   string
}

// DecodeBand parses a band signal. Unknown kinds are rejected.
func DecodeBand(body []byte) (Band, error) {
	var w struct {
		AuthID   string `json:"auth_id"`
		BBSignal string `json:"bb_signal"`
	}
	if err := json.Unmarshal(body, &w); err != nil {
		return Band{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch w.BBSignal {
	case common.BandBasisBreached, common.BandLowerBreached, common.BandUpperBreached, common.BandActivate:
	default:
		return Band{}, fmt.Errorf("%w: bb_signal %q", ErrMalformed, w.BBSignal)
	}
	return Band{AuthID: w.AuthID, Kind: w.BBSignal}, nil
}
