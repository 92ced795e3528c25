// Package history records what happened to every trade signal. A Recorder
// fans entries out to sinks in the background so the execution path never
// waits on a database or a chat message.
package history

import (
	"encoding/json"
	"time"

	"github.com/joelsfoster/gizmo/internal/engine"
	"github.com/joelsfoster/gizmo/internal/signal"
)

// Entry is one executed signal: the body as received plus what the engine
// did with it.
type Entry struct {
	Symbol        string          `json:"symbol"`
	Action        string          `json:"action"`
	OrderType     string          `json:"order_type"`
	Direction     string          `json:"direction,omitempty"`
	Outcome       string          `json:"outcome"`
	Error         string          `json:"error,omitempty"`
	Signal        json.RawMessage `json:"signal,omitempty"`
	ObservedPrice float64         `json:"observed_price"`
	ExecutedAt    time.Time       `json:"executed_at"`
	Duration      time.Duration   `json:"duration"`
	Steps         []engine.Step   `json:"steps"`
}

// NewEntry builds the history entry for t and its result.
func NewEntry(symbol string, t signal.Trade, res engine.Result) Entry {
	e := Entry{
		Symbol:     symbol,
		Action:     res.Action,
		OrderType:  string(res.OrderType),
		Direction:  string(res.Direction),
		Outcome:    string(res.Outcome),
		Error:      res.Error,
		Signal:     t.Raw,
		ExecutedAt: res.StartedAt,
		Duration:   res.Duration,
		Steps:      res.Steps,
	}
	if e.Action == "" {
		e.Action = t.Action
	}
	if res.Snapshot != nil {
		e.ObservedPrice = res.Snapshot.Price
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now()
	}
	return e
}

// Document flattens the entry into the original signal fields plus
// executed_at, observed_price, outcome and steps.
func (e Entry) Document() (map[string]interface{}, error) {
	doc := map[string]interface{}{}
	if len(e.Signal) > 0 {
		if err := json.Unmarshal(e.Signal, &doc); err != nil {
			return nil, err
		}
	}
	if _, ok := doc["action"]; !ok {
		doc["action"] = e.Action
	}
	doc["symbol"] = e.Symbol
	doc["executed_at"] = e.ExecutedAt.UTC().Format(time.RFC3339Nano)
	doc["observed_price"] = e.ObservedPrice
	doc["outcome"] = e.Outcome
	doc["steps"] = e.Steps
	if e.Error != "" {
		doc["error"] = e.Error
	}
	return doc, nil
}

// Failed lists the names of the steps that failed.
func (e Entry) Failed() []string {
	var names []string
	for _, s := range e.Steps {
		if s.Status == engine.StepFailed {
			names = append(names, s.Name)
		}
	}
	return names
}
