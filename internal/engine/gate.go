package engine

import (
	"fmt"

	"github.com/joelsfoster/gizmo/internal/common"
	"github.com/joelsfoster/gizmo/internal/signal"
)

// Approval is a tri-state gate flag. Unset flags never block.
type Approval string

const (
	Unset    Approval = ""
	Approved Approval = "approved"
	Revoked  Approval = "revoked"
)

func (a Approval) admits() bool {
	return a != Revoked
}

// GatePhase is the derived state of the band gate.
type GatePhase string

const (
	GateIdle          GatePhase = "idle"
	GateArmed         GatePhase = "armed"
	GateLongApproved  GatePhase = "long_approved"
	GateShortApproved GatePhase = "short_approved"
)

// Gate is the Bollinger band admission gate. It is advisory until band
// signals arrive; once a flag is set it becomes a one-shot permission
// consumed by the next successful entry.
type Gate struct {
	Trade Approval `json:"trade"`
	Long  Approval `json:"long"`
	Short Approval `json:"short"`
}

// Apply transitions the gate on a band signal.
func (g *Gate) Apply(kind string) error {
	switch kind {
	case common.BandBasisBreached:
		g.Trade = Approved
	case common.BandLowerBreached:
		g.Long = Approved
	case common.BandUpperBreached:
		g.Short = Approved
	case common.BandActivate:
		g.Trade = Approved
		g.Long = Revoked
		g.Short = Revoked
	default:
		return fmt.Errorf("unknown band signal %q", kind)
	}
	return nil
}

// Admits reports whether an entry toward dir may proceed.
func (g Gate) Admits(dir signal.Direction) bool {
	return g.Trade.admits() && g.flag(dir).admits()
}

// Consume revokes every flag that was explicitly approved for an entry
// toward dir. Revoked, not unset: unset would reopen advisory mode.
func (g *Gate) Consume(dir signal.Direction) {
	if g.Trade == Approved {
		g.Trade = Revoked
	}
	switch dir {
	case signal.Long:
		if g.Long == Approved {
			g.Long = Revoked
		}
	case signal.Short:
		if g.Short == Approved {
			g.Short = Revoked
		}
	}
}

// Phase names the gate state for logs and metrics.
func (g Gate) Phase() GatePhase {
	if g.Trade != Approved {
		return GateIdle
	}
	switch {
	case g.Long == Approved && g.Short != Approved:
		return GateLongApproved
	case g.Short == Approved && g.Long != Approved:
		return GateShortApproved
	}
	return GateArmed
}

func (g Gate) flag(dir signal.Direction) Approval {
	switch dir {
	case signal.Long:
		return g.Long
	case signal.Short:
		return g.Short
	}
	return Unset
}
