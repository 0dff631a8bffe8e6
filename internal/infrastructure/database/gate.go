package database

import "sync/atomic"

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// Gate records whether the initial store connection succeeded.
// The bootstrap connector is the only writer; everything else reads.
type Gate struct {
	ready atomic.Bool
}

func NewGate() *Gate {
	return &Gate{}
}

func (g *Gate) Set(ready bool) {
	g.ready.Store(ready)
}

func (g *Gate) IsReady() bool {
	return g.ready.Load()
}

// Status renders the gate the way the health endpoints report it.
func (g *Gate) Status() string {
	if g.IsReady() {
		return StatusConnected
	}
	return StatusDisconnected
}
