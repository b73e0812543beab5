package recipient

import (
	"context"
	"crypto/ed25519"
	"net"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/algorand-smc/smc/chandb"
	"github.com/algorand-smc/smc/ledger"
)

// Manager accepts inbound connections and runs one Channel per
// connection against a single shared KnownChannels, so that a
// duplicate setup proposal is rejected even if it arrives on a second
// connection. Grounded on server.go's role of owning the listener and
// fanning out per-peer state in lnd, generalized from "one goroutine
// per peer" to "one goroutine per channel" since this protocol has no
// notion of a long-lived peer identity independent of a channel.
type Manager struct {
	ledger        ledger.Ledger
	recipientSK   ed25519.PrivateKey
	recipientAddr types.Address
	known         chandb.KnownChannels

	wg sync.WaitGroup
}

// NewManager constructs a Manager that accepts channels on behalf of
// recipientAddr, settling against ld, and rejecting
// setup proposals already present in known.
func NewManager(ld ledger.Ledger, recipientSK ed25519.PrivateKey, recipientAddr types.Address, known chandb.KnownChannels) *Manager {
	return &Manager{
		ledger:        ld,
		recipientSK:   recipientSK,
		recipientAddr: recipientAddr,
		known:         known,
	}
}

// Serve accepts connections from ln until ctx is cancelled or Accept
// returns a permanent error, running each to completion in its own
// goroutine. When ctx is cancelled it waits for every in-flight channel
// to return before returning; a permanent Accept error is returned at
// once, without waiting.
func (m *Manager) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				m.wg.Wait()
				return ctx.Err()
			default:
				return err
			}
		}

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			defer conn.Close()
			m.runChannel(ctx, conn)
		}()
	}
}

func (m *Manager) runChannel(ctx context.Context, conn net.Conn) {
	ch := NewChannel(m.ledger, conn, m.recipientSK, m.recipientAddr, m.known)
	if err := ch.Run(ctx); err != nil {
		log.Errorf("channel from %s terminated: %v", conn.RemoteAddr(), err)
	}
}
