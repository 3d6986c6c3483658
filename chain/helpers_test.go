package chain

import (
	"context"
	"testing"

	"github.com/arloliu/go-zaber/frame"
	"github.com/arloliu/go-zaber/internal/simulator"
	"github.com/stretchr/testify/require"
)

// newTestConfig creates a Config suitable for tests, with no write pacing.
func newTestConfig(t *testing.T, opts ...Option) *Config {
	t.Helper()

	defaults := []Option{
		WithWriteDelay(0),
		WithReadTimeout(MinReadTimeout),
	}

	cfg, err := NewConfig(append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("newTestConfig: %v", err)
	}

	return cfg
}

// newTestChain creates a Chain over a simulated chain of n actuators.
func newTestChain(t *testing.T, n int, opts ...Option) (*Chain, *simulator.Chain) {
	t.Helper()

	sim := simulator.New("sim0", n)
	c, err := New(sim, newTestConfig(t, opts...))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c, sim
}

// newProbedChain is newTestChain with the chain size already probed.
func newProbedChain(t *testing.T, n int, opts ...Option) (*Chain, *simulator.Chain) {
	t.Helper()

	c, sim := newTestChain(t, n, opts...)
	size, err := c.ProbeChainSize(context.Background())
	require.NoError(t, err)
	require.Equal(t, n, size)

	return c, sim
}

// record encodes one reply record.
func record(addr byte, op frame.Opcode, data int32) []byte {
	rec := frame.Encode(addr, op, data)
	return rec[:]
}

// records concatenates reply records.
func records(recs ...[]byte) []byte {
	var out []byte
	for _, r := range recs {
		out = append(out, r...)
	}

	return out
}
