package stage

import (
	"context"
	"testing"

	"github.com/arloliu/go-zaber/chain"
	"github.com/arloliu/go-zaber/internal/simulator"
	"github.com/stretchr/testify/require"
)

// baseSerial is the serial number of the first simulated chain; chain i
// reports baseSerial+i.
const baseSerial = 1000

// newTestChains creates one simulated chain per entry of sizes.
func newTestChains(t *testing.T, sizes ...int) ([]*chain.Chain, []*simulator.Chain) {
	t.Helper()

	cfg, err := chain.NewConfig(chain.WithWriteDelay(0), chain.WithReadTimeout(chain.MinReadTimeout))
	require.NoError(t, err)

	chains := make([]*chain.Chain, 0, len(sizes))
	sims := make([]*simulator.Chain, 0, len(sizes))
	for i, n := range sizes {
		sim := simulator.New("sim"+string(rune('0'+i)), n)
		sim.SetSerialNumber(0, uint32(baseSerial+i)) //nolint:gosec // small test values

		c, err := chain.New(sim, cfg)
		require.NoError(t, err)

		chains = append(chains, c)
		sims = append(sims, sim)
	}

	return chains, sims
}

// newTestStage creates a Stage over simulated chains of the given sizes.
func newTestStage(t *testing.T, sizes ...int) (*Stage, []*simulator.Chain) {
	t.Helper()

	chains, sims := newTestChains(t, sizes...)
	s, err := New(context.Background(), chains)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, sims
}

// queriesOf counts the exchanges of sim carrying opcode op.
func queriesOf(sim *simulator.Chain, op byte) int {
	n := 0
	for _, ex := range sim.Exchanges() {
		if len(ex.Request) > 1 && ex.Request[1] == op {
			n++
		}
	}

	return n
}
