package chain

import "sync/atomic"

// Metrics contains atomic counters for a chain.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// CommandSendCount indicates the number of fire-and-forget commands sent.
	CommandSendCount atomic.Uint64
	// QueryCount indicates the number of queries that completed successfully.
	QueryCount atomic.Uint64
	// AttemptCount indicates the number of request/response exchanges on the wire,
	// including retried ones and probes.
	AttemptCount atomic.Uint64
	// RetryCount indicates the number of exchanges repeated after a structural error.
	RetryCount atomic.Uint64
	// TerminalErrCount indicates the number of queries that exhausted their retries.
	TerminalErrCount atomic.Uint64
	// ProbeCount indicates the number of chain size probes.
	ProbeCount atomic.Uint64
}

func (m *Metrics) incCommandSendCount() {
	m.CommandSendCount.Add(1)
}

func (m *Metrics) incQueryCount() {
	m.QueryCount.Add(1)
}

func (m *Metrics) incAttemptCount() {
	m.AttemptCount.Add(1)
}

func (m *Metrics) incRetryCount() {
	m.RetryCount.Add(1)
}

func (m *Metrics) incTerminalErrCount() {
	m.TerminalErrCount.Add(1)
}

func (m *Metrics) incProbeCount() {
	m.ProbeCount.Add(1)
}
