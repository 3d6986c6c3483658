package chain

// Transport is the byte-level link to a chain.
//
// Implementations own pacing: two consecutive writes must be separated by at
// least the configured write delay. Transport methods are only called with
// the chain lock held, so implementations need not be goroutine-safe.
type Transport interface {
	// Write sends p and returns the number of bytes written.
	Write(p []byte) (int, error)
	// WriteRead sends p, then reads until size bytes have arrived or the read
	// timeout elapses. A short read is not an error; the returned slice holds
	// whatever arrived.
	WriteRead(p []byte, size int) ([]byte, error)
	// ResetInputBuffer discards received but unread bytes.
	ResetInputBuffer() error
	// ResetOutputBuffer discards written but untransmitted bytes.
	ResetOutputBuffer() error
	// Close releases the link.
	Close() error
	// PortName identifies the link, e.g. "/dev/ttyUSB0".
	PortName() string
}
