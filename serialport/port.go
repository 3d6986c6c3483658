package serialport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/arloliu/go-zaber/chain"
	"github.com/arloliu/go-zaber/internal/pool"
	"github.com/arloliu/go-zaber/logger"
	"go.bug.st/serial"
)

// bitsPerByte is the on-wire size of one 8N1 character.
const bitsPerByte = 10

// rawPort is the part of serial.Port used by Port.
type rawPort interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// Port is a serial link to one chain. It implements chain.Transport.
//
// Port is not goroutine-safe; a chain.Chain serializes access to it.
type Port struct {
	raw         rawPort
	name        string
	baudRate    int
	readTimeout time.Duration
	writeDelay  time.Duration
	lastWrite   time.Time
	logger      logger.Logger
}

var _ chain.Transport = (*Port)(nil)

// Open opens the serial port name with the link settings of cfg.
// A nil cfg selects chain.DefaultConfig.
func Open(name string, cfg *chain.Config) (*Port, error) {
	if cfg == nil {
		cfg = chain.DefaultConfig()
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate(),
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	sp, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", name, err)
	}

	if err := sp.SetReadTimeout(cfg.ReadTimeout()); err != nil {
		_ = sp.Close()
		return nil, fmt.Errorf("serialport: set read timeout on %s: %w", name, err)
	}

	p := newPort(sp, name, cfg)
	p.logger.Info("zaber: serial port opened", "baudRate", cfg.BaudRate(), "readTimeout", cfg.ReadTimeout())

	return p, nil
}

func newPort(raw rawPort, name string, cfg *chain.Config) *Port {
	return &Port{
		raw:         raw,
		name:        name,
		baudRate:    cfg.BaudRate(),
		readTimeout: cfg.ReadTimeout(),
		writeDelay:  cfg.WriteDelay(),
		logger:      cfg.GetLogger().With("port", name),
	}
}

// PortName returns the name the port was opened with.
func (p *Port) PortName() string { return p.name }

// Write sends data once the write delay since the previous write has passed.
func (p *Port) Write(data []byte) (int, error) {
	p.pace()

	n, err := p.raw.Write(data)
	p.lastWrite = time.Now()
	if err != nil {
		return n, fmt.Errorf("serialport: write %s: %w", p.name, err)
	}

	return n, nil
}

// WriteRead writes data, then reads until size bytes arrived, a read times
// out with nothing received, or the exchange budget is spent.
func (p *Port) WriteRead(data []byte, size int) ([]byte, error) {
	if _, err := p.Write(data); err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	deadline := time.Now().Add(p.exchangeBudget(size))

	read := 0
	for read < size && time.Now().Before(deadline) {
		n, err := p.raw.Read(buf[read:])
		read += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return buf[:read], fmt.Errorf("serialport: read %s: %w", p.name, err)
		}
		if n == 0 {
			break // read timeout
		}
	}

	return buf[:read], nil
}

// ResetInputBuffer discards unread input.
func (p *Port) ResetInputBuffer() error {
	return p.raw.ResetInputBuffer()
}

// ResetOutputBuffer discards untransmitted output.
func (p *Port) ResetOutputBuffer() error {
	return p.raw.ResetOutputBuffer()
}

// Close closes the serial port.
func (p *Port) Close() error {
	err := p.raw.Close()
	p.logger.Info("zaber: serial port closed", "error", err)

	return err
}

// pace waits until writeDelay has passed since the last write.
func (p *Port) pace() {
	if p.writeDelay <= 0 || p.lastWrite.IsZero() {
		return
	}

	_ = pool.Sleep(context.Background(), p.writeDelay-time.Since(p.lastWrite))
}

// exchangeBudget is the read timeout plus the line time of size bytes.
func (p *Port) exchangeBudget(size int) time.Duration {
	line := time.Duration(size*bitsPerByte) * time.Second / time.Duration(max(p.baudRate, 1))
	return p.readTimeout + line
}

// OpenChain opens the serial port name and returns a chain owning it.
// The port is closed again on any error.
func OpenChain(name string, opts ...chain.Option) (*chain.Chain, error) {
	cfg, err := chain.NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	port, err := Open(name, cfg)
	if err != nil {
		return nil, err
	}

	c, err := chain.New(port, cfg)
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	return c, nil
}

// OpenChains opens a chain on every port in names. If any port fails, the
// chains opened so far are closed and the error is returned.
func OpenChains(names []string, opts ...chain.Option) ([]*chain.Chain, error) {
	chains := make([]*chain.Chain, 0, len(names))
	for _, name := range names {
		c, err := OpenChain(name, opts...)
		if err != nil {
			for _, opened := range chains {
				_ = opened.Close()
			}

			return nil, err
		}
		chains = append(chains, c)
	}

	return chains, nil
}
