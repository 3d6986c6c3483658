package serialport

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/arloliu/go-zaber/chain"
	"go.bug.st/serial"
)

var (
	// ErrNoDevice indicates that no candidate port has a chain attached.
	ErrNoDevice = errors.New("serialport: no Zaber device found")
	// ErrMultipleDevices indicates that more than one port matched.
	ErrMultipleDevices = errors.New("serialport: more than one Zaber device found")
)

// discoveryRetryLimit keeps probing of silent ports short.
const discoveryRetryLimit = 2

// Filter narrows discovery to chains with a given serial number.
type Filter struct {
	SerialNumber uint32
	MatchSerial  bool
}

// BySerialNumber returns a Filter matching chains holding serial.
func BySerialNumber(serial uint32) Filter {
	return Filter{SerialNumber: serial, MatchSerial: true}
}

// ListPorts returns the serial ports of the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("serialport: list ports: %w", err)
	}
	slices.Sort(ports)

	return ports, nil
}

type openFunc func(name string, cfg *chain.Config) (chain.Transport, error)

func openTransport(name string, cfg *chain.Config) (chain.Transport, error) {
	return Open(name, cfg)
}

// Discovery collaborators, replaced in tests.
var (
	listPorts = ListPorts
	openPort  = openFunc(openTransport)
)

// FindPorts returns the candidates that answer a broadcast echo with the
// echoed value and pass filter. An empty candidates list probes every port
// reported by ListPorts. opts configure the probing chains; the retry limit
// defaults to a short discovery value.
func FindPorts(ctx context.Context, candidates []string, filter Filter, opts ...chain.Option) ([]string, error) {
	ports, _, err := discover(ctx, candidates, filter, opts)
	return ports, err
}

// FindPort is FindPorts requiring exactly one match.
func FindPort(ctx context.Context, candidates []string, filter Filter, opts ...chain.Option) (string, error) {
	ports, tried, err := discover(ctx, candidates, filter, opts)
	if err != nil {
		return "", err
	}

	return single(ports, tried)
}

// discover resolves the candidate list and probes it. It returns the
// matching ports and the candidates actually tried.
func discover(ctx context.Context, candidates []string, filter Filter, opts []chain.Option) ([]string, []string, error) {
	if len(candidates) == 0 {
		ports, err := listPorts()
		if err != nil {
			return nil, nil, err
		}
		candidates = ports
	}

	cfg, err := chain.NewConfig(append([]chain.Option{chain.WithRetryLimit(discoveryRetryLimit)}, opts...)...)
	if err != nil {
		return nil, candidates, err
	}

	found, err := findPorts(ctx, candidates, filter, cfg, openPort)

	return found, candidates, err
}

func single(ports, candidates []string) (string, error) {
	switch len(ports) {
	case 0:
		return "", fmt.Errorf("%w, check connections and permissions, tried %v", ErrNoDevice, candidates)
	case 1:
		return ports[0], nil
	default:
		return "", fmt.Errorf("%w, specify a port or a serial number, matching %v", ErrMultipleDevices, ports)
	}
}

func findPorts(ctx context.Context, candidates []string, filter Filter, cfg *chain.Config, open openFunc) ([]string, error) {
	log := cfg.GetLogger()

	var found []string
	for _, name := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ok, err := probePort(ctx, name, filter, cfg, open)
		if err != nil {
			log.Debug("zaber: port rejected", "port", name, "error", err)
			continue
		}
		if ok {
			found = append(found, name)
		}
	}

	log.Info("zaber: discovery finished", "candidates", len(candidates), "found", found)

	return found, nil
}

func probePort(ctx context.Context, name string, filter Filter, cfg *chain.Config, open openFunc) (bool, error) {
	t, err := open(name, cfg)
	if err != nil {
		return false, err
	}

	c, err := chain.New(t, cfg)
	if err != nil {
		_ = t.Close()
		return false, err
	}
	defer c.Close()

	if _, err := c.ProbeChainSize(ctx); err != nil {
		return false, err
	}

	echo, err := c.Echo(ctx, chain.Actuator(0), cfg.ProbeData())
	if err != nil {
		return false, err
	}
	if echo[0] != cfg.ProbeData() {
		return false, nil
	}

	if !filter.MatchSerial {
		return true, nil
	}

	serials, err := c.GetSerialNumber(ctx, chain.Broadcast)
	if err != nil {
		return false, err
	}

	return slices.Contains(serials, filter.SerialNumber), nil
}

// FindChains opens a chain on every port FindPorts reports.
func FindChains(ctx context.Context, candidates []string, filter Filter, opts ...chain.Option) ([]*chain.Chain, error) {
	ports, tried, err := discover(ctx, candidates, filter, opts)
	if err != nil {
		return nil, err
	}
	if len(ports) == 0 {
		_, err := single(ports, tried)
		return nil, err
	}

	return OpenChains(ports, opts...)
}
