package platform

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"rovercode-go/errcode"
	"rovercode-go/line"
)

// Init registers the host drivers (sysfs/bcm283x/...) with periph.
func Init() error {
	if _, err := host.Init(); err != nil {
		return errcode.Wrap(errcode.IOError, "platform.init", "periph host", err)
	}
	return nil
}

// I2CBus adapts a periph bus to the tinygo drivers.I2C shape.
type I2CBus struct {
	bus i2c.BusCloser
}

// OpenI2C opens a bus by periph name ("" = first, "1" = /dev/i2c-1).
func OpenI2C(name string) (*I2CBus, error) {
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, errcode.Wrap(errcode.IOError, "platform.i2c", "open "+name, err)
	}
	return &I2CBus{bus: b}, nil
}

func (b *I2CBus) Tx(addr uint16, w, r []byte) error { return b.bus.Tx(addr, w, r) }
func (b *I2CBus) Close() error                      { return b.bus.Close() }
func (b *I2CBus) String() string                    { return b.bus.String() }

// Pins is a line.PinFactory backed by periph's GPIO registry.
type Pins struct {
	mu   sync.Mutex
	open []*Pin
}

func NewPins() *Pins { return &Pins{} }

func (f *Pins) lookup(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errcode.New(errcode.InvalidConfig, "platform.gpio", "unknown pin "+name)
	}
	return p, nil
}

func (f *Pins) Output(name string, initial bool) (line.Output, error) {
	p, err := f.lookup(name)
	if err != nil {
		return nil, err
	}
	if err := p.Out(gpio.Level(initial)); err != nil {
		return nil, errcode.Wrap(errcode.IOError, "platform.gpio", "out "+name, err)
	}
	pin := &Pin{p: p, output: true, shutdown: initial}
	f.track(pin)
	return pin, nil
}

func (f *Pins) Input(name string, pull line.Pull) (line.IRQInput, error) {
	p, err := f.lookup(name)
	if err != nil {
		return nil, err
	}
	pin := &Pin{p: p}
	if err := pin.ConfigureInput(pull); err != nil {
		return nil, err
	}
	f.track(pin)
	return pin, nil
}

func (f *Pins) track(p *Pin) {
	f.mu.Lock()
	f.open = append(f.open, p)
	f.mu.Unlock()
}

// Close stops edge pollers and drives outputs to their shutdown level.
func (f *Pins) Close() error {
	f.mu.Lock()
	pins := f.open
	f.open = nil
	f.mu.Unlock()
	var first error
	for _, p := range pins {
		if err := p.release(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Pin wraps a periph pin. Edge callbacks come from a poller goroutine
// blocked in WaitForEdge.
type Pin struct {
	p        gpio.PinIO
	pull     gpio.Pull
	output   bool
	shutdown bool

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func toPull(p line.Pull) gpio.Pull {
	switch p {
	case line.PullUp:
		return gpio.PullUp
	case line.PullDown:
		return gpio.PullDown
	default:
		return gpio.Float
	}
}

func toEdge(e line.Edge) gpio.Edge {
	switch e {
	case line.EdgeRising:
		return gpio.RisingEdge
	case line.EdgeFalling:
		return gpio.FallingEdge
	case line.EdgeBoth:
		return gpio.BothEdges
	default:
		return gpio.NoEdge
	}
}

func (p *Pin) Number() int { return p.p.Number() }
func (p *Pin) Get() bool   { return bool(p.p.Read()) }

func (p *Pin) Set(level bool) error {
	p.output = true
	if err := p.p.Out(gpio.Level(level)); err != nil {
		return errcode.Wrap(errcode.IOError, "gpio.set", p.p.Name(), err)
	}
	return nil
}

func (p *Pin) SetShutdownState(level bool) { p.shutdown = level }

func (p *Pin) ConfigureInput(pull line.Pull) error {
	p.pull = toPull(pull)
	if err := p.p.In(p.pull, gpio.NoEdge); err != nil {
		return errcode.Wrap(errcode.IOError, "gpio.in", p.p.Name(), err)
	}
	return nil
}

const edgePollTimeout = 100 * time.Millisecond

func (p *Pin) SetIRQ(edge line.Edge, handler func()) error {
	if err := p.ClearIRQ(); err != nil {
		return err
	}
	if err := p.p.In(p.pull, toEdge(edge)); err != nil {
		return errcode.Wrap(errcode.IOError, "gpio.irq", p.p.Name(), err)
	}
	p.mu.Lock()
	stop, done := make(chan struct{}), make(chan struct{})
	p.stop, p.done = stop, done
	p.mu.Unlock()
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if p.p.WaitForEdge(edgePollTimeout) {
				handler()
			}
		}
	}()
	return nil
}

func (p *Pin) ClearIRQ() error {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	if err := p.p.In(p.pull, gpio.NoEdge); err != nil {
		return errcode.Wrap(errcode.IOError, "gpio.irq", p.p.Name(), err)
	}
	return nil
}

func (p *Pin) release() error {
	if err := p.ClearIRQ(); err != nil {
		return err
	}
	if p.output {
		return p.Set(p.shutdown)
	}
	return p.p.Halt()
}
