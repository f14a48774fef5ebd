package platform

import (
	"sync"

	"rovercode-go/line"
)

// FakePin implements line.Output and line.IRQInput for host-side tests.
// Set fires the registered IRQ handler synchronously when the edge matches.
type FakePin struct {
	mu       sync.RWMutex
	number   int
	level    bool
	pull     line.Pull
	shutdown *bool
	irqEdge  line.Edge
	irqFunc  func()
	history  []bool
	// SetErr, if non-nil, is returned by Set without changing the level.
	SetErr error
}

func NewFakePin(number int) *FakePin { return &FakePin{number: number} }

func (p *FakePin) ConfigureInput(pull line.Pull) error {
	p.mu.Lock()
	p.pull = pull
	p.mu.Unlock()
	return nil
}

func (p *FakePin) Set(level bool) error {
	p.mu.Lock()
	if p.SetErr != nil {
		err := p.SetErr
		p.mu.Unlock()
		return err
	}
	old := p.level
	p.level = level
	p.history = append(p.history, level)
	irq := p.irqFunc
	want := irqWanted(p.irqEdge, old, level)
	p.mu.Unlock()
	if want && irq != nil {
		irq()
	}
	return nil
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

func (p *FakePin) Number() int { return p.number }

func (p *FakePin) SetShutdownState(level bool) {
	p.mu.Lock()
	p.shutdown = &level
	p.mu.Unlock()
}

// ShutdownState reports the configured release level, if any.
func (p *FakePin) ShutdownState() (level, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.shutdown == nil {
		return false, false
	}
	return *p.shutdown, true
}

// History returns every level passed to Set.
func (p *FakePin) History() []bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]bool(nil), p.history...)
}

func (p *FakePin) SetIRQ(edge line.Edge, handler func()) error {
	p.mu.Lock()
	p.irqEdge = edge
	p.irqFunc = handler
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ClearIRQ() error {
	p.mu.Lock()
	p.irqEdge = line.EdgeNone
	p.irqFunc = nil
	p.mu.Unlock()
	return nil
}

// HasIRQ reports whether a handler is registered.
func (p *FakePin) HasIRQ() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.irqFunc != nil
}

func irqWanted(cfg line.Edge, old, new bool) bool {
	switch {
	case !old && new:
		return cfg == line.EdgeRising || cfg == line.EdgeBoth
	case old && !new:
		return cfg == line.EdgeFalling || cfg == line.EdgeBoth
	default:
		return false
	}
}

// FakePins is a line.PinFactory handing out FakePins by name.
type FakePins struct {
	mu   sync.Mutex
	pins map[string]*FakePin
	next int
}

func NewFakePins() *FakePins { return &FakePins{pins: map[string]*FakePin{}} }

// Pin returns the fake for name, creating it if needed.
func (f *FakePins) Pin(name string) *FakePin {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[name]
	if !ok {
		p = NewFakePin(f.next)
		f.next++
		f.pins[name] = p
	}
	return p
}

func (f *FakePins) Output(name string, initial bool) (line.Output, error) {
	p := f.Pin(name)
	if err := p.Set(initial); err != nil {
		return nil, err
	}
	return p, nil
}

func (f *FakePins) Input(name string, pull line.Pull) (line.IRQInput, error) {
	p := f.Pin(name)
	if err := p.ConfigureInput(pull); err != nil {
		return nil, err
	}
	return p, nil
}
