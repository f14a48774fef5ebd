package line

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"rovercode-go/x/timex"
)

// EdgeEvent is delivered from the worker goroutine to the registered handler.
type EdgeEvent struct {
	Pin   int
	Level bool
	Edge  Edge
	TS    int64 // clock nanoseconds captured in the ISR
}

// EdgeWorker moves ISR callbacks onto a single delivery goroutine. Handlers
// registered with Watch all run on that goroutine, one event at a time.
type EdgeWorker struct {
	clock timex.Clock
	// Written by ISR; MUST NOT block the ISR:
	isrQ    chan isrEvent
	stopped chan struct{}

	mu      sync.RWMutex
	watches map[int]*watch // pin number -> watch

	drops uint32 // ISR drop counter
}

type isrEvent struct {
	pin   int
	level bool
	ts    int64
}

type watch struct {
	pin       IRQInput
	edge      Edge
	debounce  int64
	lastLevel bool
	lastEvent int64
	handler   func(EdgeEvent)
}

// NewEdgeWorker creates a worker. A nil clock uses timex.Real.
func NewEdgeWorker(clock timex.Clock, isrBuf int) *EdgeWorker {
	if isrBuf <= 0 {
		isrBuf = 64
	}
	if clock == nil {
		clock = timex.Real{}
	}
	return &EdgeWorker{
		clock:   clock,
		isrQ:    make(chan isrEvent, isrBuf),
		stopped: make(chan struct{}),
		watches: map[int]*watch{},
	}
}

// Start runs the delivery loop until ctx is done. A worker may be started
// again after its previous loop has been cancelled; Done then tracks the
// newest loop.
func (w *EdgeWorker) Start(ctx context.Context) {
	stopped := make(chan struct{})
	w.mu.Lock()
	w.stopped = stopped
	w.mu.Unlock()
	go func() {
		defer close(stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-w.isrQ:
				w.handleISR(ev)
			}
		}
	}()
}

// Done is closed once the delivery loop has exited.
func (w *EdgeWorker) Done() <-chan struct{} {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopped
}

// Watch registers handler for edges on pin. The returned func cancels the
// registration and clears the pin's IRQ.
func (w *EdgeWorker) Watch(pin IRQInput, edge Edge, debounce time.Duration, handler func(EdgeEvent)) (func(), error) {
	if edge == EdgeNone {
		return func() {}, nil
	}
	num := pin.Number()
	wh := &watch{
		pin:       pin,
		edge:      edge,
		debounce:  int64(debounce),
		lastLevel: pin.Get(),
		handler:   handler,
	}

	isr := func() {
		ev := isrEvent{pin: num, level: pin.Get(), ts: w.clock.NowNanos()}
		select {
		case w.isrQ <- ev:
		default:
			atomic.AddUint32(&w.drops, 1)
		}
	}
	if err := pin.SetIRQ(edge, isr); err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.watches[num] = wh
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		if cur, ok := w.watches[num]; ok && cur == wh {
			_ = cur.pin.ClearIRQ()
			delete(w.watches, num)
		}
		w.mu.Unlock()
	}, nil
}

func (w *EdgeWorker) handleISR(ev isrEvent) {
	w.mu.RLock()
	wh := w.watches[ev.pin]
	w.mu.RUnlock()
	if wh == nil {
		return
	}

	if wh.lastEvent != 0 && ev.ts-wh.lastEvent < wh.debounce {
		return
	}

	var e Edge
	switch wh.edge {
	case EdgeBoth:
		switch {
		case !wh.lastLevel && ev.level:
			e = EdgeRising
		case wh.lastLevel && !ev.level:
			e = EdgeFalling
		}
	default:
		// Only the configured edge fires the IRQ.
		e = wh.edge
	}

	wh.lastLevel = ev.level
	wh.lastEvent = ev.ts

	if e != EdgeNone && wh.handler != nil {
		wh.handler(EdgeEvent{Pin: ev.pin, Level: ev.level, Edge: e, TS: ev.ts})
	}
}

// ISRDrops reports events lost because the ISR queue was full.
func (w *EdgeWorker) ISRDrops() uint32 { return atomic.LoadUint32(&w.drops) }
