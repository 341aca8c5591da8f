// Package sched lowers timed output events to hardware and drives the
// sensor measurement cycles.
package sched

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"printipi-go/pkg/clock"
	"printipi-go/pkg/gpio"
	"printipi-go/pkg/iodriver"
	"printipi-go/pkg/log"
)

// Executor applies OutputEvents to pins at their timestamps. Events with
// equal timestamps keep their push order, so a driver's sequence is never
// reordered even when another axis interleaves at the same microsecond.
type Executor struct {
	clk    clock.Clock
	logger *zap.SugaredLogger

	mu    sync.Mutex
	queue eventQueue
	seq   uint64
	pins  map[gpio.PinID]gpio.DigitalPin
	wake  chan struct{}
}

// NewExecutor returns an executor reading time from clk.
func NewExecutor(clk clock.Clock, logger *zap.SugaredLogger) *Executor {
	return &Executor{
		clk:    clk,
		logger: log.OrNop(logger),
		pins:   make(map[gpio.PinID]gpio.DigitalPin),
		wake:   make(chan struct{}, 1),
	}
}

// RegisterPin makes a pin addressable by the events naming its id. No-op
// pins are not registered; events addressed to them are dropped.
func (e *Executor) RegisterPin(pin gpio.DigitalPin) {
	if pin.ID() == gpio.NoPinID {
		return
	}
	e.mu.Lock()
	e.pins[pin.ID()] = pin
	e.mu.Unlock()
}

// Push enqueues one ordered event sequence.
func (e *Executor) Push(events []iodriver.OutputEvent) {
	e.mu.Lock()
	for _, ev := range events {
		heap.Push(&e.queue, queuedEvent{event: ev, seq: e.seq})
		e.seq++
	}
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of events not yet applied.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Len()
}

// DispatchDue applies every event whose timestamp is at or before now and
// returns the timestamp of the next pending event, if any.
func (e *Executor) DispatchDue(now clock.Timestamp) (next clock.Timestamp, pending bool) {
	for {
		e.mu.Lock()
		if e.queue.Len() == 0 {
			e.mu.Unlock()
			return 0, false
		}
		head := e.queue[0]
		if head.event.Time > now {
			e.mu.Unlock()
			return head.event.Time, true
		}
		heap.Pop(&e.queue)
		pin := e.pins[head.event.Pin]
		e.mu.Unlock()

		if pin == nil {
			e.logger.Debugf("dropping event for unregistered pin %d", head.event.Pin)
			continue
		}
		pin.DigitalWrite(head.event.Level)
	}
}

// Run applies events until the context is canceled.
func (e *Executor) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		next, pending := e.DispatchDue(e.clk.Now())

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		if pending {
			timer.Reset(next.Sub(e.clk.Now()))
		}

		if pending {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			case <-e.wake:
			}
		} else {
			select {
			case <-ctx.Done():
				return
			case <-e.wake:
			}
		}
	}
}

// queuedEvent pairs an event with its global push order for stable
// dispatch of equal timestamps.
type queuedEvent struct {
	event iodriver.OutputEvent
	seq   uint64
}

type eventQueue []queuedEvent

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].event.Time != q[j].event.Time {
		return q[i].event.Time < q[j].event.Time
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(queuedEvent)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
