// Package bus is an in-process publish/subscribe bus over hierarchical
// topics. Drivers never touch it; the rover service publishes measurements
// and replies here and the CLI subscribes.
//
// Subscriptions may use "+" to match one level and a trailing "#" to match
// the rest of the topic (including none). A retained message is kept per
// exact topic and replayed to later matching subscribers; publishing a
// retained nil payload clears it. Each subscription has a bounded queue and
// the oldest message is dropped when it is full.
package bus

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"rovercode-go/errcode"
)

const (
	SingleLevel = "+"
	MultiLevel  = "#"
)

// Topic is a path of levels, e.g. {"rover", "range"}.
type Topic []string

// T builds a Topic.
func T(levels ...string) Topic { return Topic(levels) }

// ParseTopic splits "a/b/c".
func ParseTopic(s string) Topic {
	if s == "" {
		return nil
	}
	return Topic(strings.Split(s, "/"))
}

func (t Topic) String() string { return strings.Join(t, "/") }

// Append returns a new topic with extra levels.
func (t Topic) Append(levels ...string) Topic {
	out := make(Topic, 0, len(t)+len(levels))
	return append(append(out, t...), levels...)
}

// Equal reports level-wise equality.
func (t Topic) Equal(o Topic) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	// ReplyTo, when set, is where a responder publishes its answer.
	ReplyTo Topic
}

type Subscription struct {
	pattern Topic
	ch      chan *Message
	conn    *Connection
	closed  bool
}

func (s *Subscription) Topic() Topic             { return s.pattern }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

type node struct {
	children map[string]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(level string, create bool) *node {
	if c, ok := n.children[level]; ok || !create {
		return c
	}
	if n.children == nil {
		n.children = map[string]*node{}
	}
	c := &node{}
	n.children[level] = c
	return c
}

func (n *node) empty() bool {
	return len(n.subs) == 0 && len(n.children) == 0 && n.retained == nil
}

type Bus struct {
	mu   sync.Mutex
	root node
	qLen int
	seq  atomic.Uint64
}

// NewBus creates a bus whose subscriptions queue queueLen messages.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{qLen: queueLen}
}

func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// deliver enqueues m, dropping the oldest queued message when full.
// Caller holds b.mu.
func deliver(s *Subscription, m *Message) {
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- m:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Publish routes msg to every matching subscription.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Retained {
		n := &b.root
		for _, lvl := range msg.Topic {
			n = n.child(lvl, true)
		}
		if msg.Payload == nil {
			n.retained = nil
		} else {
			n.retained = msg
		}
	}
	b.match(&b.root, msg.Topic, func(s *Subscription) { deliver(s, msg) })
	if msg.Retained && msg.Payload == nil {
		b.prune(msg.Topic)
	}
}

// match calls fn for each subscription whose pattern matches topic.
func (b *Bus) match(n *node, topic Topic, fn func(*Subscription)) {
	if h := n.children[MultiLevel]; h != nil {
		for _, s := range h.subs {
			fn(s)
		}
	}
	if len(topic) == 0 {
		for _, s := range n.subs {
			fn(s)
		}
		return
	}
	if c := n.children[topic[0]]; c != nil {
		b.match(c, topic[1:], fn)
	}
	if topic[0] != SingleLevel {
		if c := n.children[SingleLevel]; c != nil {
			b.match(c, topic[1:], fn)
		}
	}
}

// retainedFor collects retained messages under n matching pattern.
func retainedFor(n *node, pattern Topic, out []*Message) []*Message {
	if len(pattern) == 0 {
		if n.retained != nil {
			out = append(out, n.retained)
		}
		return out
	}
	switch pattern[0] {
	case MultiLevel:
		var walk func(*node)
		walk = func(x *node) {
			if x.retained != nil {
				out = append(out, x.retained)
			}
			for _, c := range x.children {
				walk(c)
			}
		}
		walk(n)
	case SingleLevel:
		for _, c := range n.children {
			out = retainedFor(c, pattern[1:], out)
		}
	default:
		if c := n.children[pattern[0]]; c != nil {
			out = retainedFor(c, pattern[1:], out)
		}
	}
	return out
}

func (b *Bus) subscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := &b.root
	for _, lvl := range s.pattern {
		n = n.child(lvl, true)
	}
	n.subs = append(n.subs, s)
	for _, m := range retainedFor(&b.root, s.pattern, nil) {
		deliver(s, m)
	}
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.closed {
		return
	}
	n := &b.root
	for _, lvl := range s.pattern {
		if n = n.child(lvl, false); n == nil {
			break
		}
	}
	if n != nil {
		for i, x := range n.subs {
			if x == s {
				n.subs = append(n.subs[:i], n.subs[i+1:]...)
				break
			}
		}
	}
	s.closed = true
	close(s.ch)
	b.prune(s.pattern)
}

// prune removes empty nodes along path. Caller holds b.mu.
func (b *Bus) prune(path Topic) {
	stack := []*node{&b.root}
	n := &b.root
	for _, lvl := range path {
		if n = n.child(lvl, false); n == nil {
			return
		}
		stack = append(stack, n)
	}
	for i := len(path) - 1; i >= 0; i-- {
		if !stack[i+1].empty() {
			return
		}
		delete(stack[i].children, path[i])
	}
}

// Connection groups the subscriptions of one client so they can be closed
// together.
type Connection struct {
	bus *Bus
	id  string

	mu   sync.Mutex
	subs []*Subscription
}

func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }
func (c *Connection) Bus() *Bus  { return c.bus }

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

func (c *Connection) Subscribe(pattern Topic) *Subscription {
	s := &Subscription{
		pattern: pattern,
		ch:      make(chan *Message, c.bus.qLen),
		conn:    c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, s)
	c.mu.Unlock()
	c.bus.subscribe(s)
	return s
}

func (c *Connection) Unsubscribe(s *Subscription) {
	c.mu.Lock()
	for i, x := range c.subs {
		if x == s {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.bus.unsubscribe(s)
}

// Disconnect closes every subscription of the connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		c.bus.unsubscribe(s)
	}
}

// Request assigns msg a private ReplyTo topic, subscribes to it and
// publishes msg. The caller owns the returned subscription.
func (c *Connection) Request(msg *Message) *Subscription {
	n := c.bus.seq.Add(1)
	msg.ReplyTo = T("_reply", c.id, strconv.FormatUint(n, 10))
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

// RequestWait sends msg and waits for the first reply or ctx.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)
	select {
	case m, ok := <-sub.Channel():
		if !ok {
			return nil, errcode.New(errcode.Interrupted, "bus.request", msg.Topic.String())
		}
		return m, nil
	case <-ctx.Done():
		return nil, errcode.Wrap(errcode.Timeout, "bus.request", msg.Topic.String(), ctx.Err())
	}
}

// Reply answers req on its ReplyTo topic. Requests without one are ignored.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if len(req.ReplyTo) == 0 {
		return
	}
	c.Publish(&Message{Topic: req.ReplyTo, Payload: payload, Retained: retained})
}
