package bus

import (
	"context"
	"sort"
	"testing"
	"time"

	"rovercode-go/errcode"
)

func TestPublishSubscribe(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")

	sub := c.Subscribe(T("rover", "range"))
	c.Publish(c.NewMessage(T("rover", "range"), "12.5", false))
	expectOneOf(t, sub, "12.5")

	c.Publish(c.NewMessage(T("rover", "temperature"), "21.0", false))
	expectNoMessage(t, sub)
}

func TestRetainedReplayedToLateSubscriber(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")

	c.Publish(c.NewMessage(ParseTopic("rover/temperature"), "old", true))
	c.Publish(c.NewMessage(ParseTopic("rover/temperature"), "new", true))

	sub := c.Subscribe(ParseTopic("rover/temperature"))
	expectOneOf(t, sub, "new")
	expectNoMessage(t, sub)
}

func TestSingleLevelWildcard(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	sFault := c.Subscribe(T("rover", "dac", "+", "fault"))
	sAny := c.Subscribe(T("rover", "+"))
	sNo := c.Subscribe(T("rover", "+", "x"))

	c.Publish(b.NewMessage(T("rover", "dac", "0x60", "fault"), "ocp", false))
	expectOneOf(t, sFault, "ocp")
	expectNoMessage(t, sAny)
	expectNoMessage(t, sNo)

	c.Publish(b.NewMessage(T("rover", "range"), "r", false))
	expectOneOf(t, sAny, "r")
	expectNoMessage(t, sFault)
}

func TestMultiLevelWildcard(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	sRover := c.Subscribe(T("rover", "#"))
	sAll := c.Subscribe(T("#"))
	sExact := c.Subscribe(T("rover"))

	c.Publish(b.NewMessage(T("rover"), "p1", false))
	expectOneOf(t, sRover, "p1")
	expectOneOf(t, sAll, "p1")
	expectOneOf(t, sExact, "p1")

	c.Publish(b.NewMessage(T("rover", "dac", "0x60"), "p2", false))
	expectOneOf(t, sRover, "p2")
	expectOneOf(t, sAll, "p2")
	expectNoMessage(t, sExact)
}

func TestRetainedWithWildcards(t *testing.T) {
	b := NewBus(32)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(T("rover"), "r0", true))
	c.Publish(b.NewMessage(T("rover", "range"), "r1", true))
	c.Publish(b.NewMessage(T("rover", "dac", "0x60"), "r2", true))
	c.Publish(b.NewMessage(T("rover", "temperature"), "r3", true))

	assertUnorderedEqual(t, drainPayloads(t, c.Subscribe(T("rover", "#")), 4), []string{"r0", "r1", "r2", "r3"})
	assertUnorderedEqual(t, drainPayloads(t, c.Subscribe(T("rover", "+", "#")), 3), []string{"r1", "r2", "r3"})
	assertUnorderedEqual(t, drainPayloads(t, c.Subscribe(T("rover", "+")), 2), []string{"r1", "r3"})
}

func TestRetainedClearedByNilPayload(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(T("rover", "range"), "keep", true))
	c.Publish(b.NewMessage(T("rover", "coproc"), "other", true))
	c.Publish(b.NewMessage(T("rover", "range"), nil, true))

	got := drainPayloads(t, c.Subscribe(T("rover", "#")), 1)
	if got[0] != "other" {
		t.Fatalf("expected only 'other' after clear, got %v", got)
	}
}

func TestFullQueueDropsOldest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	sub := c.Subscribe(T("rover", "range"))

	for _, p := range []string{"a", "b", "c"} {
		c.Publish(b.NewMessage(T("rover", "range"), p, false))
	}
	expectOneOf(t, sub, "b")
	expectOneOf(t, sub, "c")
}

func TestUnsubscribeAndDisconnectCloseChannels(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")

	s1 := c.Subscribe(T("a"))
	s2 := c.Subscribe(T("b", "+"))
	s1.Unsubscribe()
	if _, ok := <-s1.Channel(); ok {
		t.Fatal("channel open after Unsubscribe")
	}
	c.Disconnect()
	if _, ok := <-s2.Channel(); ok {
		t.Fatal("channel open after Disconnect")
	}
	// a second unsubscribe is harmless
	c.Unsubscribe(s2)

	c.Publish(b.NewMessage(T("b", "x"), "late", false))
	if len(b.root.children) != 0 {
		t.Fatalf("trie not pruned: %v", b.root.children)
	}
}

func TestRequestWait(t *testing.T) {
	b := NewBus(8)
	reqConn := b.NewConnection("cli")
	respConn := b.NewConnection("rover")

	reqTopic := T("rover", "get", "temperature")
	respSub := respConn.Subscribe(T("rover", "get", "+"))
	defer respConn.Unsubscribe(respSub)

	go func() {
		if msg, ok := <-respSub.Channel(); ok {
			respConn.Reply(msg, "21.5", false)
		}
	}()

	req := b.NewMessage(reqTopic, nil, false)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	reply, err := reqConn.RequestWait(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error waiting for reply: %v", err)
	}
	if got, ok := reply.Payload.(string); !ok || got != "21.5" {
		t.Fatalf("unexpected reply payload: %#v", reply.Payload)
	}
	if len(req.ReplyTo) == 0 || !reply.Topic.Equal(req.ReplyTo) {
		t.Fatalf("reply topic %v, request ReplyTo %v", reply.Topic, req.ReplyTo)
	}
}

func TestRequestWaitTimeout(t *testing.T) {
	b := NewBus(8)
	c := b.NewConnection("cli")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.RequestWait(ctx, b.NewMessage(T("nobody", "home"), nil, false))
	if errcode.Of(err) != errcode.Timeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestTopicHelpers(t *testing.T) {
	tp := ParseTopic("rover/dac/0x60")
	if tp.String() != "rover/dac/0x60" || len(tp) != 3 {
		t.Fatalf("parse %v", tp)
	}
	if !tp.Append("fault").Equal(T("rover", "dac", "0x60", "fault")) {
		t.Fatal("append")
	}
	if ParseTopic("") != nil {
		t.Fatal("empty topic")
	}
}

// helpers

func expectOneOf(t *testing.T, sub *Subscription, want string) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		s, ok := got.Payload.(string)
		if !ok || s != want {
			t.Fatalf("unexpected payload: %v (want %q)", got.Payload, want)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for %q", want)
	}
}

func expectNoMessage(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		t.Fatalf("unexpected message: %#v", got)
	case <-time.After(30 * time.Millisecond):
	}
}

func drainPayloads(t *testing.T, sub *Subscription, n int) []string {
	t.Helper()
	var out []string
	for len(out) < n {
		select {
		case m := <-sub.Channel():
			out = append(out, m.Payload.(string))
		case <-time.After(200 * time.Millisecond):
			t.Fatalf("expected %d messages, got %v", n, out)
		}
	}
	return out
}

func assertUnorderedEqual(t *testing.T, got, want []string) {
	t.Helper()
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
