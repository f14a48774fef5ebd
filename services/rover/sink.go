package rover

import (
	"rovercode-go/bus"
	"rovercode-go/drivers/us100"
	"rovercode-go/types"
)

// BusSink publishes each range measurement as a retained message.
type BusSink struct {
	Conn  *bus.Connection
	Topic bus.Topic
}

func rangeValue(m us100.Measurement) types.RangeValue {
	return types.RangeValue{
		DistanceCm:  m.DistanceCm(),
		ElapsedMs:   m.ElapsedMs(),
		TimestampNs: m.TimestampNs,
	}
}

func (s BusSink) Publish(m us100.Measurement) {
	topic := s.Topic
	if topic == nil {
		topic = TopicRange
	}
	s.Conn.Publish(s.Conn.NewMessage(topic, rangeValue(m), true))
}

// fanout hands each measurement to several sinks in order.
type fanout []us100.Sink

func (f fanout) Publish(m us100.Measurement) {
	for _, s := range f {
		s.Publish(m)
	}
}
