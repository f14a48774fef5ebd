package coproc

import (
	"encoding/binary"
	"fmt"

	"rovercode-go/errcode"
)

// Frame sizes.
const (
	RequestSize = 5
	ReplySize   = 16 // bytes read per reply; surplus is reserved
	MinReply    = 9
)

// Status is the one-byte request/reply state.
type Status byte

const (
	StatusUnknown Status = 0
	StatusInitial Status = 'I'
	StatusSuccess Status = 'S'
	StatusError   Status = 'E'
	StatusNop     Status = 'N'
)

// ParseStatus maps a wire byte to a known Status.
func ParseStatus(b byte) (Status, bool) {
	switch s := Status(b); s {
	case StatusInitial, StatusSuccess, StatusError, StatusNop:
		return s, true
	}
	return StatusUnknown, false
}

func (s Status) String() string {
	switch s {
	case StatusInitial:
		return "initial"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusNop:
		return "nop"
	default:
		return "unknown"
	}
}

// Request is an outbound command.
type Request struct {
	Token  uint32
	Status Status
}

// NewRequest keeps only the low 32 bits of token.
func NewRequest(token uint64, st Status) Request {
	return Request{Token: uint32(token), Status: st}
}

// Encode returns [tok0..tok3, status], token little-endian.
func (r Request) Encode() [RequestSize]byte {
	var b [RequestSize]byte
	binary.LittleEndian.PutUint32(b[:4], r.Token)
	b[4] = byte(r.Status)
	return b
}

// Reply is a decoded inbound frame. Value and the NumberMA/NumberMB halves
// are two readings of the same four bytes.
type Reply struct {
	Token    uint64
	Status   Status // StatusUnknown when the byte is not a known status
	Value    int32
	NumberMA uint16 // high half of Value
	NumberMB uint16 // low half of Value
}

// HasStatus reports whether the status byte was recognised.
func (r Reply) HasStatus() bool { return r.Status != StatusUnknown }

func (r Reply) String() string {
	return fmt.Sprintf("token=%d status=%s value=%d ma=%d mb=%d",
		r.Token, r.Status, r.Value, r.NumberMA, r.NumberMB)
}

// DecodeReply parses the first MinReply bytes of b.
func DecodeReply(b []byte) (Reply, error) {
	if len(b) < MinReply {
		return Reply{}, errcode.New(errcode.FrameError, "coproc.decode",
			fmt.Sprintf("%d bytes < %d", len(b), MinReply))
	}
	raw := binary.LittleEndian.Uint32(b[5:9])
	st, _ := ParseStatus(b[4])
	return Reply{
		Token:    uint64(binary.LittleEndian.Uint32(b[0:4])),
		Status:   st,
		Value:    int32(raw),
		NumberMA: uint16(raw >> 16),
		NumberMB: uint16(raw),
	}, nil
}
