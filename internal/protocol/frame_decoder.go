// internal/protocol/frame_decoder.go
package protocol

// Wire markers of the acquisition board's command interface
const (
	PacketStart1 byte = 0x0A
	PacketStart2 byte = 0xFA
	PacketStop   byte = 0x0B

	// PacketTypeData is the only frame type the host decodes
	PacketTypeData byte = 0x02

	// DataPayloadLength is the payload size of a DATA frame
	DataPayloadLength = 9

	// frameOverhead counts every byte of a frame that is not payload
	frameOverhead = 7
)

type decoderState int

const (
	stateWaitStart1 decoderState = iota
	stateWaitStart2
	stateReadLen
	stateReadZero1
	stateReadType
	stateReadPayload
	stateReadZero2
	stateReadStop
)

// Frame is a validated unit extracted from the byte stream
type Frame struct {
	Length  uint8
	Type    uint8
	Payload []byte
}

// DecoderStats counts what the decoder has done with the bytes it was fed
type DecoderStats struct {
	BytesFed          uint64 `json:"bytes_fed"`
	BytesSkipped      uint64 `json:"bytes_skipped"`
	FramesDecoded     uint64 `json:"frames_decoded"`
	FramesUnsupported uint64 `json:"frames_unsupported"`
	FramesBadStop     uint64 `json:"frames_bad_stop"`
}

// FrameDecoder turns an arbitrary byte stream into frames. It keeps its state
// between Feed calls, so input may be split at any byte boundary.
type FrameDecoder struct {
	state   decoderState
	length  uint8
	typ     uint8
	payload [DataPayloadLength]byte
	filled  int
	stats   DecoderStats
}

// NewFrameDecoder creates a decoder waiting for the first start byte
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{state: stateWaitStart1}
}

// Feed consumes data and returns every frame completed by it
func (d *FrameDecoder) Feed(data []byte) []Frame {
	var frames []Frame
	for _, b := range data {
		d.stats.BytesFed++
		if frame, ok := d.step(b); ok {
			frames = append(frames, frame)
		}
	}
	return frames
}

// Reset abandons any partially received frame
func (d *FrameDecoder) Reset() {
	d.state = stateWaitStart1
	d.length = 0
	d.typ = 0
	d.filled = 0
}

// Stats returns a copy of the decoder counters
func (d *FrameDecoder) Stats() DecoderStats {
	return d.stats
}

func (d *FrameDecoder) step(b byte) (Frame, bool) {
	switch d.state {
	case stateWaitStart1:
		if b == PacketStart1 {
			d.state = stateWaitStart2
		} else {
			d.stats.BytesSkipped++
		}

	case stateWaitStart2:
		if b == PacketStart2 {
			d.state = stateReadLen
			return Frame{}, false
		}
		// Any byte may open a new sync attempt.
		d.stats.BytesSkipped++
		d.state = stateWaitStart1
		return d.step(b)

	case stateReadLen:
		d.length = b
		d.state = stateReadZero1

	case stateReadZero1:
		d.state = stateReadType

	case stateReadType:
		d.typ = b
		if d.typ != PacketTypeData || d.length != DataPayloadLength {
			d.stats.FramesUnsupported++
			d.Reset()
			return Frame{}, false
		}
		d.filled = 0
		d.state = stateReadPayload

	case stateReadPayload:
		d.payload[d.filled] = b
		d.filled++
		if d.filled == int(d.length) {
			d.state = stateReadZero2
		}

	case stateReadZero2:
		d.state = stateReadStop

	case stateReadStop:
		if b != PacketStop {
			d.stats.FramesBadStop++
			d.Reset()
			return Frame{}, false
		}
		frame := Frame{
			Length:  d.length,
			Type:    d.typ,
			Payload: make([]byte, d.filled),
		}
		copy(frame.Payload, d.payload[:d.filled])
		d.stats.FramesDecoded++
		d.Reset()
		return frame, true
	}

	return Frame{}, false
}
