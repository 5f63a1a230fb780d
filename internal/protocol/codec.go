// internal/protocol/codec.go
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"biosignal-service/internal/model"
)

// ErrPayloadLength is returned when a DATA payload is not exactly 9 bytes
var ErrPayloadLength = errors.New("invalid data payload length")

// DecodeSample interprets a DATA payload. Byte 8 is padding.
func DecodeSample(payload []byte) (model.DecodedSample, error) {
	if len(payload) != DataPayloadLength {
		return model.DecodedSample{}, fmt.Errorf("%w: got %d, want %d", ErrPayloadLength, len(payload), DataPayloadLength)
	}

	return model.DecodedSample{
		ECG:            int16(binary.LittleEndian.Uint16(payload[0:2])),
		RespWave:       int16(binary.LittleEndian.Uint16(payload[2:4])),
		DeviceRespRate: binary.LittleEndian.Uint16(payload[4:6]),
		HeartRate:      binary.LittleEndian.Uint16(payload[6:8]),
	}, nil
}

// EncodeSample builds the 9-byte DATA payload for a sample
func EncodeSample(sample model.DecodedSample) []byte {
	payload := make([]byte, DataPayloadLength)
	binary.LittleEndian.PutUint16(payload[0:2], uint16(sample.ECG))
	binary.LittleEndian.PutUint16(payload[2:4], uint16(sample.RespWave))
	binary.LittleEndian.PutUint16(payload[4:6], sample.DeviceRespRate)
	binary.LittleEndian.PutUint16(payload[6:8], sample.HeartRate)
	return payload
}

// EncodeFrame wraps a sample into a complete DATA frame as sent by the board
func EncodeFrame(sample model.DecodedSample) []byte {
	frame := make([]byte, 0, DataPayloadLength+frameOverhead)
	frame = append(frame, PacketStart1, PacketStart2, DataPayloadLength, 0x00, PacketTypeData)
	frame = append(frame, EncodeSample(sample)...)
	frame = append(frame, 0x00, PacketStop)
	return frame
}
