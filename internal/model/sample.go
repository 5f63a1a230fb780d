// internal/model/sample.go
package model

import "time"

// DecodedSample is one DATA frame payload from the acquisition board
type DecodedSample struct {
	ECG            int16  `json:"ecg"`
	RespWave       int16  `json:"resp_wave"`
	DeviceRespRate uint16 `json:"device_resp_rate"`
	HeartRate      uint16 `json:"heart_rate"`
}

// SamplePoint is a decoded sample stamped with its stream position and the
// host-side respiration rate computed for it
type SamplePoint struct {
	Index    uint64        `json:"index"`
	Time     float64       `json:"time"`
	Sample   DecodedSample `json:"sample"`
	RespRate uint16        `json:"resp_rate"`
}

// MetricsSnapshot is a read-only copy of the most recent pipeline output
type MetricsSnapshot struct {
	SampleCount   uint64        `json:"sample_count"`
	HasSample     bool          `json:"has_sample"`
	Latest        SamplePoint   `json:"latest"`
	RespRate      uint16        `json:"resp_rate"`
	RespRateReady bool          `json:"resp_rate_ready"`
	Calibrated    bool          `json:"calibrated"`
	Session       SessionStatus `json:"session"`
	CapturedAt    time.Time     `json:"captured_at"`
}
