// internal/protocol/connection.go
package protocol

import "time"

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port        string        `json:"port"`
	BaudRate    int           `json:"baud_rate"`
	DataBits    int           `json:"data_bits"`
	StopBits    int           `json:"stop_bits"`
	Parity      string        `json:"parity"`
	ReadTimeout time.Duration `json:"read_timeout"`
}

// SimulatorConfig describes the synthetic board
type SimulatorConfig struct {
	SamplingRate  int           `json:"sampling_rate"`
	HeartRate     int           `json:"heart_rate"`
	BreathPeriod  time.Duration `json:"breath_period"`
	RespAmplitude int           `json:"resp_amplitude"`
	Noise         float64       `json:"noise"`
	MaxBacklog    time.Duration `json:"max_backlog"`
}

// SupportedBaudRates lists the rates the board firmware can be flashed with
var SupportedBaudRates = []int{9600, 19200, 38400, 57600, 115200}

// IsSupportedBaudRate reports whether rate is one of SupportedBaudRates
func IsSupportedBaudRate(rate int) bool {
	for _, r := range SupportedBaudRates {
		if r == rate {
			return true
		}
	}
	return false
}
