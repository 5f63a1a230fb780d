// internal/protocol/simulator.go
package protocol

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"biosignal-service/internal/model"
)

// SimulatorSource emulates the acquisition board: it produces DATA frames at
// the configured sampling rate carrying a synthetic ECG trace and a
// respiration ramp, paced by wall-clock time.
type SimulatorSource struct {
	config  *SimulatorConfig
	logger  *zap.Logger
	now     func() time.Time
	mutex   sync.Mutex
	isOpen  bool
	pending []byte
	last    time.Time
	carry   float64
	index   uint64
	stats   SourceStats
}

// NewSimulatorSource creates a simulated byte source
func NewSimulatorSource(config *SimulatorConfig, logger *zap.Logger) *SimulatorSource {
	return &SimulatorSource{
		config: config,
		logger: logger.With(zap.String("protocol", "simulator")),
		now:    time.Now,
	}
}

// Open starts the simulated stream
func (s *SimulatorSource) Open(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.isOpen {
		return nil
	}
	if s.config.SamplingRate <= 0 {
		return fmt.Errorf("simulator sampling rate must be positive")
	}

	s.isOpen = true
	s.last = s.now()
	s.carry = 0
	s.pending = s.pending[:0]
	s.stats.IsConnected = true
	s.stats.OpenedAt = s.last
	s.stats.LastActivity = s.last

	s.logger.Info("Simulator started",
		zap.Int("sampling_rate", s.config.SamplingRate),
		zap.Int("heart_rate", s.config.HeartRate),
		zap.Duration("breath_period", s.config.BreathPeriod),
	)
	return nil
}

// Close stops the simulated stream
func (s *SimulatorSource) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return nil
	}
	s.isOpen = false
	s.pending = nil
	s.stats.IsConnected = false
	s.logger.Info("Simulator stopped")
	return nil
}

// IsOpen returns whether the simulator is running
func (s *SimulatorSource) IsOpen() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.isOpen
}

// Read returns frames for the samples that became due since the last call
func (s *SimulatorSource) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return nil, ErrSourceNotOpen
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.generate()

	n := len(s.pending)
	if n > maxBytes {
		n = maxBytes
	}
	out := make([]byte, n)
	copy(out, s.pending[:n])
	s.pending = s.pending[n:]

	s.stats.ReadCount++
	if n > 0 {
		s.stats.BytesRead += int64(n)
		s.stats.LastActivity = s.now()
	}
	return out, nil
}

// GetSourceType returns the source type
func (s *SimulatorSource) GetSourceType() model.SourceType {
	return model.SourceTypeSimulator
}

// Describe returns a human readable description of the simulator
func (s *SimulatorSource) Describe() string {
	return fmt.Sprintf("simulator@%dHz", s.config.SamplingRate)
}

// Stats returns a copy of the source statistics
func (s *SimulatorSource) Stats() SourceStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stats
}

// generate appends frames for the time elapsed since the previous call
func (s *SimulatorSource) generate() {
	now := s.now()
	elapsed := now.Sub(s.last)
	s.last = now
	if elapsed <= 0 {
		return
	}
	if s.config.MaxBacklog > 0 && elapsed > s.config.MaxBacklog {
		elapsed = s.config.MaxBacklog
	}

	s.carry += elapsed.Seconds() * float64(s.config.SamplingRate)
	due := int(s.carry)
	s.carry -= float64(due)

	for i := 0; i < due; i++ {
		s.pending = append(s.pending, EncodeFrame(s.sampleAt(s.index))...)
		s.index++
	}
}

// sampleAt computes the synthetic sample for a stream position
func (s *SimulatorSource) sampleAt(index uint64) model.DecodedSample {
	fs := float64(s.config.SamplingRate)
	t := float64(index) / fs

	// ECG: P, QRS and T waves as gaussians within each beat
	phase := 0.0
	if s.config.HeartRate > 0 {
		beat := 60.0 / float64(s.config.HeartRate)
		phase = math.Mod(t, beat) / beat
	}
	ecg := 0.08*gauss(phase, 0.18, 0.03) -
		0.12*gauss(phase, 0.30, 0.01) +
		1.00*gauss(phase, 0.32, 0.008) -
		0.25*gauss(phase, 0.35, 0.012) +
		0.25*gauss(phase, 0.60, 0.06)
	ecg += s.config.Noise * (2*fract(math.Sin(12345.678*t)*9876.543) - 1)

	// Respiration: a rising ramp over each breath
	resp := 0.0
	deviceRR := uint16(0)
	if s.config.BreathPeriod > 0 {
		period := s.config.BreathPeriod.Seconds()
		resp = float64(s.config.RespAmplitude) * (math.Mod(t, period)/period - 0.5)
		deviceRR = uint16(math.Round(60.0 / period))
	}

	return model.DecodedSample{
		ECG:            clampInt16(ecg * 2000),
		RespWave:       clampInt16(resp),
		DeviceRespRate: deviceRR,
		HeartRate:      uint16(s.config.HeartRate),
	}
}

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}

func fract(x float64) float64 { return x - math.Floor(x) }

func clampInt16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(math.Round(v))
	}
}
