// internal/monitor/pipeline.go
package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"biosignal-service/internal/analysis"
	"biosignal-service/internal/model"
	"biosignal-service/internal/protocol"
)

const (
	DefaultSamplingRate    = 125
	DefaultReadChunk       = 256
	DefaultMaxReadsPerPoll = 64
)

// Sink receives every decoded sample together with its respiration rate
type Sink interface {
	PublishSample(point model.SamplePoint)
}

type nopSink struct{}

func (nopSink) PublishSample(model.SamplePoint) {}

// PipelineOptions configures the acquisition pipeline
type PipelineOptions struct {
	SamplingRate    int
	WindowCapacity  int
	SessionDuration time.Duration
	ReadChunk       int
	MaxReadsPerPoll int
}

func (o *PipelineOptions) applyDefaults() {
	if o.SamplingRate <= 0 {
		o.SamplingRate = DefaultSamplingRate
	}
	if o.WindowCapacity <= 0 {
		o.WindowCapacity = DefaultWindowCapacity
	}
	if o.SessionDuration <= 0 {
		o.SessionDuration = DefaultSessionDuration
	}
	if o.ReadChunk <= 0 {
		o.ReadChunk = DefaultReadChunk
	}
	if o.MaxReadsPerPoll <= 0 {
		o.MaxReadsPerPoll = DefaultMaxReadsPerPoll
	}
}

// PollResult summarizes one poll cycle
type PollResult struct {
	BytesRead int
	Samples   int
}

// PipelineStats counts pipeline activity since construction
type PipelineStats struct {
	Polls        uint64                     `json:"polls"`
	ReadErrors   uint64                     `json:"read_errors"`
	CodecErrors  uint64                     `json:"codec_errors"`
	SampleCount  uint64                     `json:"sample_count"`
	Decoder      protocol.DecoderStats      `json:"decoder"`
	Estimator    analysis.EstimatorSnapshot `json:"estimator"`
	WindowLength int                        `json:"window_length"`
}

// Pipeline drains a byte source, decodes frames and feeds the estimator,
// rolling window, averaging session and sink in arrival order. It is not safe
// for concurrent use; a single goroutine must own it.
type Pipeline struct {
	source    protocol.ByteSource
	sink      Sink
	opts      PipelineOptions
	logger    *zap.Logger
	decoder   *protocol.FrameDecoder
	estimator *analysis.Estimator
	window    *RollingWindow
	session   *AveragingSession

	index       uint64
	latest      model.SamplePoint
	hasLatest   bool
	polls       uint64
	readErrors  uint64
	codecErrors uint64
}

// NewPipeline creates a pipeline. source may be nil until SetSource is called.
func NewPipeline(source protocol.ByteSource, sink Sink, opts PipelineOptions, logger *zap.Logger) *Pipeline {
	opts.applyDefaults()
	if sink == nil {
		sink = nopSink{}
	}
	return &Pipeline{
		source:    source,
		sink:      sink,
		opts:      opts,
		logger:    logger.With(zap.String("component", "pipeline")),
		decoder:   protocol.NewFrameDecoder(),
		estimator: analysis.NewEstimator(),
		window:    NewRollingWindow(opts.WindowCapacity),
		session:   NewAveragingSession(opts.SessionDuration),
	}
}

// Options returns the effective options
func (p *Pipeline) Options() PipelineOptions {
	return p.opts
}

// Source returns the current byte source
func (p *Pipeline) Source() protocol.ByteSource {
	return p.source
}

// SetSource swaps the byte source and discards any partial frame
func (p *Pipeline) SetSource(source protocol.ByteSource) {
	p.source = source
	p.decoder.Reset()
}

// Poll drains every byte currently available from the source. A read error
// aborts the cycle; decoder state is kept so the next poll resumes mid-frame.
func (p *Pipeline) Poll(ctx context.Context) (PollResult, error) {
	var result PollResult
	if p.source == nil || !p.source.IsOpen() {
		return result, protocol.ErrSourceNotOpen
	}
	p.polls++

	for i := 0; i < p.opts.MaxReadsPerPoll; i++ {
		data, err := p.source.Read(ctx, p.opts.ReadChunk)
		if err != nil {
			p.readErrors++
			return result, fmt.Errorf("failed to read from %s: %w", p.source.Describe(), err)
		}

		result.BytesRead += len(data)
		for _, frame := range p.decoder.Feed(data) {
			if p.handleFrame(frame) {
				result.Samples++
			}
		}

		if len(data) < p.opts.ReadChunk {
			break
		}
	}

	return result, nil
}

func (p *Pipeline) handleFrame(frame protocol.Frame) bool {
	sample, err := protocol.DecodeSample(frame.Payload)
	if err != nil {
		p.codecErrors++
		p.logger.Debug("Dropping undecodable frame", zap.Error(err))
		return false
	}

	rate := p.estimator.Update(sample.RespWave)
	t := float64(p.index) / float64(p.opts.SamplingRate)

	p.window.Insert(t, sample, rate)
	p.session.Add(sample.HeartRate, rate)

	point := model.SamplePoint{
		Index:    p.index,
		Time:     t,
		Sample:   sample,
		RespRate: rate,
	}
	p.latest = point
	p.hasLatest = true
	p.index++

	p.sink.PublishSample(point)
	return true
}

// Reset abandons any partially received frame
func (p *Pipeline) Reset() {
	p.decoder.Reset()
}

// PollSession finalizes the averaging session once its duration has elapsed
func (p *Pipeline) PollSession(now time.Time) (*model.SessionResult, bool) {
	return p.session.Poll(now)
}

// StartSession starts an averaging session
func (p *Pipeline) StartSession(now time.Time) (model.SessionStatus, error) {
	if err := p.session.Start(now); err != nil {
		return p.session.Status(now), err
	}
	return p.session.Status(now), nil
}

// StopSession finalizes the running averaging session
func (p *Pipeline) StopSession(now time.Time) (*model.SessionResult, error) {
	return p.session.Stop(now)
}

// SessionStatus describes the averaging session
func (p *Pipeline) SessionStatus(now time.Time) model.SessionStatus {
	return p.session.Status(now)
}

// Snapshot returns the latest metrics
func (p *Pipeline) Snapshot(now time.Time) model.MetricsSnapshot {
	return model.MetricsSnapshot{
		SampleCount:   p.index,
		HasSample:     p.hasLatest,
		Latest:        p.latest,
		RespRate:      p.estimator.Rate(),
		RespRateReady: p.estimator.Rate() > 0,
		Calibrated:    p.estimator.Calibrated(),
		Session:       p.session.Status(now),
		CapturedAt:    now,
	}
}

// WindowSnapshot copies the rolling window
func (p *Pipeline) WindowSnapshot() WindowSnapshot {
	return p.window.Snapshot()
}

// Stats returns pipeline counters
func (p *Pipeline) Stats() PipelineStats {
	return PipelineStats{
		Polls:        p.polls,
		ReadErrors:   p.readErrors,
		CodecErrors:  p.codecErrors,
		SampleCount:  p.index,
		Decoder:      p.decoder.Stats(),
		Estimator:    p.estimator.Snapshot(),
		WindowLength: p.window.Len(),
	}
}
