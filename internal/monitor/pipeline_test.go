package monitor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"biosignal-service/internal/model"
	"biosignal-service/internal/monitor"
	"biosignal-service/internal/protocol"
)

type readResult struct {
	data []byte
	err  error
}

// scriptedSource replays a fixed sequence of reads, then returns nothing
type scriptedSource struct {
	reads  []readResult
	open   bool
	calls  int
	limits []int
}

func (s *scriptedSource) Open(ctx context.Context) error { s.open = true; return nil }
func (s *scriptedSource) Close() error                   { s.open = false; return nil }
func (s *scriptedSource) IsOpen() bool                   { return s.open }

func (s *scriptedSource) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	s.calls++
	s.limits = append(s.limits, maxBytes)
	if len(s.reads) == 0 {
		return nil, nil
	}
	r := s.reads[0]
	s.reads = s.reads[1:]
	return r.data, r.err
}

func (s *scriptedSource) GetSourceType() model.SourceType { return model.SourceTypeSimulator }
func (s *scriptedSource) Describe() string                 { return "scripted" }
func (s *scriptedSource) Stats() protocol.SourceStats      { return protocol.SourceStats{} }

type recordingSink struct {
	points []model.SamplePoint
}

func (r *recordingSink) PublishSample(point model.SamplePoint) {
	r.points = append(r.points, point)
}

func frames(samples ...model.DecodedSample) []byte {
	var out []byte
	for _, s := range samples {
		out = append(out, protocol.EncodeFrame(s)...)
	}
	return out
}

func newTestPipeline(source protocol.ByteSource, sink monitor.Sink) *monitor.Pipeline {
	return monitor.NewPipeline(source, sink, monitor.PipelineOptions{
		SamplingRate:    125,
		WindowCapacity:  10,
		SessionDuration: time.Minute,
		ReadChunk:       16,
	}, zap.NewNop())
}

func TestPipelineDrainsUntilShortRead(t *testing.T) {
	stream := frames(
		model.DecodedSample{ECG: 1, HeartRate: 70},
		model.DecodedSample{ECG: 2, HeartRate: 71},
		model.DecodedSample{ECG: 3, HeartRate: 72},
	)
	source := &scriptedSource{open: true, reads: []readResult{
		{data: stream[0:16]},
		{data: stream[16:32]},
		{data: stream[32:48]},
		{data: nil},
	}}
	sink := &recordingSink{}
	p := newTestPipeline(source, sink)

	result, err := p.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, result.Samples)
	require.Equal(t, 48, result.BytesRead)
	require.Equal(t, 4, source.calls)
	require.Equal(t, []int{16, 16, 16, 16}, source.limits)

	require.Len(t, sink.points, 3)
	for i, point := range sink.points {
		require.Equal(t, uint64(i), point.Index)
		require.Equal(t, float64(i)/125, point.Time)
		require.Equal(t, int16(i+1), point.Sample.ECG)
	}

	snap := p.WindowSnapshot()
	require.Equal(t, []int16{1, 2, 3}, snap.ECG)
	require.Equal(t, []uint16{70, 71, 72}, snap.HeartRate)
}

func TestPipelineReadErrorKeepsPartialFrame(t *testing.T) {
	stream := frames(
		model.DecodedSample{ECG: 10},
		model.DecodedSample{ECG: 20},
		model.DecodedSample{ECG: 30},
	)
	readErr := errors.New("device unplugged")
	source := &scriptedSource{open: true, reads: []readResult{
		{data: stream[0:16]},
		{data: stream[16:26]},
		{err: readErr},
		{data: stream[26:42]},
		{data: stream[42:48]},
	}}
	sink := &recordingSink{}
	p := newTestPipeline(source, sink)

	result, err := p.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Samples)

	result, err = p.Poll(context.Background())
	require.ErrorIs(t, err, readErr)
	require.Equal(t, 0, result.Samples)

	result, err = p.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Samples)

	require.Len(t, sink.points, 3)
	for i, want := range []int16{10, 20, 30} {
		require.Equal(t, uint64(i), sink.points[i].Index)
		require.Equal(t, want, sink.points[i].Sample.ECG)
	}

	stats := p.Stats()
	require.Equal(t, uint64(1), stats.ReadErrors)
	require.Equal(t, uint64(3), stats.SampleCount)
	require.Equal(t, uint64(3), stats.Decoder.FramesDecoded)
}

func TestPipelineResyncsThroughNoise(t *testing.T) {
	stream := append([]byte{0x00, 0x0A, 0x13, 0xFA}, frames(model.DecodedSample{ECG: 5})...)
	source := &scriptedSource{open: true, reads: []readResult{{data: stream}}}
	sink := &recordingSink{}
	p := newTestPipeline(source, sink)

	result, err := p.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Samples)
	require.Equal(t, int16(5), sink.points[0].Sample.ECG)
}

func TestPipelineResetDropsPartialFrame(t *testing.T) {
	stream := frames(model.DecodedSample{ECG: 1}, model.DecodedSample{ECG: 2})
	source := &scriptedSource{open: true, reads: []readResult{
		{data: stream[0:10]},
		{data: stream[10:16]},
		{data: stream[16:32]},
		{data: nil},
	}}
	sink := &recordingSink{}
	p := newTestPipeline(source, sink)

	_, err := p.Poll(context.Background())
	require.NoError(t, err)
	p.Reset()

	// the tail of the first frame is noise now
	_, err = p.Poll(context.Background())
	require.NoError(t, err)
	_, err = p.Poll(context.Background())
	require.NoError(t, err)

	require.Len(t, sink.points, 1)
	require.Equal(t, int16(2), sink.points[0].Sample.ECG)
}

func TestPipelineRequiresOpenSource(t *testing.T) {
	p := newTestPipeline(&scriptedSource{}, nil)

	_, err := p.Poll(context.Background())
	require.ErrorIs(t, err, protocol.ErrSourceNotOpen)

	p = newTestPipeline(nil, nil)
	_, err = p.Poll(context.Background())
	require.ErrorIs(t, err, protocol.ErrSourceNotOpen)
}

func TestPipelineFeedsSession(t *testing.T) {
	source := &scriptedSource{open: true}
	p := newTestPipeline(source, nil)

	// samples before the session starts are not averaged
	source.reads = []readResult{{data: frames(model.DecodedSample{HeartRate: 200})}}
	_, err := p.Poll(context.Background())
	require.NoError(t, err)

	status, err := p.StartSession(t0)
	require.NoError(t, err)
	require.True(t, status.Active)

	_, err = p.StartSession(t0)
	require.ErrorIs(t, err, monitor.ErrSessionActive)

	source.reads = []readResult{
		{data: frames(model.DecodedSample{HeartRate: 60}, model.DecodedSample{HeartRate: 70})[:16]},
		{data: frames(model.DecodedSample{HeartRate: 60}, model.DecodedSample{HeartRate: 70})[16:]},
	}
	_, err = p.Poll(context.Background())
	require.NoError(t, err)

	_, done := p.PollSession(t0.Add(30 * time.Second))
	require.False(t, done)
	require.Equal(t, 2, p.SessionStatus(t0.Add(30*time.Second)).SampleCount)

	result, done := p.PollSession(t0.Add(time.Minute))
	require.True(t, done)
	require.Equal(t, uint16(65), result.AvgHeartRate)
	require.Equal(t, uint16(0), result.AvgRespRate)

	_, err = p.StopSession(t0.Add(time.Minute))
	require.ErrorIs(t, err, monitor.ErrSessionInactive)
}

func TestPipelineSnapshot(t *testing.T) {
	source := &scriptedSource{open: true, reads: []readResult{
		{data: frames(model.DecodedSample{ECG: 42, RespWave: 7, DeviceRespRate: 18, HeartRate: 66})},
	}}
	p := newTestPipeline(source, nil)

	snap := p.Snapshot(t0)
	require.False(t, snap.HasSample)

	_, err := p.Poll(context.Background())
	require.NoError(t, err)

	snap = p.Snapshot(t0)
	require.True(t, snap.HasSample)
	require.Equal(t, uint64(1), snap.SampleCount)
	require.Equal(t, int16(42), snap.Latest.Sample.ECG)
	require.Equal(t, uint16(66), snap.Latest.Sample.HeartRate)
	require.False(t, snap.RespRateReady)
	require.False(t, snap.Calibrated)
	require.Equal(t, t0, snap.CapturedAt)
}
