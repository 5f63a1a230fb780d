package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"biosignal-service/internal/config"
	"biosignal-service/internal/model"
	"biosignal-service/internal/monitor"
	"biosignal-service/internal/protocol"
	"biosignal-service/internal/repository"
)

type fakeSource struct {
	mu      sync.Mutex
	open    bool
	openErr error
	pending []byte
	readErr error
}

func (f *fakeSource) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.open = true
	return nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	return nil
}

func (f *fakeSource) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeSource) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	n := min(maxBytes, len(f.pending))
	out := append([]byte(nil), f.pending[:n]...)
	f.pending = f.pending[n:]
	return out, nil
}

func (f *fakeSource) feed(samples ...model.DecodedSample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range samples {
		f.pending = append(f.pending, protocol.EncodeFrame(s)...)
	}
}

func (f *fakeSource) setReadErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

func (f *fakeSource) GetSourceType() model.SourceType { return model.SourceTypeSimulator }
func (f *fakeSource) Describe() string                 { return "fake" }
func (f *fakeSource) Stats() protocol.SourceStats {
	return protocol.SourceStats{IsConnected: f.IsOpen()}
}

type recordingPublisher struct {
	mu      sync.Mutex
	events  []model.MonitorEvent
	samples int
}

func (r *recordingPublisher) PublishEvent(event model.MonitorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingPublisher) PublishSample(model.SamplePoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples++
}

func (r *recordingPublisher) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func (r *recordingPublisher) sampleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc    *AcquisitionService
	source *fakeSource
	events *recordingPublisher
	repo   *repository.MemorySessionRepository
	clock  *testClock
}

func testConfig() *config.Config {
	return &config.Config{
		Source: config.SourceConfig{Type: config.SourceSimulator},
		Serial: config.SerialConfig{BaudRate: 57600, ReadChunk: 64},
		Acquisition: config.AcquisitionConfig{
			SamplingRate:    125,
			WindowCapacity:  500,
			PollInterval:    2 * time.Millisecond,
			SessionDuration: time.Minute,
			MaxReadsPerPoll: 64,
		},
	}
}

func startHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		source: &fakeSource{},
		events: &recordingPublisher{},
		repo:   repository.NewMemorySessionRepository(10),
		clock:  &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	h.svc = NewAcquisitionService(testConfig(), h.events, h.events, h.repo, zap.NewNop())
	h.svc.now = h.clock.Now
	h.svc.SetSourceFactory(func(req *ConnectRequest) (protocol.ByteSource, error) {
		return h.source, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.svc.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func ctxWithTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestConnectAndDisconnect(t *testing.T) {
	h := startHarness(t)
	ctx := ctxWithTimeout(t)

	status, err := h.svc.Connect(ctx, nil)
	require.NoError(t, err)
	require.True(t, status.Connected)
	require.Equal(t, model.SourceStatusConnected, status.Status)
	require.Equal(t, "fake", status.Source)

	_, err = h.svc.Connect(ctx, nil)
	require.ErrorIs(t, err, ErrAlreadyConnected)

	status, err = h.svc.Disconnect(ctx)
	require.NoError(t, err)
	require.False(t, status.Connected)
	require.Equal(t, model.SourceStatusDisconnected, status.Status)

	_, err = h.svc.Disconnect(ctx)
	require.ErrorIs(t, err, ErrNotConnected)

	require.Equal(t, []model.EventType{
		model.EventSourceConnected,
		model.EventSourceDisconnected,
	}, h.events.types())
}

func TestConnectOpenFailure(t *testing.T) {
	h := startHarness(t)
	h.source.mu.Lock()
	h.source.openErr = errors.New("port busy")
	h.source.mu.Unlock()

	status, err := h.svc.Connect(ctxWithTimeout(t), &ConnectRequest{Port: "/dev/ttyUSB0"})
	require.ErrorContains(t, err, "port busy")
	require.False(t, status.Connected)
	require.Equal(t, model.SourceStatusError, status.Status)
	require.Equal(t, "port busy", status.LastError)
	require.Equal(t, []model.EventType{model.EventSourceError}, h.events.types())
}

func TestSamplesFlowToSinkAndWindow(t *testing.T) {
	h := startHarness(t)
	ctx := ctxWithTimeout(t)

	_, err := h.svc.Connect(ctx, nil)
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		h.source.feed(model.DecodedSample{ECG: int16(i), HeartRate: 70})
	}

	require.Eventually(t, func() bool {
		return h.events.sampleCount() == 30
	}, time.Second, 5*time.Millisecond)

	snapshot, err := h.svc.Snapshot(ctx)
	require.NoError(t, err)
	require.True(t, snapshot.HasSample)
	require.Equal(t, uint64(30), snapshot.SampleCount)
	require.Equal(t, int16(29), snapshot.Latest.Sample.ECG)

	window, err := h.svc.Window(ctx)
	require.NoError(t, err)
	require.Len(t, window.ECG, 30)
	require.InDelta(t, 29.0/125.0, window.Time[29], 1e-9)

	status, err := h.svc.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(30), status.Pipeline.SampleCount)
	require.Equal(t, 30, status.Pipeline.WindowLength)
}

func TestStopSessionPersistsResult(t *testing.T) {
	h := startHarness(t)
	ctx := ctxWithTimeout(t)

	_, err := h.svc.Connect(ctx, nil)
	require.NoError(t, err)

	status, err := h.svc.StartSession(ctx)
	require.NoError(t, err)
	require.True(t, status.Active)
	require.NotNil(t, status.ID)

	_, err = h.svc.StartSession(ctx)
	require.ErrorIs(t, err, monitor.ErrSessionActive)

	h.source.feed(
		model.DecodedSample{HeartRate: 60},
		model.DecodedSample{HeartRate: 70},
		model.DecodedSample{HeartRate: 71},
	)
	require.Eventually(t, func() bool {
		return h.events.sampleCount() == 3
	}, time.Second, 5*time.Millisecond)

	h.clock.Advance(10 * time.Second)
	result, err := h.svc.StopSession(ctx)
	require.NoError(t, err)
	require.Equal(t, *status.ID, result.ID)
	require.Equal(t, model.SessionEndStopped, result.Reason)
	require.Equal(t, 3, result.SampleCount)
	require.Equal(t, uint16(67), result.AvgHeartRate)
	require.Equal(t, "fake", result.Source)
	require.Equal(t, 10*time.Second, result.Duration)

	h.svc.Wait()
	stored, err := h.svc.GetSession(ctx, result.ID)
	require.NoError(t, err)
	require.Equal(t, uint16(67), stored.AvgHeartRate)

	results, total, err := h.svc.ListSessions(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, results, 1)

	_, err = h.svc.StopSession(ctx)
	require.ErrorIs(t, err, monitor.ErrSessionInactive)

	require.Contains(t, h.events.types(), model.EventSessionStarted)
	require.Contains(t, h.events.types(), model.EventSessionCompleted)
}

func TestSessionElapsesWithoutConnection(t *testing.T) {
	h := startHarness(t)
	ctx := ctxWithTimeout(t)

	status, err := h.svc.StartSession(ctx)
	require.NoError(t, err)
	require.Equal(t, time.Minute, status.Remaining)

	h.clock.Advance(61 * time.Second)

	require.Eventually(t, func() bool {
		current, err := h.svc.SessionStatus(ctx)
		return err == nil && !current.Active && current.LastResult != nil
	}, time.Second, 5*time.Millisecond)

	h.svc.Wait()
	stored, err := h.svc.GetSession(ctx, *status.ID)
	require.NoError(t, err)
	require.Equal(t, model.SessionEndElapsed, stored.Reason)
	require.Zero(t, stored.SampleCount)
	require.Zero(t, stored.AvgHeartRate)
}

func TestReadFailuresMarkSourceInError(t *testing.T) {
	h := startHarness(t)
	ctx := ctxWithTimeout(t)

	_, err := h.svc.Connect(ctx, nil)
	require.NoError(t, err)

	h.source.setReadErr(errors.New("device unplugged"))
	require.Eventually(t, func() bool {
		status, err := h.svc.Status(ctx)
		return err == nil && status.Status == model.SourceStatusError
	}, time.Second, 5*time.Millisecond)

	h.source.setReadErr(nil)
	require.Eventually(t, func() bool {
		status, err := h.svc.Status(ctx)
		return err == nil && status.Status == model.SourceStatusConnected && status.ConsecutiveFailures == 0
	}, time.Second, 5*time.Millisecond)

	require.Contains(t, h.events.types(), model.EventSourceError)
}

func TestCallsAfterShutdown(t *testing.T) {
	svc := NewAcquisitionService(testConfig(), nil, nil, nil, zap.NewNop())
	svc.SetSourceFactory(func(req *ConnectRequest) (protocol.ByteSource, error) {
		return &fakeSource{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	_, err := svc.Connect(ctxWithTimeout(t), nil)
	require.NoError(t, err)

	cancel()
	require.NoError(t, <-done)

	_, err = svc.Status(ctxWithTimeout(t))
	require.ErrorIs(t, err, ErrServiceStopped)

	require.Error(t, svc.Run(context.Background()))

	_, _, err = svc.ListSessions(context.Background(), nil)
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestNormalizeRequestUsesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Serial.Port = "/dev/ttyUSB0"
	svc := NewAcquisitionService(cfg, nil, nil, nil, zap.NewNop())

	req := svc.normalizeRequest(&ConnectRequest{SourceType: " Serial "})
	require.Equal(t, config.SourceSerial, req.SourceType)
	require.Equal(t, "/dev/ttyUSB0", req.Port)
	require.Equal(t, 57600, req.BaudRate)

	req = svc.normalizeRequest(nil)
	require.Equal(t, config.SourceSimulator, req.SourceType)

	_, err := svc.defaultSourceFactory(&ConnectRequest{SourceType: "bluetooth"})
	require.Error(t, err)

	_, err = svc.defaultSourceFactory(&ConnectRequest{SourceType: config.SourceSerial, Port: "/dev/ttyUSB0", BaudRate: 1200})
	require.Error(t, err)
}
