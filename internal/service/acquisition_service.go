// internal/service/acquisition_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"biosignal-service/internal/config"
	"biosignal-service/internal/model"
	"biosignal-service/internal/monitor"
	"biosignal-service/internal/protocol"
	"biosignal-service/internal/repository"
	"biosignal-service/internal/utils"
)

var (
	// ErrNotConnected is returned when an operation needs an open byte source
	ErrNotConnected = errors.New("acquisition source not connected")
	// ErrAlreadyConnected is returned by Connect while a source is open
	ErrAlreadyConnected = errors.New("acquisition source already connected")
	// ErrServiceStopped is returned once Run has exited
	ErrServiceStopped = errors.New("acquisition service stopped")
	// ErrStoreUnavailable is returned when no session store is configured
	ErrStoreUnavailable = errors.New("session store unavailable")
)

const (
	// readFailureThreshold is the number of consecutive failed polls after
	// which the source is reported as being in error
	readFailureThreshold = 25
	persistTimeout       = 5 * time.Second
	eventSource          = "acquisition"
)

// EventPublisher receives lifecycle events from the acquisition service
type EventPublisher interface {
	PublishEvent(event model.MonitorEvent)
}

// SourceFactory builds an unopened byte source for a connect request
type SourceFactory func(req *ConnectRequest) (protocol.ByteSource, error)

// ConnectRequest selects and configures the byte source
type ConnectRequest struct {
	SourceType string `json:"source_type,omitempty"`
	Port       string `json:"port,omitempty"`
	BaudRate   int    `json:"baud_rate,omitempty"`
}

// AcquisitionStatus describes the connection and pipeline state
type AcquisitionStatus struct {
	Running             bool                  `json:"running"`
	Connected           bool                  `json:"connected"`
	Status              model.SourceStatus    `json:"status"`
	SourceType          model.SourceType      `json:"source_type,omitempty"`
	Source              string                `json:"source,omitempty"`
	LastError           string                `json:"last_error,omitempty"`
	ConsecutiveFailures int                   `json:"consecutive_failures"`
	SourceStats         *protocol.SourceStats `json:"source_stats,omitempty"`
	Pipeline            monitor.PipelineStats `json:"pipeline"`
	Session             model.SessionStatus   `json:"session"`
}

// AcquisitionService owns the acquisition pipeline. Run is the only
// goroutine that touches it; every other method submits a closure to the
// command queue and waits for it to execute.
type AcquisitionService struct {
	pipeline      *monitor.Pipeline
	sessionRepo   repository.SessionRepository
	events        EventPublisher
	config        *config.Config
	logger        *utils.ServiceLogger
	sourceLogger  *utils.SourceLogger
	sourceFactory SourceFactory
	pollInterval  time.Duration
	now           func() time.Time

	commands chan func()
	stopped  chan struct{}
	running  atomic.Bool
	persist  sync.WaitGroup

	// owned by the Run goroutine
	status              model.SourceStatus
	lastError           string
	consecutiveFailures int
}

// NewAcquisitionService creates the service. sink receives every decoded
// sample; events and sessionRepo may be nil.
func NewAcquisitionService(
	cfg *config.Config,
	sink monitor.Sink,
	events EventPublisher,
	sessionRepo repository.SessionRepository,
	logger *zap.Logger,
) *AcquisitionService {
	opts := monitor.PipelineOptions{
		SamplingRate:    cfg.Acquisition.SamplingRate,
		WindowCapacity:  cfg.Acquisition.WindowCapacity,
		SessionDuration: cfg.Acquisition.SessionDuration,
		ReadChunk:       cfg.Serial.ReadChunk,
		MaxReadsPerPoll: cfg.Acquisition.MaxReadsPerPoll,
	}

	pollInterval := cfg.Acquisition.PollInterval
	if pollInterval <= 0 {
		pollInterval = 40 * time.Millisecond
	}

	s := &AcquisitionService{
		pipeline:     monitor.NewPipeline(nil, sink, opts, logger),
		sessionRepo:  sessionRepo,
		events:       events,
		config:       cfg,
		logger:       utils.NewServiceLogger(logger, "acquisition-service"),
		pollInterval: pollInterval,
		now:          time.Now,
		commands:     make(chan func()),
		stopped:      make(chan struct{}),
		status:       model.SourceStatusDisconnected,
	}
	s.sourceFactory = s.defaultSourceFactory
	return s
}

// SetSourceFactory replaces how byte sources are built. It must be called
// before Run.
func (s *AcquisitionService) SetSourceFactory(factory SourceFactory) {
	s.sourceFactory = factory
}

// Run polls the byte source every poll interval and executes submitted
// commands until ctx is cancelled. It may be called once.
func (s *AcquisitionService) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("acquisition service already running")
	}
	defer close(s.stopped)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.logger.Info("Acquisition loop started",
		zap.Duration("poll_interval", s.pollInterval),
		zap.Int("sampling_rate", s.pipeline.Options().SamplingRate),
	)

	if s.config.Serial.AutoConnect {
		if err := s.connect(ctx, s.normalizeRequest(nil)); err != nil {
			s.logger.Warn("Auto-connect failed", zap.Error(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case cmd := <-s.commands:
			cmd()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Wait blocks until pending session results have been persisted
func (s *AcquisitionService) Wait() {
	s.persist.Wait()
}

// Connect opens a byte source and attaches it to the pipeline
func (s *AcquisitionService) Connect(ctx context.Context, req *ConnectRequest) (*AcquisitionStatus, error) {
	req = s.normalizeRequest(req)

	var status *AcquisitionStatus
	var opErr error
	err := s.submit(ctx, func() {
		opErr = s.connect(ctx, req)
		status = s.snapshotStatus()
	})
	if err != nil {
		return nil, err
	}
	return status, opErr
}

// Disconnect closes the byte source and drops any partial frame
func (s *AcquisitionService) Disconnect(ctx context.Context) (*AcquisitionStatus, error) {
	var status *AcquisitionStatus
	var opErr error
	err := s.submit(ctx, func() {
		opErr = s.disconnect("requested")
		status = s.snapshotStatus()
	})
	if err != nil {
		return nil, err
	}
	return status, opErr
}

// StartSession starts a timed averaging session
func (s *AcquisitionService) StartSession(ctx context.Context) (model.SessionStatus, error) {
	var status model.SessionStatus
	var opErr error
	err := s.submit(ctx, func() {
		now := s.now()
		status, opErr = s.pipeline.StartSession(now)
		if opErr != nil {
			return
		}

		s.logger.Info("Averaging session started",
			zap.String("session_id", status.ID.String()),
			zap.Duration("duration", s.pipeline.Options().SessionDuration),
		)
		s.publish(model.EventSessionStarted, "INFO", model.SessionEventData{
			SessionID: *status.ID,
			StartedAt: *status.StartedAt,
		})
	})
	if err != nil {
		return model.SessionStatus{}, err
	}
	return status, opErr
}

// StopSession finalizes the running averaging session immediately
func (s *AcquisitionService) StopSession(ctx context.Context) (*model.SessionResult, error) {
	var result *model.SessionResult
	var opErr error
	err := s.submit(ctx, func() {
		result, opErr = s.pipeline.StopSession(s.now())
		if opErr == nil {
			s.completeSession(result)
		}
	})
	if err != nil {
		return nil, err
	}
	return result, opErr
}

// SessionStatus describes the averaging session
func (s *AcquisitionService) SessionStatus(ctx context.Context) (model.SessionStatus, error) {
	var status model.SessionStatus
	err := s.submit(ctx, func() {
		status = s.pipeline.SessionStatus(s.now())
	})
	return status, err
}

// Snapshot returns the latest sample and respiration rate
func (s *AcquisitionService) Snapshot(ctx context.Context) (model.MetricsSnapshot, error) {
	var snapshot model.MetricsSnapshot
	err := s.submit(ctx, func() {
		snapshot = s.pipeline.Snapshot(s.now())
	})
	return snapshot, err
}

// Window returns a copy of the rolling window
func (s *AcquisitionService) Window(ctx context.Context) (monitor.WindowSnapshot, error) {
	var window monitor.WindowSnapshot
	err := s.submit(ctx, func() {
		window = s.pipeline.WindowSnapshot()
	})
	return window, err
}

// Status describes the connection, pipeline and session state
func (s *AcquisitionService) Status(ctx context.Context) (*AcquisitionStatus, error) {
	var status *AcquisitionStatus
	err := s.submit(ctx, func() {
		status = s.snapshotStatus()
	})
	return status, err
}

// ListSessions returns persisted session results, newest first
func (s *AcquisitionService) ListSessions(ctx context.Context, filter *repository.SessionFilter) ([]*model.SessionResult, int, error) {
	if s.sessionRepo == nil {
		return nil, 0, ErrStoreUnavailable
	}
	if filter == nil {
		filter = &repository.SessionFilter{}
	}
	filter.Normalize()

	results, total, err := s.sessionRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list session results: %w", err)
	}
	return results, total, nil
}

// GetSession returns one persisted session result
func (s *AcquisitionService) GetSession(ctx context.Context, id uuid.UUID) (*model.SessionResult, error) {
	if s.sessionRepo == nil {
		return nil, ErrStoreUnavailable
	}
	result, err := s.sessionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session result: %w", err)
	}
	return result, nil
}

// submit runs fn on the Run goroutine and waits for it to finish
func (s *AcquisitionService) submit(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	cmd := func() {
		defer close(done)
		fn()
	}

	select {
	case s.commands <- cmd:
	case <-s.stopped:
		return ErrServiceStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AcquisitionService) tick(ctx context.Context) {
	if source := s.pipeline.Source(); source != nil && source.IsOpen() {
		if _, err := s.pipeline.Poll(ctx); err != nil {
			s.handleReadFailure(err)
		} else if s.consecutiveFailures > 0 {
			s.recoverFromFailures()
		}
	}

	// The session timer runs whether or not bytes are arriving
	if result, ok := s.pipeline.PollSession(s.now()); ok {
		s.completeSession(result)
	}
}

func (s *AcquisitionService) handleReadFailure(err error) {
	s.consecutiveFailures++
	s.lastError = err.Error()
	if s.sourceLogger != nil {
		s.sourceLogger.LogReadFailure(err, s.consecutiveFailures)
	}

	if s.consecutiveFailures == readFailureThreshold {
		s.status = model.SourceStatusError
		s.publishSourceEvent(model.EventSourceError, "ERROR", err)
	}
}

func (s *AcquisitionService) recoverFromFailures() {
	s.logger.Info("Source reads recovered", zap.Int("failed_polls", s.consecutiveFailures))
	s.consecutiveFailures = 0
	if s.status == model.SourceStatusError {
		s.status = model.SourceStatusConnected
		s.publishSourceEvent(model.EventSourceConnected, "INFO", nil)
	}
}

func (s *AcquisitionService) connect(ctx context.Context, req *ConnectRequest) error {
	if source := s.pipeline.Source(); source != nil && source.IsOpen() {
		return ErrAlreadyConnected
	}

	source, err := s.sourceFactory(req)
	if err != nil {
		return fmt.Errorf("failed to create byte source: %w", err)
	}

	sourceLogger := utils.NewSourceLogger(s.logger.Logger, string(source.GetSourceType()), source.Describe())
	if err := source.Open(ctx); err != nil {
		sourceLogger.LogConnection("open", false, err)
		s.status = model.SourceStatusError
		s.lastError = err.Error()
		s.publish(model.EventSourceError, "ERROR", model.SourceEventData{
			SourceType:  source.GetSourceType(),
			Description: source.Describe(),
			Status:      model.SourceStatusError,
			Error:       err.Error(),
		})
		return fmt.Errorf("failed to open %s: %w", source.Describe(), err)
	}

	s.pipeline.SetSource(source)
	s.sourceLogger = sourceLogger
	s.status = model.SourceStatusConnected
	s.lastError = ""
	s.consecutiveFailures = 0

	sourceLogger.LogConnection("open", true, nil)
	s.publishSourceEvent(model.EventSourceConnected, "INFO", nil)
	return nil
}

func (s *AcquisitionService) disconnect(reason string) error {
	source := s.pipeline.Source()
	if source == nil || !source.IsOpen() {
		return ErrNotConnected
	}

	closeErr := source.Close()
	if s.sourceLogger != nil {
		s.sourceLogger.LogConnection("close", closeErr == nil, closeErr)
	}

	s.status = model.SourceStatusDisconnected
	s.consecutiveFailures = 0
	s.publish(model.EventSourceDisconnected, "INFO", model.SourceEventData{
		SourceType:  source.GetSourceType(),
		Description: source.Describe(),
		Status:      model.SourceStatusDisconnected,
		Error:       reason,
	})

	// SetSource also drops the decoder's partial frame
	s.pipeline.SetSource(nil)
	s.sourceLogger = nil

	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", source.Describe(), closeErr)
	}
	return nil
}

func (s *AcquisitionService) shutdown() {
	if status := s.pipeline.SessionStatus(s.now()); status.Active {
		if result, err := s.pipeline.StopSession(s.now()); err == nil {
			s.completeSession(result)
		}
	}
	if source := s.pipeline.Source(); source != nil && source.IsOpen() {
		if err := s.disconnect("shutdown"); err != nil {
			s.logger.Warn("Failed to close source on shutdown", zap.Error(err))
		}
	}
	s.logger.Info("Acquisition loop stopped")
}

func (s *AcquisitionService) completeSession(result *model.SessionResult) {
	if source := s.pipeline.Source(); source != nil {
		result.Source = source.Describe()
	}

	s.logger.Info("Averaging session completed",
		zap.String("session_id", result.ID.String()),
		zap.String("reason", string(result.Reason)),
		zap.Int("sample_count", result.SampleCount),
		zap.Uint16("avg_heart_rate", result.AvgHeartRate),
		zap.Uint16("avg_resp_rate", result.AvgRespRate),
	)

	s.publish(model.EventSessionCompleted, "INFO", model.SessionEventData{
		SessionID: result.ID,
		StartedAt: result.StartedAt,
		Result:    result,
	})
	s.persistResult(*result)
}

func (s *AcquisitionService) persistResult(result model.SessionResult) {
	if s.sessionRepo == nil {
		return
	}

	s.persist.Add(1)
	go func() {
		defer s.persist.Done()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := s.sessionRepo.Save(ctx, &result); err != nil {
			s.logger.Error("Failed to persist session result",
				zap.String("session_id", result.ID.String()),
				zap.Error(err),
			)
		}
	}()
}

func (s *AcquisitionService) snapshotStatus() *AcquisitionStatus {
	status := &AcquisitionStatus{
		Running:             s.running.Load(),
		Status:              s.status,
		LastError:           s.lastError,
		ConsecutiveFailures: s.consecutiveFailures,
		Pipeline:            s.pipeline.Stats(),
		Session:             s.pipeline.SessionStatus(s.now()),
	}

	if source := s.pipeline.Source(); source != nil {
		stats := source.Stats()
		status.Connected = source.IsOpen()
		status.SourceType = source.GetSourceType()
		status.Source = source.Describe()
		status.SourceStats = &stats
	}
	return status
}

func (s *AcquisitionService) publishSourceEvent(eventType model.EventType, severity string, err error) {
	source := s.pipeline.Source()
	if source == nil {
		return
	}
	data := model.SourceEventData{
		SourceType:  source.GetSourceType(),
		Description: source.Describe(),
		Status:      s.status,
	}
	if err != nil {
		data.Error = err.Error()
	}
	s.publish(eventType, severity, data)
}

func (s *AcquisitionService) publish(eventType model.EventType, severity string, data interface{}) {
	if s.events == nil {
		return
	}
	s.events.PublishEvent(model.MonitorEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Data:      data,
		Timestamp: s.now(),
		Source:    eventSource,
		Severity:  severity,
	})
}

// normalizeRequest fills unset fields from configuration
func (s *AcquisitionService) normalizeRequest(req *ConnectRequest) *ConnectRequest {
	out := ConnectRequest{}
	if req != nil {
		out = *req
	}
	out.SourceType = strings.ToLower(strings.TrimSpace(out.SourceType))
	if out.SourceType == "" {
		out.SourceType = s.config.Source.Type
	}
	if out.Port == "" {
		out.Port = s.config.Serial.Port
	}
	if out.BaudRate == 0 {
		out.BaudRate = s.config.Serial.BaudRate
	}
	return &out
}

func (s *AcquisitionService) defaultSourceFactory(req *ConnectRequest) (protocol.ByteSource, error) {
	switch req.SourceType {
	case config.SourceSerial:
		return protocol.CreateSource(model.SourceTypeSerial, &protocol.SerialConfig{
			Port:        req.Port,
			BaudRate:    req.BaudRate,
			DataBits:    s.config.Serial.DataBits,
			StopBits:    s.config.Serial.StopBits,
			Parity:      s.config.Serial.Parity,
			ReadTimeout: s.config.Serial.ReadTimeout,
		}, nil, s.logger.Logger)
	case config.SourceSimulator:
		return protocol.CreateSource(model.SourceTypeSimulator, nil, &protocol.SimulatorConfig{
			SamplingRate:  s.pipeline.Options().SamplingRate,
			HeartRate:     s.config.Simulator.HeartRate,
			BreathPeriod:  s.config.Simulator.BreathPeriod,
			RespAmplitude: s.config.Simulator.RespAmplitude,
			Noise:         s.config.Simulator.Noise,
			MaxBacklog:    s.config.Simulator.MaxBacklog,
		}, s.logger.Logger)
	default:
		return nil, fmt.Errorf("unsupported source type: %s", req.SourceType)
	}
}
