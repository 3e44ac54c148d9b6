package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"emobot/internal/camera"
	"emobot/internal/classifier"
	"emobot/internal/domain"
	"emobot/internal/emotionlog"
	"emobot/internal/fanout"
)

var (
	ErrAlreadyRunning = errors.New("session is already running")
	ErrNotRunning     = errors.New("session is not running")
)

type SampleSink interface {
	OnSample(ctx context.Context, sessionID string, sample domain.EmotionSample)
}

type StateSink interface {
	OnState(ctx context.Context, ev domain.StateEvent)
}

type Config struct {
	DashboardID    string
	SampleInterval time.Duration
	FrameInterval  time.Duration
}

// Service runs one capture loop at a time: Idle until Start, Running until
// Stop or a capture failure. The emotion log outlives individual runs.
// Sinks are fed from a single ordered queue, off the capture loop.
type Service struct {
	cfg        Config
	log        *emotionlog.Log
	source     camera.Source
	classifier classifier.Classifier
	samples    []SampleSink
	states     []StateSink
	events     *fanout.Queue
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string

	ctl sync.Mutex

	mu          sync.RWMutex
	state       domain.SessionState
	sessionID   string
	startedAt   time.Time
	lastErr     string
	cancel      context.CancelFunc
	done        chan struct{}
	latestFrame domain.Frame
}

func New(cfg Config, log *emotionlog.Log, source camera.Source, cls classifier.Classifier, logger *slog.Logger) *Service {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = time.Second
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 100 * time.Millisecond
	}
	if log == nil {
		log = emotionlog.New()
	}
	return &Service{
		cfg:        cfg,
		log:        log,
		source:     source,
		classifier: cls,
		events:     fanout.New(context.Background(), "session-events", fanout.DefaultSize, logger),
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
		state:      domain.StateIdle,
	}
}

// AddSampleSink and AddStateSink must be called before the first Start.
func (s *Service) AddSampleSink(sink SampleSink) {
	s.samples = append(s.samples, sink)
}

func (s *Service) AddStateSink(sink StateSink) {
	s.states = append(s.states, sink)
}

func (s *Service) Log() *emotionlog.Log {
	return s.log
}

func (s *Service) Start(ctx context.Context) (string, error) {
	s.ctl.Lock()
	defer s.ctl.Unlock()
	return s.startLocked(ctx)
}

func (s *Service) Stop() error {
	s.ctl.Lock()
	defer s.ctl.Unlock()
	return s.stopLocked()
}

// Toggle flips between Idle and Running and returns the resulting state.
func (s *Service) Toggle(ctx context.Context) (domain.SessionState, error) {
	s.ctl.Lock()
	defer s.ctl.Unlock()
	if s.State() == domain.StateRunning {
		if err := s.stopLocked(); err != nil && !errors.Is(err, ErrNotRunning) {
			return s.State(), err
		}
		return domain.StateIdle, nil
	}
	if _, err := s.startLocked(ctx); err != nil {
		return domain.StateIdle, err
	}
	return domain.StateRunning, nil
}

// Close stops a running session and delivers the events still queued for sinks.
func (s *Service) Close() {
	if err := s.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		s.logger.Error("stop session failed", "error", err)
	}
	s.events.Close()
}

func (s *Service) startLocked(ctx context.Context) (string, error) {
	if s.State() == domain.StateRunning {
		return "", ErrAlreadyRunning
	}

	dev, err := s.source.Open(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err.Error()
		s.mu.Unlock()
		return "", fmt.Errorf("start session: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sessionID := s.newID()
	done := make(chan struct{})
	s.mu.Lock()
	s.state = domain.StateRunning
	s.sessionID = sessionID
	s.startedAt = s.now()
	s.lastErr = ""
	s.cancel = cancel
	s.done = done
	s.emitState(domain.StateEvent{
		SessionID: sessionID,
		State:     domain.StateRunning,
		TS:        s.startedAt.UTC().Format(time.RFC3339Nano),
	})
	s.mu.Unlock()

	s.logger.Info("session started", "session_id", sessionID, "sample_interval", s.cfg.SampleInterval)
	go s.run(loopCtx, dev, sessionID, done)
	return sessionID, nil
}

func (s *Service) stopLocked() error {
	s.mu.RLock()
	if s.state != domain.StateRunning {
		s.mu.RUnlock()
		return ErrNotRunning
	}
	cancel, done := s.cancel, s.done
	s.mu.RUnlock()

	cancel()
	<-done
	return nil
}

func (s *Service) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Service) Snapshot() domain.SessionSnapshot {
	s.mu.RLock()
	snap := domain.SessionSnapshot{
		State:     s.state,
		SessionID: s.sessionID,
		LastError: s.lastErr,
	}
	if !s.startedAt.IsZero() {
		startedAt := s.startedAt
		snap.StartedAt = &startedAt
	}
	s.mu.RUnlock()

	snap.SampleCount = s.log.Len()
	if latest, ok := s.log.Latest(); ok {
		snap.LatestEmotion = &latest
	}
	return snap
}

func (s *Service) LatestFrame() (domain.Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.latestFrame.JPEG) == 0 {
		return domain.Frame{}, false
	}
	return s.latestFrame, true
}

func (s *Service) run(ctx context.Context, dev camera.Device, sessionID string, done chan struct{}) {
	var runErr error
	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("session loop panic: %v", r)
		}
		if err := dev.Close(); err != nil {
			s.logger.Warn("release camera failed", "session_id", sessionID, "error", err)
		}
		s.finish(sessionID, runErr)
		close(done)
	}()

	lastUpdate := s.now()
	for {
		if ctx.Err() != nil {
			return
		}
		frame, err := dev.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			runErr = fmt.Errorf("capture frame: %w", err)
			return
		}
		s.setFrame(frame)

		if s.now().Sub(lastUpdate) > s.cfg.SampleInterval {
			s.sample(ctx, sessionID, frame)
			lastUpdate = s.now()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.FrameInterval):
		}
	}
}

// sample records one classification; a classifier failure just skips the tick.
func (s *Service) sample(ctx context.Context, sessionID string, frame domain.Frame) {
	emotion, err := s.classifier.Classify(ctx, frame)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Debug("classification skipped", "session_id", sessionID, "error", err)
		}
		return
	}

	sample := s.log.Record(emotion, s.now())
	s.logger.Debug("emotion recorded", "session_id", sessionID, "emotion", emotion)
	if len(s.samples) == 0 {
		return
	}
	s.events.Push(func(ctx context.Context) {
		for _, sink := range s.samples {
			sink.OnSample(ctx, sessionID, sample)
		}
	})
}

func (s *Service) setFrame(frame domain.Frame) {
	s.mu.Lock()
	s.latestFrame = frame
	s.mu.Unlock()
}

// finish queues the idle event before flipping the state, so a Start that
// observes Idle always queues its running event after it.
func (s *Service) finish(sessionID string, runErr error) {
	ev := domain.StateEvent{
		SessionID: sessionID,
		State:     domain.StateIdle,
		TS:        s.now().UTC().Format(time.RFC3339Nano),
	}
	if runErr != nil {
		ev.Error = runErr.Error()
		s.logger.Error("session halted", "session_id", sessionID, "error", runErr)
	} else {
		s.logger.Info("session stopped", "session_id", sessionID)
	}

	s.mu.Lock()
	s.emitState(ev)
	s.state = domain.StateIdle
	s.cancel = nil
	if runErr != nil {
		s.lastErr = runErr.Error()
	}
	s.mu.Unlock()
}

// emitState only enqueues, so it is safe to call with mu held.
func (s *Service) emitState(ev domain.StateEvent) {
	ev.DashboardID = s.cfg.DashboardID
	if len(s.states) == 0 {
		return
	}
	s.events.Push(func(ctx context.Context) {
		for _, sink := range s.states {
			sink.OnState(ctx, ev)
		}
	})
}
