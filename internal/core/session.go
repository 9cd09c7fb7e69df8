package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session threads the output of each pipeline step into the next one.
// Setters replace the slot and notify subscribers once, synchronously.
type Session struct {
	ID string

	mu             sync.RWMutex
	startedAt      time.Time
	updatedAt      time.Time
	imageAnalysis  *ImageAnalysisResult
	signalData     *SignalProcessingData
	classification *QualityClassification
	feedback       *FinalFeedback
	logs           []StepLog

	listenerMu sync.Mutex
	listeners  map[uint64]func(SessionSnapshot)
	nextID     uint64

	logger *zap.Logger
}

// SessionSnapshot is a point-in-time copy of a session
type SessionSnapshot struct {
	ID             string                 `json:"id"`
	StartedAt      time.Time              `json:"startedAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
	ImageAnalysis  *ImageAnalysisResult   `json:"imageAnalysis"`
	SignalData     *SignalProcessingData  `json:"signalData"`
	Classification *QualityClassification `json:"classification"`
	Feedback       *FinalFeedback         `json:"feedback"`
	Logs           []StepLog              `json:"logs"`
}

// SessionSummary says which steps are done and the headline results
type SessionSummary struct {
	ID                string    `json:"id"`
	StartedAt         time.Time `json:"startedAt"`
	HasImageAnalysis  bool      `json:"hasImageAnalysis"`
	HasSignalData     bool      `json:"hasSignalData"`
	HasClassification bool      `json:"hasClassification"`
	HasFeedback       bool      `json:"hasFeedback"`
	FoodName          string    `json:"foodName,omitempty"`
	Grade             Grade     `json:"grade,omitempty"`
	Score             float64   `json:"score,omitempty"`
	RiskLevel         RiskLevel `json:"riskLevel,omitempty"`
	IsSafe            *bool     `json:"isSafe,omitempty"`
}

// NewSession creates an empty session with a fresh id
func NewSession(logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		startedAt: now,
		updatedAt: now,
		listeners: make(map[uint64]func(SessionSnapshot)),
		logger:    logger,
	}
}

// SetImageAnalysis stores the image analysis result
func (s *Session) SetImageAnalysis(v ImageAnalysisResult) {
	v = v.Clone()
	s.mu.Lock()
	s.imageAnalysis = &v
	s.updatedAt = time.Now()
	s.mu.Unlock()
	s.notify()
}

// SetSignalData stores the sensor readings
func (s *Session) SetSignalData(v SignalProcessingData) {
	v = v.Clone()
	s.mu.Lock()
	s.signalData = &v
	s.updatedAt = time.Now()
	s.mu.Unlock()
	s.notify()
}

// SetClassification stores the quality classification
func (s *Session) SetClassification(v QualityClassification) {
	s.mu.Lock()
	s.classification = &v
	s.updatedAt = time.Now()
	s.mu.Unlock()
	s.notify()
}

// SetFeedback stores the final feedback
func (s *Session) SetFeedback(v FinalFeedback) {
	v = v.Clone()
	s.mu.Lock()
	s.feedback = &v
	s.updatedAt = time.Now()
	s.mu.Unlock()
	s.notify()
}

// ImageAnalysis returns a deep copy of the image analysis, or nil
func (s *Session) ImageAnalysis() *ImageAnalysisResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.imageAnalysis == nil {
		return nil
	}
	v := s.imageAnalysis.Clone()
	return &v
}

// SignalData returns a copy of the sensor readings, or nil
func (s *Session) SignalData() *SignalProcessingData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.signalData == nil {
		return nil
	}
	v := s.signalData.Clone()
	return &v
}

// Classification returns a copy of the classification, or nil
func (s *Session) Classification() *QualityClassification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.classification == nil {
		return nil
	}
	v := *s.classification
	return &v
}

// Feedback returns a copy of the final feedback, or nil
func (s *Session) Feedback() *FinalFeedback {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.feedback == nil {
		return nil
	}
	v := s.feedback.Clone()
	return &v
}

func (s *Session) HasImageAnalysis() bool  { return s.ImageAnalysis() != nil }
func (s *Session) HasSignalData() bool     { return s.SignalData() != nil }
func (s *Session) HasClassification() bool { return s.Classification() != nil }
func (s *Session) HasFeedback() bool       { return s.Feedback() != nil }

// Reset clears every slot and the log. Must be called when a new image is uploaded.
func (s *Session) Reset() {
	s.mu.Lock()
	now := time.Now()
	s.imageAnalysis = nil
	s.signalData = nil
	s.classification = nil
	s.feedback = nil
	s.logs = nil
	s.startedAt = now
	s.updatedAt = now
	s.mu.Unlock()
	s.notify()
}

// Subscribe registers a listener and returns a func that removes it
func (s *Session) Subscribe(listener func(SessionSnapshot)) func() {
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenerMu.Lock()
			delete(s.listeners, id)
			s.listenerMu.Unlock()
		})
	}
}

// Log appends a step log line and mirrors it to the logger. Subscribers are not notified.
func (s *Session) Log(stage string, typ LogType, message string) {
	entry := StepLog{
		ID:        uuid.NewString(),
		Stage:     stage,
		Type:      typ,
		Message:   message,
		Timestamp: time.Now(),
	}
	s.mu.Lock()
	s.logs = append(s.logs, entry)
	s.mu.Unlock()

	fields := []zap.Field{zap.String("session_id", s.ID), zap.String("stage", stage)}
	switch typ {
	case LogError:
		s.logger.Error(message, fields...)
	case LogWarning:
		s.logger.Warn(message, fields...)
	case LogSuccess, LogInfo:
		s.logger.Info(message, fields...)
	default:
		s.logger.Debug(message, fields...)
	}
}

// Logs returns a copy of the step log
func (s *Session) Logs() []StepLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StepLog, len(s.logs))
	copy(out, s.logs)
	return out
}

// Snapshot returns a copy of the whole session
func (s *Session) Snapshot() SessionSnapshot {
	snap := SessionSnapshot{
		ID:             s.ID,
		ImageAnalysis:  s.ImageAnalysis(),
		SignalData:     s.SignalData(),
		Classification: s.Classification(),
		Feedback:       s.Feedback(),
		Logs:           s.Logs(),
	}
	s.mu.RLock()
	snap.StartedAt = s.startedAt
	snap.UpdatedAt = s.updatedAt
	s.mu.RUnlock()
	return snap
}

// Summary reports which steps are complete along with the headline results
func (s *Session) Summary() SessionSummary {
	snap := s.Snapshot()
	sum := SessionSummary{
		ID:                snap.ID,
		StartedAt:         snap.StartedAt,
		HasImageAnalysis:  snap.ImageAnalysis != nil,
		HasSignalData:     snap.SignalData != nil,
		HasClassification: snap.Classification != nil,
		HasFeedback:       snap.Feedback != nil,
	}
	if snap.ImageAnalysis != nil {
		sum.FoodName = snap.ImageAnalysis.FoodType.Name
	}
	if snap.Classification != nil {
		sum.Grade = snap.Classification.Grade
		sum.Score = snap.Classification.Score
	}
	if snap.Feedback != nil {
		sum.RiskLevel = snap.Feedback.RiskLevel
		safe := snap.Feedback.IsSafe
		sum.IsSafe = &safe
	}
	return sum
}

func (s *Session) notify() {
	s.listenerMu.Lock()
	listeners := make([]func(SessionSnapshot), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenerMu.Unlock()
	if len(listeners) == 0 {
		return
	}

	snap := s.Snapshot()
	for _, l := range listeners {
		s.call(l, snap)
	}
}

func (s *Session) call(listener func(SessionSnapshot), snap SessionSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Session listener panicked",
				zap.String("session_id", s.ID),
				zap.Any("panic", r))
		}
	}()
	listener(snap)
}
