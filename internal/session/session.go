package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/palpamed/palpbridge/internal/config"
	"github.com/palpamed/palpbridge/internal/logging"
)

// Measurement is one region's readings. Both fields start unset and encode
// as JSON null until a reading arrives, matching the rig's wire format.
type Measurement struct {
	Pain  *int `json:"pain"`
	Force *int `json:"force"`
}

// Policy selects when an accumulated session is flushed to the backend.
type Policy int

const (
	// PolicyReset flushes only on an explicit device reset signal. The
	// region map grows dynamically (R1, R2, ...) unless a fixed region
	// list is configured.
	PolicyReset Policy = iota
	// PolicyCircular requires a fixed region list, fills it in circular
	// order, and flushes automatically the instant every region has a
	// force value. Force fields are then nulled, pain values preserved,
	// and the cursor rewound to the first region.
	PolicyCircular
)

// PolicyFromString maps config file values to a Policy.
func PolicyFromString(s string) (Policy, error) {
	switch s {
	case config.CompletionReset:
		return PolicyReset, nil
	case config.CompletionCircular:
		return PolicyCircular, nil
	default:
		return PolicyReset, fmt.Errorf("unknown completion policy %q", s)
	}
}

// Poster posts a completed session's region mapping to the backend.
// Implemented by the backend client; tests inject fakes.
type Poster interface {
	PostPalpation(ctx context.Context, patientID string, payload any) error
}

// Config holds the session settings.
type Config struct {
	// Regions pre-populates a fixed, ordered region list. Required for
	// PolicyCircular; optional for PolicyReset (empty = dynamic keys).
	Regions []string
	// Policy selects the flush trigger.
	Policy Policy
	// PatientID is the initial patient for flushes. It can be replaced at
	// runtime via SetPatient when a client selects a patient.
	PatientID string
}

// Session accumulates per-region palpation measurements for one examination
// pass and flushes them to the backend when the pass completes.
//
// All mutating entry points take the internal mutex, so the serial read loop
// and the WebSocket dispatch goroutines can feed it concurrently while the
// region map keeps single-writer semantics.
type Session struct {
	mu     sync.Mutex
	poster Poster

	policy Policy
	fixed  []string // Fixed region keys, nil in dynamic mode

	order     []string
	regions   map[string]*Measurement
	cursor    int
	lastKey   string // Region the most recent force reading wrote, pain pairs with it
	patientID string
}

// New creates a Session. With a fixed region list the map is pre-populated
// with empty measurements; otherwise keys are created on first force reading.
func New(cfg Config, poster Poster) *Session {
	s := &Session{
		poster:    poster,
		policy:    cfg.Policy,
		fixed:     cfg.Regions,
		patientID: cfg.PatientID,
	}
	s.resetLocked()
	return s
}

// resetLocked restores the empty/placeholder state. Caller holds the mutex
// (or is the constructor).
func (s *Session) resetLocked() {
	s.cursor = 0
	s.lastKey = ""
	s.regions = make(map[string]*Measurement)
	if len(s.fixed) > 0 {
		s.order = make([]string, len(s.fixed))
		copy(s.order, s.fixed)
		for _, key := range s.order {
			s.regions[key] = &Measurement{}
		}
	} else {
		s.order = nil
	}
}

// SetPatient replaces the active patient identifier used for flushes.
func (s *Session) SetPatient(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.patientID {
		logging.Info("Active patient changed",
			zap.String("patient_id", id),
		)
	}
	s.patientID = id
}

// Patient returns the active patient identifier.
func (s *Session) Patient() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patientID
}

// OnForceReading records a force sample for the region at the cursor,
// creating the region entry in dynamic mode, then advances the cursor.
// Under PolicyCircular a completed fill triggers an automatic flush.
func (s *Session) OnForceReading(value int) {
	s.mu.Lock()

	key := s.cursorKeyLocked()
	m, ok := s.regions[key]
	if !ok {
		m = &Measurement{}
		s.regions[key] = m
		s.order = append(s.order, key)
	}
	v := value
	m.Force = &v
	s.lastKey = key
	s.advanceLocked()

	logging.Debug("Force reading recorded",
		zap.String("region", key),
		zap.Int("force", value),
	)

	if s.policy == PolicyCircular && s.isCompleteLocked() {
		s.autoFlushLocked()
		return // autoFlushLocked released the mutex
	}
	s.mu.Unlock()
}

// OnPainReading records a pain score for the region the most recent force
// reading wrote. Force and pain arrive as a pair per region (the rig sends
// the force, the clinician scores the pain), so pain never moves the
// cursor. A pain score before any force reading in the pass is dropped
// with a warning.
func (s *Session) OnPainReading(value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.lastKey
	m, ok := s.regions[key]
	if key == "" || !ok {
		logging.Warn("Pain reading without a preceding force reading, dropped",
			zap.Int("pain", value),
		)
		return fmt.Errorf("no force reading to pair the pain score with")
	}
	v := value
	m.Pain = &v

	logging.Info("Pain reading recorded",
		zap.String("region", key),
		zap.Int("pain", value),
	)
	return nil
}

// OnResetSignal handles the device's end-of-examination signal. A session
// with accumulated data is flushed to the backend and cleared; an empty
// session only acknowledges the reset.
func (s *Session) OnResetSignal() {
	s.mu.Lock()

	if !s.hasDataLocked() {
		s.mu.Unlock()
		logging.Info("Device reset acknowledged, session empty")
		return
	}

	snapshot := s.snapshotLocked()
	patientID := s.patientID
	s.resetLocked()
	s.mu.Unlock()

	logging.Info("Device reset, flushing session",
		zap.String("patient_id", patientID),
		zap.Int("regions", len(snapshot)),
	)
	s.post(patientID, snapshot)
}

// IsComplete reports whether every tracked region has a force value.
// An empty session is never complete.
func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isCompleteLocked()
}

// Snapshot returns a copy of the current region mapping.
func (s *Session) Snapshot() map[string]Measurement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// cursorKeyLocked returns the region key the cursor points at. Dynamic mode
// derives R1..Rn keys from the cursor; fixed mode wraps around the list.
func (s *Session) cursorKeyLocked() string {
	if len(s.fixed) > 0 {
		return s.fixed[s.cursor%len(s.fixed)]
	}
	return fmt.Sprintf("R%d", s.cursor+1)
}

// advanceLocked moves the cursor to the next region, wrapping in fixed mode.
func (s *Session) advanceLocked() {
	s.cursor++
	if len(s.fixed) > 0 {
		s.cursor %= len(s.fixed)
	}
}

func (s *Session) isCompleteLocked() bool {
	if len(s.order) == 0 {
		return false
	}
	for _, key := range s.order {
		if s.regions[key].Force == nil {
			return false
		}
	}
	return true
}

// hasDataLocked reports whether any reading has been recorded. Fixed-mode
// placeholder entries with both fields unset do not count as data.
func (s *Session) hasDataLocked() bool {
	for _, m := range s.regions {
		if m.Force != nil || m.Pain != nil {
			return true
		}
	}
	return false
}

func (s *Session) snapshotLocked() map[string]Measurement {
	out := make(map[string]Measurement, len(s.regions))
	for key, m := range s.regions {
		copied := Measurement{}
		if m.Pain != nil {
			v := *m.Pain
			copied.Pain = &v
		}
		if m.Force != nil {
			v := *m.Force
			copied.Force = &v
		}
		out[key] = copied
	}
	return out
}

// autoFlushLocked performs the circular-policy flush: snapshot, null every
// force field (pain values survive for the next pass), rewind the cursor,
// then post outside the lock. The caller must hold the mutex; it is
// released here before the backend call.
func (s *Session) autoFlushLocked() {
	snapshot := s.snapshotLocked()
	patientID := s.patientID
	for _, m := range s.regions {
		m.Force = nil
	}
	s.cursor = 0
	s.lastKey = ""
	s.mu.Unlock()

	logging.Info("All regions measured, flushing session",
		zap.String("patient_id", patientID),
		zap.Int("regions", len(snapshot)),
	)
	s.post(patientID, snapshot)
}

// post sends a flush to the backend. Failures are logged and the already
// cleared in-memory data is not restored; losing a session on a failed
// flush is accepted behavior for now.
func (s *Session) post(patientID string, snapshot map[string]Measurement) {
	if s.poster == nil {
		logging.Warn("No backend poster configured, session data discarded",
			zap.Int("regions", len(snapshot)),
		)
		return
	}
	if err := s.poster.PostPalpation(context.Background(), patientID, snapshot); err != nil {
		logging.Error("Failed to post palpation data",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		return
	}
	logging.Info("Palpation data posted",
		zap.String("patient_id", patientID),
		zap.Int("regions", len(snapshot)),
	)
}
