package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palpamed/palpbridge/internal/config"
)

type postCall struct {
	patientID string
	payload   map[string]Measurement
}

type fakePoster struct {
	mu    sync.Mutex
	calls []postCall
	err   error
}

func (f *fakePoster) PostPalpation(_ context.Context, patientID string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, postCall{
		patientID: patientID,
		payload:   payload.(map[string]Measurement),
	})
	return f.err
}

func (f *fakePoster) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestPolicyFromString(t *testing.T) {
	p, err := PolicyFromString(config.CompletionReset)
	require.NoError(t, err)
	assert.Equal(t, PolicyReset, p)

	p, err = PolicyFromString(config.CompletionCircular)
	require.NoError(t, err)
	assert.Equal(t, PolicyCircular, p)

	_, err = PolicyFromString("sometimes")
	assert.Error(t, err)
}

func TestCircularFillFlushesExactlyOnce(t *testing.T) {
	poster := &fakePoster{}
	s := New(Config{
		Regions:   []string{"Q1", "Q2", "Q3"},
		Policy:    PolicyCircular,
		PatientID: "8001011234567",
	}, poster)

	s.OnForceReading(10)
	s.OnForceReading(20)
	assert.False(t, s.IsComplete())
	assert.Equal(t, 0, poster.callCount(), "no flush before the fill completes")

	s.OnForceReading(30)

	require.Equal(t, 1, poster.callCount(), "Nth force reading triggers exactly one flush")
	call := poster.calls[0]
	assert.Equal(t, "8001011234567", call.patientID)
	require.Len(t, call.payload, 3)
	assert.Equal(t, 10, *call.payload["Q1"].Force)
	assert.Equal(t, 20, *call.payload["Q2"].Force)
	assert.Equal(t, 30, *call.payload["Q3"].Force)

	// After the flush every force field is nulled and the cursor is rewound.
	assert.False(t, s.IsComplete())
	for key, m := range s.Snapshot() {
		assert.Nil(t, m.Force, "force for %s should be cleared", key)
	}

	// Cursor at 0 again: the next reading lands on the first region.
	s.OnForceReading(99)
	snap := s.Snapshot()
	require.NotNil(t, snap["Q1"].Force)
	assert.Equal(t, 99, *snap["Q1"].Force)
	assert.Equal(t, 1, poster.callCount())
}

func TestCircularFlushPreservesPain(t *testing.T) {
	poster := &fakePoster{}
	s := New(Config{
		Regions: []string{"R1", "R2"},
		Policy:  PolicyCircular,
	}, poster)

	s.OnForceReading(1)
	require.NoError(t, s.OnPainReading(7))
	s.OnForceReading(2)
	require.Equal(t, 1, poster.callCount())

	// The auto-flush nulls forces but keeps the pain score, so it survives
	// into the next pass's payload.
	s.OnForceReading(3)
	s.OnForceReading(4)
	require.Equal(t, 2, poster.callCount())

	payload := poster.calls[1].payload
	require.NotNil(t, payload["R1"].Pain)
	assert.Equal(t, 7, *payload["R1"].Pain)
	assert.Equal(t, 3, *payload["R1"].Force)
	assert.Nil(t, payload["R2"].Pain)
}

func TestPainReadingPreservesForce(t *testing.T) {
	s := New(Config{
		Regions: []string{"R1", "R2"},
		Policy:  PolicyReset,
	}, &fakePoster{})

	s.OnForceReading(10)
	require.NoError(t, s.OnPainReading(4))
	s.OnForceReading(20)
	require.NoError(t, s.OnPainReading(6))

	snap := s.Snapshot()
	require.NotNil(t, snap["R1"].Pain)
	assert.Equal(t, 4, *snap["R1"].Pain)
	assert.Equal(t, 10, *snap["R1"].Force, "pain reading must not touch force")
	require.NotNil(t, snap["R2"].Pain)
	assert.Equal(t, 6, *snap["R2"].Pain)
	assert.Equal(t, 20, *snap["R2"].Force)
}

func TestForceThenPainLandOnSameRegion(t *testing.T) {
	// The default configuration: reset policy, dynamic region keys. A force
	// reading opens R(n) and the following pain score pairs with it.
	s := New(Config{Policy: PolicyReset}, &fakePoster{})

	s.OnForceReading(12)
	require.NoError(t, s.OnPainReading(4))

	snap := s.Snapshot()
	require.Contains(t, snap, "R1")
	assert.Equal(t, 12, *snap["R1"].Force)
	assert.Equal(t, 4, *snap["R1"].Pain)

	// A repeated pain score rescores the same region; only the next force
	// reading moves on.
	require.NoError(t, s.OnPainReading(5))
	assert.Equal(t, 5, *s.Snapshot()["R1"].Pain)

	s.OnForceReading(30)
	require.NoError(t, s.OnPainReading(7))

	snap = s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, 30, *snap["R2"].Force)
	assert.Equal(t, 7, *snap["R2"].Pain)
	assert.Equal(t, 12, *snap["R1"].Force, "moving on must not touch R1")
	assert.Equal(t, 5, *snap["R1"].Pain)
}

func TestPainReadingWithoutEntryIsDropped(t *testing.T) {
	s := New(Config{Policy: PolicyReset}, &fakePoster{})

	err := s.OnPainReading(5)
	assert.Error(t, err)
	assert.Empty(t, s.Snapshot(), "failed pain reading must not mutate state")

	// The cursor did not advance: the next force reading creates R1.
	s.OnForceReading(11)
	snap := s.Snapshot()
	require.Contains(t, snap, "R1")
	assert.Equal(t, 11, *snap["R1"].Force)
}

func TestResetOnEmptySessionPostsNothing(t *testing.T) {
	poster := &fakePoster{}
	s := New(Config{Policy: PolicyReset}, poster)

	s.OnResetSignal()
	assert.Equal(t, 0, poster.callCount())

	// Fixed-mode placeholders with no readings are still "empty".
	s = New(Config{Regions: []string{"R1", "R2"}, Policy: PolicyReset}, poster)
	s.OnResetSignal()
	assert.Equal(t, 0, poster.callCount())
}

func TestResetOnNonEmptySessionFlushesAndClears(t *testing.T) {
	poster := &fakePoster{}
	s := New(Config{Policy: PolicyReset, PatientID: "9001015555088"}, poster)

	s.OnForceReading(12)
	s.OnForceReading(45)
	s.OnResetSignal()

	require.Equal(t, 1, poster.callCount())
	call := poster.calls[0]
	assert.Equal(t, "9001015555088", call.patientID)
	require.Len(t, call.payload, 2)
	assert.Equal(t, 12, *call.payload["R1"].Force)
	assert.Equal(t, 45, *call.payload["R2"].Force)

	assert.Empty(t, s.Snapshot(), "state cleared after flush")

	// A second reset finds an empty session and posts nothing.
	s.OnResetSignal()
	assert.Equal(t, 1, poster.callCount())
}

func TestTwoRegionFixedResetScenario(t *testing.T) {
	// Device sends {"data":"12"}, {"data":"45"}, {"ack":"reset"} against a
	// 2-region fixed session: exactly one flush with both forces, then clear.
	poster := &fakePoster{}
	s := New(Config{
		Regions:   []string{"R1", "R2"},
		Policy:    PolicyReset,
		PatientID: "8001011234567",
	}, poster)

	s.OnForceReading(12)
	s.OnForceReading(45)
	s.OnResetSignal()

	require.Equal(t, 1, poster.callCount())
	payload := poster.calls[0].payload
	require.Len(t, payload, 2)
	assert.Equal(t, 12, *payload["R1"].Force)
	assert.Equal(t, 45, *payload["R2"].Force)
	assert.Nil(t, payload["R1"].Pain)
	assert.Nil(t, payload["R2"].Pain)

	for _, m := range s.Snapshot() {
		assert.Nil(t, m.Force)
		assert.Nil(t, m.Pain)
	}
	assert.False(t, s.IsComplete())
}

func TestFlushFailureStillClearsState(t *testing.T) {
	poster := &fakePoster{err: errors.New("backend down")}
	s := New(Config{Policy: PolicyReset}, poster)

	s.OnForceReading(1)
	s.OnResetSignal()

	assert.Equal(t, 1, poster.callCount())
	assert.Empty(t, s.Snapshot(), "data loss on failed flush is accepted behavior")
}

func TestSetPatientAppliesToNextFlush(t *testing.T) {
	poster := &fakePoster{}
	s := New(Config{Policy: PolicyReset, PatientID: "0000000000000"}, poster)

	s.SetPatient("8001011234567")
	assert.Equal(t, "8001011234567", s.Patient())

	s.OnForceReading(3)
	s.OnResetSignal()

	require.Equal(t, 1, poster.callCount())
	assert.Equal(t, "8001011234567", poster.calls[0].patientID)
}

func TestIsCompleteEmptySession(t *testing.T) {
	s := New(Config{Policy: PolicyReset}, &fakePoster{})
	assert.False(t, s.IsComplete(), "an empty session is never complete")
}
