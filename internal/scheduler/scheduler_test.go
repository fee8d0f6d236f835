package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/woodguard/internal/accel"
	"github.com/relabs-tech/woodguard/internal/spectral"
	"github.com/relabs-tech/woodguard/internal/telemetry"
	"github.com/relabs-tech/woodguard/internal/timing"
)

type fakeLifecycle struct {
	failInits int // next N Initialize calls fail
	inits     int
	power     []bool
}

func (f *fakeLifecycle) SetPower(on bool) error {
	f.power = append(f.power, on)
	return nil
}

func (f *fakeLifecycle) Initialize() error {
	f.inits++
	if f.failInits > 0 {
		f.failInits--
		return errors.New("sensor connection failed")
	}
	return nil
}

type fakeSampler struct {
	acquires int
	overflow bool
	window   time.Duration
	clock    *timing.SimClock
}

func (f *fakeSampler) Acquire(window time.Duration) *accel.Buffer {
	f.acquires++
	f.window = window
	f.clock.Sleep(window)
	return accel.FromValues(4, 0.1, 0.2)
}

func (f *fakeSampler) CheckOverflow() bool { return f.overflow }

type fakeStore struct {
	failWrites  int
	remountErr  error
	writes      int
	remounts    int
	storedPhase []int
}

func (f *fakeStore) Write(_ string, phase int, _ *accel.Buffer) error {
	f.writes++
	if f.failWrites > 0 {
		f.failWrites--
		return errors.New("disk full")
	}
	f.storedPhase = append(f.storedPhase, phase)
	return nil
}

func (f *fakeStore) Remount() error {
	f.remounts++
	return f.remountErr
}

type fakeClassifier struct{ calls int }

func (f *fakeClassifier) Classify(buf *accel.Buffer) spectral.Result {
	f.calls++
	return spectral.Result{Category: spectral.Saw, Message: spectral.Saw.Describe(), Samples: buf.Len()}
}

type rig struct {
	life  *fakeLifecycle
	samp  *fakeSampler
	store *fakeStore
	cls   *fakeClassifier
	rec   *telemetry.Recorder
	clock *timing.SimClock
	halts int
}

func newRig() *rig {
	clock := timing.NewSimClock(time.Date(2026, 4, 2, 5, 0, 0, 0, time.UTC))
	return &rig{
		life:  &fakeLifecycle{},
		samp:  &fakeSampler{clock: clock},
		store: &fakeStore{},
		cls:   &fakeClassifier{},
		rec:   &telemetry.Recorder{},
		clock: clock,
	}
}

func (r *rig) scheduler(phases, cycles int) *Scheduler {
	cfg := DefaultSettings()
	cfg.TotalPhases = phases
	return New(Deps{
		Lifecycle:  r.life,
		Sampler:    r.samp,
		Store:      r.store,
		Classifier: r.cls,
		Reporter:   r.rec,
		Halter:     HalterFunc(func() { r.halts++ }),
		Clock:      r.clock,
	}, cfg, cycles)
}

func TestPhaseCompletes(t *testing.T) {
	r := newRig()
	s := r.scheduler(1, 10)

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 9, s.Remaining())
	assert.Equal(t, 1, r.samp.acquires)
	assert.Equal(t, 10*time.Second, r.samp.window)
	assert.Equal(t, []int{1}, r.store.storedPhase)
	assert.Equal(t, 1, r.cls.calls)
	assert.Equal(t, []bool{true, false}, r.life.power, "powered off after a completed phase")
	assert.Equal(t, []telemetry.Kind{telemetry.KindPhaseStart, telemetry.KindDetection}, r.rec.Kinds())

	det := r.rec.Events()[1]
	require.NotNil(t, det.Result)
	assert.Equal(t, spectral.Saw, det.Result.Category)
	assert.Equal(t, s.RunID(), det.RunID)
	// settle + window + inter-phase delay
	assert.Equal(t, 16*time.Second, r.clock.Slept())
}

func TestThreeInitFailuresSkipPhase(t *testing.T) {
	r := newRig()
	r.life.failInits = 3
	s := r.scheduler(1, 10)

	p := s.runPhase(1)
	assert.Equal(t, Skipped, p.Status)
	assert.Equal(t, MaxAttempts, p.Attempts)
	assert.Nil(t, p.Result)
	assert.Zero(t, r.samp.acquires, "no acquisition")
	assert.Zero(t, r.cls.calls, "no classification")
	assert.Zero(t, r.store.writes)

	r2 := newRig()
	r2.life.failInits = 3
	s2 := r2.scheduler(1, 10)
	require.NoError(t, s2.Run(context.Background()))
	assert.Equal(t, 9, s2.Remaining())
	assert.Equal(t, 3, r2.rec.Count(telemetry.KindInitFailed))
	assert.Equal(t, 1, r2.rec.Count(telemetry.KindPhaseSkipped))
}

func TestInitRecoversWithinPhase(t *testing.T) {
	r := newRig()
	r.life.failInits = 2
	s := r.scheduler(1, 10)

	p := s.runPhase(1)
	assert.Equal(t, Completed, p.Status)
	assert.Equal(t, 3, p.Attempts)
	assert.Equal(t, 1, r.samp.acquires)
	require.NotNil(t, p.Result)
}

func TestRetryBoundAcrossPhases(t *testing.T) {
	r := newRig()
	r.life.failInits = 1 << 30
	s := r.scheduler(4, 10)

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 4*MaxAttempts, r.life.inits)
	assert.Equal(t, 4, r.rec.Count(telemetry.KindPhaseSkipped))
	assert.Equal(t, 6, s.Remaining())
}

func TestPersistFailureRemountsAndRetries(t *testing.T) {
	r := newRig()
	r.store.failWrites = 1
	s := r.scheduler(1, 10)

	p := s.runPhase(1)
	assert.Equal(t, Completed, p.Status)
	assert.Equal(t, 2, p.Attempts)
	assert.Equal(t, 2, r.samp.acquires, "the window is re-acquired")
	assert.Equal(t, 1, r.store.remounts)
	assert.Equal(t, 1, r.cls.calls)
	assert.Equal(t, []telemetry.Kind{
		telemetry.KindPhaseStart, telemetry.KindPersistFailed,
		telemetry.KindPhaseStart, telemetry.KindDetection,
	}, r.rec.Kinds())
}

func TestRemountFailureAbandonsPhase(t *testing.T) {
	r := newRig()
	r.store.failWrites = 1
	r.store.remountErr = errors.New("no medium")
	s := r.scheduler(1, 10)

	p := s.runPhase(1)
	assert.Equal(t, Skipped, p.Status)
	assert.Equal(t, 1, p.Attempts)
	assert.Zero(t, r.cls.calls)
	assert.Equal(t, 1, r.rec.Count(telemetry.KindRemountFailed))
	assert.False(t, r.life.power[len(r.life.power)-1], "sensor left off")
}

func TestPersistFailuresCountTowardAttemptCap(t *testing.T) {
	r := newRig()
	r.store.failWrites = 1 << 30
	s := r.scheduler(1, 10)

	p := s.runPhase(1)
	assert.Equal(t, Skipped, p.Status)
	assert.Equal(t, MaxAttempts, p.Attempts)
	assert.Equal(t, MaxAttempts, r.store.remounts)
	assert.Zero(t, r.cls.calls)
}

func TestOverflowIsAdvisory(t *testing.T) {
	r := newRig()
	r.samp.overflow = true
	s := r.scheduler(1, 10)

	p := s.runPhase(1)
	assert.Equal(t, Completed, p.Status)
	assert.Equal(t, 1, r.rec.Count(telemetry.KindOverflow))
}

func TestCycleCounterDecrementsOncePerPhase(t *testing.T) {
	r := newRig()
	// phase 1 skipped, phase 2 needs a remount, the rest complete
	r.life.failInits = 3
	s := r.scheduler(5, 20)
	r.store.failWrites = 1

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 15, s.Remaining())

	// the first attempt of phase n sees 20-(n-1) cycles
	seen := map[int]int{}
	for _, ev := range r.rec.Events() {
		if ev.Kind == telemetry.KindPhaseStart && ev.Attempt == 1 {
			seen[ev.Phase] = ev.Remaining
		}
	}
	for n := 1; n <= 5; n++ {
		assert.Equal(t, 20-(n-1), seen[n], "phase %d", n)
	}
}

func TestHaltsWhenBudgetRunsOut(t *testing.T) {
	r := newRig()
	s := r.scheduler(5, 3)

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrHalted)
	assert.True(t, s.Halted())
	assert.Equal(t, 0, s.Remaining())
	assert.Equal(t, 3, r.samp.acquires, "no phase after the budget is spent")
	assert.Equal(t, 1, r.halts)
	assert.Equal(t, telemetry.KindHalted, r.rec.Kinds()[len(r.rec.Kinds())-1])

	// terminal: nothing else runs
	assert.ErrorIs(t, s.Run(context.Background()), ErrHalted)
	assert.Equal(t, 3, r.samp.acquires)
	assert.Equal(t, 1, r.halts, "halt happens once")

	s.ResetCycles(2)
	assert.False(t, s.Halted())
	assert.ErrorIs(t, s.Run(context.Background()), ErrHalted)
	assert.Equal(t, 5, r.samp.acquires)
	assert.Equal(t, 2, r.halts)
}

func TestExhaustedBudgetAtEntry(t *testing.T) {
	for _, cycles := range []int{0, -4} {
		r := newRig()
		s := r.scheduler(5, cycles)

		assert.ErrorIs(t, s.Run(context.Background()), ErrHalted)
		assert.Zero(t, r.life.inits)
		assert.Equal(t, cycles, s.Remaining())
		assert.Equal(t, []telemetry.Kind{telemetry.KindHalted}, r.rec.Kinds())
	}
}

func TestCancellationBetweenPhases(t *testing.T) {
	r := newRig()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := r.scheduler(5, 10)
	s.d.Reporter = telemetry.ReporterFunc(func(ev telemetry.Event) {
		r.rec.Report(ev)
		if ev.Kind == telemetry.KindDetection && ev.Phase == 2 {
			cancel()
		}
	})

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, r.samp.acquires, "phase 2 finishes its window")
	assert.Equal(t, 8, s.Remaining())
	assert.False(t, s.Halted())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "skipped", Skipped.String())
}
