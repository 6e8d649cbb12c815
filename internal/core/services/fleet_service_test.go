package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"viewerswarm/internal/core/domain"
	"viewerswarm/internal/core/ports"
)

// fakeBrowserSession is shared by the fleet and session controller tests.
type fakeBrowserSession struct {
	id string

	mu         sync.Mutex
	navErr     error
	installErr error
	playErr    error
	snap       *domain.ProbeSnapshot
	readErr    error
	closeErr   error
	closeCalls int
}

func (s *fakeBrowserSession) ID() domain.SessionID { return domain.SessionID(s.id) }

func (s *fakeBrowserSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navErr
}

func (s *fakeBrowserSession) InstallProbe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.installErr
}

func (s *fakeBrowserSession) StartPlayback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playErr
}

func (s *fakeBrowserSession) ReadProbe(ctx context.Context) (*domain.ProbeSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.snap, nil
}

func (s *fakeBrowserSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return s.closeErr
}

func (s *fakeBrowserSession) setProbe(snap *domain.ProbeSnapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.readErr = err
}

func (s *fakeBrowserSession) closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// fakeLauncher records launch order and detects overlapping launches.
type fakeLauncher struct {
	mu          sync.Mutex
	order       []int
	inFlight    int
	overlapped  bool
	failIndexes map[int]bool
	advisory    map[int]bool
	prepared    map[int]*fakeBrowserSession
	sessions    map[int]*fakeBrowserSession
	afterLaunch func(index int)
}

func (f *fakeLauncher) Launch(ctx context.Context, index int, targetURL string) (ports.BrowserSession, *domain.LaunchResult) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > 1 {
		f.overlapped = true
	}
	f.order = append(f.order, index)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
		if f.afterLaunch != nil {
			f.afterLaunch(index)
		}
	}()

	if f.failIndexes[index] {
		return nil, &domain.LaunchResult{Index: index, Err: "navigation failure"}
	}

	sess := f.prepared[index]
	if sess == nil {
		sess = &fakeBrowserSession{
			id:   fmt.Sprintf("sess-%d", index),
			snap: &domain.ProbeSnapshot{IsPlaying: true, CurrentTime: 2, PreviousTime: 1, ReadyState: 4},
		}
	}

	f.mu.Lock()
	if f.sessions == nil {
		f.sessions = make(map[int]*fakeBrowserSession)
	}
	f.sessions[index] = sess
	f.mu.Unlock()

	if f.advisory[index] {
		return sess, &domain.LaunchResult{Index: index, Success: true, Err: domain.AdvisoryNotPlaying}
	}
	return sess, &domain.LaunchResult{Index: index, Success: true}
}

func (f *fakeLauncher) launched() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.order))
	copy(out, f.order)
	return out
}

type fakeSink struct {
	mu       sync.Mutex
	progress []domain.LaunchProgress
	stats    []domain.FleetStats
	finals   []domain.FinalReport
}

func (s *fakeSink) LaunchProgress(p domain.LaunchProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, p)
}

func (s *fakeSink) FleetStats(st domain.FleetStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = append(s.stats, st)
}

func (s *fakeSink) FinalReport(r domain.FinalReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finals = append(s.finals, r)
}

func newTestFleet(launcher *fakeLauncher, sink *fakeSink, stagger time.Duration) *fleetService {
	return NewFleetService(launcher, sink, stagger, 10*time.Millisecond, zap.NewNop()).(*fleetService)
}

func TestLaunchAll_SequentialAndOrdered(t *testing.T) {
	launcher := &fakeLauncher{}
	sink := &fakeSink{}
	fleet := newTestFleet(launcher, sink, time.Millisecond)

	fleet.LaunchAll(context.Background(), 5, "http://stream.test/live.m3u8")

	assert.Equal(t, []int{1, 2, 3, 4, 5}, launcher.launched())
	assert.False(t, launcher.overlapped, "launches must never overlap")
	assert.Equal(t, 5, fleet.Stats().Launched)

	require.Len(t, sink.progress, 5)
	for i, p := range sink.progress {
		assert.Equal(t, i+1, p.Index)
		assert.Equal(t, 5, p.Total)
		assert.True(t, p.Success)
	}
}

func TestLaunchAll_FailedLaunchReportedNotTracked(t *testing.T) {
	launcher := &fakeLauncher{failIndexes: map[int]bool{2: true}}
	sink := &fakeSink{}
	fleet := newTestFleet(launcher, sink, time.Millisecond)

	fleet.LaunchAll(context.Background(), 3, "http://stream.test/live.m3u8")

	// The failed index is reported but the sequence continues and the
	// session is never added to the live list.
	assert.Equal(t, []int{1, 2, 3}, launcher.launched())
	assert.Equal(t, 2, fleet.Stats().Launched)

	require.Len(t, sink.progress, 3)
	assert.False(t, sink.progress[1].Success)
	assert.Equal(t, "navigation failure", sink.progress[1].Err)
}

func TestLaunchAll_CancellationAbortsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	launcher := &fakeLauncher{}
	launcher.afterLaunch = func(index int) {
		if index == 2 {
			cancel()
		}
	}
	sink := &fakeSink{}
	fleet := newTestFleet(launcher, sink, 20*time.Millisecond)

	fleet.LaunchAll(ctx, 5, "http://stream.test/live.m3u8")

	// Indices 3..5 were never attempted; sessions 1 and 2 stay tracked.
	assert.Equal(t, []int{1, 2}, launcher.launched())
	assert.Equal(t, 2, fleet.Stats().Launched)

	report := fleet.Shutdown(context.Background())
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Closed)
}

func TestShutdown_Idempotent(t *testing.T) {
	launcher := &fakeLauncher{}
	sink := &fakeSink{}
	fleet := newTestFleet(launcher, sink, time.Millisecond)
	fleet.LaunchAll(context.Background(), 3, "http://stream.test/live.m3u8")

	first := fleet.Shutdown(context.Background())
	second := fleet.Shutdown(context.Background())

	assert.Equal(t, first, second)
	assert.Equal(t, domain.FleetStopped, fleet.State())
	assert.Len(t, sink.finals, 1)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, 1, launcher.sessions[i].closed(), "session %d closed exactly once", i)
	}
}

func TestShutdown_TeardownFailuresDoNotAbortSweep(t *testing.T) {
	launcher := &fakeLauncher{
		prepared: map[int]*fakeBrowserSession{
			2: {id: "sess-2", closeErr: errors.New("browser already gone")},
		},
	}
	sink := &fakeSink{}
	fleet := newTestFleet(launcher, sink, time.Millisecond)
	fleet.LaunchAll(context.Background(), 3, "http://stream.test/live.m3u8")

	report := fleet.Shutdown(context.Background())

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Closed)
	// The failing session was still attempted and the sweep continued past it.
	assert.Equal(t, 1, launcher.sessions[2].closed())
	assert.Equal(t, 1, launcher.sessions[3].closed())
}

func TestSampleOnce_StatsReplacedWholesale(t *testing.T) {
	launcher := &fakeLauncher{
		prepared: map[int]*fakeBrowserSession{
			1: {id: "sess-1", snap: &domain.ProbeSnapshot{IsPlaying: true, CurrentTime: 5, PreviousTime: 4, ReadyState: 4}},
			2: {id: "sess-2", snap: &domain.ProbeSnapshot{IsPlaying: true, CurrentTime: 3, PreviousTime: 3, ReadyState: 2}},
			3: {id: "sess-3", snap: &domain.ProbeSnapshot{Errors: []string{"media error"}}},
			4: {id: "sess-4", readErr: errors.New("execution context destroyed")},
		},
	}
	sink := &fakeSink{}
	fleet := newTestFleet(launcher, sink, time.Millisecond)
	fleet.LaunchAll(context.Background(), 4, "http://stream.test/live.m3u8")

	stats := fleet.sampleOnce(context.Background())

	assert.Equal(t, 4, stats.Launched)
	assert.Equal(t, 1, stats.Healthy)
	assert.Equal(t, 1, stats.Buffering)
	assert.Equal(t, 2, stats.Errors)
	assert.Equal(t, stats.Launched, stats.Healthy+stats.Buffering+stats.Errors)
	assert.Equal(t, stats, fleet.Stats())
}

func TestSampleOnce_UnreadableSessionRecoversNextTick(t *testing.T) {
	sess := &fakeBrowserSession{id: "sess-1", readErr: errors.New("tab crashed")}
	launcher := &fakeLauncher{prepared: map[int]*fakeBrowserSession{1: sess}}
	sink := &fakeSink{}
	fleet := newTestFleet(launcher, sink, time.Millisecond)
	fleet.LaunchAll(context.Background(), 1, "http://stream.test/live.m3u8")

	stats := fleet.sampleOnce(context.Background())
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 0, stats.Healthy)

	// Session stays tracked and is re-sampled; a recovered probe flips it
	// back to healthy.
	sess.setProbe(&domain.ProbeSnapshot{IsPlaying: true, CurrentTime: 7, PreviousTime: 6, ReadyState: 4}, nil)
	stats = fleet.sampleOnce(context.Background())
	assert.Equal(t, 0, stats.Errors)
	assert.Equal(t, 1, stats.Healthy)
	assert.Equal(t, 1, stats.Launched)
}

func TestSampleOnce_PromotesAdvisoryLaunchOnceHealthy(t *testing.T) {
	sess := &fakeBrowserSession{
		id:   "sess-1",
		snap: &domain.ProbeSnapshot{IsPlaying: false, CurrentTime: 0, PreviousTime: 0},
	}
	launcher := &fakeLauncher{
		advisory: map[int]bool{1: true},
		prepared: map[int]*fakeBrowserSession{1: sess},
	}
	sink := &fakeSink{}
	fleet := newTestFleet(launcher, sink, time.Millisecond)
	fleet.LaunchAll(context.Background(), 1, "http://stream.test/live.m3u8")

	tracked := fleet.sessions[0].session
	assert.Equal(t, domain.SessionLaunching, tracked.State)
	assert.Equal(t, domain.AdvisoryNotPlaying, tracked.LaunchErr)

	// A buffering sweep leaves the session in the launching state.
	fleet.sampleOnce(context.Background())
	assert.Equal(t, domain.SessionLaunching, tracked.State)

	// The first healthy sweep promotes it to playing.
	sess.setProbe(&domain.ProbeSnapshot{IsPlaying: true, CurrentTime: 2, PreviousTime: 1, ReadyState: 4}, nil)
	stats := fleet.sampleOnce(context.Background())
	assert.Equal(t, 1, stats.Healthy)
	assert.Equal(t, domain.SessionPlaying, tracked.State)
}

func TestMonitor_StopsOnShutdown(t *testing.T) {
	launcher := &fakeLauncher{}
	sink := &fakeSink{}
	fleet := newTestFleet(launcher, sink, time.Millisecond)
	fleet.LaunchAll(context.Background(), 2, "http://stream.test/live.m3u8")

	done := make(chan struct{})
	go func() {
		fleet.Monitor(context.Background())
		close(done)
	}()

	// Let at least one tick land before shutting down.
	time.Sleep(35 * time.Millisecond)
	fleet.Shutdown(context.Background())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor loop did not stop after shutdown")
	}

	sink.mu.Lock()
	ticks := len(sink.stats)
	sink.mu.Unlock()
	assert.Greater(t, ticks, 0, "expected at least one stats tick")
}
