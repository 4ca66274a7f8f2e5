package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/linguavoice/server/domain"
	"github.com/satriahrh/linguavoice/server/domain/entities"
	"github.com/satriahrh/linguavoice/server/domain/repositories"
)

// fakeOutput hands out streams that play until released or cancelled
type fakeOutput struct {
	mu      sync.Mutex
	opened  int
	closed  int
	live    int
	maxLive int
	openErr error
	streams []*fakeStream
}

type fakeStream struct {
	output   *fakeOutput
	release  chan struct{}
	finished chan error
}

func (o *fakeOutput) Open(sampleRate, channels int) (repositories.AudioStream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.openErr != nil {
		return nil, o.openErr
	}
	o.opened++
	o.live++
	if o.live > o.maxLive {
		o.maxLive = o.live
	}

	s := &fakeStream{output: o, release: make(chan struct{}), finished: make(chan error, 1)}
	o.streams = append(o.streams, s)
	return s, nil
}

func (s *fakeStream) Play(ctx context.Context, asset *entities.AudioAsset) error {
	var err error
	select {
	case <-s.release:
	case <-ctx.Done():
		err = ctx.Err()
	}
	s.finished <- err
	return err
}

func (s *fakeStream) Close() error {
	s.output.mu.Lock()
	defer s.output.mu.Unlock()
	s.output.live--
	s.output.closed++
	return nil
}

func (o *fakeOutput) stats() (opened, closed, maxLive int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened, o.closed, o.maxLive
}

func (o *fakeOutput) stream(i int) *fakeStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.streams[i]
}

func testAsset() *entities.AudioAsset {
	return &entities.AudioAsset{SampleRate: 24000, Channels: [][]float32{make([]float32, 2400)}}
}

func waitForState(t *testing.T, c *Controller, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected state %s, got %s", want, c.State())
}

func TestPlayNilAssetIsNoop(t *testing.T) {
	output := &fakeOutput{}
	c := NewController(output, nil, zaptest.NewLogger(t))

	if err := c.Play(nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if opened, _, _ := output.stats(); opened != 0 {
		t.Errorf("Expected no stream to be opened, got %d", opened)
	}
	if c.State() != StateIdle {
		t.Errorf("Expected idle, got %s", c.State())
	}
}

func TestPlayStopsPreviousSessionFirst(t *testing.T) {
	output := &fakeOutput{}
	c := NewController(output, nil, zaptest.NewLogger(t))
	defer c.Close()

	if err := c.Play(testAsset()); err != nil {
		t.Fatalf("First play failed: %v", err)
	}
	if c.State() != StatePlaying {
		t.Fatalf("Expected playing, got %s", c.State())
	}

	if err := c.Play(testAsset()); err != nil {
		t.Fatalf("Second play failed: %v", err)
	}

	// the first stream has already returned when Play comes back
	select {
	case err := <-output.stream(0).finished:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected first stream to be cancelled, got %v", err)
		}
	default:
		t.Fatal("First stream was still playing after the second Play returned")
	}

	opened, closed, maxLive := output.stats()
	if opened != 2 || closed != 1 {
		t.Errorf("Expected 2 opened and 1 closed, got %d and %d", opened, closed)
	}
	if maxLive != 1 {
		t.Errorf("Expected at most one live stream, got %d", maxLive)
	}
	if c.State() != StatePlaying {
		t.Errorf("Expected playing, got %s", c.State())
	}
}

func TestNaturalCompletionReturnsToIdle(t *testing.T) {
	output := &fakeOutput{}
	c := NewController(output, nil, zaptest.NewLogger(t))

	if err := c.Play(testAsset()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	close(output.stream(0).release)

	waitForState(t, c, StateIdle)

	if _, closed, _ := output.stats(); closed != 1 {
		t.Errorf("Expected stream to be closed, got %d closes", closed)
	}

	// Stop after completion has nothing to do
	c.Stop()
}

func TestStopEndsPlayback(t *testing.T) {
	output := &fakeOutput{}
	c := NewController(output, nil, zaptest.NewLogger(t))

	if err := c.Play(testAsset()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	c.Stop()

	if c.State() != StateIdle {
		t.Errorf("Expected idle after Stop, got %s", c.State())
	}
	if _, closed, _ := output.stats(); closed != 1 {
		t.Errorf("Expected stream to be closed, got %d closes", closed)
	}
}

func TestOpenFailureLeavesIdle(t *testing.T) {
	output := &fakeOutput{openErr: errors.New("device busy")}
	c := NewController(output, nil, zaptest.NewLogger(t))

	if err := c.Play(testAsset()); err == nil {
		t.Fatal("Expected error when the output cannot be opened")
	}
	if c.State() != StateIdle {
		t.Errorf("Expected idle, got %s", c.State())
	}
}

func TestCloseRejectsPlay(t *testing.T) {
	output := &fakeOutput{}
	c := NewController(output, nil, zaptest.NewLogger(t))

	if err := c.Play(testAsset()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	c.Close()

	if c.State() != StateIdle {
		t.Errorf("Expected idle after Close, got %s", c.State())
	}
	if err := c.Play(testAsset()); !errors.Is(err, domain.ErrSessionClosed) {
		t.Errorf("Expected ErrSessionClosed, got %v", err)
	}
}

func TestConcurrentPlayNeverOverlaps(t *testing.T) {
	output := &fakeOutput{}
	c := NewController(output, nil, zaptest.NewLogger(t))
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Play(testAsset())
		}()
	}
	wg.Wait()

	if _, _, maxLive := output.stats(); maxLive != 1 {
		t.Errorf("Expected at most one live stream, got %d", maxLive)
	}
}
