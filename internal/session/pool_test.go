package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlforge/internal/browser"
	"crawlforge/internal/model"
)

type fakeDriver struct {
	started int32
	closed  int32

	// active and sawOverlap detect whether two goroutines ever hold this
	// driver concurrently: active is incremented on entry and decremented
	// on exit of Navigate, with a sleep in between to widen the window a
	// racing second call would have to land in.
	active     int32
	sawOverlap int32
}

func (f *fakeDriver) Start(ctx context.Context, jsEnabled bool) error {
	atomic.AddInt32(&f.started, 1)
	return nil
}
func (f *fakeDriver) Navigate(ctx context.Context, url string, timeoutMs int) (browser.NavigateOutcome, error) {
	if atomic.AddInt32(&f.active, 1) > 1 {
		atomic.StoreInt32(&f.sawOverlap, 1)
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&f.active, -1)
	return browser.NavigateOutcome{}, nil
}
func (f *fakeDriver) Wait(ctx context.Context, ms int) {}
func (f *fakeDriver) Evaluate(ctx context.Context, script string, timeoutMs int) (model.ScriptResult, error) {
	return model.ScriptResult{Success: true}, nil
}
func (f *fakeDriver) Screenshot(fullPage bool) ([]byte, error) { return nil, nil }
func (f *fakeDriver) PDF(opts model.PDFOptions) ([]byte, error) { return nil, nil }
func (f *fakeDriver) Content() (string, error)                  { return "", nil }
func (f *fakeDriver) Title() (string, error)                    { return "", nil }
func (f *fakeDriver) Close() error {
	atomic.AddInt32(&f.closed, 1)
	return nil
}

func newFakeFactory() (DriverFactory, *[]*fakeDriver) {
	var created []*fakeDriver
	factory := func() browser.Driver {
		d := &fakeDriver{}
		created = append(created, d)
		return d
	}
	return factory, &created
}

func TestPoolCreateAndGet(t *testing.T) {
	factory, _ := newFakeFactory()
	p := New(factory, Options{IdleTTL: time.Hour, SweepInterval: time.Hour}, nil)
	defer p.CloseAll()

	sess, err := p.Create(context.Background(), true)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)

	got, drv, unlock, ok := p.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, sess.ID, got.ID)
	assert.NotNil(t, drv)
	unlock()

	_, _, _, ok = p.Get("nonexistent")
	assert.False(t, ok)
}

func TestPoolUpdateMetadata(t *testing.T) {
	factory, _ := newFakeFactory()
	p := New(factory, Options{IdleTTL: time.Hour, SweepInterval: time.Hour}, nil)
	defer p.CloseAll()

	sess, err := p.Create(context.Background(), false)
	require.NoError(t, err)

	ok := p.UpdateMetadata(sess.ID, map[string]any{"loggedIn": true})
	require.True(t, ok)

	got, _, unlock, _ := p.Get(sess.ID)
	unlock()
	assert.Equal(t, true, got.Metadata["loggedIn"])

	assert.False(t, p.UpdateMetadata("missing", map[string]any{"x": 1}))
}

func TestPoolClose(t *testing.T) {
	factory, created := newFakeFactory()
	p := New(factory, Options{IdleTTL: time.Hour, SweepInterval: time.Hour}, nil)
	defer p.CloseAll()

	sess, err := p.Create(context.Background(), true)
	require.NoError(t, err)

	p.Close(sess.ID)
	assert.Equal(t, 0, p.Count())
	assert.Equal(t, int32(1), (*created)[0].closed)

	// Closing an already-closed session is a no-op, not a panic.
	p.Close(sess.ID)
}

func TestPoolSweepsIdleSessions(t *testing.T) {
	factory, created := newFakeFactory()
	p := New(factory, Options{IdleTTL: 20 * time.Millisecond, SweepInterval: 10 * time.Millisecond}, nil)
	defer p.CloseAll()

	_, err := p.Create(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, 1, p.Count())

	assert.Eventually(t, func() bool {
		return p.Count() == 0
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), (*created)[0].closed)
}

func TestPoolGetSerializesConcurrentOperationsOnOneSession(t *testing.T) {
	factory, created := newFakeFactory()
	p := New(factory, Options{IdleTTL: time.Hour, SweepInterval: time.Hour}, nil)
	defer p.CloseAll()

	sess, err := p.Create(context.Background(), true)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, drv, unlock, ok := p.Get(sess.ID)
			require.True(t, ok)
			defer unlock()
			_, _ = drv.Navigate(context.Background(), "https://example.com", 0)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(0), atomic.LoadInt32(&(*created)[0].sawOverlap), "two operations ran concurrently against the same session")
}

func TestPoolCloseAllStopsSweeperAndClosesDrivers(t *testing.T) {
	factory, created := newFakeFactory()
	p := New(factory, Options{IdleTTL: time.Hour, SweepInterval: time.Hour}, nil)

	_, err := p.Create(context.Background(), true)
	require.NoError(t, err)

	p.CloseAll()
	assert.Equal(t, int32(1), (*created)[0].closed)
}
