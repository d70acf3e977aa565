package automation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/rats/internal/automation"
)

// MockCDPRunner is a test implementation of CDPRunner
type MockCDPRunner struct {
	RunFunc   func(ctx context.Context, actions ...chromedp.Action) error
	Runs      int
	Cancelled bool
}

func (m *MockCDPRunner) NewExecAllocator(ctx context.Context, opts ...chromedp.ExecAllocatorOption) (context.Context, context.CancelFunc) {
	return ctx, func() {}
}

func (m *MockCDPRunner) NewContext(parent context.Context, opts ...chromedp.ContextOption) (context.Context, context.CancelFunc) {
	return parent, func() { m.Cancelled = true }
}

func (m *MockCDPRunner) Run(ctx context.Context, actions ...chromedp.Action) error {
	m.Runs++
	if m.RunFunc != nil {
		return m.RunFunc(ctx, actions...)
	}
	return nil
}

func TestBuildExecAllocatorOptions(t *testing.T) {
	opts := automation.BuildExecAllocatorOptions(automation.AutomationOptions{Headless: true})
	assert.Len(t, opts, 7)
}

func TestBrowserSessionClose(t *testing.T) {
	runner := &MockCDPRunner{}
	session := automation.NewBrowser(context.Background(), runner, automation.AutomationOptions{})
	session.Close()
	assert.True(t, runner.Cancelled)
}

func TestPageHTMLNavigationError(t *testing.T) {
	runner := &MockCDPRunner{RunFunc: func(context.Context, ...chromedp.Action) error {
		return assert.AnError
	}}
	session := automation.NewBrowser(context.Background(), runner, automation.AutomationOptions{Headless: true})
	defer session.Close()

	_, err := session.PageHTML(context.Background(), "https://example.com/films/", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open https://example.com/films/")
	assert.Equal(t, 1, runner.Runs)
}

func TestPageHTMLWithoutSelectors(t *testing.T) {
	runner := &MockCDPRunner{}
	session := automation.NewBrowser(context.Background(), runner, automation.AutomationOptions{})
	defer session.Close()

	html, err := session.PageHTML(context.Background(), "https://example.com/", nil)
	require.NoError(t, err)
	assert.Empty(t, html)
	assert.Equal(t, 2, runner.Runs, "navigate and read")
}

func TestWaitForSelectorTimeout(t *testing.T) {
	runner := &MockCDPRunner{RunFunc: func(context.Context, ...chromedp.Action) error {
		return errors.New("no such node")
	}}
	session := automation.NewBrowser(context.Background(), runner, automation.AutomationOptions{})
	defer session.Close()

	_, err := session.WaitForSelector(context.Background(), []string{"#a", "//div"}, "rating list", 10*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout waiting for rating list")
	assert.GreaterOrEqual(t, runner.Runs, 2)
}

func TestSessionRunHonorsCallContext(t *testing.T) {
	runner := &MockCDPRunner{RunFunc: func(ctx context.Context, _ ...chromedp.Action) error {
		return ctx.Err()
	}}
	session := automation.NewBrowser(context.Background(), runner, automation.AutomationOptions{})
	defer session.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := session.CurrentURL(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPollWithTimeout(t *testing.T) {
	t.Parallel()

	t.Run("returns immediately when condition is met", func(t *testing.T) {
		t.Parallel()
		callCount := 0
		result, err := automation.PollWithTimeout(context.Background(), 100*time.Millisecond, time.Second, "test",
			func() (string, bool, error) {
				callCount++
				return "result", true, nil
			})
		require.NoError(t, err)
		assert.Equal(t, "result", result)
		assert.Equal(t, 1, callCount)
	})

	t.Run("polls until condition is met", func(t *testing.T) {
		t.Parallel()
		callCount := 0
		result, err := automation.PollWithTimeout(context.Background(), 10*time.Millisecond, time.Second, "test",
			func() (string, bool, error) {
				callCount++
				return "success", callCount >= 3, nil
			})
		require.NoError(t, err)
		assert.Equal(t, "success", result)
		assert.Equal(t, 3, callCount)
	})

	t.Run("returns error when timeout exceeded", func(t *testing.T) {
		t.Parallel()
		_, err := automation.PollWithTimeout(context.Background(), 10*time.Millisecond, 50*time.Millisecond, "test operation",
			func() (string, bool, error) { return "", false, nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout waiting for test operation")
	})

	t.Run("returns error when context canceled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		_, err := automation.PollWithTimeout(ctx, 10*time.Millisecond, time.Second, "test",
			func() (string, bool, error) {
				cancel()
				return "", false, nil
			})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("propagates check function errors", func(t *testing.T) {
		t.Parallel()
		expectedErr := errors.New("check failed")
		_, err := automation.PollWithTimeout(context.Background(), 10*time.Millisecond, 100*time.Millisecond, "test",
			func() (string, bool, error) { return "", false, expectedErr })
		assert.ErrorIs(t, err, expectedErr)
	})
}

func TestWaitForURLChange(t *testing.T) {
	t.Run("polls until URL changes", func(t *testing.T) {
		callCount := 0
		getURL := func() (string, error) {
			callCount++
			if callCount < 3 {
				return "https://letterboxd.com/sign-in/", nil
			}
			return "https://letterboxd.com/", nil
		}

		err := automation.WaitForURLChange(context.Background(), getURL, []string{"/sign-in/"}, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, 3, callCount)
	})

	t.Run("returns error on timeout", func(t *testing.T) {
		getURL := func() (string, error) { return "https://letterboxd.com/sign-in/", nil }
		err := automation.WaitForURLChange(context.Background(), getURL, []string{"/sign-in/"}, 50*time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout")
	})

	t.Run("propagates getURL errors", func(t *testing.T) {
		expectedErr := errors.New("navigation error")
		err := automation.WaitForURLChange(context.Background(), func() (string, error) { return "", expectedErr },
			[]string{"/sign-in/"}, time.Second)
		assert.ErrorIs(t, err, expectedErr)
	})
}
