package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxy_ReadAfterClose(t *testing.T) {
	p := New("wallet", 42)

	v, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	p.Close()
	p.Close()

	_, err = p.Get()
	assert.ErrorIs(t, err, ErrDisposed)
	assert.True(t, p.Closed())

	_, err = p.Subscribe(EventUpdate, func(any) {})
	assert.ErrorIs(t, err, ErrDisposed)
}

func TestProxy_RefreshAfterCloseIsNoop(t *testing.T) {
	p := New("account", "v1")
	calls := 0
	_, err := p.Watch(func(string) { calls++ })
	require.NoError(t, err)

	p.Close()
	p.Refresh()
	p.Update("v2")
	p.Emit("error", "ignored")

	assert.Equal(t, 0, calls)
}

func TestProxy_WatchAndUnsubscribe(t *testing.T) {
	p := New("account", 1)
	var seen []int
	unsubscribe, err := p.Watch(func(v int) { seen = append(seen, v) })
	require.NoError(t, err)

	p.Update(2)
	p.Update(3)
	unsubscribe()
	unsubscribe()
	p.Update(4)

	assert.Equal(t, []int{2, 3}, seen)
}

func TestProxy_EmitAndClose(t *testing.T) {
	p := New("context", struct{}{})
	var events []string
	_, err := p.Subscribe("error", func(payload any) { events = append(events, "error:"+payload.(string)) })
	require.NoError(t, err)
	_, err = p.Subscribe(EventClose, func(any) { events = append(events, "close") })
	require.NoError(t, err)

	p.Emit("error", "boom")
	p.Emit("unrelated", "x")
	p.Close()
	p.Close()

	assert.Equal(t, []string{"error:boom", "close"}, events)
}

func TestProxy_SubscriberPanicIsContained(t *testing.T) {
	p := New("rates", 0)
	got := 0
	_, _ = p.Watch(func(int) { panic("observer") })
	_, _ = p.Watch(func(v int) { got = v })

	p.Update(7)
	assert.Equal(t, 7, got)
}

func TestProxy_WaitFor(t *testing.T) {
	p := New("wallets", []string{})
	done := make(chan []string, 1)
	go func() {
		v, err := p.WaitFor(context.Background(), func(ids []string) bool { return len(ids) == 2 })
		if err == nil {
			done <- v
		}
	}()

	p.Update([]string{"a"})
	p.Update([]string{"a", "b"})

	select {
	case v := <-done:
		assert.Equal(t, []string{"a", "b"}, v)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitFor did not observe the refresh")
	}
}

func TestProxy_WaitForClosed(t *testing.T) {
	p := New("wallets", 0)
	errs := make(chan error, 1)
	go func() {
		_, err := p.WaitFor(context.Background(), func(int) bool { return false })
		errs <- err
	}()

	time.Sleep(10 * time.Millisecond)
	p.Close()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrDisposed)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitFor did not wake on close")
	}
}

func TestProxy_WaitForContext(t *testing.T) {
	p := New("wallets", 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.WaitFor(ctx, func(int) bool { return false })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type recordingCloser struct {
	name  string
	order *[]string
}

func (c recordingCloser) Close() { *c.order = append(*c.order, c.name) }

func TestCloseOrder(t *testing.T) {
	var order []string
	CloseAll(recordingCloser{"api", &order}, nil, recordingCloser{"store", &order})
	CloseSorted(map[string]recordingCloser{
		"zec": {"zec", &order},
		"btc": {"btc", &order},
		"eth": {"eth", &order},
	})

	assert.Equal(t, []string{"api", "store", "btc", "eth", "zec"}, order)

	var nilProxy *Proxy[int]
	assert.NotPanics(t, func() { CloseAll(nilProxy) })
}
