package serialport

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLensPort_Wake(t *testing.T) {
	mem := NewMemPort()
	lp := NewLensPort(mem)

	var slept []time.Duration
	require.NoError(t, lp.Wake(func(d time.Duration) { slept = append(slept, d) }))

	assert.Equal(t, []time.Duration{500 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond}, slept)
	assert.Equal(t, []LineEvent{
		{LineRequest, true},
		{LineRequest, false},
		{LineRequest, true},
		{LineSync, false},
	}, mem.Events())
}

func TestLensPort_LinesMapToModemBits(t *testing.T) {
	mem := NewMemPort()
	lp := NewLensPort(mem)

	require.NoError(t, lp.SetSyncLine(true))
	require.NoError(t, lp.SetRequestLine(false))
	assert.Equal(t, []LineEvent{{LineSync, true}, {LineRequest, false}}, mem.Events())
}

func TestMemPort_ReadTimeout(t *testing.T) {
	mem := NewMemPort()
	require.NoError(t, mem.SetReadTimeout(20*time.Millisecond))

	buf := make([]byte, 4)
	start := time.Now()
	n, err := mem.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n, "超时返回 0 字节且无错误")
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestMemPort_FeedWakesBlockedReader(t *testing.T) {
	mem := NewMemPort()
	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 8)
		n, _ := mem.Read(buf)
		done <- buf[:n]
	}()

	time.Sleep(10 * time.Millisecond)
	mem.Feed([]byte{0xF0, 0x55})

	select {
	case got := <-done:
		assert.Equal(t, []byte{0xF0, 0x55}, got)
	case <-time.After(time.Second):
		t.Fatal("reader not woken")
	}
}

func TestMemPort_EOFAndHooks(t *testing.T) {
	mem := NewMemPort()
	var hooked []byte
	mem.OnWrite = func(p []byte) { hooked = append(hooked, p...) }

	_, err := mem.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), mem.Written())
	assert.Equal(t, []byte("abc"), hooked)

	mem.Feed([]byte{1})
	mem.CloseInput()
	buf := make([]byte, 4)
	n, err := mem.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = mem.Read(buf)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, mem.Close())
	_, err = mem.Write([]byte{1})
	assert.Error(t, err)
}
