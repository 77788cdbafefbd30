package lens

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/lens-broker/internal/serialport"
)

func TestDecode_RoundTrip(t *testing.T) {
	cases := []struct {
		payload []byte
		minSize int
		typ     byte
		seq     byte
	}{
		{[]byte{0x40, 'M'}, 19, 2, 0},
		{[]byte{0x40, 'K', 0xFA}, 0, 2, 0},
		{[]byte{0x15}, 0, 0x11, 0xFE},
		{[]byte{0x40, 'F', 0xCB, 0xFF, 0xFF, 0xFF}, 11, 0xFF, 0xFF},
	}
	for _, c := range cases {
		mem := serialport.NewMemPort()
		mem.Feed(Encode(c.payload, c.minSize, c.typ, c.seq))
		d := NewDecoder(mem, 50*time.Millisecond, nil, nil)

		f, err := d.Decode(time.Second)
		require.NoError(t, err)

		want := c.payload
		if c.minSize > len(want) {
			want = append(append([]byte{}, want...), make([]byte, c.minSize-len(c.payload))...)
		}
		assert.Equal(t, want, f.Payload)
		assert.Equal(t, c.typ, f.Type)
		assert.Equal(t, c.seq, f.Seq)
		assert.Equal(t, uint16(len(want)+Overhead), f.Size)
		assert.True(t, f.Valid(), "校验和应满足累加公式")
	}
}

func TestDecode_ResyncAfterBadTerminator(t *testing.T) {
	bad := Encode([]byte{0x40, 'V', 0x01}, 0, 2, 0)
	bad[len(bad)-1] = 0x00
	good := Encode([]byte{0x40, 'V', 0x01, 0x01}, 0, 2, 0)

	mem := serialport.NewMemPort()
	mem.Feed([]byte{0x13, 0x37})
	mem.Feed(bad)
	mem.Feed(good)
	d := NewDecoder(mem, 50*time.Millisecond, nil, nil)

	f, err := d.Decode(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x40, 'V', 0x01, 0x01}, f.Payload)

	_, err = d.Decode(30 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout, "只产出一帧合法帧")
}

func TestDecode_UndersizedHeaderDiscarded(t *testing.T) {
	good := Encode([]byte{0x40, 'M', 45}, 0, 2, 0)

	mem := serialport.NewMemPort()
	mem.Feed([]byte{0xF0, 0x05, 0x00, 0x02, 0x00})
	mem.Feed(good)
	d := NewDecoder(mem, 50*time.Millisecond, nil, nil)

	f, err := d.Decode(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x40, 'M', 45}, f.Payload)
}

func TestDecode_ChecksumNotEnforced(t *testing.T) {
	raw := Encode([]byte{0x40, 'M', 45}, 0, 2, 0)
	raw[len(raw)-3] ^= 0xFF

	mem := serialport.NewMemPort()
	mem.Feed(raw)
	f, err := NewDecoder(mem, 50*time.Millisecond, nil, nil).Decode(time.Second)
	require.NoError(t, err)
	assert.False(t, f.Valid())
}

func TestDecode_Timeout(t *testing.T) {
	mem := serialport.NewMemPort()
	d := NewDecoder(mem, 50*time.Millisecond, nil, nil)

	start := time.Now()
	_, err := d.Decode(40 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDecode_StalledBodyThenTimeout(t *testing.T) {
	mem := serialport.NewMemPort()
	mem.Feed([]byte{0xF0, 0x1B, 0x00, 0x02, 0x00, 0x40})
	d := NewDecoder(mem, 10*time.Millisecond, nil, nil)

	_, err := d.Decode(60 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDecode_SourceClosed(t *testing.T) {
	mem := serialport.NewMemPort()
	mem.CloseInput()
	_, err := NewDecoder(mem, 10*time.Millisecond, nil, nil).Decode(0)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestDecode_TruncatedFrameBoundedByDeadline(t *testing.T) {
	for _, byteTimeout := range []time.Duration{0, 5 * time.Second} {
		mem := serialport.NewMemPort()
		mem.Feed([]byte{0xF0, 0x1B, 0x00, 0x02, 0x00, 0x40})
		d := NewDecoder(mem, byteTimeout, nil, nil)

		start := time.Now()
		_, err := d.Decode(50 * time.Millisecond)
		assert.ErrorIs(t, err, ErrTimeout, "byteTimeout=%v", byteTimeout)
		assert.Less(t, time.Since(start), time.Second, "byteTimeout=%v", byteTimeout)
	}
}

func TestNewDecoder_DefaultByteTimeout(t *testing.T) {
	d := NewDecoder(serialport.NewMemPort(), 0, nil, nil)
	assert.Equal(t, DefaultByteTimeout, d.byteTimeout)
}
