package rtc

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recbit/meetrec/internal/core"
)

// scriptedTrack serves a fixed packet sequence, then blocks until the
// encoder stops it.
type scriptedTrack struct {
	id       string
	payloads [][]byte

	mu     sync.Mutex
	next   int
	closed chan struct{}
	once   sync.Once
}

func newScriptedTrack(id string, payloads ...[]byte) *scriptedTrack {
	return &scriptedTrack{id: id, payloads: payloads, closed: make(chan struct{})}
}

func (t *scriptedTrack) ID() string           { return t.id }
func (t *scriptedTrack) StreamID() string     { return "stream-" + t.id }
func (t *scriptedTrack) Kind() core.TrackKind { return core.KindAudio }

func (t *scriptedTrack) ReadRTP() (*rtp.Packet, error) {
	t.mu.Lock()
	if t.next < len(t.payloads) {
		p := t.payloads[t.next]
		t.next++
		t.mu.Unlock()
		return &rtp.Packet{Payload: p}, nil
	}
	t.mu.Unlock()

	<-t.closed
	return nil, io.EOF
}

func (t *scriptedTrack) end() {
	t.once.Do(func() { close(t.closed) })
}

func encodeOpts() core.EncodeOptions {
	return core.EncodeOptions{
		MimeType:      "video/webm;codecs=vp8,opus",
		ChunkInterval: 10 * time.Millisecond,
	}
}

func TestChunkEncoderSupports(t *testing.T) {
	e := NewChunkEncoder()

	assert.True(t, e.Supports("video/webm;codecs=vp8,opus"))
	assert.True(t, e.Supports("video/webm"))
	assert.True(t, e.Supports("audio/webm;codecs=opus"))
	assert.False(t, e.Supports("video/webm;codecs=vp9,opus"))
	assert.False(t, e.Supports("video/mp4"))
}

func TestChunkEncoderEmitsCapturedPayload(t *testing.T) {
	track := newScriptedTrack("a1", []byte("he"), []byte("llo"))
	defer track.end()

	e := NewChunkEncoder()
	out, err := e.Start(context.Background(), []core.RemoteTrack{track}, encodeOpts())
	require.NoError(t, err)

	var got []byte
	deadline := time.After(time.Second)
	for len(got) < 5 {
		select {
		case chunk := <-out:
			got = append(got, chunk...)
		case <-deadline:
			t.Fatal("no chunk before deadline")
		}
	}
	assert.Equal(t, []byte("hello"), got)
}

func TestChunkEncoderStopClosesStream(t *testing.T) {
	track := newScriptedTrack("a1")
	defer track.end()

	e := NewChunkEncoder()
	out, err := e.Start(context.Background(), []core.RemoteTrack{track}, encodeOpts())
	require.NoError(t, err)

	require.NoError(t, e.Stop())
	require.NoError(t, e.Stop(), "stop is idempotent")

	select {
	case _, open := <-out:
		assert.False(t, open, "stream closed after stop")
	case <-time.After(time.Second):
		t.Fatal("stream not closed")
	}
}

func TestChunkEncoderFlushesPartialChunkOnStop(t *testing.T) {
	track := newScriptedTrack("a1", []byte("tail"))
	defer track.end()

	e := NewChunkEncoder()
	opts := encodeOpts()
	// Interval far beyond the test so only the final flush can emit.
	opts.ChunkInterval = time.Hour
	out, err := e.Start(context.Background(), []core.RemoteTrack{track}, opts)
	require.NoError(t, err)

	// Let the read loop drain the script before stopping.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, e.Stop())

	var got []byte
	for chunk := range out {
		got = append(got, chunk...)
	}
	assert.Equal(t, []byte("tail"), got)
}

func TestChunkEncoderCannotRestart(t *testing.T) {
	track := newScriptedTrack("a1")
	defer track.end()

	e := NewChunkEncoder()
	_, err := e.Start(context.Background(), []core.RemoteTrack{track}, encodeOpts())
	require.NoError(t, err)
	defer func() { _ = e.Stop() }()

	_, err = e.Start(context.Background(), []core.RemoteTrack{track}, encodeOpts())
	require.Error(t, err)
}
