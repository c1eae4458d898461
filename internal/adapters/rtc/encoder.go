package rtc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/recbit/meetrec/internal/core"
)

// Container/codec combinations this platform can produce. The map is fixed
// so mime selection is identical across runs.
var supportedMimeTypes = map[string]bool{
	"video/webm;codecs=vp8,opus": true,
	"video/webm":                 true,
	"audio/webm;codecs=opus":     true,
}

// ChunkEncoder reads RTP from the live track set and emits the captured
// payload as binary chunks at a fixed cadence. One encoder drives one
// capture segment and cannot be restarted.
type ChunkEncoder struct {
	mu      sync.Mutex
	buf     []byte
	stopped bool

	started bool
	out     chan []byte
	cancel  context.CancelFunc

	stopOnce sync.Once
}

var _ core.MediaEncoder = (*ChunkEncoder)(nil)

func NewChunkEncoder() *ChunkEncoder {
	return &ChunkEncoder{}
}

func (e *ChunkEncoder) Supports(mimeType string) bool {
	return supportedMimeTypes[mimeType]
}

func (e *ChunkEncoder) Start(ctx context.Context, tracks []core.RemoteTrack, opts core.EncodeOptions) (<-chan []byte, error) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil, errors.New("encoder already started")
	}
	e.started = true
	e.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.out = make(chan []byte, 8)

	for _, t := range tracks {
		go e.readLoop(runCtx, t)
	}
	go e.emitLoop(runCtx, opts.ChunkInterval)

	log.Info().
		Str("module", "rtc.encoder").
		Str("mime_type", opts.MimeType).
		Int("video_bitrate", opts.VideoBitrate).
		Int("audio_bitrate", opts.AudioBitrate).
		Int("tracks", len(tracks)).
		Msg("capture segment started")
	return e.out, nil
}

// readLoop drains one track into the current chunk buffer until the track
// ends or the segment stops.
func (e *ChunkEncoder) readLoop(ctx context.Context, t core.RemoteTrack) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		pkt, err := t.ReadRTP()
		if err != nil {
			log.Debug().
				Err(err).
				Str("module", "rtc.encoder").
				Str("track_id", t.ID()).
				Msg("track read ended")
			return
		}
		e.append(pkt.Payload)
	}
}

func (e *ChunkEncoder) append(p []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.buf = append(e.buf, p...)
}

// emitLoop cuts a chunk boundary every interval and flushes the final
// partial chunk before closing the stream.
func (e *ChunkEncoder) emitLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.finalFlush()
			return
		case <-ticker.C:
			if chunk := e.swap(); len(chunk) > 0 {
				e.out <- chunk
			}
		}
	}
}

func (e *ChunkEncoder) swap() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	chunk := e.buf
	e.buf = nil
	return chunk
}

func (e *ChunkEncoder) finalFlush() {
	e.mu.Lock()
	e.stopped = true
	chunk := e.buf
	e.buf = nil
	e.mu.Unlock()
	if len(chunk) > 0 {
		e.out <- chunk
	}
	close(e.out)
}

func (e *ChunkEncoder) Stop() error {
	e.stopOnce.Do(func() {
		if e.cancel != nil {
			e.cancel()
		}
	})
	return nil
}
