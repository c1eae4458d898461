// Package rec turns the live track set of a media session into a chunked
// binary capture and finalizes it into one artifact.
package rec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/recbit/meetrec/internal/core"
	"github.com/recbit/meetrec/internal/domain"
)

// TrackSource re-queries the current live track set.
type TrackSource func() []core.RemoteTrack

type Options struct {
	// Grace is how long an initially-empty track set is given before the
	// single re-query and the ErrNoMedia verdict.
	Grace         time.Duration
	ChunkInterval time.Duration
	VideoBitrate  int
	AudioBitrate  int
	// MimePreference order is deterministic so runs are reproducible.
	MimePreference []string
	FallbackMime   string
}

func DefaultOptions() Options {
	return Options{
		Grace:         3 * time.Second,
		ChunkInterval: time.Second,
		VideoBitrate:  2_500_000,
		AudioBitrate:  128_000,
		MimePreference: []string{
			"video/webm;codecs=vp9,opus",
			"video/webm;codecs=vp8,opus",
			"video/webm",
		},
		FallbackMime: "video/webm",
	}
}

// Pipeline accumulates chunks from one-or-more capture segments into a
// single in-progress artifact. A track-set change restarts capture on a
// fresh encoder; the accumulated chunks are never touched by a restart.
type Pipeline struct {
	opts       Options
	source     TrackSource
	newEncoder core.EncoderFactory

	mu        sync.Mutex
	recording bool
	finalized bool
	mimeType  string
	startedAt time.Time
	chunks    [][]byte
	bytes     int64

	enc       core.MediaEncoder
	segDone   chan struct{}
	capCtx    context.Context
	capCancel context.CancelFunc
}

func NewPipeline(source TrackSource, newEncoder core.EncoderFactory, opts Options) *Pipeline {
	return &Pipeline{
		opts:       opts,
		source:     source,
		newEncoder: newEncoder,
	}
}

// Start begins capture against the given track set. An empty set gets one
// grace interval and one re-query before ErrNoMedia. ctx bounds the wait
// only; the capture itself runs until Stop.
func (p *Pipeline) Start(ctx context.Context, tracks []core.RemoteTrack) error {
	p.mu.Lock()
	if p.recording || p.finalized {
		p.mu.Unlock()
		return fmt.Errorf("pipeline already used")
	}
	p.mu.Unlock()

	if len(tracks) == 0 {
		log.Info().
			Str("module", "rec").
			Dur("grace", p.opts.Grace).
			Msg("track set empty, waiting grace interval")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.opts.Grace):
		}
		tracks = p.source()
		if len(tracks) == 0 {
			return core.ErrNoMedia
		}
	}

	mime := p.selectMimeType()

	p.mu.Lock()
	p.mimeType = mime
	p.startedAt = time.Now()
	p.recording = true
	p.capCtx, p.capCancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	log.Info().
		Str("module", "rec").
		Str("mime_type", mime).
		Int("tracks", len(tracks)).
		Msg("capture starting")

	if err := p.startSegment(tracks); err != nil {
		p.mu.Lock()
		p.recording = false
		p.capCancel()
		p.mu.Unlock()
		return err
	}
	return nil
}

// selectMimeType walks the preference list in order and falls back to the
// default container when nothing is supported.
func (p *Pipeline) selectMimeType() string {
	probe := p.newEncoder()
	for _, m := range p.opts.MimePreference {
		if probe.Supports(m) {
			return m
		}
	}
	log.Warn().
		Str("module", "rec").
		Str("fallback", p.opts.FallbackMime).
		Msg("no preferred mime type supported")
	return p.opts.FallbackMime
}

func (p *Pipeline) startSegment(tracks []core.RemoteTrack) error {
	enc := p.newEncoder()

	p.mu.Lock()
	capCtx := p.capCtx
	opts := core.EncodeOptions{
		MimeType:      p.mimeType,
		VideoBitrate:  p.opts.VideoBitrate,
		AudioBitrate:  p.opts.AudioBitrate,
		ChunkInterval: p.opts.ChunkInterval,
	}
	p.mu.Unlock()

	ch, err := enc.Start(capCtx, tracks, opts)
	if err != nil {
		return fmt.Errorf("encoder start: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for chunk := range ch {
			if len(chunk) == 0 {
				continue
			}
			p.append(chunk)
		}
	}()

	p.mu.Lock()
	p.enc = enc
	p.segDone = done
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) append(chunk []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finalized {
		log.Warn().Str("module", "rec").Int("len", len(chunk)).Msg("chunk after finalize dropped")
		return
	}
	p.chunks = append(p.chunks, chunk)
	p.bytes += int64(len(chunk))
}

// UpdateTracks restarts capture against the new combined track set. Only
// newly produced chunks are affected; the artifact so far stays intact.
func (p *Pipeline) UpdateTracks(tracks []core.RemoteTrack) error {
	p.mu.Lock()
	if !p.recording {
		p.mu.Unlock()
		return nil
	}
	enc, done := p.enc, p.segDone
	p.mu.Unlock()

	if err := enc.Stop(); err != nil {
		log.Error().Err(err).Str("module", "rec").Msg("segment encoder stop")
	}
	<-done

	if len(tracks) == 0 {
		log.Info().Str("module", "rec").Msg("track set now empty, capture paused")
		return nil
	}
	log.Info().Str("module", "rec").Int("tracks", len(tracks)).Msg("capture restarting on new track set")
	return p.startSegment(tracks)
}

// Stop finalizes the artifact: the last produced chunk is drained before
// the end time is set, so nothing is appended afterwards.
func (p *Pipeline) Stop() (*domain.Artifact, error) {
	p.mu.Lock()
	if !p.recording {
		p.mu.Unlock()
		return nil, core.ErrNotRecording
	}
	p.recording = false
	enc, done, cancel := p.enc, p.segDone, p.capCancel
	p.mu.Unlock()

	if enc != nil {
		if err := enc.Stop(); err != nil {
			log.Error().Err(err).Str("module", "rec").Msg("encoder stop")
		}
	}
	if done != nil {
		<-done
	}
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.finalized = true
	art := &domain.Artifact{
		MimeType:  p.mimeType,
		StartedAt: p.startedAt,
		EndedAt:   time.Now(),
		Chunks:    p.chunks,
		Bytes:     p.bytes,
	}
	log.Info().
		Str("module", "rec").
		Int("chunks", len(art.Chunks)).
		Int64("bytes", art.Bytes).
		Dur("duration", art.Duration()).
		Msg("capture finalized")
	return art, nil
}

func (p *Pipeline) Recording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recording
}

func (p *Pipeline) Bytes() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bytes
}

func (p *Pipeline) ChunkCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.chunks)
}

func (p *Pipeline) MimeType() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mimeType
}

// CollectPending exists for collaborators that poll rather than subscribe.
// Chunks reach the artifact through the encoder stream, so this only
// reports progress.
func (p *Pipeline) CollectPending() (int, int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.chunks), p.bytes
}
