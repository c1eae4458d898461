package core

import (
	"context"
	"time"
)

// EncodeOptions are fixed per capture segment. Bitrates are applied
// uniformly; the chunk interval is the capture cadence.
type EncodeOptions struct {
	MimeType      string
	VideoBitrate  int
	AudioBitrate  int
	ChunkInterval time.Duration
}

// MediaEncoder turns a live track set into a stream of binary chunks at the
// configured cadence. One encoder instance drives one capture segment; a
// track-set change means a new segment on a fresh encoder.
type MediaEncoder interface {
	// Supports reports whether the platform can produce the given
	// container/codec combination.
	Supports(mimeType string) bool
	// Start begins capture and returns the chunk stream. The channel is
	// closed after the final chunk once ctx is cancelled or Stop is called.
	Start(ctx context.Context, tracks []RemoteTrack, opts EncodeOptions) (<-chan []byte, error)
	Stop() error
}

// EncoderFactory builds a fresh encoder per capture segment.
type EncoderFactory func() MediaEncoder
