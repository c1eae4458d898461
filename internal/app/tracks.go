package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/recbit/meetrec/internal/core"
)

// RemoteStream groups the tracks that arrived under one stream id. It holds
// at most one audio and one video track.
type RemoteStream struct {
	ID    string
	Audio core.RemoteTrack
	Video core.RemoteTrack
}

func (s *RemoteStream) empty() bool {
	return s.Audio == nil && s.Video == nil
}

// TrackRegistry tracks live remote tracks grouped by stream identity. Safe
// under concurrent delivery of multiple tracks. Invariant: a stream entry
// exists iff it holds at least one live track.
type TrackRegistry struct {
	mu      sync.RWMutex
	streams map[string]*RemoteStream
}

func NewTrackRegistry() *TrackRegistry {
	return &TrackRegistry{streams: make(map[string]*RemoteStream)}
}

// Add enrolls a track under its stream id. A track belongs to exactly one
// stream at a time; re-adding an id moves it. Tracks of an unrecognized
// kind are ignored without creating a stream entry.
func (r *TrackRegistry) Add(t core.RemoteTrack) {
	kind := t.Kind()
	if kind != core.KindAudio && kind != core.KindVideo {
		log.Warn().Str("module", "app.tracks").Str("kind", string(kind)).Msg("unknown track kind ignored")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(t.ID())

	s, ok := r.streams[t.StreamID()]
	if !ok {
		s = &RemoteStream{ID: t.StreamID()}
		r.streams[t.StreamID()] = s
	}
	if kind == core.KindAudio {
		s.Audio = t
	} else {
		s.Video = t
	}
	log.Info().
		Str("module", "app.tracks").
		Str("track_id", t.ID()).
		Str("stream_id", t.StreamID()).
		Str("kind", string(t.Kind())).
		Msg("track enrolled")
}

// Remove drops a track by id and prunes its stream if it became empty.
// Removing an unknown id is a no-op.
func (r *TrackRegistry) Remove(trackID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(trackID)
}

func (r *TrackRegistry) removeLocked(trackID string) {
	for sid, s := range r.streams {
		if s.Audio != nil && s.Audio.ID() == trackID {
			s.Audio = nil
		}
		if s.Video != nil && s.Video.ID() == trackID {
			s.Video = nil
		}
		if s.empty() {
			delete(r.streams, sid)
		}
	}
}

// Snapshot returns the current live track set.
func (r *TrackRegistry) Snapshot() []core.RemoteTrack {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.RemoteTrack, 0, len(r.streams)*2)
	for _, s := range r.streams {
		if s.Audio != nil {
			out = append(out, s.Audio)
		}
		if s.Video != nil {
			out = append(out, s.Video)
		}
	}
	return out
}

func (r *TrackRegistry) StreamCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}

func (r *TrackRegistry) Len() int {
	return len(r.Snapshot())
}

// Clear drops every stream. Used on disconnect.
func (r *TrackRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams = make(map[string]*RemoteStream)
}
