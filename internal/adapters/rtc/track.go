package rtc

import (
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/recbit/meetrec/internal/core"
)

// remoteTrack adapts a pion TrackRemote to core.RemoteTrack and reports the
// track's end exactly once, when a read fails.
type remoteTrack struct {
	t       *webrtc.TrackRemote
	onEnded func(trackID string)
	endOnce sync.Once
}

var _ core.RemoteTrack = (*remoteTrack)(nil)

func wrapRemoteTrack(t *webrtc.TrackRemote, onEnded func(trackID string)) *remoteTrack {
	return &remoteTrack{t: t, onEnded: onEnded}
}

func (rt *remoteTrack) ID() string       { return rt.t.ID() }
func (rt *remoteTrack) StreamID() string { return rt.t.StreamID() }

func (rt *remoteTrack) Kind() core.TrackKind {
	if rt.t.Kind() == webrtc.RTPCodecTypeVideo {
		return core.KindVideo
	}
	return core.KindAudio
}

func (rt *remoteTrack) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := rt.t.ReadRTP()
	if err != nil {
		rt.endOnce.Do(func() {
			if rt.onEnded != nil {
				rt.onEnded(rt.t.ID())
			}
		})
		return nil, err
	}
	return pkt, nil
}
