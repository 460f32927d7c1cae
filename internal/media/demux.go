package media

import (
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/openstage/roomclient/internal/domain"
)

// screenStreamPrefix marks a stream id as a screen-share sub-stream; the
// remainder of the id is the sharing participant's id.
const screenStreamPrefix = "screen-"

// RemoteStream groups the remote tracks that share one stream id.
type RemoteStream struct {
	Audio *webrtc.TrackRemote
	Video *webrtc.TrackRemote
}

// streamMap demultiplexes incoming remote tracks: ordinary streams are
// keyed by stream id, screen-share streams additionally elect the current
// sharer (last one wins within a batch).
type streamMap struct {
	mu      sync.Mutex
	streams map[string]RemoteStream
	sharer  domain.UserID
}

func newStreamMap() *streamMap {
	return &streamMap{streams: make(map[string]RemoteStream)}
}

// add files a track under its stream id and reports whether it belongs to
// a screen share, along with the sharer id.
func (m *streamMap) add(track *webrtc.TrackRemote) (domain.UserID, bool) {
	return m.addKeyed(track.StreamID(), track.Kind(), track)
}

func (m *streamMap) addKeyed(streamID string, kind webrtc.RTPCodecType, track *webrtc.TrackRemote) (domain.UserID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.streams[streamID]
	switch kind {
	case webrtc.RTPCodecTypeAudio:
		st.Audio = track
	case webrtc.RTPCodecTypeVideo:
		st.Video = track
	}
	m.streams[streamID] = st

	sharer, ok := screenSharerID(streamID)
	if !ok {
		return "", false
	}
	m.sharer = sharer
	return m.sharer, true
}

// screenSharerID extracts the sharing participant's id from a screen-share
// stream id.
func screenSharerID(streamID string) (domain.UserID, bool) {
	if !strings.HasPrefix(streamID, screenStreamPrefix) {
		return "", false
	}
	return domain.UserID(strings.TrimPrefix(streamID, screenStreamPrefix)), true
}

func (m *streamMap) get(streamID string) (RemoteStream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.streams[streamID]
	return st, ok
}

func (m *streamMap) screenSharer() (domain.UserID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sharer, m.sharer != ""
}

func (m *streamMap) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams = make(map[string]RemoteStream)
	m.sharer = ""
}
