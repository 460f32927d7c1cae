package media

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

// silentOpusFrame is a minimal opus packet decoding to 20ms of silence.
var silentOpusFrame = []byte{0xf8, 0xff, 0xfe}

const silenceInterval = 20 * time.Millisecond

// placeholderSet holds the synthesized default tracks a stage publisher
// keeps on its senders while real capture is off. Created once per media
// session and reused across reconnects; released only on disposal.
type placeholderSet struct {
	audio *webrtc.TrackLocalStaticSample
	video *webrtc.TrackLocalStaticSample

	cancel context.CancelFunc
}

func newPlaceholderSet() (*placeholderSet, error) {
	// Both tracks share one fresh stream id so the relay groups them as a
	// single outbound stream for this client.
	streamID := uuid.NewString()
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"placeholder-audio", streamID,
	)
	if err != nil {
		return nil, err
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"placeholder-video", streamID,
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	ps := &placeholderSet{audio: audio, video: video, cancel: cancel}
	go ps.feedSilence(ctx)
	return ps, nil
}

// feedSilence keeps the audio placeholder alive with silent frames. The
// video placeholder sends no samples; subscribers render it blank.
func (ps *placeholderSet) feedSilence(ctx context.Context) {
	ticker := time.NewTicker(silenceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := ps.audio.WriteSample(media.Sample{
				Data:     silentOpusFrame,
				Duration: silenceInterval,
			})
			if err != nil {
				log.Debug().Err(err).Str("module", "media").Msg("placeholder write")
			}
		}
	}
}

func (ps *placeholderSet) release() {
	ps.cancel()
}
