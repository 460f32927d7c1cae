package media

import (
	"context"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
)

const audioLevelInterval = time.Second

// levelPoller samples the outbound audio level of the publisher peer
// connection on a fixed interval. It must be stopped the moment the
// connection leaves the connected state; a dangling interval is a leak.
type levelPoller struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// start begins polling. A second start replaces the previous poll.
func (lp *levelPoller) start(pc *webrtc.PeerConnection, fn func(level float64)) {
	lp.stop()

	ctx, cancel := context.WithCancel(context.Background())
	lp.mu.Lock()
	lp.cancel = cancel
	lp.mu.Unlock()

	go func() {
		ticker := time.NewTicker(audioLevelInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if level, ok := outboundAudioLevel(pc.GetStats()); ok {
					fn(level)
				}
			}
		}
	}()
}

func (lp *levelPoller) stop() {
	lp.mu.Lock()
	cancel := lp.cancel
	lp.cancel = nil
	lp.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func outboundAudioLevel(report webrtc.StatsReport) (float64, bool) {
	for _, s := range report {
		if src, ok := s.(webrtc.AudioSourceStats); ok {
			return src.AudioLevel, true
		}
	}
	return 0, false
}
