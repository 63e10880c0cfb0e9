package audio

import (
	"time"
)

// drainBlock is the pull cadence of the headless consumer, matching a
// typical output device callback period.
const drainBlock = 10 * time.Millisecond

// Drain consumes a Player at real-time rate without producing sound,
// until stop is closed. Deployments without an audio device use it so
// buffer occupancy still tracks playback time instead of climbing to
// the ceiling and resyncing forever.
func Drain(p *Player, stop <-chan struct{}) {
	ticker := time.NewTicker(drainBlock)
	defer ticker.Stop()

	var block []int16
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n := p.blockSize(drainBlock)
			if n == 0 {
				continue
			}
			if len(block) != n {
				block = make([]int16, n)
			}
			p.Pull(block)
		}
	}
}
