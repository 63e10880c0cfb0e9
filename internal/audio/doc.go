// Package audio buffers phone audio between the USB stream and the
// output device.
//
// USB delivers audio in bursts; the output device consumes it at a
// steady rate. A Player absorbs the mismatch with a ring buffer of
// interleaved PCM16 samples and three occupancy rules:
//
//   - Pre-buffer gate: playback stays silent until the configured
//     amount of audio has accumulated, so a stream start doesn't
//     stutter through its first seconds.
//   - Underrun: when the buffer runs dry mid-playback the output gets
//     silence for that block; playback resumes as soon as data arrives,
//     without waiting out the pre-buffer again.
//   - Emergency resync: if occupancy grows past the hard ceiling
//     (the phone streamed faster than real time, or playback stalled),
//     the oldest excess is discarded down to the pre-buffer target.
//     Latency snaps back at the cost of an audible skip.
//
// The Player is pull-based: the output device's callback calls Pull for
// each block. Pull holds the lock only to move samples, so it is safe
// to call from a real-time audio thread.
package audio
