// Package reconnect supervises the dongle session lifecycle.
//
// Dongles drop off the bus: cable glitches, firmware crashes, power
// dips. The Supervisor owns the connect/run/reconnect loop around a
// session runner. When the session dies it tears the session down and
// retries on an exponential backoff schedule; when the retry budget is
// exhausted it goes terminal and waits for a human.
//
// Two things interact with the schedule:
//
//   - A phone actually connecting proves the link is healthy, so the
//     backoff resets and future failures start the schedule over.
//   - The video decoder reporting persistent corruption means the
//     stream, not the bus, is wedged. RestartAfter tears the session
//     down and reconnects after a fixed settling delay, outside the
//     backoff schedule, because the dongle needs time to drop its own
//     session state.
package reconnect
