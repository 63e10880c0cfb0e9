// Package session tracks the phone projection session on top of the
// driver.
//
// The driver moves frames; the session gives them meaning. It watches
// the decoded message stream for phone arrival and departure, routes
// audio into the playback buffer and video to the consumer, fires the
// microphone hooks when Siri or a phone call wants input, and nudges
// the dongle when it needs nudging:
//
//   - Pairing: if no phone joins within the pairing timeout, the
//     session asks the dongle to enter WiFi pairing mode, and keeps
//     asking at the same interval. Any sign of a phone — a Plugged
//     message or video/audio/media traffic — stops the asking.
//   - Frame keep-alive: some phones stop pushing video on a static UI.
//     For those, the session requests a frame at the configured
//     per-phone-type interval while the phone is plugged.
//
// State changes and dongle information messages are published to event
// observers, which is what the monitor server streams to frontends.
// Observers run on the driver's dispatch goroutine and must not block.
package session
