// Package config defines the CarLink bridge configuration.
//
// Configuration covers the dongle session parameters (resolution, frame
// rate, DPI, box name, drive side, WiFi band, microphone source), the
// per-phone-type frame-request intervals, audio buffering tunables, the
// reconnection policy, and the optional monitor server.
//
// # Loading
//
// Defaults are always applied first; a YAML file overlays them:
//
//	cfg, err := config.Load("/etc/carlink/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// A missing file is not an error: Load returns the defaults so the bridge
// runs out of the box.
//
// # Validation
//
// Load validates the result and rejects configurations the dongle would
// not accept (zero resolution, unknown WiFi band or mic source, negative
// intervals).
//
// # Mutability
//
// A Config is created once per session and treated as immutable while the
// session runs. Video settings changes go through the driver's
// UpdateVideoSettings, which mutates the config and re-sends it to the
// dongle in one step.
package config
