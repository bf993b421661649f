// Package config loads, normalizes, and validates libconv configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LIBCONV_NTFY_TOPIC and EMBY_API_KEY. The Config type centralizes every knob
// the conversion run and CLI need, so ledger locations, tool command lines,
// and the accept/revert policy are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
