// Package notifications delivers run events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and degrades to a no-op when no topic is set. Each event kind
// can be switched off individually so long unattended runs only report what
// the operator cares about.
package notifications
