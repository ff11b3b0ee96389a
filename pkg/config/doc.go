// Package config loads application configuration.
//
// Configuration is resolved in three layers: built-in defaults, an
// optional YAML file (CHORDME_CONFIG_FILE), and CHORDME_* environment
// variables, with later layers winning. Watch re-reads the YAML file on
// change via fsnotify so that operators can adjust settings like the
// log level without a restart.
package config
