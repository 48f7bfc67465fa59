// Package config loads the agent configuration from a YAML file and
// environment variables using viper, then validates it with ozzo-validation.
// It covers node identity, the controller endpoint, the per-node store
// endpoint table, heartbeat timing, logging and the optional metrics listener.
//
// Configuration is resolved once at startup and treated as immutable.
package config
