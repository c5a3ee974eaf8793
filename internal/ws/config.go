package ws

import "time"

// Config holds connection session settings
type Config struct {
	// HeartbeatInterval is how often a ping and state sync are sent
	HeartbeatInterval time.Duration
	// ClientTimeout closes a connection with no activity for this long
	ClientTimeout time.Duration
	// WriteWait bounds each socket write
	WriteWait time.Duration
	// MaxMessageSize bounds inbound frames in bytes
	MaxMessageSize int64
	// SendBuffer is the number of outbound frames queued per connection
	SendBuffer int
	// MaxAuthFailures closes a connection after this many rejected Auth frames
	MaxAuthFailures int
	// CleanupTimeout bounds the coordinator calls made when a connection stops
	CleanupTimeout time.Duration
	// AllowedOrigins may open a socket authenticated by the token cookie,
	// in addition to the server's own host
	AllowedOrigins []string
}

// DefaultConfig returns the default connection settings
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 5 * time.Second,
		ClientTimeout:     10 * time.Second,
		WriteWait:         10 * time.Second,
		MaxMessageSize:    64 * 1024,
		SendBuffer:        256,
		MaxAuthFailures:   3,
		CleanupTimeout:    5 * time.Second,
	}
}
