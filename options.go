package spiflash

// Progress is reported after every block of a Dump or Program.
type Progress struct {
	// Stage is "dump" or "program".
	Stage string
	// Block is the block just transferred.
	Block int
	// Done and Total are in bytes.
	Done  int
	Total int
}

// ProgressFunc receives Progress reports. It runs on the caller's
// goroutine between two commands and should return quickly.
type ProgressFunc func(Progress)

type config struct {
	bufSize  int
	version  Version
	progress ProgressFunc
}

func defaultConfig() config {
	return config{
		bufSize: DefaultBufferSize,
		version: HostVersion,
	}
}

// Option configures a Device or Session.
type Option func(*config)

// WithBufferSize sets the outbound buffer threshold of the channel.
func WithBufferSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.bufSize = size
		}
	}
}

// WithVersion sets the firmware version Ping expects. Defaults to
// HostVersion.
func WithVersion(v Version) Option {
	return func(c *config) {
		c.version = v
	}
}

// WithProgress sets a callback for Dump and Program.
func WithProgress(fn ProgressFunc) Option {
	return func(c *config) {
		c.progress = fn
	}
}
