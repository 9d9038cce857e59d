package nfsclient

import (
	"os"
	"time"
)

// Options configures a Client.
//
// Zero values are replaced by defaults in New.
type Options struct {
	// MachineName is sent in the AUTH_UNIX credential.
	// Default: the local hostname.
	MachineName string

	// MountPort is the MOUNT daemon port. 0 asks the port mapper.
	MountPort int

	// NFSPort is the NFS server port. 0 asks the port mapper, falling back
	// to 2049 when the port mapper is unreachable.
	NFSPort int

	// Timeout bounds connection setup and each RPC. Default: 30s.
	Timeout time.Duration

	// MaxReadSize is the largest count sent in a single READ. Default: 64 KiB.
	MaxReadSize uint32

	// MaxWriteSize is the largest payload sent in a single WRITE. Default: 64 KiB.
	MaxWriteSize uint32

	// ReadDirCount is the reply size hint sent with READDIR. Default: 8 KiB.
	ReadDirCount uint32

	// MaxRequestsPerSecond throttles NFS calls. 0 means unlimited.
	MaxRequestsPerSecond uint

	// RequestBurst is how many calls may go out back to back before
	// throttling starts. Default: MaxRequestsPerSecond.
	RequestBurst uint
}

// Defaults.
const (
	DefaultNFSPort      = 2049
	DefaultTimeout      = 30 * time.Second
	DefaultMaxReadSize  = 64 * 1024
	DefaultMaxWriteSize = 64 * 1024
	DefaultReadDirCount = 8 * 1024
)

func (o *Options) applyDefaults() {
	if o.MachineName == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "nfsbridge"
		}
		o.MachineName = host
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxReadSize == 0 {
		o.MaxReadSize = DefaultMaxReadSize
	}
	if o.MaxWriteSize == 0 {
		o.MaxWriteSize = DefaultMaxWriteSize
	}
	if o.ReadDirCount == 0 {
		o.ReadDirCount = DefaultReadDirCount
	}
}
