package nfsclient

import (
	"errors"

	"github.com/netiface/nfsbridge/internal/protocol/nfs/mount"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
)

// StatusError is a non-OK NFSv3 status returned by the server. Its Status
// field holds the nfsstat3 code.
type StatusError = types.StatusError

// MountError is a MOUNT rejection (mountstat3) returned by the server.
type MountError = mount.Error

var (
	// ErrNotMounted is returned by operations issued before Mount or after Unmount.
	ErrNotMounted = errors.New("nfsclient: not mounted")

	// ErrClosed is returned by operations on a closed File or Dir.
	ErrClosed = errors.New("nfsclient: file already closed")

	// ErrNotFile is returned when a regular-file operation targets something else.
	ErrNotFile = errors.New("nfsclient: not a regular file")

	// ErrInvalidSeek is returned for a negative resulting offset or an unknown whence.
	ErrInvalidSeek = errors.New("nfsclient: invalid seek")
)

// Status extracts the nfsstat3 code from err. ok is false when err is not a
// server status.
func Status(err error) (status uint32, ok bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status, true
	}
	return 0, false
}

// IsNotExist reports whether err means the path does not exist.
func IsNotExist(err error) bool {
	status, ok := Status(err)
	return ok && status == types.NFS3ErrNoEnt
}

// IsMountRejected reports whether err is a MOUNT rejection by the server.
func IsMountRejected(err error) bool {
	var mountErr *MountError
	return errors.As(err, &mountErr)
}
