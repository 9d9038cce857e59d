package types

import "fmt"

// StatusString converts an NFSv3 status code to its RFC 1813 name.
//
// Unknown codes are rendered as "UNKNOWN_<code>".
func StatusString(status uint32) string {
	switch status {
	case NFS3OK:
		return "NFS3_OK"
	case NFS3ErrPerm:
		return "NFS3ERR_PERM"
	case NFS3ErrNoEnt:
		return "NFS3ERR_NOENT"
	case NFS3ErrIO:
		return "NFS3ERR_IO"
	case NFS3ErrNXIO:
		return "NFS3ERR_NXIO"
	case NFS3ErrAcces:
		return "NFS3ERR_ACCES"
	case NFS3ErrExist:
		return "NFS3ERR_EXIST"
	case NFS3ErrXDev:
		return "NFS3ERR_XDEV"
	case NFS3ErrNoDev:
		return "NFS3ERR_NODEV"
	case NFS3ErrNotDir:
		return "NFS3ERR_NOTDIR"
	case NFS3ErrIsDir:
		return "NFS3ERR_ISDIR"
	case NFS3ErrInval:
		return "NFS3ERR_INVAL"
	case NFS3ErrFBig:
		return "NFS3ERR_FBIG"
	case NFS3ErrNoSpc:
		return "NFS3ERR_NOSPC"
	case NFS3ErrRofs:
		return "NFS3ERR_ROFS"
	case NFS3ErrMLink:
		return "NFS3ERR_MLINK"
	case NFS3ErrNameTooLong:
		return "NFS3ERR_NAMETOOLONG"
	case NFS3ErrNotEmpty:
		return "NFS3ERR_NOTEMPTY"
	case NFS3ErrDQuot:
		return "NFS3ERR_DQUOT"
	case NFS3ErrStale:
		return "NFS3ERR_STALE"
	case NFS3ErrRemote:
		return "NFS3ERR_REMOTE"
	case NFS3ErrBadHandle:
		return "NFS3ERR_BADHANDLE"
	case NFS3ErrNotSync:
		return "NFS3ERR_NOT_SYNC"
	case NFS3ErrBadCookie:
		return "NFS3ERR_BAD_COOKIE"
	case NFS3ErrNotSupp:
		return "NFS3ERR_NOTSUPP"
	case NFS3ErrTooSmall:
		return "NFS3ERR_TOOSMALL"
	case NFS3ErrServerFault:
		return "NFS3ERR_SERVERFAULT"
	case NFS3ErrBadType:
		return "NFS3ERR_BADTYPE"
	case NFS3ErrJukebox:
		return "NFS3ERR_JUKEBOX"
	default:
		return fmt.Sprintf("UNKNOWN_%d", status)
	}
}

// StatusError is a non-OK nfsstat3 returned by a procedure.
type StatusError struct {
	Procedure string
	Status    uint32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Procedure, StatusString(e.Status))
}

// NewStatusError returns nil for NFS3_OK and a *StatusError otherwise.
func NewStatusError(procedure string, status uint32) error {
	if status == NFS3OK {
		return nil
	}
	return &StatusError{Procedure: procedure, Status: status}
}
