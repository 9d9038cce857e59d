package mount

import "fmt"

// Mount Protocol Procedure Numbers (RFC 1813 Appendix I)
const (
	MountProcNull    = 0
	MountProcMnt     = 1
	MountProcDump    = 2
	MountProcUmnt    = 3
	MountProcUmntAll = 4
	MountProcExport  = 5
)

// MaxPathLen is MNTPATHLEN, the longest dirpath a server must accept.
const MaxPathLen = 1024

// Mount Status Codes (mountstat3)
const (
	MountOK             = 0
	MountErrPerm        = 1
	MountErrNoEnt       = 2
	MountErrIO          = 5
	MountErrAccess      = 13
	MountErrNotDir      = 20
	MountErrInval       = 22
	MountErrNameTooLong = 63
	MountErrNotSupp     = 10004
	MountErrServerFault = 10006
)

// StatusString returns the symbolic name of a mountstat3.
func StatusString(status uint32) string {
	switch status {
	case MountOK:
		return "MNT3_OK"
	case MountErrPerm:
		return "MNT3ERR_PERM"
	case MountErrNoEnt:
		return "MNT3ERR_NOENT"
	case MountErrIO:
		return "MNT3ERR_IO"
	case MountErrAccess:
		return "MNT3ERR_ACCES"
	case MountErrNotDir:
		return "MNT3ERR_NOTDIR"
	case MountErrInval:
		return "MNT3ERR_INVAL"
	case MountErrNameTooLong:
		return "MNT3ERR_NAMETOOLONG"
	case MountErrNotSupp:
		return "MNT3ERR_NOTSUPP"
	case MountErrServerFault:
		return "MNT3ERR_SERVERFAULT"
	default:
		return fmt.Sprintf("MNT3ERR_UNKNOWN_%d", status)
	}
}
