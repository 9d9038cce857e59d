package types

import "time"

// ============================================================================
// NFSv3 Constants - RFC 1813
// ============================================================================

// NFSv3 program version.
const NFSVersion3 = 3

// NFSv3 procedure numbers used by the client.
const (
	NFSProcNull    = 0
	NFSProcGetAttr = 1
	NFSProcSetAttr = 2
	NFSProcLookup  = 3
	NFSProcRead    = 6
	NFSProcWrite   = 7
	NFSProcCreate  = 8
	NFSProcReadDir = 16
)

// NFS status codes (nfsstat3, RFC 1813 Section 2.6).
const (
	NFS3OK             = 0
	NFS3ErrPerm        = 1
	NFS3ErrNoEnt       = 2
	NFS3ErrIO          = 5
	NFS3ErrNXIO        = 6
	NFS3ErrAcces       = 13
	NFS3ErrExist       = 17
	NFS3ErrXDev        = 18
	NFS3ErrNoDev       = 19
	NFS3ErrNotDir      = 20
	NFS3ErrIsDir       = 21
	NFS3ErrInval       = 22
	NFS3ErrFBig        = 27
	NFS3ErrNoSpc       = 28
	NFS3ErrRofs        = 30
	NFS3ErrMLink       = 31
	NFS3ErrNameTooLong = 63
	NFS3ErrNotEmpty    = 66
	NFS3ErrDQuot       = 69
	NFS3ErrStale       = 70
	NFS3ErrRemote      = 71
	NFS3ErrBadHandle   = 10001
	NFS3ErrNotSync     = 10002
	NFS3ErrBadCookie   = 10003
	NFS3ErrNotSupp     = 10004
	NFS3ErrTooSmall    = 10005
	NFS3ErrServerFault = 10006
	NFS3ErrBadType     = 10007
	NFS3ErrJukebox     = 10008
)

// File types (ftype3).
const (
	NF3REG  = 1
	NF3DIR  = 2
	NF3BLK  = 3
	NF3CHR  = 4
	NF3LNK  = 5
	NF3SOCK = 6
	NF3FIFO = 7
)

// Write stability levels (stable_how).
const (
	WriteUnstable = 0
	WriteDataSync = 1
	WriteFileSync = 2
)

// CREATE modes (createmode3).
const (
	CreateUnchecked = 0
	CreateGuarded   = 1
	CreateExclusive = 2
)

// set_time discriminants used in sattr3.
const (
	DontChange      = 0
	SetToServerTime = 1
	SetToClientTime = 2
)

// MaxHandleSize is the largest file handle allowed by RFC 1813 (NFS3_FHSIZE).
const MaxHandleSize = 64

// CookieVerfSize is the size of the READDIR cookie verifier.
const CookieVerfSize = 8

// ============================================================================
// Wire Structures
// ============================================================================

// TimeVal is nfstime3: seconds and nanoseconds since the UNIX epoch.
type TimeVal struct {
	Seconds  uint32
	Nseconds uint32
}

// Time converts the wire timestamp to a time.Time.
func (tv TimeVal) Time() time.Time {
	return time.Unix(int64(tv.Seconds), int64(tv.Nseconds))
}

// SpecData holds device numbers for special files (specdata3).
type SpecData struct {
	Major uint32
	Minor uint32
}

// NFSFileAttr is fattr3 (RFC 1813 Section 2.3.1) as decoded from server replies.
type NFSFileAttr struct {
	Type   uint32
	Mode   uint32
	Nlink  uint32
	UID    uint32
	GID    uint32
	Size   uint64
	Used   uint64
	Rdev   SpecData
	Fsid   uint64
	Fileid uint64
	Atime  TimeVal
	Mtime  TimeVal
	Ctime  TimeVal
}

// IsDir reports whether the attributes describe a directory.
func (a *NFSFileAttr) IsDir() bool {
	return a != nil && a.Type == NF3DIR
}

// SetAttrs is the subset of sattr3 the client sends. Nil pointers are encoded
// as DONT_CHANGE.
type SetAttrs struct {
	Mode *uint32
	UID  *uint32
	GID  *uint32
	Size *uint64
}

// DirEntry is one entry3 returned by READDIR.
type DirEntry struct {
	Fileid uint64
	Name   string
	Cookie uint64
}
