package rpc

// RPC Program Numbers
//
// Reference: RFC 1057 (RPC Protocol Specification Version 2)
const (
	// ProgramPortmap is the port mapper program number (RFC 1833).
	// It runs on port 111 and maps program/version pairs to ports.
	ProgramPortmap = 100000

	// ProgramNFS is the NFS program number (RFC 1813).
	ProgramNFS = 100003

	// ProgramMount is the Mount protocol program number (RFC 1813 Appendix I).
	// Clients use it to obtain the root file handle of an export.
	ProgramMount = 100005
)

// RPCVersion is the only ONC RPC version in use (RFC 5531).
const RPCVersion = 2

// RPC Message Types (RFC 5531 Section 9)
const (
	RPCCall  = 0
	RPCReply = 1
)

// RPC Reply States
const (
	// RPCMsgAccepted means the server attempted to execute the procedure.
	// The accept_stat tells whether it succeeded.
	RPCMsgAccepted = 0

	// RPCMsgDenied means the server refused the call (version or auth).
	RPCMsgDenied = 1
)

// RPC Accept Status
const (
	RPCSuccess      = 0
	RPCProgUnavail  = 1
	RPCProgMismatch = 2
	RPCProcUnavail  = 3
	RPCGarbageArgs  = 4
	RPCSystemErr    = 5
)

// RPC Reject Status
const (
	RPCMismatch = 0
	RPCAuthErr  = 1
)

// Authentication flavors (RFC 5531 Section 8.2)
const (
	AuthNull  = 0
	AuthUnix  = 1
	AuthShort = 2
	AuthDES   = 3
)

// Record marking (RFC 5531 Section 11)
const (
	lastFragmentFlag = 0x80000000
	fragmentSizeMask = 0x7fffffff

	// maxReplySize bounds a reassembled reply. READ replies are the largest
	// and stay well below this for any sane rsize.
	maxReplySize = 8 << 20
)

// maxMachineNameLen is the AUTH_UNIX machinename limit.
const maxMachineNameLen = 255

// maxAuthGIDs is the AUTH_UNIX supplementary group limit.
const maxAuthGIDs = 16
