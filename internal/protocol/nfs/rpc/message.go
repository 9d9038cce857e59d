package rpc

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// RPCCallMessage is the header of every call the client sends.
//
// Wire Format (XDR encoding):
//   - XID:        4 bytes (transaction identifier)
//   - MsgType:    4 bytes (0 for CALL)
//   - RPCVersion: 4 bytes (2)
//   - Program:    4 bytes
//   - Version:    4 bytes
//   - Procedure:  4 bytes
//   - Cred:       variable
//   - Verf:       variable
//   - [procedure-specific arguments follow]
//
// Reference: RFC 5531 Section 9
type RPCCallMessage struct {
	XID        uint32
	MsgType    uint32
	RPCVersion uint32
	Program    uint32
	Version    uint32
	Procedure  uint32
	Cred       OpaqueAuth
	Verf       OpaqueAuth
}

// replyPrefix is the part of rpc_msg shared by every reply arm.
type replyPrefix struct {
	XID        uint32
	MsgType    uint32
	ReplyState uint32
}

// OpaqueAuth carries a credential or verifier. The RPC layer does not
// interpret Body; its meaning depends on Flavor.
type OpaqueAuth struct {
	Flavor uint32
	Body   []byte `xdr:"opaque"`
}

// NullAuth is the AUTH_NULL credential/verifier.
func NullAuth() OpaqueAuth {
	return OpaqueAuth{Flavor: AuthNull, Body: []byte{}}
}

// UnixAuth is the AUTH_UNIX (AUTH_SYS) credential body.
//
//	struct authsys_parms {
//	    unsigned int stamp;
//	    string machinename<255>;
//	    unsigned int uid;
//	    unsigned int gid;
//	    unsigned int gids<16>;
//	};
type UnixAuth struct {
	Stamp       uint32
	MachineName string
	UID         uint32
	GID         uint32
	GIDs        []uint32
}

// Encode validates the credential and returns it as an OpaqueAuth.
func (a *UnixAuth) Encode() (OpaqueAuth, error) {
	if len(a.MachineName) > maxMachineNameLen {
		return OpaqueAuth{}, fmt.Errorf("machine name too long: %d bytes", len(a.MachineName))
	}
	if len(a.GIDs) > maxAuthGIDs {
		return OpaqueAuth{}, fmt.Errorf("too many gids: %d (max %d)", len(a.GIDs), maxAuthGIDs)
	}

	gids := a.GIDs
	if gids == nil {
		gids = []uint32{}
	}
	body := struct {
		Stamp       uint32
		MachineName string
		UID         uint32
		GID         uint32
		GIDs        []uint32
	}{a.Stamp, a.MachineName, a.UID, a.GID, gids}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &body); err != nil {
		return OpaqueAuth{}, fmt.Errorf("marshal auth_unix: %w", err)
	}

	return OpaqueAuth{Flavor: AuthUnix, Body: buf.Bytes()}, nil
}

// String renders the credential for logs.
func (a *UnixAuth) String() string {
	return fmt.Sprintf("AUTH_UNIX{machine=%s uid=%d gid=%d gids=%v}", a.MachineName, a.UID, a.GID, a.GIDs)
}

// EncodeCall builds the XDR encoding of a call header followed by args.
func EncodeCall(call *RPCCallMessage, args []byte) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, call); err != nil {
		return nil, fmt.Errorf("marshal RPC call: %w", err)
	}
	buf.Write(args)
	return buf.Bytes(), nil
}
