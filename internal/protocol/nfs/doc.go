// Package nfs implements the client side of the NFSv3 procedures used by
// nfsbridge (RFC 1813): GETATTR, SETATTR, LOOKUP, READ, WRITE, CREATE and
// READDIR.
//
// Each procedure has a request type with an Encode method, a Decode function
// for its results, and a call helper that runs the round trip through a
// Caller (normally *rpc.Client). A non-OK nfsstat3 is returned as
// *types.StatusError; transport and decoding problems are returned as plain
// wrapped errors.
//
// Layering:
//
//   - rpc: record marking, call headers, reply validation
//   - xdr: primitive and attribute encoding
//   - nfs: per-procedure argument and result layouts
//
// Example:
//
//	attr, err := nfs.GetAttr(ctx, client, rootHandle)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(attr.Size)
package nfs

import (
	"context"
	"fmt"
	"io"

	"github.com/netiface/nfsbridge/internal/protocol/nfs/rpc"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/xdr"
)

// Caller issues a single RPC. *rpc.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, program, version, procedure uint32, args []byte) ([]byte, error)
}

func call(ctx context.Context, c Caller, procedure uint32, args []byte) ([]byte, error) {
	return c.Call(ctx, rpc.ProgramNFS, types.NFSVersion3, procedure, args)
}

// decodeStatus reads the leading nfsstat3 of a result. A non-OK status is
// returned as *types.StatusError.
func decodeStatus(reader io.Reader, procedure string) error {
	status, err := xdr.DecodeUint32(reader)
	if err != nil {
		return fmt.Errorf("read %s status: %w", procedure, err)
	}
	return types.NewStatusError(procedure, status)
}

// Null pings the NFS server.
func Null(ctx context.Context, c Caller) error {
	_, err := call(ctx, c, types.NFSProcNull, nil)
	return err
}
