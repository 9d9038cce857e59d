// Package mount implements the client side of the NFS Mount protocol
// (RFC 1813 Appendix I).
//
// The Mount protocol is a separate RPC program that runs alongside NFS. A
// client calls MNT with an export path to obtain the root file handle, and
// UMNT to tell the server the mount entry can be dropped.
//
// Only MNT, UMNT and NULL are implemented; DUMP and EXPORT are not needed to
// access files.
package mount

import (
	"bytes"
	"context"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/netiface/nfsbridge/internal/logger"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/rpc"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
	nfsxdr "github.com/netiface/nfsbridge/internal/protocol/nfs/xdr"
)

// Version is the Mount protocol version paired with NFSv3.
const Version = 3

// Caller issues a single RPC. *rpc.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, program, version, procedure uint32, args []byte) ([]byte, error)
}

// MountRequest is the MNT argument.
//
//	MNT(dirpath) -> mountres3
type MountRequest struct {
	// DirPath is the export path on the server, e.g. "/export".
	DirPath string
}

// MountResponse is a decoded mountres3.
type MountResponse struct {
	// Status is MountOK on success.
	Status uint32

	// FileHandle is the root handle of the export. Only set when Status == MountOK.
	FileHandle []byte

	// AuthFlavors lists the flavors the server accepts for this export.
	AuthFlavors []int32
}

// mountResOK is the MNT3_OK arm of mountres3.
type mountResOK struct {
	FileHandle  []byte
	AuthFlavors []int32
}

// Error is a non-OK mountstat3.
type Error struct {
	Path   string
	Status uint32
}

func (e *Error) Error() string {
	return fmt.Sprintf("mount %s: %s", e.Path, StatusString(e.Status))
}

// EncodeMountRequest encodes a dirpath argument (shared by MNT and UMNT).
func EncodeMountRequest(req *MountRequest) ([]byte, error) {
	if len(req.DirPath) > MaxPathLen {
		return nil, fmt.Errorf("export path too long: %d bytes (max %d)", len(req.DirPath), MaxPathLen)
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, req); err != nil {
		return nil, fmt.Errorf("marshal mount request: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeMountResponse decodes MNT results.
func DecodeMountResponse(data []byte) (*MountResponse, error) {
	reader := bytes.NewReader(data)

	status, err := nfsxdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("read mount status: %w", err)
	}

	resp := &MountResponse{Status: status}
	if status != MountOK {
		return resp, nil
	}

	var ok mountResOK
	if _, err := xdr.Unmarshal(reader, &ok); err != nil {
		return nil, fmt.Errorf("unmarshal mount result: %w", err)
	}
	if len(ok.FileHandle) == 0 || len(ok.FileHandle) > types.MaxHandleSize {
		return nil, fmt.Errorf("invalid root handle length %d", len(ok.FileHandle))
	}

	resp.FileHandle = ok.FileHandle
	resp.AuthFlavors = ok.AuthFlavors
	return resp, nil
}

// Mount calls MNT for path and returns the export's root handle.
// A rejection by the server is returned as *Error.
func Mount(ctx context.Context, caller Caller, path string) (*MountResponse, error) {
	args, err := EncodeMountRequest(&MountRequest{DirPath: path})
	if err != nil {
		return nil, err
	}

	data, err := caller.Call(ctx, rpc.ProgramMount, Version, MountProcMnt, args)
	if err != nil {
		return nil, fmt.Errorf("MNT call: %w", err)
	}

	resp, err := DecodeMountResponse(data)
	if err != nil {
		return nil, err
	}
	if resp.Status != MountOK {
		logger.Warn("MNT %s rejected: %s", path, StatusString(resp.Status))
		return nil, &Error{Path: path, Status: resp.Status}
	}

	logger.Debug("MNT %s: handle=%x flavors=%v", path, resp.FileHandle, resp.AuthFlavors)
	return resp, nil
}

// Unmount calls UMNT for path. UMNT has no result body.
func Unmount(ctx context.Context, caller Caller, path string) error {
	args, err := EncodeMountRequest(&MountRequest{DirPath: path})
	if err != nil {
		return err
	}

	if _, err := caller.Call(ctx, rpc.ProgramMount, Version, MountProcUmnt, args); err != nil {
		return fmt.Errorf("UMNT call: %w", err)
	}
	return nil
}

// Null pings the mount daemon.
func Null(ctx context.Context, caller Caller) error {
	_, err := caller.Call(ctx, rpc.ProgramMount, Version, MountProcNull, nil)
	return err
}
