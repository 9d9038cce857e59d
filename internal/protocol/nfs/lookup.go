package nfs

import (
	"bytes"
	"context"
	"fmt"

	"github.com/netiface/nfsbridge/internal/logger"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/xdr"
)

// LookupRequest is LOOKUP3args.
//
// RFC 1813 Section 3.3.3
type LookupRequest struct {
	DirHandle []byte
	Name      string
}

// LookupResponse is the LOOKUP3resok arm.
type LookupResponse struct {
	Handle  []byte
	Attr    *types.NFSFileAttr // optional
	DirAttr *types.NFSFileAttr // optional
}

// Encode returns the XDR encoding of the request.
func (req *LookupRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.EncodeDirOpArgs(&buf, req.DirHandle, req.Name); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeLookupResponse decodes LOOKUP3res.
func DecodeLookupResponse(data []byte) (*LookupResponse, error) {
	reader := bytes.NewReader(data)
	if err := decodeStatus(reader, "LOOKUP"); err != nil {
		return nil, err
	}

	handle, err := xdr.DecodeFileHandle(reader)
	if err != nil {
		return nil, fmt.Errorf("decode object handle: %w", err)
	}

	attr, err := xdr.DecodeOptionalFileAttr(reader)
	if err != nil {
		return nil, fmt.Errorf("decode object attributes: %w", err)
	}

	dirAttr, err := xdr.DecodeOptionalFileAttr(reader)
	if err != nil {
		return nil, fmt.Errorf("decode directory attributes: %w", err)
	}

	return &LookupResponse{Handle: handle, Attr: attr, DirAttr: dirAttr}, nil
}

// Lookup resolves name inside the directory dir.
func Lookup(ctx context.Context, c Caller, dir []byte, name string) (*LookupResponse, error) {
	args, err := (&LookupRequest{DirHandle: dir, Name: name}).Encode()
	if err != nil {
		return nil, err
	}

	data, err := call(ctx, c, types.NFSProcLookup, args)
	if err != nil {
		return nil, fmt.Errorf("LOOKUP call: %w", err)
	}

	resp, err := DecodeLookupResponse(data)
	if err != nil {
		return nil, err
	}

	logger.Debug("LOOKUP %x/%s -> %x", dir, name, resp.Handle)
	return resp, nil
}
