package nfs

import (
	"bytes"
	"context"
	"fmt"

	"github.com/netiface/nfsbridge/internal/logger"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/xdr"
)

// GetAttrRequest is GETATTR3args.
//
// RFC 1813 Section 3.3.1
type GetAttrRequest struct {
	Handle []byte
}

// Encode returns the XDR encoding of the request.
func (req *GetAttrRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.EncodeFileHandle(&buf, req.Handle); err != nil {
		return nil, fmt.Errorf("encode handle: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeGetAttrResponse decodes GETATTR3res.
func DecodeGetAttrResponse(data []byte) (*types.NFSFileAttr, error) {
	reader := bytes.NewReader(data)
	if err := decodeStatus(reader, "GETATTR"); err != nil {
		return nil, err
	}
	return xdr.DecodeFileAttr(reader)
}

// GetAttr fetches the attributes of handle.
func GetAttr(ctx context.Context, c Caller, handle []byte) (*types.NFSFileAttr, error) {
	args, err := (&GetAttrRequest{Handle: handle}).Encode()
	if err != nil {
		return nil, err
	}

	data, err := call(ctx, c, types.NFSProcGetAttr, args)
	if err != nil {
		return nil, fmt.Errorf("GETATTR call: %w", err)
	}

	attr, err := DecodeGetAttrResponse(data)
	if err != nil {
		return nil, err
	}

	logger.Debug("GETATTR %x: type=%d mode=%o size=%d", handle, attr.Type, attr.Mode, attr.Size)
	return attr, nil
}
