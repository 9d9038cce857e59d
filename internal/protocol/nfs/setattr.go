package nfs

import (
	"bytes"
	"context"
	"fmt"

	"github.com/netiface/nfsbridge/internal/logger"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/xdr"
)

// SetAttrRequest is SETATTR3args. The ctime guard is never sent.
//
// RFC 1813 Section 3.3.2
type SetAttrRequest struct {
	Handle []byte
	Attrs  types.SetAttrs
}

// Encode returns the XDR encoding of the request.
func (req *SetAttrRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.EncodeFileHandle(&buf, req.Handle); err != nil {
		return nil, fmt.Errorf("encode handle: %w", err)
	}
	if err := xdr.EncodeSetAttrs(&buf, &req.Attrs); err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	// sattrguard3: check = FALSE
	if err := xdr.EncodeBool(&buf, false); err != nil {
		return nil, fmt.Errorf("encode guard: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSetAttrResponse decodes SETATTR3res and returns the post-op
// attributes when the server sent them.
func DecodeSetAttrResponse(data []byte) (*types.NFSFileAttr, error) {
	reader := bytes.NewReader(data)
	if err := decodeStatus(reader, "SETATTR"); err != nil {
		return nil, err
	}
	return xdr.SkipWccData(reader)
}

// SetAttr applies attrs to handle.
func SetAttr(ctx context.Context, c Caller, handle []byte, attrs types.SetAttrs) (*types.NFSFileAttr, error) {
	args, err := (&SetAttrRequest{Handle: handle, Attrs: attrs}).Encode()
	if err != nil {
		return nil, err
	}

	data, err := call(ctx, c, types.NFSProcSetAttr, args)
	if err != nil {
		return nil, fmt.Errorf("SETATTR call: %w", err)
	}

	after, err := DecodeSetAttrResponse(data)
	if err != nil {
		return nil, err
	}

	logger.Debug("SETATTR %x ok", handle)
	return after, nil
}
