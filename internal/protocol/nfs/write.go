package nfs

import (
	"bytes"
	"context"
	"fmt"

	"github.com/netiface/nfsbridge/internal/logger"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/xdr"
)

// WriteRequest is WRITE3args.
//
// RFC 1813 Section 3.3.7
type WriteRequest struct {
	Handle []byte
	Offset uint64
	// Stable is the requested stable_how; nfsbridge always sends FILE_SYNC
	// so no COMMIT is needed.
	Stable uint32
	Data   []byte
}

// WriteResponse is the WRITE3resok arm.
type WriteResponse struct {
	Attr      *types.NFSFileAttr // post-op, optional
	Count     uint32
	Committed uint32
	Verf      []byte
}

// Encode returns the XDR encoding of the request. count and the data length
// are always equal.
func (req *WriteRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.EncodeFileHandle(&buf, req.Handle); err != nil {
		return nil, fmt.Errorf("encode handle: %w", err)
	}
	if err := xdr.EncodeUint64(&buf, req.Offset); err != nil {
		return nil, fmt.Errorf("encode offset: %w", err)
	}
	if err := xdr.EncodeUint32(&buf, uint32(len(req.Data))); err != nil {
		return nil, fmt.Errorf("encode count: %w", err)
	}
	if err := xdr.EncodeUint32(&buf, req.Stable); err != nil {
		return nil, fmt.Errorf("encode stable: %w", err)
	}
	if err := xdr.EncodeOpaque(&buf, req.Data); err != nil {
		return nil, fmt.Errorf("encode data: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWriteResponse decodes WRITE3res.
func DecodeWriteResponse(data []byte) (*WriteResponse, error) {
	reader := bytes.NewReader(data)
	if err := decodeStatus(reader, "WRITE"); err != nil {
		return nil, err
	}

	attr, err := xdr.SkipWccData(reader)
	if err != nil {
		return nil, fmt.Errorf("decode wcc_data: %w", err)
	}

	count, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode count: %w", err)
	}

	committed, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode committed: %w", err)
	}

	verf, err := xdr.DecodeFixedOpaque(reader, types.CookieVerfSize)
	if err != nil {
		return nil, fmt.Errorf("decode verifier: %w", err)
	}

	return &WriteResponse{Attr: attr, Count: count, Committed: committed, Verf: verf}, nil
}

// Write writes payload to handle at offset with FILE_SYNC stability.
func Write(ctx context.Context, c Caller, handle []byte, offset uint64, payload []byte) (*WriteResponse, error) {
	req := &WriteRequest{Handle: handle, Offset: offset, Stable: types.WriteFileSync, Data: payload}
	args, err := req.Encode()
	if err != nil {
		return nil, err
	}

	data, err := call(ctx, c, types.NFSProcWrite, args)
	if err != nil {
		return nil, fmt.Errorf("WRITE call: %w", err)
	}

	resp, err := DecodeWriteResponse(data)
	if err != nil {
		return nil, err
	}
	if resp.Count > uint32(len(payload)) {
		return nil, fmt.Errorf("WRITE reported %d bytes for a %d byte request", resp.Count, len(payload))
	}

	logger.Debug("WRITE %x offset=%d len=%d -> %d committed=%d", handle, offset, len(payload), resp.Count, resp.Committed)
	return resp, nil
}
