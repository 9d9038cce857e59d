package nfs

import (
	"bytes"
	"context"
	"fmt"

	"github.com/netiface/nfsbridge/internal/logger"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/xdr"
)

// ReadRequest is READ3args.
//
// RFC 1813 Section 3.3.6
type ReadRequest struct {
	Handle []byte
	Offset uint64
	Count  uint32
}

// ReadResponse is the READ3resok arm.
type ReadResponse struct {
	Attr  *types.NFSFileAttr // optional
	Count uint32
	Eof   bool
	Data  []byte
}

// Encode returns the XDR encoding of the request.
func (req *ReadRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.EncodeFileHandle(&buf, req.Handle); err != nil {
		return nil, fmt.Errorf("encode handle: %w", err)
	}
	if err := xdr.EncodeUint64(&buf, req.Offset); err != nil {
		return nil, fmt.Errorf("encode offset: %w", err)
	}
	if err := xdr.EncodeUint32(&buf, req.Count); err != nil {
		return nil, fmt.Errorf("encode count: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeReadResponse decodes READ3res.
func DecodeReadResponse(data []byte) (*ReadResponse, error) {
	reader := bytes.NewReader(data)
	if err := decodeStatus(reader, "READ"); err != nil {
		return nil, err
	}

	attr, err := xdr.DecodeOptionalFileAttr(reader)
	if err != nil {
		return nil, fmt.Errorf("decode file attributes: %w", err)
	}

	count, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode count: %w", err)
	}

	eof, err := xdr.DecodeBool(reader)
	if err != nil {
		return nil, fmt.Errorf("decode eof: %w", err)
	}

	payload, err := xdr.DecodeOpaque(reader)
	if err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	if uint32(len(payload)) != count {
		return nil, fmt.Errorf("READ count %d does not match data length %d", count, len(payload))
	}

	return &ReadResponse{Attr: attr, Count: count, Eof: eof, Data: payload}, nil
}

// Read reads up to count bytes of handle at offset.
func Read(ctx context.Context, c Caller, handle []byte, offset uint64, count uint32) (*ReadResponse, error) {
	args, err := (&ReadRequest{Handle: handle, Offset: offset, Count: count}).Encode()
	if err != nil {
		return nil, err
	}

	data, err := call(ctx, c, types.NFSProcRead, args)
	if err != nil {
		return nil, fmt.Errorf("READ call: %w", err)
	}

	resp, err := DecodeReadResponse(data)
	if err != nil {
		return nil, err
	}

	logger.Debug("READ %x offset=%d count=%d -> %d bytes eof=%v", handle, offset, count, resp.Count, resp.Eof)
	return resp, nil
}
