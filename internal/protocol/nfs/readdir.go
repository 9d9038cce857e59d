package nfs

import (
	"bytes"
	"context"
	"fmt"

	"github.com/netiface/nfsbridge/internal/logger"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/xdr"
)

// maxReadDirEntries bounds a single READDIR reply so a broken server cannot
// make the decoder loop forever.
const maxReadDirEntries = 1 << 16

// ReadDirRequest is READDIR3args.
//
// RFC 1813 Section 3.3.16
//
// The first call uses Cookie 0 and a zero verifier; continuation calls send
// the last entry's cookie and the verifier from the previous reply.
type ReadDirRequest struct {
	DirHandle  []byte
	Cookie     uint64
	CookieVerf [types.CookieVerfSize]byte
	Count      uint32
}

// ReadDirResponse is the READDIR3resok arm.
type ReadDirResponse struct {
	DirAttr    *types.NFSFileAttr // optional
	CookieVerf [types.CookieVerfSize]byte
	Entries    []types.DirEntry
	Eof        bool
}

// Encode returns the XDR encoding of the request.
func (req *ReadDirRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.EncodeFileHandle(&buf, req.DirHandle); err != nil {
		return nil, fmt.Errorf("encode handle: %w", err)
	}
	if err := xdr.EncodeUint64(&buf, req.Cookie); err != nil {
		return nil, fmt.Errorf("encode cookie: %w", err)
	}
	if err := xdr.EncodeFixedOpaque(&buf, req.CookieVerf[:]); err != nil {
		return nil, fmt.Errorf("encode cookieverf: %w", err)
	}
	if err := xdr.EncodeUint32(&buf, req.Count); err != nil {
		return nil, fmt.Errorf("encode count: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeReadDirResponse decodes READDIR3res.
//
// Entries are a linked list on the wire:
//
//	value_follows(bool) fileid(uint64) name(string) cookie(uint64) ... FALSE eof(bool)
func DecodeReadDirResponse(data []byte) (*ReadDirResponse, error) {
	reader := bytes.NewReader(data)
	if err := decodeStatus(reader, "READDIR"); err != nil {
		return nil, err
	}

	dirAttr, err := xdr.DecodeOptionalFileAttr(reader)
	if err != nil {
		return nil, fmt.Errorf("decode directory attributes: %w", err)
	}

	resp := &ReadDirResponse{DirAttr: dirAttr}

	verf, err := xdr.DecodeFixedOpaque(reader, types.CookieVerfSize)
	if err != nil {
		return nil, fmt.Errorf("decode cookieverf: %w", err)
	}
	copy(resp.CookieVerf[:], verf)

	for {
		follows, err := xdr.DecodeBool(reader)
		if err != nil {
			return nil, fmt.Errorf("decode value_follows: %w", err)
		}
		if !follows {
			break
		}
		if len(resp.Entries) >= maxReadDirEntries {
			return nil, fmt.Errorf("READDIR reply exceeds %d entries", maxReadDirEntries)
		}

		var entry types.DirEntry
		if entry.Fileid, err = xdr.DecodeUint64(reader); err != nil {
			return nil, fmt.Errorf("decode fileid: %w", err)
		}
		if entry.Name, err = xdr.DecodeString(reader); err != nil {
			return nil, fmt.Errorf("decode name: %w", err)
		}
		if entry.Cookie, err = xdr.DecodeUint64(reader); err != nil {
			return nil, fmt.Errorf("decode cookie: %w", err)
		}
		resp.Entries = append(resp.Entries, entry)
	}

	if resp.Eof, err = xdr.DecodeBool(reader); err != nil {
		return nil, fmt.Errorf("decode eof: %w", err)
	}

	return resp, nil
}

// ReadDir reads one page of directory entries.
func ReadDir(ctx context.Context, c Caller, req *ReadDirRequest) (*ReadDirResponse, error) {
	args, err := req.Encode()
	if err != nil {
		return nil, err
	}

	data, err := call(ctx, c, types.NFSProcReadDir, args)
	if err != nil {
		return nil, fmt.Errorf("READDIR call: %w", err)
	}

	resp, err := DecodeReadDirResponse(data)
	if err != nil {
		return nil, err
	}

	logger.Debug("READDIR %x cookie=%d -> %d entries eof=%v", req.DirHandle, req.Cookie, len(resp.Entries), resp.Eof)
	return resp, nil
}
