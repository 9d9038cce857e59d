package nfs

import (
	"bytes"
	"context"
	"fmt"

	"github.com/netiface/nfsbridge/internal/logger"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/xdr"
)

// CreateRequest is CREATE3args.
//
// RFC 1813 Section 3.3.8
//
// With UNCHECKED mode an existing file is not an error. Leaving Attrs.Size
// unset keeps its contents; setting it to zero would truncate.
type CreateRequest struct {
	DirHandle []byte
	Name      string
	Mode      uint32 // createmode3
	Attrs     types.SetAttrs
	// Verf is the createverf3 used by EXCLUSIVE mode.
	Verf [8]byte
}

// CreateResponse is the CREATE3resok arm.
type CreateResponse struct {
	Handle  []byte             // optional; nil when the server omits it
	Attr    *types.NFSFileAttr // optional
	DirAttr *types.NFSFileAttr // directory post-op, optional
}

// Encode returns the XDR encoding of the request.
func (req *CreateRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.EncodeDirOpArgs(&buf, req.DirHandle, req.Name); err != nil {
		return nil, err
	}
	if err := xdr.EncodeUint32(&buf, req.Mode); err != nil {
		return nil, fmt.Errorf("encode mode: %w", err)
	}

	switch req.Mode {
	case types.CreateUnchecked, types.CreateGuarded:
		if err := xdr.EncodeSetAttrs(&buf, &req.Attrs); err != nil {
			return nil, fmt.Errorf("encode attributes: %w", err)
		}
	case types.CreateExclusive:
		if err := xdr.EncodeFixedOpaque(&buf, req.Verf[:]); err != nil {
			return nil, fmt.Errorf("encode verifier: %w", err)
		}
	default:
		return nil, fmt.Errorf("invalid create mode %d", req.Mode)
	}

	return buf.Bytes(), nil
}

// DecodeCreateResponse decodes CREATE3res.
func DecodeCreateResponse(data []byte) (*CreateResponse, error) {
	reader := bytes.NewReader(data)
	if err := decodeStatus(reader, "CREATE"); err != nil {
		return nil, err
	}

	handle, err := xdr.DecodeOptionalFileHandle(reader)
	if err != nil {
		return nil, fmt.Errorf("decode object handle: %w", err)
	}

	attr, err := xdr.DecodeOptionalFileAttr(reader)
	if err != nil {
		return nil, fmt.Errorf("decode object attributes: %w", err)
	}

	dirAttr, err := xdr.SkipWccData(reader)
	if err != nil {
		return nil, fmt.Errorf("decode directory wcc_data: %w", err)
	}

	return &CreateResponse{Handle: handle, Attr: attr, DirAttr: dirAttr}, nil
}

// Create creates (or, in UNCHECKED mode, opens) name in dir.
func Create(ctx context.Context, c Caller, req *CreateRequest) (*CreateResponse, error) {
	args, err := req.Encode()
	if err != nil {
		return nil, err
	}

	data, err := call(ctx, c, types.NFSProcCreate, args)
	if err != nil {
		return nil, fmt.Errorf("CREATE call: %w", err)
	}

	resp, err := DecodeCreateResponse(data)
	if err != nil {
		return nil, err
	}

	logger.Debug("CREATE %x/%s mode=%d -> %x", req.DirHandle, req.Name, req.Mode, resp.Handle)
	return resp, nil
}
