package xdr

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
)

// DecodeFileAttr reads fattr3.
//
// Per RFC 1813 Section 2.3.1 the wire layout is fixed (84 bytes): type, mode,
// nlink, uid, gid, size, used, rdev, fsid, fileid, atime, mtime, ctime.
// The struct has no padding so binary.Read decodes it in one pass.
func DecodeFileAttr(reader io.Reader) (*types.NFSFileAttr, error) {
	attr := &types.NFSFileAttr{}
	if err := binary.Read(reader, binary.BigEndian, attr); err != nil {
		return nil, fmt.Errorf("read fattr3: %w", err)
	}
	return attr, nil
}

// DecodeOptionalFileAttr reads post_op_attr. It returns nil when absent.
func DecodeOptionalFileAttr(reader io.Reader) (*types.NFSFileAttr, error) {
	present, err := DecodeBool(reader)
	if err != nil {
		return nil, fmt.Errorf("read attributes_follow: %w", err)
	}
	if !present {
		return nil, nil
	}
	return DecodeFileAttr(reader)
}

// wccAttrSize is size3 + nfstime3 mtime + nfstime3 ctime.
const wccAttrSize = 8 + 8 + 8

// SkipWccData consumes wcc_data (pre_op_attr followed by post_op_attr) and
// returns the post-operation attributes, if present.
func SkipWccData(reader io.Reader) (*types.NFSFileAttr, error) {
	before, err := DecodeBool(reader)
	if err != nil {
		return nil, fmt.Errorf("read pre_op_attr flag: %w", err)
	}
	if before {
		if _, err := io.CopyN(io.Discard, reader, wccAttrSize); err != nil {
			return nil, fmt.Errorf("skip wcc_attr: %w", err)
		}
	}

	after, err := DecodeOptionalFileAttr(reader)
	if err != nil {
		return nil, fmt.Errorf("read post_op_attr: %w", err)
	}
	return after, nil
}
