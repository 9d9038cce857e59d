package xdr

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
)

// ============================================================================
// XDR Decoding Helpers - Wire Format → Go Values
// ============================================================================

// maxOpaqueLength bounds variable-length fields read from the network.
// READ replies carry the largest opaques; rtmax is rarely above 1 MiB.
const maxOpaqueLength = 4 * 1024 * 1024

// DecodeUint32 reads a big-endian unsigned int.
func DecodeUint32(reader io.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(reader, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// DecodeUint64 reads a big-endian unsigned hyper.
func DecodeUint64(reader io.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(reader, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// DecodeBool reads an XDR boolean. Any nonzero value is true.
func DecodeBool(reader io.Reader) (bool, error) {
	v, err := DecodeUint32(reader)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// DecodeOpaque reads variable-length opaque data.
//
// Format: [length:uint32][data:length bytes][padding:0-3 bytes]
func DecodeOpaque(reader io.Reader) ([]byte, error) {
	length, err := DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}

	if length > maxOpaqueLength {
		return nil, fmt.Errorf("opaque length %d exceeds maximum %d", length, maxOpaqueLength)
	}

	return DecodeFixedOpaque(reader, length)
}

// DecodeFixedOpaque reads exactly length bytes plus alignment padding.
func DecodeFixedOpaque(reader io.Reader, length uint32) ([]byte, error) {
	data := make([]byte, length)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}

	if padding := Padding(length); padding > 0 {
		if _, err := io.CopyN(io.Discard, reader, int64(padding)); err != nil {
			return nil, fmt.Errorf("skip padding: %w", err)
		}
	}

	return data, nil
}

// DecodeString reads an XDR string.
func DecodeString(reader io.Reader) (string, error) {
	data, err := DecodeOpaque(reader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeFileHandle reads an nfs_fh3 and validates its length.
func DecodeFileHandle(reader io.Reader) ([]byte, error) {
	handle, err := DecodeOpaque(reader)
	if err != nil {
		return nil, err
	}
	if len(handle) == 0 || len(handle) > types.MaxHandleSize {
		return nil, fmt.Errorf("invalid file handle length: %d", len(handle))
	}
	return handle, nil
}

// DecodeOptionalFileHandle reads post_op_fh3. It returns nil when absent.
func DecodeOptionalFileHandle(reader io.Reader) ([]byte, error) {
	present, err := DecodeBool(reader)
	if err != nil {
		return nil, fmt.Errorf("read handle_follows: %w", err)
	}
	if !present {
		return nil, nil
	}
	return DecodeFileHandle(reader)
}
