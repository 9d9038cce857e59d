package xdr

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
)

// ============================================================================
// XDR Encoding Helpers - Go Values → Wire Format (RFC 4506)
// ============================================================================

// Padding returns the number of zero bytes needed to align length to 4 bytes.
func Padding(length uint32) uint32 {
	return (4 - (length % 4)) % 4
}

// EncodeUint32 writes a big-endian unsigned int.
func EncodeUint32(buf *bytes.Buffer, v uint32) error {
	return binary.Write(buf, binary.BigEndian, v)
}

// EncodeUint64 writes a big-endian unsigned hyper.
func EncodeUint64(buf *bytes.Buffer, v uint64) error {
	return binary.Write(buf, binary.BigEndian, v)
}

// EncodeBool writes an XDR boolean (0 or 1).
func EncodeBool(buf *bytes.Buffer, v bool) error {
	if v {
		return EncodeUint32(buf, 1)
	}
	return EncodeUint32(buf, 0)
}

// EncodeOpaque writes variable-length opaque data.
//
// Format: [length:uint32][data:length bytes][padding:0-3 bytes]
func EncodeOpaque(buf *bytes.Buffer, data []byte) error {
	length := uint32(len(data))
	if err := EncodeUint32(buf, length); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := buf.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	for i, n := uint32(0), Padding(length); i < n; i++ {
		if err := buf.WriteByte(0); err != nil {
			return fmt.Errorf("write padding: %w", err)
		}
	}
	return nil
}

// EncodeFixedOpaque writes fixed-length opaque data (no length prefix).
func EncodeFixedOpaque(buf *bytes.Buffer, data []byte) error {
	if _, err := buf.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	for i, n := uint32(0), Padding(uint32(len(data))); i < n; i++ {
		if err := buf.WriteByte(0); err != nil {
			return fmt.Errorf("write padding: %w", err)
		}
	}
	return nil
}

// EncodeString writes an XDR string, which shares the opaque layout.
func EncodeString(buf *bytes.Buffer, s string) error {
	return EncodeOpaque(buf, []byte(s))
}

// EncodeFileHandle writes an nfs_fh3, rejecting empty or oversized handles.
func EncodeFileHandle(buf *bytes.Buffer, handle []byte) error {
	if len(handle) == 0 {
		return fmt.Errorf("file handle is empty")
	}
	if len(handle) > types.MaxHandleSize {
		return fmt.Errorf("file handle length %d exceeds maximum %d", len(handle), types.MaxHandleSize)
	}
	return EncodeOpaque(buf, handle)
}

// EncodeDirOpArgs writes diropargs3: a directory handle and a name.
func EncodeDirOpArgs(buf *bytes.Buffer, dir []byte, name string) error {
	if err := EncodeFileHandle(buf, dir); err != nil {
		return fmt.Errorf("encode directory handle: %w", err)
	}
	if err := EncodeString(buf, name); err != nil {
		return fmt.Errorf("encode name: %w", err)
	}
	return nil
}

// EncodeSetAttrs writes sattr3.
//
// Per RFC 1813 Section 2.5.3 every field is a discriminated union; nil fields
// are sent as "don't change". Times are always left unchanged by this client.
func EncodeSetAttrs(buf *bytes.Buffer, attrs *types.SetAttrs) error {
	if attrs == nil {
		attrs = &types.SetAttrs{}
	}

	writeOptional32 := func(field string, v *uint32) error {
		if v == nil {
			return EncodeBool(buf, false)
		}
		if err := EncodeBool(buf, true); err != nil {
			return fmt.Errorf("write set_%s: %w", field, err)
		}
		if err := EncodeUint32(buf, *v); err != nil {
			return fmt.Errorf("write %s: %w", field, err)
		}
		return nil
	}

	if err := writeOptional32("mode", attrs.Mode); err != nil {
		return err
	}
	if err := writeOptional32("uid", attrs.UID); err != nil {
		return err
	}
	if err := writeOptional32("gid", attrs.GID); err != nil {
		return err
	}

	if attrs.Size == nil {
		if err := EncodeBool(buf, false); err != nil {
			return fmt.Errorf("write set_size: %w", err)
		}
	} else {
		if err := EncodeBool(buf, true); err != nil {
			return fmt.Errorf("write set_size: %w", err)
		}
		if err := EncodeUint64(buf, *attrs.Size); err != nil {
			return fmt.Errorf("write size: %w", err)
		}
	}

	// atime, mtime
	if err := EncodeUint32(buf, types.DontChange); err != nil {
		return fmt.Errorf("write set_atime: %w", err)
	}
	if err := EncodeUint32(buf, types.DontChange); err != nil {
		return fmt.Errorf("write set_mtime: %w", err)
	}

	return nil
}
