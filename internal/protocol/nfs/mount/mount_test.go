package mount

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netiface/nfsbridge/internal/protocol/nfs/rpc"
)

type fakeCaller struct {
	program, version, procedure uint32
	args                        []byte
	reply                       []byte
	err                         error
}

func (f *fakeCaller) Call(_ context.Context, program, version, procedure uint32, args []byte) ([]byte, error) {
	f.program, f.version, f.procedure, f.args = program, version, procedure, args
	return f.reply, f.err
}

func u32(values ...uint32) []byte {
	buf := new(bytes.Buffer)
	for _, v := range values {
		_ = binary.Write(buf, binary.BigEndian, v)
	}
	return buf.Bytes()
}

func TestEncodeMountRequest(t *testing.T) {
	t.Run("EncodesPath", func(t *testing.T) {
		data, err := EncodeMountRequest(&MountRequest{DirPath: "/export"})
		require.NoError(t, err)
		assert.Equal(t, append(u32(7), '/', 'e', 'x', 'p', 'o', 'r', 't', 0), data)
	})

	t.Run("RejectsLongPath", func(t *testing.T) {
		_, err := EncodeMountRequest(&MountRequest{DirPath: string(make([]byte, MaxPathLen+1))})
		require.Error(t, err)
	})
}

func TestDecodeMountResponse(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		data := u32(MountOK, 4)
		data = append(data, 0xca, 0xfe, 0xba, 0xbe)
		data = append(data, u32(2, 0, 1)...)

		resp, err := DecodeMountResponse(data)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xca, 0xfe, 0xba, 0xbe}, resp.FileHandle)
		assert.Equal(t, []int32{0, 1}, resp.AuthFlavors)
	})

	t.Run("ErrorStatusHasNoBody", func(t *testing.T) {
		resp, err := DecodeMountResponse(u32(MountErrAccess))
		require.NoError(t, err)
		assert.Equal(t, uint32(MountErrAccess), resp.Status)
		assert.Nil(t, resp.FileHandle)
	})

	t.Run("RejectsEmptyHandle", func(t *testing.T) {
		_, err := DecodeMountResponse(u32(MountOK, 0, 0))
		require.Error(t, err)
	})
}

func TestMount(t *testing.T) {
	t.Run("ReturnsRootHandle", func(t *testing.T) {
		reply := append(u32(MountOK, 4), 1, 2, 3, 4)
		reply = append(reply, u32(1, 1)...)
		caller := &fakeCaller{reply: reply}

		resp, err := Mount(context.Background(), caller, "/export")
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3, 4}, resp.FileHandle)
		assert.Equal(t, uint32(rpc.ProgramMount), caller.program)
		assert.Equal(t, uint32(Version), caller.version)
		assert.Equal(t, uint32(MountProcMnt), caller.procedure)
	})

	t.Run("RejectedByServer", func(t *testing.T) {
		caller := &fakeCaller{reply: u32(MountErrNoEnt)}

		_, err := Mount(context.Background(), caller, "/missing")
		var mountErr *Error
		require.ErrorAs(t, err, &mountErr)
		assert.Equal(t, uint32(MountErrNoEnt), mountErr.Status)
		assert.Contains(t, err.Error(), "MNT3ERR_NOENT")
	})

	t.Run("TransportFailure", func(t *testing.T) {
		boom := errors.New("connection reset")
		caller := &fakeCaller{err: boom}

		_, err := Mount(context.Background(), caller, "/export")
		assert.ErrorIs(t, err, boom)
	})
}

func TestUnmount(t *testing.T) {
	caller := &fakeCaller{}
	require.NoError(t, Unmount(context.Background(), caller, "/export"))
	assert.Equal(t, uint32(MountProcUmnt), caller.procedure)
}
