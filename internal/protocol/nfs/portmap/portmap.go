// Package portmap implements the PMAPPROC_GETPORT client call of the port
// mapper (RFC 1833, version 2), used to find the MOUNT and NFS ports when
// they are not configured explicitly.
package portmap

import (
	"bytes"
	"context"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/netiface/nfsbridge/internal/logger"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/rpc"
	nfsxdr "github.com/netiface/nfsbridge/internal/protocol/nfs/xdr"
)

// Port is the well-known port mapper port.
const Port = 111

// Version is the port mapper protocol version.
const Version = 2

// Procedure numbers.
const (
	ProcNull    = 0
	ProcGetPort = 3
)

// Transport protocol numbers used in mappings.
const (
	ProtoTCP = 6
	ProtoUDP = 17
)

// Caller issues a single RPC. *rpc.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, program, version, procedure uint32, args []byte) ([]byte, error)
}

// Mapping is the GETPORT argument.
//
//	struct mapping {
//	    unsigned int prog;
//	    unsigned int vers;
//	    unsigned int prot;
//	    unsigned int port;
//	};
type Mapping struct {
	Program  uint32
	Version  uint32
	Protocol uint32
	Port     uint32
}

// ErrNotRegistered is returned when the program is not registered (port 0).
type ErrNotRegistered struct {
	Program, Version uint32
}

func (e *ErrNotRegistered) Error() string {
	return fmt.Sprintf("portmap: program %d version %d not registered", e.Program, e.Version)
}

// GetPort asks the port mapper for the TCP port of program/version.
func GetPort(ctx context.Context, caller Caller, program, version uint32) (uint32, error) {
	var buf bytes.Buffer
	mapping := Mapping{Program: program, Version: version, Protocol: ProtoTCP}
	if _, err := xdr.Marshal(&buf, &mapping); err != nil {
		return 0, fmt.Errorf("marshal mapping: %w", err)
	}

	data, err := caller.Call(ctx, rpc.ProgramPortmap, Version, ProcGetPort, buf.Bytes())
	if err != nil {
		return 0, fmt.Errorf("GETPORT call: %w", err)
	}

	port, err := nfsxdr.DecodeUint32(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decode port: %w", err)
	}
	if port == 0 {
		return 0, &ErrNotRegistered{Program: program, Version: version}
	}

	logger.Debug("GETPORT prog=%d vers=%d -> %d", program, version, port)
	return port, nil
}
