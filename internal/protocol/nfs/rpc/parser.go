package rpc

import (
	"bytes"
	"errors"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"

	nfsxdr "github.com/netiface/nfsbridge/internal/protocol/nfs/xdr"
)

// ErrXIDMismatch is returned by ParseReply when the reply belongs to another call.
var ErrXIDMismatch = errors.New("rpc: reply xid does not match call")

// AcceptError is returned when the server accepted the call but did not
// execute it successfully (accept_stat != SUCCESS).
type AcceptError struct {
	Stat uint32
	// Low and High are the supported versions for PROG_MISMATCH.
	Low, High uint32
}

func (e *AcceptError) Error() string {
	switch e.Stat {
	case RPCProgUnavail:
		return "rpc: program unavailable"
	case RPCProgMismatch:
		return fmt.Sprintf("rpc: program version mismatch (server supports %d-%d)", e.Low, e.High)
	case RPCProcUnavail:
		return "rpc: procedure unavailable"
	case RPCGarbageArgs:
		return "rpc: server could not decode arguments"
	case RPCSystemErr:
		return "rpc: server system error"
	default:
		return fmt.Sprintf("rpc: unknown accept status %d", e.Stat)
	}
}

// DeniedError is returned for MSG_DENIED replies.
type DeniedError struct {
	RejectStat uint32
	// AuthStat is set for AUTH_ERROR rejections.
	AuthStat uint32
	// Low and High are the supported RPC versions for RPC_MISMATCH.
	Low, High uint32
}

func (e *DeniedError) Error() string {
	if e.RejectStat == RPCMismatch {
		return fmt.Sprintf("rpc: version mismatch (server supports %d-%d)", e.Low, e.High)
	}
	return fmt.Sprintf("rpc: authentication error (auth_stat=%d)", e.AuthStat)
}

// ParseReply validates an RPC reply for the given xid and returns the
// procedure results that follow the header.
//
// Reply layout (RFC 5531 Section 9):
//
//	xid, REPLY, reply_stat
//	MSG_ACCEPTED: verf, accept_stat, [results | mismatch_info]
//	MSG_DENIED:   reject_stat, [mismatch_info | auth_stat]
func ParseReply(xid uint32, message []byte) ([]byte, error) {
	reader := bytes.NewReader(message)

	var prefix replyPrefix
	if _, err := xdr.Unmarshal(reader, &prefix); err != nil {
		return nil, fmt.Errorf("unmarshal RPC reply: %w", err)
	}

	if prefix.MsgType != RPCReply {
		return nil, fmt.Errorf("expected REPLY (1), got %d", prefix.MsgType)
	}
	if prefix.XID != xid {
		return nil, ErrXIDMismatch
	}

	switch prefix.ReplyState {
	case RPCMsgAccepted:
		return parseAccepted(reader)
	case RPCMsgDenied:
		return nil, parseDenied(reader)
	default:
		return nil, fmt.Errorf("invalid reply_stat %d", prefix.ReplyState)
	}
}

func parseAccepted(reader *bytes.Reader) ([]byte, error) {
	var verf OpaqueAuth
	if _, err := xdr.Unmarshal(reader, &verf); err != nil {
		return nil, fmt.Errorf("unmarshal verifier: %w", err)
	}

	stat, err := nfsxdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("read accept_stat: %w", err)
	}

	if stat == RPCSuccess {
		rest := make([]byte, reader.Len())
		_, _ = reader.Read(rest)
		return rest, nil
	}

	acceptErr := &AcceptError{Stat: stat}
	if stat == RPCProgMismatch {
		acceptErr.Low, _ = nfsxdr.DecodeUint32(reader)
		acceptErr.High, _ = nfsxdr.DecodeUint32(reader)
	}
	return nil, acceptErr
}

func parseDenied(reader *bytes.Reader) error {
	rejectStat, err := nfsxdr.DecodeUint32(reader)
	if err != nil {
		return fmt.Errorf("read reject_stat: %w", err)
	}

	denied := &DeniedError{RejectStat: rejectStat}
	switch rejectStat {
	case RPCMismatch:
		denied.Low, _ = nfsxdr.DecodeUint32(reader)
		denied.High, _ = nfsxdr.DecodeUint32(reader)
	case RPCAuthErr:
		denied.AuthStat, _ = nfsxdr.DecodeUint32(reader)
	default:
		return fmt.Errorf("invalid reject_stat %d", rejectStat)
	}
	return denied
}
