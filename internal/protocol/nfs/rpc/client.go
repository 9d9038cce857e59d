package rpc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/netiface/nfsbridge/internal/logger"
)

// Client is a synchronous ONC RPC client over a single stream connection.
//
// Calls are serialized: each Call writes one record and reads records until
// the reply with the matching XID arrives. Replies for other XIDs (e.g. a
// late answer to a call that timed out) are discarded.
//
// Thread safety: safe for concurrent use; calls are executed one at a time.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	xid     uint32
	cred    OpaqueAuth
	timeout time.Duration

	// broken is set once a call failed mid-I/O; record framing on conn is
	// no longer known, so the connection is closed and never reused.
	broken bool
}

// ErrConnectionBroken is returned by Call once an earlier call failed while
// writing or reading a record. The client must be replaced.
var ErrConnectionBroken = errors.New("rpc: connection broken by an interrupted call")

// DialOptions configures Dial.
type DialOptions struct {
	// Timeout bounds connection establishment and each call. Zero disables it.
	Timeout time.Duration

	// LocalPort, when nonzero, binds the local end to that port. Servers
	// exporting with "secure" require a source port below 1024.
	LocalPort int
}

// Dial connects to addr over TCP.
func Dial(ctx context.Context, addr string, opts DialOptions) (*Client, error) {
	dialer := net.Dialer{Timeout: opts.Timeout}
	if opts.LocalPort > 0 {
		dialer.LocalAddr = &net.TCPAddr{Port: opts.LocalPort}
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	logger.Debug("RPC connection established: %s -> %s", conn.LocalAddr(), conn.RemoteAddr())
	return NewClient(conn, opts.Timeout), nil
}

// NewClient wraps an established connection. The initial credential is AUTH_NULL.
func NewClient(conn net.Conn, timeout time.Duration) *Client {
	return &Client{
		conn:    conn,
		xid:     uint32(time.Now().UnixNano()),
		cred:    NullAuth(),
		timeout: timeout,
	}
}

// SetCredential replaces the credential sent with subsequent calls.
func (c *Client) SetCredential(cred OpaqueAuth) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cred = cred
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// Call invokes program/version/procedure with pre-encoded XDR arguments and
// returns the XDR-encoded results.
func (c *Client) Call(ctx context.Context, program, version, procedure uint32, args []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken {
		return nil, ErrConnectionBroken
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.xid++
	xid := c.xid

	message, err := EncodeCall(&RPCCallMessage{
		XID:        xid,
		MsgType:    RPCCall,
		RPCVersion: RPCVersion,
		Program:    program,
		Version:    version,
		Procedure:  procedure,
		Cred:       c.cred,
		Verf:       NullAuth(),
	}, args)
	if err != nil {
		return nil, err
	}

	if err := c.applyDeadline(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = c.conn.SetDeadline(time.Time{}) }()

	// Unblock I/O when the context is cancelled mid-call.
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	logger.Debug("RPC call: xid=0x%x prog=%d vers=%d proc=%d args=%d bytes",
		xid, program, version, procedure, len(args))

	if err := writeRecord(c.conn, message); err != nil {
		c.markBroken()
		return nil, c.wrapIOError(ctx, "write call", err)
	}

	for {
		record, err := readRecord(c.conn)
		if err != nil {
			c.markBroken()
			return nil, c.wrapIOError(ctx, "read reply", err)
		}

		results, err := ParseReply(xid, record)
		if errors.Is(err, ErrXIDMismatch) {
			logger.Debug("Discarding RPC reply for another xid (waiting for 0x%x)", xid)
			continue
		}
		if err != nil {
			return nil, err
		}
		return results, nil
	}
}

func (c *Client) applyDeadline(ctx context.Context) error {
	var deadline time.Time
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if deadline.IsZero() {
		return nil
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	return nil
}

// markBroken closes the connection after a partial write or read. Caller
// holds c.mu.
func (c *Client) markBroken() {
	if c.broken {
		return
	}
	c.broken = true
	_ = c.conn.Close()
	logger.Debug("RPC connection %s marked broken", c.conn.RemoteAddr())
}

func (c *Client) wrapIOError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// writeRecord sends message as a single last fragment.
func writeRecord(w io.Writer, message []byte) error {
	if len(message) > fragmentSizeMask {
		return fmt.Errorf("message too large: %d bytes", len(message))
	}

	header := make([]byte, 4, 4+len(message))
	binary.BigEndian.PutUint32(header, lastFragmentFlag|uint32(len(message)))

	_, err := w.Write(append(header, message...))
	return err
}

// readRecord reassembles fragments until the last-fragment bit is seen.
func readRecord(r io.Reader) ([]byte, error) {
	var record []byte
	header := make([]byte, 4)

	for {
		if _, err := io.ReadFull(r, header); err != nil {
			return nil, err
		}

		word := binary.BigEndian.Uint32(header)
		length := word & fragmentSizeMask
		last := word&lastFragmentFlag != 0

		if uint64(len(record))+uint64(length) > maxReplySize {
			return nil, fmt.Errorf("reply exceeds maximum size %d", maxReplySize)
		}

		start := len(record)
		record = append(record, make([]byte, length)...)
		if _, err := io.ReadFull(r, record[start:]); err != nil {
			return nil, fmt.Errorf("read fragment: %w", err)
		}

		if last {
			return record, nil
		}
	}
}
