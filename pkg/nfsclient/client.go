// Package nfsclient is a synchronous NFSv3 client.
//
// A Client mounts one export at a time and exposes path-based operations:
// Stat, Open (returning a positioned File), OpenDir and Chmod. Paths are
// resolved on every call by component-wise LOOKUP from the export root;
// nothing is cached.
//
// Thread safety: a Client serializes its RPCs; File and Dir values must not
// be shared between goroutines.
//
// Example:
//
//	c := nfsclient.New(nfsclient.Options{})
//	c.SetUID(1000)
//	c.SetGID(1000)
//	if err := c.Mount(ctx, "nas.local", "/export"); err != nil {
//	    return err
//	}
//	defer c.Close()
//	f, err := c.Open(ctx, "/docs/readme.md", os.O_RDONLY)
package nfsclient

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/netiface/nfsbridge/internal/logger"
	"github.com/netiface/nfsbridge/internal/ratelimiter"
	"github.com/netiface/nfsbridge/internal/protocol/nfs"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/mount"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/portmap"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/rpc"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
)

// conn is one RPC connection. *rpc.Client implements it.
type conn interface {
	Call(ctx context.Context, program, version, procedure uint32, args []byte) ([]byte, error)
	SetCredential(cred rpc.OpaqueAuth)
	Close() error
}

// dialFunc opens an RPC connection to addr.
type dialFunc func(ctx context.Context, addr string, timeout time.Duration) (conn, error)

func dialTCP(ctx context.Context, addr string, timeout time.Duration) (conn, error) {
	client, err := rpc.Dial(ctx, addr, rpc.DialOptions{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Client is an NFSv3 client bound to at most one mounted export.
type Client struct {
	opts Options
	dial dialFunc

	mu       sync.Mutex
	uid, gid uint32

	server string
	export string
	mnt    conn
	nfs    conn
	root   []byte

	// nil when MaxRequestsPerSecond is 0
	limiter *ratelimiter.RateLimiter
}

// New creates an unmounted client.
func New(opts Options) *Client {
	opts.applyDefaults()
	c := &Client{opts: opts, dial: dialTCP}
	if opts.MaxRequestsPerSecond > 0 {
		c.limiter = ratelimiter.New(opts.MaxRequestsPerSecond, opts.RequestBurst)
	}
	return c
}

// throttledConn takes a limiter token before every call.
type throttledConn struct {
	conn
	limiter *ratelimiter.RateLimiter
}

func (t *throttledConn) Call(ctx context.Context, program, version, procedure uint32, args []byte) ([]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return t.conn.Call(ctx, program, version, procedure, args)
}

func (c *Client) throttle(cn conn) conn {
	if c.limiter == nil {
		return cn
	}
	return &throttledConn{conn: cn, limiter: c.limiter}
}

// SetUID sets the uid sent in AUTH_UNIX credentials. It applies to the
// current mount, if any, and to later mounts.
func (c *Client) SetUID(uid uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uid = uid
	c.refreshCredentialLocked()
}

// SetGID sets the gid sent in AUTH_UNIX credentials.
func (c *Client) SetGID(gid uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gid = gid
	c.refreshCredentialLocked()
}

func (c *Client) credentialLocked() (rpc.OpaqueAuth, error) {
	auth := &rpc.UnixAuth{
		Stamp:       uint32(time.Now().Unix()),
		MachineName: c.opts.MachineName,
		UID:         c.uid,
		GID:         c.gid,
		GIDs:        []uint32{c.gid},
	}
	return auth.Encode()
}

func (c *Client) refreshCredentialLocked() {
	if c.nfs == nil {
		return
	}
	cred, err := c.credentialLocked()
	if err != nil {
		logger.Warn("Failed to encode AUTH_UNIX credential: %v", err)
		return
	}
	c.nfs.SetCredential(cred)
	if c.mnt != nil {
		c.mnt.SetCredential(cred)
	}
}

// Mount mounts export from server. An existing mount is released first.
//
// Ports not set in Options are looked up through the port mapper. The root
// handle returned by MNT is verified with GETATTR before Mount returns.
func (c *Client) Mount(ctx context.Context, server, export string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nfs != nil {
		c.unmountLocked(ctx)
	}

	cred, err := c.credentialLocked()
	if err != nil {
		return fmt.Errorf("build credential: %w", err)
	}

	mountPort, nfsPort, err := c.resolvePorts(ctx, server)
	if err != nil {
		return err
	}

	mnt, err := c.dial(ctx, hostPort(server, mountPort), c.opts.Timeout)
	if err != nil {
		return fmt.Errorf("connect to mount service: %w", err)
	}
	mnt.SetCredential(cred)

	resp, err := mount.Mount(ctx, mnt, export)
	if err != nil {
		_ = mnt.Close()
		return err
	}

	nfsConn, err := c.dial(ctx, hostPort(server, nfsPort), c.opts.Timeout)
	if err != nil {
		_ = mount.Unmount(ctx, mnt, export)
		_ = mnt.Close()
		return fmt.Errorf("connect to nfs service: %w", err)
	}
	nfsConn = c.throttle(nfsConn)
	nfsConn.SetCredential(cred)

	attr, err := nfs.GetAttr(ctx, nfsConn, resp.FileHandle)
	if err != nil {
		_ = nfsConn.Close()
		_ = mount.Unmount(ctx, mnt, export)
		_ = mnt.Close()
		return fmt.Errorf("verify export root: %w", err)
	}
	if !attr.IsDir() {
		_ = nfsConn.Close()
		_ = mount.Unmount(ctx, mnt, export)
		_ = mnt.Close()
		return fmt.Errorf("export root of %s is not a directory", export)
	}

	c.server = server
	c.export = export
	c.mnt = mnt
	c.nfs = nfsConn
	c.root = resp.FileHandle

	logger.Info("Mounted %s:%s (uid=%d gid=%d)", server, export, c.uid, c.gid)
	return nil
}

func (c *Client) resolvePorts(ctx context.Context, server string) (mountPort, nfsPort int, err error) {
	mountPort, nfsPort = c.opts.MountPort, c.opts.NFSPort
	if mountPort != 0 && nfsPort != 0 {
		return mountPort, nfsPort, nil
	}

	pm, err := c.dial(ctx, hostPort(server, portmap.Port), c.opts.Timeout)
	if err != nil {
		if mountPort == 0 {
			return 0, 0, fmt.Errorf("connect to port mapper: %w", err)
		}
		logger.Warn("Port mapper unreachable on %s, using NFS port %d: %v", server, DefaultNFSPort, err)
		return mountPort, DefaultNFSPort, nil
	}
	defer func() { _ = pm.Close() }()

	if mountPort == 0 {
		port, err := portmap.GetPort(ctx, pm, rpc.ProgramMount, mount.Version)
		if err != nil {
			return 0, 0, fmt.Errorf("look up mount port: %w", err)
		}
		mountPort = int(port)
	}
	if nfsPort == 0 {
		port, err := portmap.GetPort(ctx, pm, rpc.ProgramNFS, types.NFSVersion3)
		if err != nil {
			logger.Warn("NFS port lookup failed on %s, using %d: %v", server, DefaultNFSPort, err)
			port = DefaultNFSPort
		}
		nfsPort = int(port)
	}
	return mountPort, nfsPort, nil
}

// Unmount releases the current mount. It is a no-op when nothing is mounted.
func (c *Client) Unmount(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nfs == nil {
		return nil
	}
	c.unmountLocked(ctx)
	return nil
}

// unmountLocked sends UMNT and closes both connections. UMNT failures are
// logged only: the server drops stale mount entries on its own.
func (c *Client) unmountLocked(ctx context.Context) {
	if c.mnt != nil {
		if err := mount.Unmount(ctx, c.mnt, c.export); err != nil {
			logger.Warn("UMNT %s:%s failed: %v", c.server, c.export, err)
		}
		_ = c.mnt.Close()
	}
	if c.nfs != nil {
		_ = c.nfs.Close()
	}

	logger.Info("Unmounted %s:%s", c.server, c.export)
	c.mnt, c.nfs, c.root = nil, nil, nil
	c.server, c.export = "", ""
}

// Close unmounts and releases the client.
func (c *Client) Close() error {
	return c.Unmount(context.Background())
}

// Mounted reports whether an export is mounted.
func (c *Client) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nfs != nil
}

// Stat returns the attributes of path.
func (c *Client) Stat(ctx context.Context, path string) (*Attr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nfs == nil {
		return nil, ErrNotMounted
	}

	_, attr, err := c.resolveLocked(ctx, path)
	if err != nil {
		return nil, err
	}
	return newAttr(attr), nil
}

// Chmod sets the permission bits of path.
func (c *Client) Chmod(ctx context.Context, path string, mode uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nfs == nil {
		return ErrNotMounted
	}

	handle, _, err := c.resolveLocked(ctx, path)
	if err != nil {
		return err
	}

	mode &= 07777
	if _, err := nfs.SetAttr(ctx, c.nfs, handle, types.SetAttrs{Mode: &mode}); err != nil {
		return err
	}
	return nil
}

// call runs fn with the NFS connection under the client lock.
func (c *Client) call(fn func(conn conn) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nfs == nil {
		return ErrNotMounted
	}
	return fn(c.nfs)
}

func hostPort(server string, port int) string {
	return net.JoinHostPort(server, strconv.Itoa(port))
}
