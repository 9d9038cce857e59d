package nfsclient

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/netiface/nfsbridge/internal/protocol/nfs/mount"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/portmap"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/rpc"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/xdr"
)

// ============================================================================
// In-memory NFS server used by the client tests
// ============================================================================

const (
	fakeMountPort = 20048
	fakeNFSPort   = 2049
	rootID        = 1
)

type fakeNode struct {
	id       uint64
	parent   uint64
	name     string
	dir      bool
	mode     uint32
	data     []byte
	children []uint64
}

type fakeServer struct {
	mu       sync.Mutex
	export   string
	nodes    map[uint64]*fakeNode
	nextID   uint64
	pageSize int

	dialed []string
	calls  []string
	uids   []uint32
	open   int
}

func newFakeServer(export string) *fakeServer {
	s := &fakeServer{
		export:   export,
		nodes:    map[uint64]*fakeNode{},
		nextID:   rootID + 1,
		pageSize: 100,
	}
	s.nodes[rootID] = &fakeNode{id: rootID, parent: rootID, dir: true, mode: 0755}
	return s
}

func (s *fakeServer) addDir(parent uint64, name string) uint64 {
	return s.add(parent, &fakeNode{name: name, dir: true, mode: 0755})
}

func (s *fakeServer) addFile(parent uint64, name string, data string) uint64 {
	return s.add(parent, &fakeNode{name: name, mode: 0600, data: []byte(data)})
}

func (s *fakeServer) add(parent uint64, n *fakeNode) uint64 {
	n.id = s.nextID
	n.parent = parent
	s.nextID++
	s.nodes[n.id] = n
	p := s.nodes[parent]
	p.children = append(p.children, n.id)
	return n.id
}

func (s *fakeServer) child(dir *fakeNode, name string) *fakeNode {
	switch name {
	case ".":
		return dir
	case "..":
		return s.nodes[dir.parent]
	}
	for _, id := range dir.children {
		if s.nodes[id].name == name {
			return s.nodes[id]
		}
	}
	return nil
}

func (s *fakeServer) callCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (s *fakeServer) dialer() dialFunc {
	return func(_ context.Context, addr string, _ time.Duration) (conn, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.dialed = append(s.dialed, addr)
		s.open++
		return &fakeConn{server: s}, nil
	}
}

type fakeConn struct {
	server *fakeServer
	cred   rpc.OpaqueAuth
	closed bool
}

func (c *fakeConn) SetCredential(cred rpc.OpaqueAuth) { c.cred = cred }

func (c *fakeConn) Close() error {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.server.open--
	}
	return nil
}

func (c *fakeConn) Call(_ context.Context, program, _, procedure uint32, args []byte) ([]byte, error) {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("use of closed connection")
	}
	if c.cred.Flavor == rpc.AuthUnix {
		s.uids = append(s.uids, credentialUID(c.cred.Body))
	}

	r := bytes.NewReader(args)
	w := new(bytes.Buffer)

	switch program {
	case rpc.ProgramPortmap:
		s.calls = append(s.calls, "GETPORT")
		var m portmap.Mapping
		_ = binary.Read(r, binary.BigEndian, &m)
		switch m.Program {
		case rpc.ProgramMount:
			put32(w, fakeMountPort)
		case rpc.ProgramNFS:
			put32(w, fakeNFSPort)
		default:
			put32(w, 0)
		}
	case rpc.ProgramMount:
		s.serveMount(procedure, r, w)
	case rpc.ProgramNFS:
		s.serveNFS(procedure, r, w)
	default:
		return nil, &rpc.AcceptError{Stat: rpc.RPCProgUnavail}
	}
	return w.Bytes(), nil
}

func credentialUID(body []byte) uint32 {
	r := bytes.NewReader(body)
	_, _ = xdr.DecodeUint32(r) // stamp
	_, _ = xdr.DecodeString(r)
	uid, _ := xdr.DecodeUint32(r)
	return uid
}

func (s *fakeServer) serveMount(procedure uint32, r *bytes.Reader, w *bytes.Buffer) {
	path, _ := xdr.DecodeString(r)
	switch procedure {
	case mount.MountProcMnt:
		s.calls = append(s.calls, "MNT")
		if path != s.export {
			put32(w, mount.MountErrNoEnt)
			return
		}
		put32(w, mount.MountOK)
		_ = xdr.EncodeOpaque(w, handleOf(rootID))
		put32(w, 1)
		put32(w, rpc.AuthUnix)
	case mount.MountProcUmnt:
		s.calls = append(s.calls, "UMNT")
	}
}

func (s *fakeServer) serveNFS(procedure uint32, r *bytes.Reader, w *bytes.Buffer) {
	switch procedure {
	case types.NFSProcGetAttr:
		s.calls = append(s.calls, "GETATTR")
		n := s.decodeNode(r)
		if n == nil {
			put32(w, types.NFS3ErrStale)
			return
		}
		put32(w, types.NFS3OK)
		s.putAttr(w, n)

	case types.NFSProcLookup:
		s.calls = append(s.calls, "LOOKUP")
		dir := s.decodeNode(r)
		name, _ := xdr.DecodeString(r)
		if dir == nil || !dir.dir {
			put32(w, types.NFS3ErrNotDir)
			put32(w, 0)
			return
		}
		n := s.child(dir, name)
		if n == nil {
			put32(w, types.NFS3ErrNoEnt)
			put32(w, 0)
			return
		}
		put32(w, types.NFS3OK)
		_ = xdr.EncodeOpaque(w, handleOf(n.id))
		put32(w, 1)
		s.putAttr(w, n)
		put32(w, 0)

	case types.NFSProcRead:
		s.calls = append(s.calls, "READ")
		n := s.decodeNode(r)
		offset, _ := xdr.DecodeUint64(r)
		count, _ := xdr.DecodeUint32(r)
		if n.dir {
			put32(w, types.NFS3ErrIsDir)
			put32(w, 0)
			return
		}
		var data []byte
		if offset < uint64(len(n.data)) {
			end := min(uint64(len(n.data)), offset+uint64(count))
			data = n.data[offset:end]
		}
		put32(w, types.NFS3OK)
		put32(w, 0)
		put32(w, uint32(len(data)))
		putBool(w, offset+uint64(len(data)) >= uint64(len(n.data)))
		_ = xdr.EncodeOpaque(w, data)

	case types.NFSProcWrite:
		s.calls = append(s.calls, "WRITE")
		n := s.decodeNode(r)
		offset, _ := xdr.DecodeUint64(r)
		_, _ = xdr.DecodeUint32(r) // count
		stable, _ := xdr.DecodeUint32(r)
		data, _ := xdr.DecodeOpaque(r)
		if end := offset + uint64(len(data)); end > uint64(len(n.data)) {
			n.data = append(n.data, make([]byte, end-uint64(len(n.data)))...)
		}
		copy(n.data[offset:], data)
		put32(w, types.NFS3OK)
		put32(w, 0)
		put32(w, 0)
		put32(w, uint32(len(data)))
		put32(w, stable)
		w.Write(make([]byte, 8))

	case types.NFSProcCreate:
		s.calls = append(s.calls, "CREATE")
		dir := s.decodeNode(r)
		name, _ := xdr.DecodeString(r)
		how, _ := xdr.DecodeUint32(r)
		existing := s.child(dir, name)
		if existing != nil && how == types.CreateGuarded {
			put32(w, types.NFS3ErrExist)
			put32(w, 0)
			put32(w, 0)
			return
		}
		n := existing
		if n == nil {
			n = s.nodes[s.addFile(dir.id, name, "")]
		}
		put32(w, types.NFS3OK)
		put32(w, 1)
		_ = xdr.EncodeOpaque(w, handleOf(n.id))
		put32(w, 1)
		s.putAttr(w, n)
		put32(w, 0)
		put32(w, 0)

	case types.NFSProcSetAttr:
		s.calls = append(s.calls, "SETATTR")
		n := s.decodeNode(r)
		if set, _ := xdr.DecodeBool(r); set {
			n.mode, _ = xdr.DecodeUint32(r)
		}
		for i := 0; i < 2; i++ { // uid, gid
			if set, _ := xdr.DecodeBool(r); set {
				_, _ = xdr.DecodeUint32(r)
			}
		}
		if set, _ := xdr.DecodeBool(r); set {
			size, _ := xdr.DecodeUint64(r)
			if size < uint64(len(n.data)) {
				n.data = n.data[:size]
			}
		}
		put32(w, types.NFS3OK)
		put32(w, 0)
		put32(w, 1)
		s.putAttr(w, n)

	case types.NFSProcReadDir:
		s.calls = append(s.calls, "READDIR")
		dir := s.decodeNode(r)
		cookie, _ := xdr.DecodeUint64(r)
		if !dir.dir {
			put32(w, types.NFS3ErrNotDir)
			put32(w, 0)
			return
		}
		names := []string{".", ".."}
		ids := []uint64{dir.id, dir.parent}
		for _, id := range dir.children {
			names = append(names, s.nodes[id].name)
			ids = append(ids, id)
		}

		put32(w, types.NFS3OK)
		put32(w, 0)
		w.Write([]byte{0, 0, 0, 0, 0, 0, 0, 1})
		sent := 0
		i := int(cookie)
		for ; i < len(names) && sent < s.pageSize; i++ {
			put32(w, 1)
			put64(w, ids[i])
			_ = xdr.EncodeString(w, names[i])
			put64(w, uint64(i+1))
			sent++
		}
		put32(w, 0)
		putBool(w, i >= len(names))

	default:
		panic(fmt.Sprintf("unexpected NFS procedure %d", procedure))
	}
}

func (s *fakeServer) decodeNode(r *bytes.Reader) *fakeNode {
	handle, err := xdr.DecodeFileHandle(r)
	if err != nil || len(handle) != 8 {
		return nil
	}
	return s.nodes[binary.BigEndian.Uint64(handle)]
}

func (s *fakeServer) putAttr(w *bytes.Buffer, n *fakeNode) {
	attr := types.NFSFileAttr{
		Type:   types.NF3REG,
		Mode:   n.mode,
		Nlink:  1,
		Size:   uint64(len(n.data)),
		Fileid: n.id,
		Mtime:  types.TimeVal{Seconds: 1638360000},
	}
	if n.dir {
		attr.Type = types.NF3DIR
		attr.Size = 4096
	}
	_ = binary.Write(w, binary.BigEndian, &attr)
}

func handleOf(id uint64) []byte {
	h := make([]byte, 8)
	binary.BigEndian.PutUint64(h, id)
	return h
}

func put32(w *bytes.Buffer, v uint32) { _ = xdr.EncodeUint32(w, v) }
func put64(w *bytes.Buffer, v uint64) { _ = xdr.EncodeUint64(w, v) }
func putBool(w *bytes.Buffer, v bool) { _ = xdr.EncodeBool(w, v) }
