// Package rpctest provides in-process JSON-RPC servers and a SOCKS5 proxy
// for tests that exercise the RPC client against a real TCP connection.
package rpctest

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ServiceName is the name under which the geto server registers its RPCs
const ServiceName = "GetoRPC"

// EchoService implements the geto server's Echo RPC
type EchoService struct{}

// Echo sets outgoing to incoming
func (*EchoService) Echo(incoming *string, outgoing *string) error {
	*outgoing = *incoming
	return nil
}

// FailingService is an Echo RPC that always returns an error with the given message
type FailingService struct {
	Message string
}

// Echo returns the service's error
func (s *FailingService) Echo(incoming *string, outgoing *string) error {
	return errors.New(s.Message)
}

// Server accepts TCP connections on a loopback address and hands each one to
// a connection handler.
type Server struct {
	listener    net.Listener
	handler     func(conn net.Conn)
	connections uint32

	closeOnce sync.Once
	wg        sync.WaitGroup
	connsLock sync.Mutex
	conns     map[net.Conn]struct{}
	closed    bool
}

// NewServer starts a JSON-RPC server exposing receiver's methods under name
func NewServer(name string, receiver interface{}) (*Server, error) {
	rpcServer := rpc.NewServer()
	err := rpcServer.RegisterName(name, receiver)
	if err != nil {
		return nil, errors.Wrapf(err, "error registering %s", name)
	}
	return NewRawServer(func(conn net.Conn) {
		rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	})
}

// NewEchoServer starts a JSON-RPC server exposing GetoRPC.Echo
func NewEchoServer() (*Server, error) {
	return NewServer(ServiceName, &EchoService{})
}

// NewRawServer starts a server that passes every accepted connection to handler.
// The connection is closed once handler returns or the server is closed.
func NewRawServer(handler func(conn net.Conn)) (*Server, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, errors.Wrap(err, "error listening on a loopback address")
	}
	server := &Server{
		listener: listener,
		handler:  handler,
		conns:    make(map[net.Conn]struct{}),
	}
	server.wg.Add(1)
	go server.acceptLoop()
	return server, nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		atomic.AddUint32(&s.connections, 1)
		s.connsLock.Lock()
		if s.closed {
			s.connsLock.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.connsLock.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.forget(conn)
			s.handler(conn)
		}()
	}
}

func (s *Server) forget(conn net.Conn) {
	s.connsLock.Lock()
	defer s.connsLock.Unlock()
	delete(s.conns, conn)
	_ = conn.Close()
}

// Address returns the host:port the server listens on
func (s *Server) Address() string {
	return s.listener.Addr().String()
}

// Host returns the host part of Address
func (s *Server) Host() string {
	return s.listener.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the port part of Address
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Connections returns the number of connections accepted so far
func (s *Server) Connections() int {
	return int(atomic.LoadUint32(&s.connections))
}

// Close stops accepting connections, closes the open ones and waits for
// their handlers to return.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		_ = s.listener.Close()
		s.connsLock.Lock()
		s.closed = true
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.connsLock.Unlock()
		s.wg.Wait()
	})
}

// UnusedAddress returns a loopback address nothing listens on
func UnusedAddress() (host string, port int, err error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", 0, errors.Wrap(err, "error listening on a loopback address")
	}
	address := listener.Addr().(*net.TCPAddr)
	err = listener.Close()
	if err != nil {
		return "", 0, err
	}
	return address.IP.String(), address.Port, nil
}
