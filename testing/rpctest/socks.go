package rpctest

import (
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// SOCKS5 protocol constants used by the proxy
const (
	socksVersion        = 5
	socksAuthNone       = 0
	socksCommandConnect = 1
	socksAddressIPv4    = 1
	socksAddressDomain  = 3
	socksAddressIPv6    = 4
	socksStatusGranted  = 0
	socksStatusRefused  = 5
)

// SOCKS5Proxy is a minimal no-authentication SOCKS5 proxy that supports
// CONNECT requests and records the destinations it was asked for.
type SOCKS5Proxy struct {
	*Server

	destinationsLock sync.Mutex
	destinations     []string
}

// NewSOCKS5Proxy starts a SOCKS5 proxy on a loopback address
func NewSOCKS5Proxy() (*SOCKS5Proxy, error) {
	proxy := &SOCKS5Proxy{}
	server, err := NewRawServer(proxy.handle)
	if err != nil {
		return nil, err
	}
	proxy.Server = server
	return proxy, nil
}

// Destinations returns the host:port destinations requested so far
func (p *SOCKS5Proxy) Destinations() []string {
	p.destinationsLock.Lock()
	defer p.destinationsLock.Unlock()
	return append([]string(nil), p.destinations...)
}

func (p *SOCKS5Proxy) handle(conn net.Conn) {
	destination, err := readConnectRequest(conn)
	if err != nil {
		return
	}
	p.destinationsLock.Lock()
	p.destinations = append(p.destinations, destination)
	p.destinationsLock.Unlock()

	target, err := net.Dial("tcp", destination)
	if err != nil {
		_, _ = conn.Write([]byte{socksVersion, socksStatusRefused, 0, socksAddressIPv4, 0, 0, 0, 0, 0, 0})
		return
	}
	defer target.Close()
	_, err = conn.Write([]byte{socksVersion, socksStatusGranted, 0, socksAddressIPv4, 127, 0, 0, 1, 0, 0})
	if err != nil {
		return
	}

	go func() {
		_, _ = io.Copy(target, conn)
		_ = target.Close()
	}()
	_, _ = io.Copy(conn, target)
}

// readConnectRequest performs the no-auth handshake and returns the requested destination
func readConnectRequest(conn net.Conn) (string, error) {
	header := make([]byte, 2)
	if _, err := io.ReadFull(conn, header); err != nil {
		return "", err
	}
	methods := make([]byte, header[1])
	if _, err := io.ReadFull(conn, methods); err != nil {
		return "", err
	}
	if _, err := conn.Write([]byte{socksVersion, socksAuthNone}); err != nil {
		return "", err
	}

	request := make([]byte, 4)
	if _, err := io.ReadFull(conn, request); err != nil {
		return "", err
	}
	if request[1] != socksCommandConnect {
		return "", errors.Errorf("unsupported SOCKS command %d", request[1])
	}

	var host string
	switch request[3] {
	case socksAddressIPv4, socksAddressIPv6:
		ip := make([]byte, net.IPv4len)
		if request[3] == socksAddressIPv6 {
			ip = make([]byte, net.IPv6len)
		}
		if _, err := io.ReadFull(conn, ip); err != nil {
			return "", err
		}
		host = net.IP(ip).String()
	case socksAddressDomain:
		length := make([]byte, 1)
		if _, err := io.ReadFull(conn, length); err != nil {
			return "", err
		}
		domain := make([]byte, length[0])
		if _, err := io.ReadFull(conn, domain); err != nil {
			return "", err
		}
		host = string(domain)
	default:
		return "", errors.Errorf("unsupported SOCKS address type %d", request[3])
	}

	port := make([]byte, 2)
	if _, err := io.ReadFull(conn, port); err != nil {
		return "", err
	}
	return net.JoinHostPort(host, strconv.Itoa(int(binary.BigEndian.Uint16(port)))), nil
}
