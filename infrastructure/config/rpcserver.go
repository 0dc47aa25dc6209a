package config

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/btcsuite/go-socks/socks"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// Defaults of the RPC server flags
const (
	DefaultRPCServer      = "localhost"
	DefaultRPCPort        = 11102
	DefaultTimeoutSeconds = 30
)

// RPCServerFlags holds the configuration of the RPC server to connect to and
// of how to reach it.
type RPCServerFlags struct {
	Server    string `short:"s" long:"server" default:"localhost" value-name:"ADDR" description:"The RPC server (hostname, IP, FQDN, etc)"`
	Port      int    `short:"p" long:"port" default:"11102" value-name:"PORT" description:"The RPC server port"`
	Timeout   uint64 `short:"t" long:"timeout" default:"30" value-name:"SECONDS" description:"Timeout for connecting and for each request (in seconds), 0 disables it"`
	Proxy     string `long:"proxy" value-name:"ADDR" description:"Connect via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser string `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass string `long:"proxypass" default-mask:"-" description:"Password for proxy server"`

	// RPCAddress is the normalized host:port of the server, set by ResolveRPCServer.
	RPCAddress string
	// Dial connects to the given address, directly or through the proxy.
	Dial func(network, address string, timeout time.Duration) (net.Conn, error)
}

// ResolveRPCServer validates the RPC server flags and sets RPCAddress and Dial
// accordingly. On failure the error and the usage are written to stderr.
func (rpcServerFlags *RPCServerFlags) ResolveRPCServer(parser *flags.Parser, stderr io.Writer) error {
	err := rpcServerFlags.resolve()
	if err != nil {
		fmt.Fprintln(stderr, err)
		if parser != nil {
			parser.WriteHelp(stderr)
		}
		return err
	}
	return nil
}

func (rpcServerFlags *RPCServerFlags) resolve() error {
	if rpcServerFlags.Server == "" {
		return errors.New("--server must not be empty")
	}
	if rpcServerFlags.Port < 1 || rpcServerFlags.Port > 65535 {
		return errors.Errorf("--port %d is out of range, it must be between 1 and 65535",
			rpcServerFlags.Port)
	}
	rpcServerFlags.RPCAddress = NormalizeRPCServerAddress(rpcServerFlags.Server, rpcServerFlags.Port)

	if rpcServerFlags.Proxy == "" {
		if rpcServerFlags.ProxyUser != "" || rpcServerFlags.ProxyPass != "" {
			return errors.New("--proxyuser and --proxypass require --proxy")
		}
		rpcServerFlags.Dial = net.DialTimeout
		return nil
	}

	_, _, err := net.SplitHostPort(rpcServerFlags.Proxy)
	if err != nil {
		return errors.Errorf("Proxy address '%s' is invalid: %s", rpcServerFlags.Proxy, err)
	}
	proxy := &socks.Proxy{
		Addr:     rpcServerFlags.Proxy,
		Username: rpcServerFlags.ProxyUser,
		Password: rpcServerFlags.ProxyPass,
	}
	rpcServerFlags.Dial = proxy.DialTimeout
	return nil
}

// TimeoutDuration returns the configured timeout. Zero means no timeout.
func (rpcServerFlags *RPCServerFlags) TimeoutDuration() time.Duration {
	return time.Duration(rpcServerFlags.Timeout) * time.Second
}

// Redacted returns a copy of the flags that is safe to log.
func (rpcServerFlags *RPCServerFlags) Redacted() RPCServerFlags {
	redacted := *rpcServerFlags
	if redacted.ProxyPass != "" {
		redacted.ProxyPass = "********"
	}
	return redacted
}

// NormalizeRPCServerAddress joins host and port into an address suitable for
// dialing. host may be a bracketed or bare IPv6 address.
func NormalizeRPCServerAddress(host string, port int) string {
	if len(host) > 1 && host[0] == '[' && host[len(host)-1] == ']' {
		host = host[1 : len(host)-1]
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
