package rpcclient

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"github.com/bgmerrell/getorpctest/infrastructure/logger"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
)

// DialFunc connects to address over network, giving up after timeout.
// A zero timeout means no timeout.
type DialFunc func(network, address string, timeout time.Duration) (net.Conn, error)

// RPCClient is a JSON-RPC client connected to a single server
type RPCClient struct {
	conn   net.Conn
	client *rpc.Client

	rpcAddress string
	timeout    time.Duration
}

// NewRPCClient connects to the RPC server at rpcAddress using dial. The
// timeout applies to the connection attempt and to every call made with the
// client. A zero timeout means no timeout.
func NewRPCClient(rpcAddress string, dial DialFunc, timeout time.Duration) (*RPCClient, error) {
	log.Debugf("Connecting to %s", rpcAddress)
	conn, err := dial("tcp", rpcAddress, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "error connecting to %s", rpcAddress)
	}

	log.Infof("Connected to server %s", rpcAddress)

	return &RPCClient{
		conn:       conn,
		client:     jsonrpc.NewClient(conn),
		rpcAddress: rpcAddress,
		timeout:    timeout,
	}, nil
}

// Close closes the connection to the RPC server
func (c *RPCClient) Close() error {
	log.Debugf("Disconnecting from %s", c.rpcAddress)
	return c.client.Close()
}

// Address returns the address the RPC client connected to
func (c *RPCClient) Address() string {
	return c.rpcAddress
}

// ErrRPC is an error returned by the RPC server
var ErrRPC = errors.New("rpc error")

func (c *RPCClient) call(method string, args interface{}, reply interface{}) error {
	onEnd := logger.LogAndMeasureExecutionTime(log, method)
	defer onEnd()

	deadline := time.Time{}
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	err := c.conn.SetDeadline(deadline)
	if err != nil {
		return errors.Wrapf(err, "error setting the deadline for %s", method)
	}

	log.Tracef("Calling %s with %s", method, logger.NewLogClosure(func() string {
		return spew.Sdump(args)
	}))
	err = c.client.Call(method, args, reply)
	if err != nil {
		return c.convertCallError(method, err)
	}
	log.Tracef("Reply of %s: %s", method, logger.NewLogClosure(func() string {
		return spew.Sdump(reply)
	}))
	return nil
}

func (c *RPCClient) convertCallError(method string, err error) error {
	var serverError rpc.ServerError
	if errors.As(err, &serverError) {
		return errors.Wrapf(ErrRPC, "%s: %s", method, string(serverError))
	}
	var netError net.Error
	if errors.As(err, &netError) && netError.Timeout() {
		return errors.Wrapf(err, "timeout of %s exceeded calling %s on %s", c.timeout, method, c.rpcAddress)
	}
	return errors.Wrapf(err, "error calling %s on %s", method, c.rpcAddress)
}
