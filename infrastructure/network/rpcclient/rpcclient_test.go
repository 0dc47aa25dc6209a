package rpcclient

import (
	"io"
	"io/ioutil"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bgmerrell/getorpctest/testing/rpctest"
	"github.com/pkg/errors"
)

const testTimeout = 30 * time.Second

func connectToServer(t *testing.T, server *rpctest.Server, timeout time.Duration) *RPCClient {
	client, err := NewRPCClient(server.Address(), net.DialTimeout, timeout)
	if err != nil {
		t.Fatalf("NewRPCClient: %s", err)
	}
	return client
}

func TestEcho(t *testing.T) {
	server, err := rpctest.NewEchoServer()
	if err != nil {
		t.Fatalf("NewEchoServer: %s", err)
	}
	defer server.Close()

	client := connectToServer(t, server, testTimeout)
	defer client.Close()

	messages := []string{
		"test",
		"",
		"hello world",
		`"quoted" \ back\slash`,
		"héllo wörld 🌍",
		"line1\nline2",
		strings.Repeat("x", 100000),
	}
	for _, message := range messages {
		reply, err := client.Echo(message)
		if err != nil {
			t.Fatalf("Echo(%.20q): %s", message, err)
		}
		if reply != message {
			t.Errorf("Echo(%.20q): got %.20q", message, reply)
		}
	}

	if server.Connections() != 1 {
		t.Errorf("expected all calls to share 1 connection, got %d", server.Connections())
	}
	if client.Address() != server.Address() {
		t.Errorf("expected address %s, got %s", server.Address(), client.Address())
	}
}

func TestEchoServerError(t *testing.T) {
	server, err := rpctest.NewServer(rpctest.ServiceName, &rpctest.FailingService{Message: "echo is broken"})
	if err != nil {
		t.Fatalf("NewServer: %s", err)
	}
	defer server.Close()

	client := connectToServer(t, server, testTimeout)
	defer client.Close()

	_, err = client.Echo("test")
	if !errors.Is(err, ErrRPC) {
		t.Fatalf("expected ErrRPC, got %v", err)
	}
	if !strings.Contains(err.Error(), "echo is broken") {
		t.Errorf("expected the server's message in the error, got %s", err)
	}
}

func TestMethodNotFound(t *testing.T) {
	server, err := rpctest.NewServer("OtherRPC", &rpctest.EchoService{})
	if err != nil {
		t.Fatalf("NewServer: %s", err)
	}
	defer server.Close()

	client := connectToServer(t, server, testTimeout)
	defer client.Close()

	_, err = client.Echo("test")
	if !errors.Is(err, ErrRPC) {
		t.Fatalf("expected ErrRPC, got %v", err)
	}
}

func TestConnectRefused(t *testing.T) {
	host, port, err := rpctest.UnusedAddress()
	if err != nil {
		t.Fatalf("UnusedAddress: %s", err)
	}
	address := net.JoinHostPort(host, strconv.Itoa(port))

	_, err = NewRPCClient(address, net.DialTimeout, time.Second)
	if err == nil {
		t.Fatalf("expected an error connecting to %s", address)
	}
	if !strings.Contains(err.Error(), address) {
		t.Errorf("expected the address in the error, got %s", err)
	}
}

func TestConnectUsesDialFunc(t *testing.T) {
	server, err := rpctest.NewEchoServer()
	if err != nil {
		t.Fatalf("NewEchoServer: %s", err)
	}
	defer server.Close()

	var dialedAddress string
	var dialedTimeout time.Duration
	dial := func(network, address string, timeout time.Duration) (net.Conn, error) {
		dialedAddress = address
		dialedTimeout = timeout
		return net.Dial(network, server.Address())
	}

	client, err := NewRPCClient("geto.invalid:11102", dial, 7*time.Second)
	if err != nil {
		t.Fatalf("NewRPCClient: %s", err)
	}
	defer client.Close()

	if dialedAddress != "geto.invalid:11102" {
		t.Errorf("expected dial to be called with geto.invalid:11102, got %s", dialedAddress)
	}
	if dialedTimeout != 7*time.Second {
		t.Errorf("expected dial to be called with a 7s timeout, got %s", dialedTimeout)
	}
	reply, err := client.Echo("through a custom dialer")
	if err != nil {
		t.Fatalf("Echo: %s", err)
	}
	if reply != "through a custom dialer" {
		t.Errorf("unexpected reply %q", reply)
	}
}

func TestCallTimeout(t *testing.T) {
	// Reads requests and never replies
	server, err := rpctest.NewRawServer(func(conn net.Conn) {
		_, _ = io.Copy(ioutil.Discard, conn)
	})
	if err != nil {
		t.Fatalf("NewRawServer: %s", err)
	}
	defer server.Close()

	client := connectToServer(t, server, 200*time.Millisecond)
	defer client.Close()

	start := time.Now()
	_, err = client.Echo("test")
	if err == nil {
		t.Fatalf("expected a timeout error")
	}
	var netError net.Error
	if !errors.As(err, &netError) || !netError.Timeout() {
		t.Errorf("expected a timeout error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("the call took %s to time out", elapsed)
	}
}

func TestMalformedResponse(t *testing.T) {
	server, err := rpctest.NewRawServer(func(conn net.Conn) {
		buf := make([]byte, 1024)
		_, err := conn.Read(buf)
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte("this is not json\n"))
	})
	if err != nil {
		t.Fatalf("NewRawServer: %s", err)
	}
	defer server.Close()

	client := connectToServer(t, server, 5*time.Second)
	defer client.Close()

	_, err = client.Echo("test")
	if err == nil {
		t.Fatalf("expected an error for a malformed response")
	}
	if errors.Is(err, ErrRPC) {
		t.Errorf("a malformed response is not an RPC error: %s", err)
	}
}

func TestServerClosesConnection(t *testing.T) {
	server, err := rpctest.NewRawServer(func(conn net.Conn) {})
	if err != nil {
		t.Fatalf("NewRawServer: %s", err)
	}
	defer server.Close()

	client := connectToServer(t, server, 5*time.Second)
	defer client.Close()

	_, err = client.Echo("test")
	if err == nil {
		t.Fatalf("expected an error when the server hangs up")
	}
}

func TestEchoWithoutTimeout(t *testing.T) {
	server, err := rpctest.NewEchoServer()
	if err != nil {
		t.Fatalf("NewEchoServer: %s", err)
	}
	defer server.Close()

	client := connectToServer(t, server, 0)
	defer client.Close()

	reply, err := client.Echo("no deadline")
	if err != nil {
		t.Fatalf("Echo: %s", err)
	}
	if reply != "no deadline" {
		t.Errorf("unexpected reply %q", reply)
	}
}
