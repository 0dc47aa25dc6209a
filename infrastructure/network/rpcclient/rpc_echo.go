package rpcclient

// EchoMethod is the remote method that returns its argument unchanged
const EchoMethod = "GetoRPC.Echo"

// Echo sends an RPC request respective to the function's name and returns the RPC server's response
func (c *RPCClient) Echo(message string) (string, error) {
	var reply string
	err := c.call(EchoMethod, message, &reply)
	if err != nil {
		return "", err
	}
	return reply, nil
}
