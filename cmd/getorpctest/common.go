package main

import (
	"github.com/bgmerrell/getorpctest/infrastructure/config"
	"github.com/bgmerrell/getorpctest/infrastructure/network/rpcclient"
)

func connectToRPC(rpcServerFlags *config.RPCServerFlags) (*rpcclient.RPCClient, error) {
	return rpcclient.NewRPCClient(rpcServerFlags.RPCAddress, rpcServerFlags.Dial, rpcServerFlags.TimeoutDuration())
}
