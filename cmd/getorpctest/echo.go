package main

import (
	"fmt"
	"io"
)

type echoClient interface {
	Echo(message string) (string, error)
}

func runEcho(conf *echoConfig, out io.Writer) error {
	client, err := connectToRPC(&conf.RPCServerFlags)
	if err != nil {
		return err
	}
	defer client.Close()

	return echo(client, conf.String, out)
}

// echo prints message, sends it to the echo RPC and prints the reply as is.
func echo(client echoClient, message string, out io.Writer) error {
	_, err := fmt.Fprintf(out, "Sending: %s\n", message)
	if err != nil {
		return err
	}
	reply, err := client.Echo(message)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Received: %s\n", reply)
	return err
}
