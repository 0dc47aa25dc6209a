package main

import (
	"github.com/bgmerrell/getorpctest/infrastructure/network/rpcclient"
	"github.com/pkg/errors"
)

// ErrNotImplemented is returned by sub-commands that are declared but do nothing yet
var ErrNotImplemented = errors.New("not implemented")

// connectionTest neither connects nor prints anything.
func connectionTest(conf *connectionTestConfig) error {
	log.Debugf("%s requested against %s", connectionTestSubCmd, conf.RPCAddress)
	return errors.Wrapf(ErrNotImplemented, "%s: calling %s",
		connectionTestSubCmd, rpcclient.TestHostConnectionMethod)
}
