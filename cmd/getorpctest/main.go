package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bgmerrell/getorpctest/infrastructure/logger"
	"github.com/bgmerrell/getorpctest/version"
	"github.com/davecgh/go-spew/spew"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const appName = "getorpctest"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line in args and returns the process exit code.
// Command output goes to stdout, and errors and logs go to stderr.
func run(args []string, stdout, stderr io.Writer) int {
	subCmd, cfg, commandConfig, err := parseCommandLine(args, stdout, stderr)
	if err != nil {
		var flagsErr *flags.Error
		if ok := errors.As(err, &flagsErr); ok && flagsErr.Type == flags.ErrHelp {
			return 0
		}
		return 1
	}
	if cfg.ShowVersion {
		fmt.Fprintln(stdout, appName, "version", version.Version())
		return 0
	}

	err = logger.InitLog(stderr, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}

	err = runSubCommand(subCmd, commandConfig, stdout)
	if err != nil {
		log.Debugf("%s failed: %+v", subCmd, err)
	}
	logger.BackendLog.Close()
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}
	return 0
}

// runSubCommand runs the handler of subCmd, writing the command's output to out.
func runSubCommand(subCmd string, commandConfig interface{}, out io.Writer) error {
	log.Tracef("Running %s with configuration %s", subCmd, logger.NewLogClosure(func() string {
		return spew.Sdump(redactedConfig(commandConfig))
	}))

	switch subCmd {
	case echoSubCmd:
		return runEcho(commandConfig.(*echoConfig), out)
	case connectionTestSubCmd:
		return connectionTest(commandConfig.(*connectionTestConfig))
	default:
		return errors.Errorf("Unknown sub-command '%s'", subCmd)
	}
}

func redactedConfig(commandConfig interface{}) interface{} {
	switch conf := commandConfig.(type) {
	case *echoConfig:
		redacted := *conf
		redacted.RPCServerFlags = conf.Redacted()
		return redacted
	case *connectionTestConfig:
		redacted := *conf
		redacted.RPCServerFlags = conf.Redacted()
		return redacted
	default:
		return commandConfig
	}
}
