package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/bgmerrell/getorpctest/infrastructure/config"
	"github.com/bgmerrell/getorpctest/infrastructure/logger"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	echoSubCmd           = "echo"
	connectionTestSubCmd = "connection-test"
)

type configFlags struct {
	config.RPCServerFlags
	LogLevel    string `long:"loglevel" default:"off" value-name:"LEVEL" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical, off} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`
	LogFile     string `long:"logfile" value-name:"PATH" description:"Also write the log to this file, rotating it as it grows"`
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
}

type echoConfig struct {
	String                string `long:"string" default:"test" value-name:"STRING" description:"The string to echo"`
	config.RPCServerFlags `no-flag:"true"`
}

type connectionTestConfig struct {
	config.RPCServerFlags `no-flag:"true"`
}

// parseCommandLine parses args into the global options and the configuration
// of the selected sub-command. Help is written to stdout and parsing errors
// to stderr before being returned; a help request is returned as a
// *flags.Error of type flags.ErrHelp. When --version is given, only cfg is
// returned.
func parseCommandLine(args []string, stdout, stderr io.Writer) (
	subCommand string, cfg *configFlags, commandConfig interface{}, err error) {

	cfg = &configFlags{}
	parser := flags.NewParser(cfg, flags.HelpFlag)
	parser.Name = appName
	// Required by --version, which is valid without a command
	parser.SubcommandsOptional = true
	parser.LongDescription = "Test geto RPCs.\n\n" +
		"Type '" + appName + " <command> --help' for help on a specific command."

	echoConf := &echoConfig{}
	_, err = parser.AddCommand(echoSubCmd, "Test the echo RPC",
		"Sends a string to the echo RPC and prints both the string sent and the string received", echoConf)
	if err != nil {
		return "", nil, nil, err
	}

	connectionTestConf := &connectionTestConfig{}
	_, err = parser.AddCommand(connectionTestSubCmd, "Call the TestHostConnection RPC",
		"Call the TestHostConnection RPC. Not implemented yet: exits with an error without connecting", connectionTestConf)
	if err != nil {
		return "", nil, nil, err
	}

	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if ok := errors.As(err, &flagsErr); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, err)
		} else {
			fmt.Fprintln(stderr, err)
		}
		return "", nil, nil, err
	}

	if cfg.ShowVersion {
		return "", cfg, nil, nil
	}

	if parser.Command.Active == nil {
		err = commandRequiredError(remainingArgs)
		fmt.Fprintln(stderr, err)
		parser.WriteHelp(stderr)
		return "", nil, nil, err
	}
	if len(remainingArgs) > 0 {
		err = errors.Errorf("unexpected arguments for %s: %s",
			parser.Command.Active.Name, strings.Join(remainingArgs, " "))
		fmt.Fprintln(stderr, err)
		parser.WriteHelp(stderr)
		return "", nil, nil, err
	}

	err = cfg.ResolveRPCServer(parser, stderr)
	if err != nil {
		return "", nil, nil, err
	}

	err = logger.ParseAndSetLogLevels(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		parser.WriteHelp(stderr)
		return "", nil, nil, err
	}

	switch parser.Command.Active.Name {
	case echoSubCmd:
		echoConf.RPCServerFlags = cfg.RPCServerFlags
		commandConfig = echoConf
	case connectionTestSubCmd:
		connectionTestConf.RPCServerFlags = cfg.RPCServerFlags
		commandConfig = connectionTestConf
	default:
		return "", nil, nil, errors.Errorf("Unknown sub-command '%s'", parser.Command.Active.Name)
	}

	return parser.Command.Active.Name, cfg, commandConfig, nil
}

// commandRequiredError builds the error go-flags would return for a missing
// or unknown command had SubcommandsOptional not been set.
func commandRequiredError(remainingArgs []string) *flags.Error {
	commands := echoSubCmd + " or " + connectionTestSubCmd
	if len(remainingArgs) > 0 {
		return &flags.Error{
			Type:    flags.ErrUnknownCommand,
			Message: fmt.Sprintf("Unknown command `%s', please specify one command of: %s", remainingArgs[0], commands),
		}
	}
	return &flags.Error{
		Type:    flags.ErrCommandRequired,
		Message: "Please specify one command of: " + commands,
	}
}
