package logger

import (
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// BackendLog is the logging backend used to create all subsystem loggers.
var BackendLog = NewBackend()

var (
	subsystemLoggers      = make(map[string]*Logger)
	subsystemLoggersMutex sync.Mutex
)

// RegisterSubSystem returns the logger of the given subsystem, creating it
// on BackendLog if it doesn't exist yet.
func RegisterSubSystem(subsystem string) *Logger {
	subsystemLoggersMutex.Lock()
	defer subsystemLoggersMutex.Unlock()

	logger, exists := subsystemLoggers[subsystem]
	if !exists {
		logger = BackendLog.Logger(subsystem)
		subsystemLoggers[subsystem] = logger
	}
	return logger
}

// InitLog attaches the given stream and, if logFile isn't empty, a rotating
// log file to BackendLog and starts it. Subsystem levels decide what is
// actually written, so both writers accept every level. BackendLog.Close
// detaches both, so InitLog may be called again once it returns.
func InitLog(stream io.Writer, logFile string) error {
	if logFile != "" {
		err := BackendLog.AddLogFile(logFile, LevelTrace)
		if err != nil {
			return errors.Wrapf(err, "error adding log file %s", logFile)
		}
	}
	err := BackendLog.AddStreamWriter(stream, LevelTrace)
	if err != nil {
		return err
	}
	return BackendLog.Run()
}

// SetLogLevel sets the logging level for the provided subsystem. Invalid
// subsystems are ignored. Uninitialized subsystems are dynamically created as
// needed.
func SetLogLevel(subsystemID string, logLevel string) {
	level, _ := LevelFromString(logLevel)
	RegisterSubSystem(subsystemID).SetLevel(level)
}

// SetLogLevels sets the log level for all registered subsystem loggers to the
// passed level.
func SetLogLevels(logLevel string) {
	subsystemLoggersMutex.Lock()
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsystemID := range subsystemLoggers {
		subsystems = append(subsystems, subsystemID)
	}
	subsystemLoggersMutex.Unlock()

	for _, subsystemID := range subsystems {
		SetLogLevel(subsystemID, logLevel)
	}
}

// SupportedSubsystems returns a sorted slice of the registered subsystems.
func SupportedSubsystems() []string {
	subsystemLoggersMutex.Lock()
	defer subsystemLoggersMutex.Unlock()

	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsystemID := range subsystemLoggers {
		subsystems = append(subsystems, subsystemID)
	}
	sort.Strings(subsystems)
	return subsystems
}

func isSupportedSubsystem(subsystemID string) bool {
	subsystemLoggersMutex.Lock()
	defer subsystemLoggersMutex.Unlock()

	_, exists := subsystemLoggers[subsystemID]
	return exists
}

// ParseAndSetLogLevels attempts to parse the specified log level and
// sets the levels accordingly. An appropriate error is returned if anything is
// invalid.
//
// The level is either a single level applied to every subsystem, or a comma
// separated list of subsystem=level pairs, e.g. "RPCC=trace,GRPT=info".
func ParseAndSetLogLevels(logLevel string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(logLevel, ",") && !strings.Contains(logLevel, "=") {
		if _, ok := LevelFromString(logLevel); !ok {
			return errors.Errorf("the specified log level [%s] is invalid, "+
				"supported levels are %s", logLevel, strings.Join(levelNames[:], ", "))
		}
		SetLogLevels(logLevel)
		return nil
	}

	for _, logLevelPair := range strings.Split(logLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return errors.Errorf("the specified log level contains an invalid "+
				"subsystem/level pair [%s]", logLevelPair)
		}

		fields := strings.SplitN(logLevelPair, "=", 2)
		subsystemID, levelName := fields[0], fields[1]

		if !isSupportedSubsystem(subsystemID) {
			return errors.Errorf("the specified subsystem [%s] is invalid, "+
				"supported subsystems are %s", subsystemID, strings.Join(SupportedSubsystems(), ", "))
		}
		if _, ok := LevelFromString(levelName); !ok {
			return errors.Errorf("the specified log level [%s] is invalid, "+
				"supported levels are %s", levelName, strings.Join(levelNames[:], ", "))
		}

		SetLogLevel(subsystemID, levelName)
	}

	return nil
}
