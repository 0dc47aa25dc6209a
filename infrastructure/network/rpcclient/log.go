package rpcclient

import (
	"github.com/bgmerrell/getorpctest/infrastructure/logger"
)

var log = logger.RegisterSubSystem("RPCC")
