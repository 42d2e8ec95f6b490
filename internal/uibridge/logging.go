package uibridge

import (
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, log output is dropped.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the bridge.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logEvent() *zerolog.Event {
	if zlog == nil {
		nop := zerolog.Nop()
		return nop.Debug()
	}
	return zlog.Debug()
}
