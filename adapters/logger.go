package adapters

import (
	"context"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// pahoLogger feeds paho's package-level loggers into zerolog.
type pahoLogger struct {
	log   zerolog.Logger
	level zerolog.Level
}

func (p pahoLogger) Println(v ...interface{}) {
	p.log.WithLevel(p.level).Msg(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (p pahoLogger) Printf(format string, v ...interface{}) {
	p.log.WithLevel(p.level).Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// RouteMQTTLogs sends paho's internal ERROR, CRITICAL and WARN output to log.
// DEBUG is only routed when debug is set, it is very chatty.
func RouteMQTTLogs(log zerolog.Logger, debug bool) {
	log = log.With().Str("module", "paho").Logger()

	mqtt.ERROR = pahoLogger{log: log, level: zerolog.ErrorLevel}
	mqtt.CRITICAL = pahoLogger{log: log, level: zerolog.ErrorLevel}
	mqtt.WARN = pahoLogger{log: log, level: zerolog.WarnLevel}
	if debug {
		mqtt.DEBUG = pahoLogger{log: log, level: zerolog.TraceLevel}
	}
}

// loggerFrom prefers the request-scoped logger carried by ctx.
func loggerFrom(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return fallback
}
