package main

import (
	"fmt"
	"strings"

	"github.com/golang/glog"
)

// The updater calls its logger through one wrapper method, so lines are
// attributed callerDepth frames above the logger, at the updater call site.
const callerDepth = 2

type depthFunc func(depth int, args ...interface{})

// glogLogger adapts glog to updater.Logger. Debug output needs -v 1.
type glogLogger struct {
	info  depthFunc
	error depthFunc
}

func newGlogLogger() *glogLogger {
	return &glogLogger{info: glog.InfoDepth, error: glog.ErrorDepth}
}

func (l *glogLogger) Debug(msg string, keysAndValues ...interface{}) {
	if glog.V(1) {
		l.info(callerDepth, format(msg, keysAndValues))
	}
}

func (l *glogLogger) Info(msg string, keysAndValues ...interface{}) {
	l.info(callerDepth, format(msg, keysAndValues))
}

func (l *glogLogger) Error(msg string, keysAndValues ...interface{}) {
	l.error(callerDepth, format(msg, keysAndValues))
}

// format renders msg followed by key=value pairs. A trailing odd key is
// printed with a missing value marker.
func format(msg string, keysAndValues []interface{}) string {
	if len(keysAndValues) == 0 {
		return msg
	}
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(keysAndValues); i += 2 {
		sb.WriteByte(' ')
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&sb, "%v=%v", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&sb, "%v=<missing>", keysAndValues[i])
		}
	}
	return sb.String()
}
