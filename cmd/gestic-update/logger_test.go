package main

import (
	"flag"
	"fmt"
	"runtime"
	"testing"

	"github.com/moffa90/go-gestic/updater"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		kv   []interface{}
		want string
	}{
		{"no pairs", "session begun", nil, "session begun"},
		{"pairs", "block accepted", []interface{}{"block", 3, "address", "0x1180"}, "block accepted block=3 address=0x1180"},
		{"odd key", "state", []interface{}{"to"}, "state to=<missing>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := format(tt.msg, tt.kv); got != tt.want {
				t.Errorf("format() = %q, want %q", got, tt.want)
			}
		})
	}
}

// callSite records where a depth-aware log call is attributed, the way glog
// resolves it: depth frames above the function that called the output func.
type callSite struct {
	file string
	line int
	msg  string
}

func recordCallSite(sites *[]callSite) depthFunc {
	return func(depth int, args ...interface{}) {
		_, file, line, _ := runtime.Caller(depth + 1)
		*sites = append(*sites, callSite{file: file, line: line, msg: fmt.Sprint(args...)})
	}
}

// logThrough stands in for the updater's single logging wrapper.
func logThrough(l updater.Logger, level, msg string) {
	switch level {
	case "info":
		l.Info(msg)
	case "error":
		l.Error(msg)
	}
}

func TestGlogLoggerCallerDepth(t *testing.T) {
	var sites []callSite
	l := &glogLogger{info: recordCallSite(&sites), error: recordCallSite(&sites)}

	_, file, line, _ := runtime.Caller(0)
	logThrough(l, "info", "session begun")
	logThrough(l, "error", "session aborted")

	if len(sites) != 2 {
		t.Fatalf("recorded %d log calls, want 2", len(sites))
	}
	for i, site := range sites {
		if site.file != file || site.line != line+1+i {
			t.Errorf("call %d attributed to %s:%d, want %s:%d", i, site.file, site.line, file, line+1+i)
		}
	}
	if sites[1].msg != "session aborted" {
		t.Errorf("msg = %q", sites[1].msg)
	}
}

func TestSetupLogging(t *testing.T) {
	for _, name := range []string{"logtostderr", "v"} {
		name := name
		old := flag.Lookup(name).Value.String()
		t.Cleanup(func() { flag.Set(name, old) })
	}

	if err := setupLogging(3); err != nil {
		t.Fatalf("setupLogging() error = %v", err)
	}
	if got := flag.Lookup("v").Value.String(); got != "3" {
		t.Errorf("v = %q, want 3", got)
	}
	if got := flag.Lookup("logtostderr").Value.String(); got != "true" {
		t.Errorf("logtostderr = %q, want true", got)
	}
}
