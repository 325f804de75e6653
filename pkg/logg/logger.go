package logg

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
)

// log instance, usable before InitLogger is called
var Dlog, Dhttplog = getLogger(), getHTTPLogger()

func InitLogger() {
	Dlog = getLogger()
	Dhttplog = getHTTPLogger()
}

var (
	defaultLogHook, httpLogHook, syslogHook logrus.Hook
)

type logger struct {
	level logrus.Level
}

type LogHandle struct {
	logrus.Logger
}

var dlogger = logger{
	level: logrus.InfoLevel,
}

func getLogger() *LogHandle {
	h := newHandle()
	if defaultLogHook != nil {
		h.Hooks.Add(defaultLogHook)
	} else if syslogHook != nil {
		h.Hooks.Add(syslogHook)
	}

	return h
}

func getHTTPLogger() *LogHandle {
	h := newHandle()
	if httpLogHook != nil {
		h.Hooks.Add(httpLogHook)
	} else if syslogHook != nil {
		h.Hooks.Add(syslogHook)
	}
	return h
}

func newHandle() *LogHandle {
	l := &LogHandle{}
	// stdout may carry an encoded body, keep logs off it
	l.Out = os.Stderr
	l.Hooks = make(logrus.LevelHooks)
	l.Formatter = &CommonLogFormatter{
		pid: os.Getpid(),
	}
	l.Level = dlogger.level
	l.SetReportCaller(true)

	return l
}

func SetLevel(level logrus.Level) {
	dlogger.level = level
}

// ParseLevel maps error/warn/info/debug to a logrus level, falling back to info.
func ParseLevel(s string) logrus.Level {
	switch strings.ToLower(s) {
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

type CommonLogFormatter struct {
	pid int
}

func (hook *CommonLogFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var caller string
	if e.HasCaller() {
		callerPath := path.Join(path.Base(path.Dir(e.Caller.File)), path.Base(e.Caller.File))
		caller = fmt.Sprintf("%s:%d", callerPath, e.Caller.Line)
	}
	timestamp := e.Time.Format("2006-01-02 15:04:05.000000") + " "
	ret := new(bytes.Buffer)
	fmt.Fprintf(ret, "%v%d %v %v %s", timestamp, hook.pid, strings.ToUpper(e.Level.String()), e.Message, caller)

	if len(e.Data) != 0 {
		ret.WriteString(" " + fmt.Sprint(e.Data))
	}

	ret.WriteString("\n")
	return ret.Bytes(), nil
}
