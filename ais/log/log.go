// Package log provides function to log, trace, debug work of the system.
package log

import (
	"flag"
	"fmt"
	"io"
	reallog "log"
	log "log/syslog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
)

var (
	dfltMu    sync.RWMutex
	dflt      Logger = &aisLogger{level: log.LOG_WARNING, textlogs: []io.Writer{os.Stderr}}
	useStderr bool
	useSyslog bool
	useFile   string
	logLevel  string
	fileLine  bool

	spewConfig = spew.ConfigState{
		Indent:   "  ",
		SortKeys: true,
		MaxDepth: 3,
	}

	colorPriority = map[log.Priority]string{
		log.LOG_EMERG:   NC,
		log.LOG_ALERT:   LightGreen,
		log.LOG_CRIT:    LightRed,
		log.LOG_ERR:     LightRed,
		log.LOG_WARNING: Yellow,
		log.LOG_NOTICE:  NC,
		log.LOG_INFO:    Blue,
		log.LOG_DEBUG:   Green,
	}
)

const (
	LOG_TRACE = log.LOG_DEBUG + 1

	LightRed    = "\033[1;31m"
	Red         = "\033[0;31m"
	Yellow      = "\033[0;33m"
	LightYellow = "\033[1;33m"
	Blue        = "\033[0;34m"
	LightBlue   = "\033[1;34m"
	NC          = "\033[0m"
	Green       = "\033[0;32m"
	LightGreen  = "\033[1;32m"
)

func init() {
	flag.BoolVar(&useStderr, "stdlog", true, "Write log to stderr?")
	flag.BoolVar(&useSyslog, "syslog", false, "Write log to syslog?")
	flag.BoolVar(&fileLine, "srcloc", false, "Find and write file:lineno to log?")
	flag.StringVar(&useFile, "filelog", "", "Write log to this file")
	flag.StringVar(&logLevel, "log", "info", "Set the logging level")
}

// ParseLevel maps a level name as given on the command line to a priority.
func ParseLevel(name string) (log.Priority, error) {
	switch strings.ToUpper(name) {
	case "ERROR":
		return log.LOG_ERR, nil
	case "ALERT":
		return log.LOG_ALERT, nil
	case "CRITICAL":
		return log.LOG_CRIT, nil
	case "EMERGENCY":
		return log.LOG_EMERG, nil
	case "INFO":
		return log.LOG_INFO, nil
	case "NOTICE":
		return log.LOG_NOTICE, nil
	case "WARNING":
		return log.LOG_WARNING, nil
	case "DEBUG":
		return log.LOG_DEBUG, nil
	case "TRACE":
		return LOG_TRACE, nil
	}
	return 0, errors.Errorf("unknown logging level: %v", name)
}

// Init is used to setup a logger from the command line flags.
// Until it is called, warnings and worse go to stderr.
func Init(procname string) {
	level, err := ParseLevel(logLevel)
	if err != nil {
		reallog.Fatal(err)
	}

	logger := &aisLogger{
		level:    level,
		fileLine: fileLine,
	}

	if useStderr {
		logger.textlogs = []io.Writer{
			os.Stderr,
		}
	}

	if useFile != "" {
		f, err := os.OpenFile(useFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			reallog.Fatalf("Could not open log file: %v", useFile)
		} else {
			logger.textlogs = append(logger.textlogs, f)
		}
	}

	if useSyslog {
		syslog, err := log.Dial("", "", log.LOG_LOCAL0, procname)
		if err != nil {
			reallog.Fatalf("Could not dial syslog: %v", err)
		}
		logger.syslogs = []*log.Writer{
			syslog,
		}
	}

	SetDefault(logger)
}

// New builds a logger writing plain text to the given writers.
func New(level log.Priority, w ...io.Writer) Logger {
	return &aisLogger{
		level:    level,
		textlogs: w,
	}
}

// SetDefault replaces the logger behind the package level functions and
// returns the previous one.
func SetDefault(l Logger) Logger {
	dfltMu.Lock()
	defer dfltMu.Unlock()
	prev := dflt
	dflt = l
	return prev
}

func current() Logger {
	dfltMu.RLock()
	defer dfltMu.RUnlock()
	return dflt
}

type Logger interface {
	Log(prio log.Priority, msgFmt string, args ...interface{})
	TraceMsg(msgFmt string, args ...interface{})
	Trace(args ...interface{})
	Fatal(msgFmt string, args ...interface{})

	Emerg(msgFmt string, args ...interface{})
	Alert(msgFmt string, args ...interface{})
	Crit(msgFmt string, args ...interface{})
	Error(msgFmt string, args ...interface{})
	Warn(msgFmt string, args ...interface{})
	Notice(msgFmt string, args ...interface{})
	Info(msgFmt string, args ...interface{})
	Debug(msgFmt string, args ...interface{})
}

type aisLogger struct {
	mu       sync.Mutex
	level    log.Priority
	fileLine bool
	syslogs  []*log.Writer
	textlogs []io.Writer
}

// Convenience function for debugging
func Spew(obj ...interface{}) string {
	return spewConfig.Sdump(obj...)
}

/*******
 * Core logger functionality
 */
func (l *aisLogger) Log(prio log.Priority, msgFmt string, args ...interface{}) {
	if prio > l.level {
		return
	}
	formatArgs := fmtArgs(msgFmt, args)
	msg := spewConfig.Sprintf(msgFmt, formatArgs...)
	if msgFmt == "" && len(args) > 0 {
		msg = spewConfig.Sdump(args...)
	}
	if l.fileLine || prio == LOG_TRACE {
		file, line := logSite()
		msg = fmt.Sprintf("%s: %v (%v:%v) %v", getColoredNamedPriority(prio), time.Now().Format(time.RFC3339Nano), file, line, msg)
	} else {
		msg = fmt.Sprintf("%s: %v %v", getColoredNamedPriority(prio), time.Now().Format(time.RFC3339Nano), msg)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeToSyslogs(prio, msg)
	l.writeToTextLogs(msg)
}

func (l *aisLogger) TraceMsg(msgFmt string, args ...interface{}) {
	l.Log(LOG_TRACE, msgFmt, args...)
}

func (l *aisLogger) Trace(args ...interface{}) {
	l.Log(LOG_TRACE, "", args...)
}

func (l *aisLogger) writeToSyslogs(prio log.Priority, msg string) {
	for _, syslog := range l.syslogs {
		var err error = nil
		switch prio {
		case log.LOG_ERR:
			err = syslog.Err(msg)
		case log.LOG_ALERT:
			err = syslog.Alert(msg)
		case log.LOG_CRIT:
			err = syslog.Crit(msg)
		case log.LOG_EMERG:
			err = syslog.Emerg(msg)
		case log.LOG_INFO:
			err = syslog.Info(msg)
		case log.LOG_NOTICE:
			err = syslog.Notice(msg)
		case log.LOG_WARNING:
			err = syslog.Warning(msg)
		case log.LOG_DEBUG, LOG_TRACE:
			err = syslog.Debug(msg)
		default:
			err = syslog.Err(msg)
		}
		if err != nil {
			reallog.Printf("Error returned by syslog: %v", err)
		}
	}
}

func (l *aisLogger) writeToTextLogs(msg string) {
	msg += "\n"

	for _, textLog := range l.textlogs {
		io.WriteString(textLog, msg)
	}
}

/****
 * Utility helper functions
 */
func fmtArgs(format string, args []interface{}) []interface{} {
	lastWasPcnt := false
	var fmtParams int = 0
	for _, r := range format {
		if r == '%' {
			if !lastWasPcnt {
				fmtParams++
			} else {
				fmtParams--
			}
			lastWasPcnt = true
		} else {
			lastWasPcnt = false
		}
	}
	if fmtParams > len(args) {
		fmtParams = len(args)
	}
	return args[0:fmtParams]
}

func shaveSrcFile(fn string) string {
	idx := strings.LastIndex(fn, "/ais/")
	if idx < 0 {
		return fn
	}
	return fn[idx+len("/ais/"):]
}

func logSite() (string, int) {
	skip := 1
	for {
		_, file, line, ok := runtime.Caller(skip)
		if !ok {
			break
		}
		file = shaveSrcFile(file)
		if !strings.HasPrefix(file, "log/") {
			return file, line
		}
		skip++
	}
	return "", -1
}

/****
 * Convenience functions
 */
func (l *aisLogger) Fatal(msgFmt string, args ...interface{}) {
	l.Log(log.LOG_CRIT, msgFmt, args...)
	os.Exit(1)
}
func (l *aisLogger) Emerg(msgFmt string, args ...interface{}) {
	l.Log(log.LOG_EMERG, msgFmt, args...)
}
func (l *aisLogger) Alert(msgFmt string, args ...interface{}) {
	l.Log(log.LOG_ALERT, msgFmt, args...)
}
func (l *aisLogger) Crit(msgFmt string, args ...interface{}) {
	l.Log(log.LOG_CRIT, msgFmt, args...)
}
func (l *aisLogger) Error(msgFmt string, args ...interface{}) {
	l.Log(log.LOG_ERR, msgFmt, args...)
}
func (l *aisLogger) Warn(msgFmt string, args ...interface{}) {
	l.Log(log.LOG_WARNING, msgFmt, args...)
}
func (l *aisLogger) Notice(msgFmt string, args ...interface{}) {
	l.Log(log.LOG_NOTICE, msgFmt, args...)
}
func (l *aisLogger) Info(msgFmt string, args ...interface{}) {
	l.Log(log.LOG_INFO, msgFmt, args...)
}
func (l *aisLogger) Debug(msgFmt string, args ...interface{}) {
	l.Log(log.LOG_DEBUG, msgFmt, args...)
}

/************
 *  DEFAULT logger interface
 */
func Log(prio log.Priority, msgFmt string, args ...interface{}) {
	current().Log(prio, msgFmt, args...)
}
func TraceMsg(msgFmt string, args ...interface{}) {
	current().TraceMsg(msgFmt, args...)
}
func Trace(args ...interface{}) {
	current().Trace(args...)
}
func Fatal(msgFmt string, args ...interface{}) {
	current().Fatal(msgFmt, args...)
}
func Emerg(msgFmt string, args ...interface{}) {
	current().Emerg(msgFmt, args...)
}
func Alert(msgFmt string, args ...interface{}) {
	current().Alert(msgFmt, args...)
}
func Crit(msgFmt string, args ...interface{}) {
	current().Crit(msgFmt, args...)
}
func Error(msgFmt string, args ...interface{}) {
	current().Error(msgFmt, args...)
}
func Warn(msgFmt string, args ...interface{}) {
	current().Warn(msgFmt, args...)
}
func Notice(msgFmt string, args ...interface{}) {
	current().Notice(msgFmt, args...)
}
func Info(msgFmt string, args ...interface{}) {
	current().Info(msgFmt, args...)
}
func Debug(msgFmt string, args ...interface{}) {
	current().Debug(msgFmt, args...)
}

func getColoredNamedPriority(prio log.Priority) string {
	return colorPriority[prio] + getNameOfPriority(prio) + NC
}

func getNameOfPriority(prio log.Priority) string {
	switch prio {
	case log.LOG_ERR:
		return "ERROR"
	case log.LOG_ALERT:
		return "ALERT"
	case log.LOG_CRIT:
		return "CRITICAL"
	case log.LOG_EMERG:
		return "EMERGENCY"
	case log.LOG_INFO:
		return "INFO"
	case log.LOG_NOTICE:
		return "NOTICE"
	case log.LOG_WARNING:
		return "WARNING"
	case log.LOG_DEBUG:
		return "DEBUG"
	case LOG_TRACE:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}
