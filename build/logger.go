package build

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	logFileName     = "satswap.log"
	jsonLogFileName = "satswap.log.json"
)

type tunableLogger interface {
	setLevel(level logrus.Level)
	setDir(dir string) error
}

// hook fans a single log entry out to the console, a plain text file and a
// JSON file.
type hook struct {
	console     *consoleLogHook
	jsonFile    *jsonFileHook
	regularFile *humanReadableFileHook
}

var _ tunableLogger = &hook{}

func (h *hook) setDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create log directory: %w", err)
	}

	jsonFile, err := openFileForAppend(filepath.Join(dir, jsonLogFileName))
	if err != nil {
		return fmt.Errorf("could not open JSON log file: %w", err)
	}
	h.jsonFile.file = jsonFile

	regularFile, err := openFileForAppend(filepath.Join(dir, logFileName))
	if err != nil {
		return fmt.Errorf("could not open regular log file: %w", err)
	}
	h.regularFile.file = regularFile
	return nil
}

func (h *hook) setLevel(level logrus.Level) {
	h.console.setLevel(level)
	h.jsonFile.setLevel(level)
	h.regularFile.setLevel(level)
}

var (
	logConfigLock  sync.Mutex
	subsystemHooks = map[string]tunableLogger{}
	subsystemLogs  = map[string]*logrus.Logger{}
)

// SetLogLevel sets the level of a single subsystem. Unknown subsystems are
// ignored.
func SetLogLevel(subsystem string, level logrus.Level) {
	logConfigLock.Lock()
	defer logConfigLock.Unlock()

	hook, ok := subsystemHooks[subsystem]
	if !ok {
		return
	}
	hook.setLevel(level)
	subsystemLogs[subsystem].SetLevel(level)
}

// SetLogLevels sets the level of every registered subsystem
func SetLogLevels(level logrus.Level) {
	logConfigLock.Lock()
	defer logConfigLock.Unlock()

	for subsystem, hook := range subsystemHooks {
		hook.setLevel(level)
		subsystemLogs[subsystem].SetLevel(level)
	}
}

// AddSubLogger creates a new logger with a standard format. Calling it twice
// with the same subsystem returns the same logger.
func AddSubLogger(subsystem string) *logrus.Logger {
	logConfigLock.Lock()
	defer logConfigLock.Unlock()

	if existing, ok := subsystemLogs[subsystem]; ok {
		return existing
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard) // everything goes through the hooks
	logger.SetLevel(logrus.InfoLevel)

	jsonHook := &jsonFileHook{subsystem: subsystem}
	fileHook := &humanReadableFileHook{subsystem: subsystem}
	consoleHook := &consoleLogHook{subsystem: subsystem}
	for _, h := range []interface{ setLevel(logrus.Level) }{jsonHook, fileHook, consoleHook} {
		h.setLevel(logrus.InfoLevel)
	}

	logger.AddHook(jsonHook)
	logger.AddHook(fileHook)
	logger.AddHook(consoleHook)

	subsystemHooks[subsystem] = &hook{
		console:     consoleHook,
		jsonFile:    jsonHook,
		regularFile: fileHook,
	}
	subsystemLogs[subsystem] = logger

	return logger
}

func openFileForAppend(file string) (*os.File, error) {
	return os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
}

// SetLogDir makes every subsystem write its logs to the given directory
func SetLogDir(dir string) error {
	logConfigLock.Lock()
	defer logConfigLock.Unlock()

	for _, hook := range subsystemHooks {
		if err := hook.setDir(dir); err != nil {
			return err
		}
	}
	return nil
}

// ToLogLevel takes in a string and converts it to a Logrus log level
func ToLogLevel(s string) (logrus.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return logrus.TraceLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	case "fatal":
		return logrus.FatalLevel, nil
	case "panic":
		return logrus.PanicLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("%s is not a valid log level", s)
	}
}

// GinLoggingMiddleWare returns a middleware that logs incoming requests with
// Logrus. Request bodies of blacklisted paths are never read, they carry
// passwords and card numbers.
func GinLoggingMiddleWare(logger *logrus.Logger, blacklist []string) gin.HandlerFunc {
	blackListMap := make(map[string]struct{})
	for _, elem := range blacklist {
		blackListMap[elem] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		withFields := logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"user-agent": c.Request.UserAgent(),
		})

		var bodyBytes []byte
		if _, found := blackListMap[path]; !found && c.Request.Body != nil {
			// a failed read just leaves the body out of the log line
			bodyBytes, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}

		if query := c.Request.URL.Query(); len(query) > 0 {
			withFields = withFields.WithField("query", query)
		}

		if len(bodyBytes) != 0 {
			withFields = withFields.WithField("body", string(bodyBytes))
		}

		c.Next()

		status := c.Writer.Status()
		withFields = withFields.WithField("status", status)

		// private errors never reach the end user, but we want them in the logs
		if privateErrors := c.Errors.ByType(gin.ErrorTypePrivate); len(privateErrors) > 0 {
			withFields = withFields.WithField("privateErrors", privateErrors)
		}

		if publicErrors := c.Errors.ByType(gin.ErrorTypePublic); len(publicErrors) > 0 {
			withFields = withFields.WithField("publicErrors", publicErrors)
		}

		if bindingErrors := c.Errors.ByType(gin.ErrorTypeBind); len(bindingErrors) > 0 {
			withFields = withFields.WithField("bindingErrors", bindingErrors)
		}

		withFields = withFields.WithField("latency", time.Since(start))

		requestLevel := logrus.InfoLevel
		switch {
		case status >= 500:
			requestLevel = logrus.ErrorLevel
		case status >= 400:
			requestLevel = logrus.WarnLevel
		}
		withFields.Logf(requestLevel, "HTTP %s %s: %d", c.Request.Method, path, status)
	}
}

type consoleLogHook struct {
	hasLevel
	subsystem string
}

var _ logrus.Hook = &consoleLogHook{}
var consoleFormat = logrus.TextFormatter{
	TimestampFormat: "15:04:05",
	ForceColors:     true,
	FullTimestamp:   true,
}

func (c *consoleLogHook) Fire(entry *logrus.Entry) error {
	if entry == nil || c.level < entry.Level {
		return nil
	}

	copied := *entry
	copied.Message = fmt.Sprintf("%s %s", c.subsystem, entry.Message)

	formatted, err := consoleFormat.Format(&copied)
	if err != nil {
		return err
	}

	_, err = os.Stdout.Write(formatted)
	return err
}

type humanReadableFileHook struct {
	hasLevel
	file      *os.File
	subsystem string
}

var _ logrus.Hook = &humanReadableFileHook{}
var fileHookFormat = logrus.TextFormatter{
	ForceColors:     true,
	TimestampFormat: time.RFC3339,
	FullTimestamp:   true,
}

const ansi = "[\u001B\u009B][[\\]()#;?]*(?:(?:(?:[a-zA-Z\\d]*(?:;[a-zA-Z\\d]*)*)?\u0007)|(?:(?:\\d{1,4}(?:;\\d{0,4})*)?[\\dA-PRZcf-ntqry=><~]))"

var ansiRegex = regexp.MustCompile(ansi)

func (h *humanReadableFileHook) Fire(entry *logrus.Entry) error {
	if h.file == nil || entry == nil || h.level < entry.Level {
		return nil
	}

	copied := *entry
	copied.Message = fmt.Sprintf("%s %s", h.subsystem, entry.Message)
	formatted, err := fileHookFormat.Format(&copied)
	if err != nil {
		return err
	}

	// logrus lays out colored and uncolored output differently. we format
	// with color to match the console, then strip the escape codes
	stripped := ansiRegex.ReplaceAll(formatted, nil)
	_, err = h.file.Write(stripped)
	return err
}

type jsonFileHook struct {
	hasLevel
	file      *os.File
	subsystem string
}

var _ logrus.Hook = &jsonFileHook{}
var jsonHookFormat = logrus.JSONFormatter{
	TimestampFormat: time.RFC3339,
}

func (j *jsonFileHook) Fire(entry *logrus.Entry) error {
	if j.file == nil || entry == nil || j.level < entry.Level {
		return nil
	}

	// the entry's data map is shared with the other hooks, so the subsystem
	// goes on a copy. WithField drops message and level, set them again
	withSubsystem := entry.WithField("subsystem", j.subsystem)
	withSubsystem.Message = entry.Message
	withSubsystem.Level = entry.Level
	withSubsystem.Time = entry.Time
	formatted, err := jsonHookFormat.Format(withSubsystem)
	if err != nil {
		return err
	}

	_, err = j.file.Write(formatted)
	return err
}

type hasLevel struct {
	level logrus.Level
}

// Levels satisfies logrus.Hook. Filtering happens in Fire, against the level
// set through SetLogLevel.
func (h *hasLevel) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *hasLevel) setLevel(level logrus.Level) {
	h.level = level
}
