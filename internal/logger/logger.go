package logger

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a LOG_LEVEL value to a level, falling back to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

type Logger struct {
	level LogLevel
}

type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

var defaultLogger = &Logger{level: INFO}

func New(level LogLevel) *Logger {
	return &Logger{level: level}
}

func SetLevel(level LogLevel) {
	defaultLogger.level = level
}

func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}) {
	if level < l.level {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Message:   message,
		Fields:    sanitizeFields(fields),
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		log.Printf("Failed to marshal log entry: %v", err)
		return
	}

	log.Println(string(jsonBytes))
}

func (l *Logger) Debug(message string, fields ...map[string]interface{}) {
	l.log(DEBUG, message, mergeFields(fields...))
}

func (l *Logger) Info(message string, fields ...map[string]interface{}) {
	l.log(INFO, message, mergeFields(fields...))
}

func (l *Logger) Warn(message string, fields ...map[string]interface{}) {
	l.log(WARN, message, mergeFields(fields...))
}

func (l *Logger) Error(message string, fields ...map[string]interface{}) {
	l.log(ERROR, message, mergeFields(fields...))
}

// Package-level convenience functions
func Debug(message string, fields ...map[string]interface{}) {
	defaultLogger.Debug(message, fields...)
}

func Info(message string, fields ...map[string]interface{}) {
	defaultLogger.Info(message, fields...)
}

func Warn(message string, fields ...map[string]interface{}) {
	defaultLogger.Warn(message, fields...)
}

func Error(message string, fields ...map[string]interface{}) {
	defaultLogger.Error(message, fields...)
}

func mergeFields(fieldMaps ...map[string]interface{}) map[string]interface{} {
	if len(fieldMaps) == 0 {
		return nil
	}
	result := make(map[string]interface{})
	for _, fields := range fieldMaps {
		for k, v := range fields {
			result[k] = v
		}
	}
	return result
}

var secretKeys = []string{
	"token", "secret", "password", "api_key", "apikey", "authorization", "dsn",
}

// Purchaser documents are personal data; only the last digits are kept.
var documentKeys = []string{"cpf", "tax_id"}

func sanitizeFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	sanitized := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		keyLower := strings.ToLower(k)

		switch {
		case containsAny(keyLower, secretKeys):
			sanitized[k] = redactSecret(v)
		case containsAny(keyLower, documentKeys):
			sanitized[k] = maskDocument(v)
		default:
			sanitized[k] = v
		}
	}

	return sanitized
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

func redactSecret(v interface{}) interface{} {
	str, ok := v.(string)
	if !ok || len(str) <= 8 {
		return "[REDACTED]"
	}
	return str[:3] + "..." + str[len(str)-3:]
}

func maskDocument(v interface{}) interface{} {
	str, ok := v.(string)
	if !ok {
		return "[REDACTED]"
	}
	if str == "" {
		return ""
	}
	if len(str) <= 4 {
		return strings.Repeat("*", len(str))
	}
	return strings.Repeat("*", len(str)-2) + str[len(str)-2:]
}

func init() {
	// During tests, reduce log noise by setting higher log level
	if os.Getenv("GO_ENV") == "test" || strings.HasSuffix(os.Args[0], ".test") {
		SetLevel(WARN)
		return
	}

	SetLevel(ParseLevel(os.Getenv("LOG_LEVEL")))
}
