package logging

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

type LogCode string

const (
	// SYSTEM EVENTS (SYSTEM*)
	SYSTEM LogCode = "SYSTEM"

	// ACCOUNT OPERATIONS
	AUTH_LOGIN    LogCode = "AUTH_LOGIN"
	AUTH_REGISTER LogCode = "AUTH_REGISTER"

	// MARKETPLACE OPERATIONS
	MEDIA_UPLOAD LogCode = "MEDIA_UPLOAD"
	MEDIA_DELETE LogCode = "MEDIA_DELETE"
	NOTIFY       LogCode = "NOTIFY"

	// AI OPERATIONS
	LLM_ATTEMPT LogCode = "LLM_ATTEMPT"
	LLM_EXTRACT LogCode = "LLM_EXTRACT"
)

// VictoriaLogs has fixed field name for time (_time) and message(_msg). This function maps fields msg -> _msg and time -> _time.
func convertKeysToVictoriaLogs(keys []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{Key: "_time", Value: slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05"))}
	}
	if a.Key == slog.MessageKey {
		return slog.Attr{Key: "_msg", Value: a.Value}
	}
	return a
}

func GetVictoriaLogsOptions(addSource bool) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: convertKeysToVictoriaLogs,
		AddSource:   addSource,
	}
}

// InitLogging sends json logs to logFile and human readable logs to stderr.
func InitLogging(logFile io.Writer, serviceType string) {
	var jsonHandler slog.Handler = slog.NewJSONHandler(logFile, GetVictoriaLogsOptions(true))

	// these fields will be used for filtering logs
	jsonHandler = jsonHandler.WithAttrs([]slog.Attr{
		slog.String("service_type", serviceType),
	})
	textHandler := slog.NewTextHandler(os.Stderr, nil)

	logger := slog.New(slogmulti.Fanout(jsonHandler, textHandler))
	slog.SetDefault(logger)
}
