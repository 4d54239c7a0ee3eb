package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared structured logger used across the client.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stderr, "", 0)
	})
	return logger
}

// Log emits a structured JSON log line with a timestamp and level.
func Log(level, msg string, fields map[string]any) {
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": level,
		"msg":   msg,
	}
	for k, v := range fields {
		entry[k] = v
	}
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}

// Error logs a swallowed failure. Read-path fetch failures go through here:
// the store keeps its previous state and the panel shows "no data", not an error.
func Error(msg string, err error, fields map[string]any) {
	merged := map[string]any{"error": err.Error()}
	for k, v := range fields {
		merged[k] = v
	}
	Log("error", msg, merged)
}
