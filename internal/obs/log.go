package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

// serviceName tags every request log line so dashboard traffic can be
// filtered out of mixed log streams.
const serviceName = "warboard-api"

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared JSON-line logger for the dashboard backend.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogRequest emits a structured JSON log line with common HTTP fields,
// stamping the service name when the caller did not set one.
func LogRequest(entry map[string]any) {
	if _, ok := entry["service"]; !ok {
		entry["service"] = serviceName
	}
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"ts":"error","level":"error","service":"` + serviceName + `","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}
