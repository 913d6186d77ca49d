package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared line-oriented logger. Output is one JSON
// object per line on stdout; log collectors parse it as-is.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogRequest emits one structured line for a handled HTTP request. The
// entry map is marshaled verbatim; callers own the field vocabulary.
func LogRequest(entry map[string]any) {
	line, err := json.Marshal(entry)
	if err != nil {
		// A request entry that cannot marshal still leaves a trace.
		Logger().Println(`{"level":"error","msg":"request log entry not serializable"}`)
		return
	}
	Logger().Println(string(line))
}
