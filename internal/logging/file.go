package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SessionLogPath names the log file of a session started at start.
func SessionLogPath(logsDir, appName string, start time.Time) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s.%s.log", appName, start.Format("20060102_150405")))
}

// OpenSessionLog creates logsDir if needed and opens the session log for
// appending. A file left over under the same name is moved to .old first.
func OpenSessionLog(logsDir, appName string, start time.Time) (*os.File, string, error) {
	path := SessionLogPath(logsDir, appName, start)
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, path, fmt.Errorf("creating logs dir: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".old"); err != nil {
			return nil, path, fmt.Errorf("rotating %s: %w", path, err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, path, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, path, nil
}
