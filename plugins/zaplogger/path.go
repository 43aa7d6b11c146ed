package zaplogger

import (
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	DatePlaceholder = "[date]"
	dateLayout      = "20060102"
)

// PathFunc picks the file an entry of the given level is written to.
type PathFunc func(level zapcore.Level, now time.Time) string

// DatedPath joins base and pattern, replacing every [date] in pattern with
// now formatted as yyyymmdd.
func DatedPath(now time.Time, base, pattern string) string {
	return filepath.Join(base, strings.ReplaceAll(pattern, DatePlaceholder, now.Format(dateLayout)))
}

// LevelPaths routes info entries to the dated data file and every other level
// to <base>/<level>.log.
func LevelPaths(base, dataLogFile string) PathFunc {
	return func(level zapcore.Level, now time.Time) string {
		if level == zapcore.InfoLevel {
			return DatedPath(now, base, dataLogFile)
		}
		return filepath.Join(base, level.String()+".log")
	}
}
