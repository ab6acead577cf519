package logging

import (
	"gopkg.in/natefinch/lumberjack.v2"
)

// UseFileLogger sends all log output to a rotating file at filepath.
func UseFileLogger(filepath string) {
	writer := &lumberjack.Logger{
		Filename:   filepath,
		MaxSize:    10, // megabytes
		MaxBackups: 7,
		MaxAge:     28, // days
	}

	level := L.GetLevel()
	L = newLogger(writer).Level(level)
}
