package logger

// printf 스타일 헬퍼 (cmd/*, 설정 로딩 등)

// Info logs an informational message
func Info(format string, args ...interface{}) {
	zlog.Info().Msgf(format, args...)
}

// Warn logs a warning
func Warn(format string, args ...interface{}) {
	zlog.Warn().Msgf(format, args...)
}

// Error logs an error
func Error(format string, args ...interface{}) {
	zlog.Error().Msgf(format, args...)
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	zlog.Debug().Msgf(format, args...)
}
