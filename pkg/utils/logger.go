// Package utils предоставляет структурированный логгер на базе zerolog.
//
// API в стиле key-value: utils.Info("msg", "key", value, ...).
// До вызова InitLogger логгер молчит, поэтому библиотечный код и тесты
// не пишут в stdout.
package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logMu  sync.RWMutex
	logger = zerolog.Nop()
)

// InitLogger настраивает глобальный логгер.
//
// level: debug, info, warn, error. Неизвестное значение = info.
// pretty: человекочитаемый вывод для разработки, иначе JSON в stdout.
func InitLogger(level string, pretty bool) {
	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	SetLogOutput(out, level)
}

// SetLogOutput направляет логи в произвольный writer.
func SetLogOutput(w io.Writer, level string) {
	l := zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()

	logMu.Lock()
	logger = l
	logMu.Unlock()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Info - информационное сообщение.
func Info(msg string, keyvals ...any) {
	logMu.RLock()
	defer logMu.RUnlock()
	write(logger.Info(), msg, keyvals)
}

// Error - сообщение об ошибке.
func Error(msg string, keyvals ...any) {
	logMu.RLock()
	defer logMu.RUnlock()
	write(logger.Error(), msg, keyvals)
}

// Debug - отладочное сообщение.
func Debug(msg string, keyvals ...any) {
	logMu.RLock()
	defer logMu.RUnlock()
	write(logger.Debug(), msg, keyvals)
}

// Warn - предупреждение.
func Warn(msg string, keyvals ...any) {
	logMu.RLock()
	defer logMu.RUnlock()
	write(logger.Warn(), msg, keyvals)
}

// write раскладывает пары key=value в поля события.
// Непарный хвостовой ключ отбрасывается.
func write(e *zerolog.Event, msg string, keyvals []any) {
	if e == nil {
		return
	}
	for i := 0; i+1 < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		switch v := keyvals[i+1].(type) {
		case error:
			e = e.AnErr(key, v)
		case time.Duration:
			e = e.Dur(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}
