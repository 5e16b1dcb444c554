package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// eventAdapter forwards to a zerolog event, masking string and any-typed values
// whose key looks sensitive.
type eventAdapter struct {
	event  *zerolog.Event
	filter *SensitiveDataFilter
}

func (a *eventAdapter) with(e *zerolog.Event) LogEvent {
	return &eventAdapter{event: e, filter: a.filter}
}

func (a *eventAdapter) Msg(msg string) {
	a.event.Msg(msg)
}

func (a *eventAdapter) Msgf(format string, args ...any) {
	a.event.Msgf(format, args...)
}

func (a *eventAdapter) Err(err error) LogEvent {
	return a.with(a.event.Err(err))
}

func (a *eventAdapter) Str(key, value string) LogEvent {
	if a.filter != nil {
		value = a.filter.FilterString(key, value)
	}
	return a.with(a.event.Str(key, value))
}

func (a *eventAdapter) Int(key string, value int) LogEvent {
	return a.with(a.event.Int(key, value))
}

func (a *eventAdapter) Int64(key string, value int64) LogEvent {
	return a.with(a.event.Int64(key, value))
}

func (a *eventAdapter) Uint64(key string, value uint64) LogEvent {
	return a.with(a.event.Uint64(key, value))
}

func (a *eventAdapter) Bool(key string, value bool) LogEvent {
	return a.with(a.event.Bool(key, value))
}

func (a *eventAdapter) Dur(key string, d time.Duration) LogEvent {
	return a.with(a.event.Dur(key, d))
}

func (a *eventAdapter) Interface(key string, i any) LogEvent {
	if a.filter != nil {
		i = a.filter.FilterValue(key, i)
	}
	return a.with(a.event.Interface(key, i))
}

// Bytes is not filtered; callers log payload previews only when explicitly enabled.
func (a *eventAdapter) Bytes(key string, val []byte) LogEvent {
	return a.with(a.event.Bytes(key, val))
}
