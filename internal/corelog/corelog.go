/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package corelog is the structured logger shared by every component of
// the validator network core: RFC5424 output with key-value structured
// data, matched against a minimum level below which writes are no-ops.
package corelog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

// Level orders log severities; a Logger drops anything below its
// configured minimum.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	}
	return "UNKNOWN"
}

// DefaultID is the RFC5424 structured-data ID every record is tagged
// with.
const DefaultID = `vexor@1`

// Logger writes leveled, structured records to one or more writers. The
// zero value is not usable; construct with New.
type Logger struct {
	mtx  sync.Mutex
	wtrs []io.Writer
	lvl  Level
	app  string
	host string
}

// New returns a Logger at lvl writing to w, tagged with appname (e.g.
// "gossip", "shred") and the local hostname.
func New(w io.Writer, lvl Level, appname string) *Logger {
	host, _ := os.Hostname()
	return &Logger{wtrs: []io.Writer{w}, lvl: lvl, app: appname, host: host}
}

// AddWriter fans out future records to an additional writer (used by
// tests to capture log output alongside stderr).
func (l *Logger) AddWriter(w io.Writer) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.wtrs = append(l.wtrs, w)
}

// KV is one structured-data key-value pair.
type KV struct {
	Key   string
	Value string
}

// KVErr wraps err as a KV named "error", or a no-op KV if err is nil.
func KVErr(err error) KV {
	if err == nil {
		return KV{}
	}
	return KV{Key: "error", Value: err.Error()}
}

func (l *Logger) output(lvl Level, msg string, kvs []KV) {
	if lvl < l.lvl {
		return
	}
	params := make([]rfc5424.SDParam, 0, len(kvs)+1)
	params = append(params, rfc5424.SDParam{Name: "level", Value: lvl.String()})
	for _, kv := range kvs {
		if kv.Key == "" {
			continue
		}
		params = append(params, rfc5424.SDParam{Name: kv.Key, Value: kv.Value})
	}

	prio := rfc5424.User | rfc5424.Info
	switch lvl {
	case DEBUG:
		prio = rfc5424.User | rfc5424.Debug
	case WARN:
		prio = rfc5424.User | rfc5424.Warning
	case ERROR:
		prio = rfc5424.User | rfc5424.Error
	case FATAL:
		prio = rfc5424.User | rfc5424.Crit
	}

	m := rfc5424.Message{
		Priority:  prio,
		Timestamp: time.Now(),
		Hostname:  l.host,
		AppName:   l.app,
		MessageID: DefaultID,
		Message:   []byte(msg),
		StructuredData: []rfc5424.StructuredData{
			{ID: DefaultID, Parameters: params},
		},
	}

	b, err := m.MarshalBinary()
	if err != nil {
		return
	}
	b = append(b, '\n')

	l.mtx.Lock()
	defer l.mtx.Unlock()
	for _, w := range l.wtrs {
		w.Write(b)
	}
}

func (l *Logger) Debug(msg string, kvs ...KV) { l.output(DEBUG, msg, kvs) }
func (l *Logger) Info(msg string, kvs ...KV)  { l.output(INFO, msg, kvs) }
func (l *Logger) Warn(msg string, kvs ...KV)  { l.output(WARN, msg, kvs) }
func (l *Logger) Error(msg string, kvs ...KV) { l.output(ERROR, msg, kvs) }

// Fatal logs at FATAL and terminates the process. For unrecoverable
// startup failures only.
func (l *Logger) Fatal(msg string, kvs ...KV) {
	l.output(FATAL, msg, kvs)
	os.Exit(1)
}

// Debugf/Infof/Warnf/Errorf are convenience wrappers for unstructured,
// printf-style messages; prefer the KV form on any hot path.
func (l *Logger) Debugf(format string, args ...interface{}) { l.Debug(fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...interface{})  { l.Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.Warn(fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.Error(fmt.Sprintf(format, args...)) }

// NewDiscard returns a Logger that drops everything, for tests that don't
// care about log output.
func NewDiscard() *Logger {
	return New(io.Discard, FATAL+1, "discard")
}

// ParseLevel maps a config file's Log_Level string (DEBUG/INFO/WARN/
// ERROR/CRITICAL/FATAL) to a Level, defaulting to ERROR on anything
// unrecognized rather than failing startup over a typo.
func ParseLevel(s string) Level {
	switch s {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "CRITICAL", "FATAL":
		return FATAL
	}
	return ERROR
}
