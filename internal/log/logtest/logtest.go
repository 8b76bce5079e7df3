// Package logtest provides a log.Logger implementation that records every
// emitted line so tests can assert on warnings deterministically.
package logtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/genimp/genimp/internal/log"
)

// Recorder is a log.Logger that stores formatted log lines per level.
type Recorder struct {
	mu       sync.Mutex
	Infos    []string
	Warnings []string
	Errors   []string
	Debugs   []string
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Infof(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Infos = append(r.Infos, fmt.Sprintf(format, args...))
}

func (r *Recorder) Warningf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Recorder) Errorf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Recorder) Debugf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Debugs = append(r.Debugs, fmt.Sprintf(format, args...))
}

func (r *Recorder) WithValues(map[string]interface{}) log.Logger { return r }
func (r *Recorder) WithCtxValues(context.Context) log.Logger     { return r }
func (r *Recorder) SetValuesOnCtx(parent context.Context, values map[string]interface{}) context.Context {
	return parent
}
