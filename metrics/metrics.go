// Package metrics records per-epoch scalar series of training runs
package metrics

import "sync"

import "github.com/google/uuid"
import log "github.com/sirupsen/logrus"

// Sink receives scalar points. Scalar must not block on slow collectors.
type Sink interface {
	Scalar(tag string, step int, value float64)
	Close() error
}

// NewRunID names one training run in every collector
func NewRunID() string {
	return uuid.New().String()
}

// Discard drops every point
type Discard struct{}

func (Discard) Scalar(string, int, float64) {}
func (Discard) Close() error                { return nil }

// LogSink writes every point as a debug log line
type LogSink struct {
	Logger log.FieldLogger
	Run    string
}

func (s LogSink) Scalar(tag string, step int, value float64) {
	s.Logger.WithFields(log.Fields{"run": s.Run, "tag": tag, "step": step, "value": value}).Debug("scalar")
}

func (s LogSink) Close() error { return nil }

// Point is one recorded scalar
type Point struct {
	Tag   string
	Step  int
	Value float64
}

// Memory keeps points in order, for tests and summaries
type Memory struct {
	mut    sync.Mutex
	Points []Point
}

func (m *Memory) Scalar(tag string, step int, value float64) {
	m.mut.Lock()
	defer m.mut.Unlock()
	m.Points = append(m.Points, Point{tag, step, value})
}

func (m *Memory) Close() error { return nil }

// Series returns the values recorded under tag in step order of arrival
func (m *Memory) Series(tag string) (o []float64) {
	m.mut.Lock()
	defer m.mut.Unlock()
	for _, p := range m.Points {
		if p.Tag == tag {
			o = append(o, p.Value)
		}
	}
	return o
}

// Multi fans points out to several sinks
type Multi []Sink

func (m Multi) Scalar(tag string, step int, value float64) {
	for _, s := range m {
		s.Scalar(tag, step, value)
	}
}

// Close closes every sink and returns the first error
func (m Multi) Close() (err error) {
	for _, s := range m {
		if e := s.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
