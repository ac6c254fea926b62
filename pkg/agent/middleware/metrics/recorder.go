// Package metrics records model request outcomes and token usage.
package metrics

import "time"

// Observation is one finished model request.
type Observation struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	// ErrorType is the llmerrors classification; empty on success.
	ErrorType string
	Duration  time.Duration
}

// Success reports whether the request returned a response.
func (o Observation) Success() bool {
	return o.ErrorType == ""
}

// Recorder receives request observations and throttling events.
type Recorder interface {
	ObserveRequest(obs Observation)
	// IncThrottle counts a request refused before it reached the provider.
	IncThrottle(model, reason string)
}

type nopRecorder struct{}

// Nop returns a recorder that drops everything.
func Nop() Recorder {
	return nopRecorder{}
}

func (nopRecorder) ObserveRequest(Observation) {}
func (nopRecorder) IncThrottle(string, string) {}
