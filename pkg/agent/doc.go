// Package agent builds the model client used for test case generation.
//
// Provider clients live under internal/llmimpl. NewClient selects one from
// configuration and wraps it in the logging, metrics and timeout middleware
// chain from the middleware packages.
package agent
