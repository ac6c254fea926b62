// Package response turns a model's free-form reply into test cases.
//
// Parsing is an ordered list of strategies. Each strategy either returns
// test cases or nothing; the first non-empty result wins. The default order
// is JSON, then "TC-n:" markers, then numbered lists.
package response

import (
	"storyqa/pkg/logx"
	"storyqa/pkg/testcase"
)

// Strategy extracts test cases from a raw model reply. Implementations
// return nil when they cannot make sense of the input.
type Strategy interface {
	Name() string
	Parse(raw string) []testcase.TestCase
}

// Parser runs strategies in order.
type Parser struct {
	strategies []Strategy
	logger     *logx.Logger
}

// NewParser returns a parser over the given strategies, or the default
// JSON, marker and numbered strategies when none are given.
func NewParser(strategies ...Strategy) *Parser {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Parser{strategies: strategies, logger: logx.NewLogger("response")}
}

// DefaultStrategies returns the standard strategy order.
func DefaultStrategies() []Strategy {
	logger := logx.NewLogger("response")
	return []Strategy{
		JSONStrategy{logger: logger},
		MarkerStrategy{},
		NumberedStrategy{},
	}
}

// Parse returns the first non-empty strategy result, or an empty slice.
// It never panics.
func (p *Parser) Parse(raw string) []testcase.TestCase {
	for _, s := range p.strategies {
		cases := p.run(s, raw)
		if len(cases) > 0 {
			p.logger.Debug("%s strategy extracted %d test cases", s.Name(), len(cases))
			return cases
		}
		p.logger.Debug("%s strategy found nothing", s.Name())
	}
	return []testcase.TestCase{}
}

func (p *Parser) run(s Strategy, raw string) (cases []testcase.TestCase) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("%s strategy panicked: %v", s.Name(), r)
			cases = nil
		}
	}()
	return s.Parse(raw)
}

// Parse runs the default strategies over raw.
func Parse(raw string) []testcase.TestCase {
	return NewParser().Parse(raw)
}
