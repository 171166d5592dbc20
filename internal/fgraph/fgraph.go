// Package fgraph builds ffmpeg filter_complex graphs from typed chains.
//
// Free-form filter strings are easy to get wrong and hard to audit, so every
// filter name is checked against a fixed audio vocabulary and the rendered
// graph is capped at MaxLength characters before it ever reaches the
// executor. Chains are declared with a fluent API in the same style as the
// executor's command builder; errors stick to the graph and surface once at
// String().
package fgraph

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxLength caps the rendered filter_complex text. Graphs beyond this are
// rejected before invoking the executor.
const MaxLength = 2000

var (
	// ErrTooLong is returned when the rendered graph exceeds MaxLength.
	ErrTooLong = errors.New("fgraph: rendered graph exceeds maximum length")

	// ErrEmpty is returned when the graph has no chains.
	ErrEmpty = errors.New("fgraph: graph has no chains")
)

// allowedFilters is the audio filter vocabulary. Anything outside this set
// is a build error, not a warning.
var allowedFilters = map[string]bool{
	"acompressor":       true,
	"acrossfade":        true,
	"adelay":            true,
	"aecho":             true,
	"afade":             true,
	"aformat":           true,
	"alimiter":          true,
	"aloop":             true,
	"amerge":            true,
	"amix":              true,
	"anull":             true,
	"areverb":           true,
	"aresample":         true,
	"asetpts":           true,
	"asetrate":          true,
	"asplit":            true,
	"atempo":            true,
	"atrim":             true,
	"bandpass":          true,
	"concat":            true,
	"equalizer":         true,
	"highpass":          true,
	"lowpass":           true,
	"sidechaincompress": true,
	"volume":            true,
}

// sourcePattern matches stream specifiers that refer to command inputs
// ("0:a", "1:a", ...) rather than labels produced inside the graph.
var sourcePattern = regexp.MustCompile(`^\d+:a$`)

// Graph accumulates filter chains. The zero value is not usable; call New.
type Graph struct {
	chains []*Chain
	err    error
}

// Chain is one linear run of filters from its inputs to its output labels.
type Chain struct {
	graph   *Graph
	inputs  []string
	filters []string
	outputs []string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{}
}

// Chain starts a new chain reading from the given inputs. Inputs are either
// command stream specifiers ("0:a") or labels produced by an earlier chain.
func (g *Graph) Chain(inputs ...string) *Chain {
	c := &Chain{graph: g, inputs: inputs}
	g.chains = append(g.chains, c)
	return c
}

// Filter appends a filter to the chain. Arguments are joined with ":" in the
// order given; callers quote expression values themselves. Unknown filter
// names poison the graph.
func (c *Chain) Filter(name string, args ...string) *Chain {
	if !allowedFilters[name] {
		c.graph.fail(fmt.Errorf("fgraph: filter %q is not in the allowed vocabulary", name))
		return c
	}
	if len(args) == 0 {
		c.filters = append(c.filters, name)
		return c
	}
	c.filters = append(c.filters, name+"="+strings.Join(args, ":"))
	return c
}

// Label names the chain's single output stream.
func (c *Chain) Label(name string) *Chain {
	return c.Labels(name)
}

// Labels names the chain's output streams, for multi-output filters such as
// asplit.
func (c *Chain) Labels(names ...string) *Chain {
	c.outputs = append(c.outputs, names...)
	return c
}

// Err returns the first error recorded while building, if any.
func (g *Graph) Err() error {
	return g.err
}

// String renders and validates the graph. Chains render in declaration
// order, separated by ";"; inputs and outputs carry bracketed labels.
func (g *Graph) String() (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if len(g.chains) == 0 {
		return "", ErrEmpty
	}

	defined := make(map[string]bool)
	var sb strings.Builder
	for i, c := range g.chains {
		if len(c.filters) == 0 {
			return "", fmt.Errorf("fgraph: chain %d has no filters", i)
		}
		for _, in := range c.inputs {
			if !sourcePattern.MatchString(in) && !defined[in] {
				return "", fmt.Errorf("fgraph: chain %d reads undefined label %q", i, in)
			}
		}
		for _, out := range c.outputs {
			if defined[out] {
				return "", fmt.Errorf("fgraph: label %q defined twice", out)
			}
			if sourcePattern.MatchString(out) {
				return "", fmt.Errorf("fgraph: label %q collides with a stream specifier", out)
			}
			defined[out] = true
		}

		if i > 0 {
			sb.WriteString(";")
		}
		for _, in := range c.inputs {
			sb.WriteString("[" + in + "]")
		}
		sb.WriteString(strings.Join(c.filters, ","))
		for _, out := range c.outputs {
			sb.WriteString("[" + out + "]")
		}
	}

	rendered := sb.String()
	if len(rendered) > MaxLength {
		return "", fmt.Errorf("%w: %d > %d", ErrTooLong, len(rendered), MaxLength)
	}
	return rendered, nil
}

func (g *Graph) fail(err error) {
	if g.err == nil {
		g.err = err
	}
}

// Float renders a float the way ffmpeg filter arguments expect: plain
// decimal notation, no exponent, no trailing zeros.
func Float(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Quote wraps an expression value in single quotes so its commas and colons
// survive ffmpeg's filter argument parsing.
func Quote(expr string) string {
	return "'" + expr + "'"
}
