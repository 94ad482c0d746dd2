// Package parse reads the line-oriented reaction-network input format into
// a *network.Network, kept as an external collaborator rather than folded
// into the core engine or network packages.
package parse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ormorni/tausplit/network"
)

// ErrParse is the sentinel wrapped by every malformed-line error, carrying
// the offending line number and text.
var ErrParse = errors.New("parse: malformed input")

// ErrUndeclaredSpecies is returned when a reaction references an
// identifier that was never initialised with an `IDENT = COUNT` line.
var ErrUndeclaredSpecies = errors.New("parse: undeclared species")

var (
	blankLine   = regexp.MustCompile(`^\s*$`)
	commentLine = regexp.MustCompile(`^\s*#`)
	initLine    = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(\d+)\s*$`)
	reactionRx  = regexp.MustCompile(`^\s*(.*?)->(.*?),(.*)$`)
	termRx      = regexp.MustCompile(`^\s*(?:(\d+)\s+)?([A-Za-z_][A-Za-z0-9_]*)\s*$`)
)

// Network is the parsed result: the built network, the species names in
// declaration order (which output.Writer uses for column headers), and
// each species' declared initial count in the same order.
type Network struct {
	Net     *network.Network
	Species []string
	Initial []uint64
}

// Parse reads every line from each reader in order (files compose by
// concatenation) and builds a Network. All species must be declared
// before use in any reaction, across the whole concatenated input.
func Parse(readers ...io.Reader) (*Network, error) {
	p := &parser{
		index: make(map[string]int),
	}

	lineNo := 0
	for _, r := range readers {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lineNo++
			if err := p.line(lineNo, scanner.Text()); err != nil {
				return nil, err
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("parse: reading input: %w", err)
		}
	}

	return &Network{Net: p.build(), Species: p.names, Initial: p.initial}, nil
}

type reactionLine struct {
	lineNo              int
	reactants, products []network.Term
	rate                float64
}

type parser struct {
	index   map[string]int
	names   []string
	initial []uint64
	pending []reactionLine
}

func (p *parser) line(lineNo int, text string) error {
	switch {
	case blankLine.MatchString(text), commentLine.MatchString(text):
		return nil
	case initLine.MatchString(text):
		m := initLine.FindStringSubmatch(text)
		name := m[1]
		if _, ok := p.index[name]; ok {
			return fmt.Errorf("%w: line %d: species %q declared twice", ErrParse, lineNo, name)
		}
		count, err := strconv.ParseUint(m[2], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: line %d: invalid initial count %q", ErrParse, lineNo, m[2])
		}
		p.index[name] = len(p.names)
		p.names = append(p.names, name)
		p.initial = append(p.initial, count)
		return nil
	case reactionRx.MatchString(text):
		m := reactionRx.FindStringSubmatch(text)
		reactants, err := p.parseTerms(lineNo, m[1])
		if err != nil {
			return err
		}
		products, err := p.parseTerms(lineNo, m[2])
		if err != nil {
			return err
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(m[3]), 64)
		if err != nil || rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
			return fmt.Errorf("%w: line %d: invalid rate %q", ErrParse, lineNo, strings.TrimSpace(m[3]))
		}
		p.pending = append(p.pending, reactionLine{lineNo: lineNo, reactants: reactants, products: products, rate: rate})
		return nil
	default:
		return fmt.Errorf("%w: line %d: %q", ErrParse, lineNo, text)
	}
}

// parseTerms parses one `+`-separated side of a reaction. An empty side
// (all whitespace) is valid and yields no terms, as in a pure degradation
// reaction like `A ->, 0.1`.
func (p *parser) parseTerms(lineNo int, side string) ([]network.Term, error) {
	side = strings.TrimSpace(side)
	if side == "" {
		return nil, nil
	}
	var terms []network.Term
	for _, part := range strings.Split(side, "+") {
		m := termRx.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("%w: line %d: invalid term %q", ErrParse, lineNo, strings.TrimSpace(part))
		}
		coeff := uint64(1)
		if m[1] != "" {
			c, err := strconv.ParseUint(m[1], 10, 64)
			if err != nil || c == 0 {
				return nil, fmt.Errorf("%w: line %d: invalid coefficient in %q", ErrParse, lineNo, strings.TrimSpace(part))
			}
			coeff = c
		}
		species, ok := p.index[m[2]]
		if !ok {
			return nil, fmt.Errorf("%w: line %d: species %q", ErrUndeclaredSpecies, lineNo, m[2])
		}
		terms = append(terms, network.Term{Species: species, Coeff: coeff})
	}
	return terms, nil
}

// build constructs the final Network now that every species has an index:
// reaction term resolution during p.line already validated declarations,
// so Builder.AddReaction cannot fail here.
func (p *parser) build() *network.Network {
	b := network.NewBuilder(len(p.names))
	for _, r := range p.pending {
		if err := b.AddReaction(network.Reaction{Reactants: r.reactants, Products: r.products, Rate: r.rate}); err != nil {
			// Species indices were already validated against p.index; a
			// failure here would mean a parser bug, not bad input.
			panic(fmt.Sprintf("parse: internal error building line %d: %v", r.lineNo, err))
		}
	}
	return b.Build()
}
