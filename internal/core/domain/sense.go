package domain

import (
	"fmt"
	"math"
	"strings"
)

// Sense is the optimization direction of the problem.
type Sense int8

const (
	Minimize Sense = iota
	Maximize
)

// ParseSense parses "minimize"/"min" or "maximize"/"max".
func ParseSense(s string) (Sense, error) {
	switch strings.ToLower(s) {
	case "", "min", "minimize":
		return Minimize, nil
	case "max", "maximize":
		return Maximize, nil
	default:
		return Minimize, fmt.Errorf("unknown sense %q", s)
	}
}

func (s Sense) String() string {
	if s == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Worst returns the value every real bound or objective improves on.
func (s Sense) Worst() float64 {
	if s == Maximize {
		return math.Inf(-1)
	}
	return math.Inf(1)
}

// Better reports whether a is strictly better than b.
func (s Sense) Better(a, b float64) bool {
	if s == Maximize {
		return a > b
	}
	return a < b
}

// Best returns the better of a and b.
func (s Sense) Best(a, b float64) float64 {
	if s.Better(b, a) {
		return b
	}
	return a
}
