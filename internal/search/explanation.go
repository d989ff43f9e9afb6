package search

import (
	"strconv"
	"strings"
)

// Explanation is a tree describing how a score was computed.
type Explanation struct {
	Value       float64        `json:"value"`
	Description string         `json:"description"`
	Matched     bool           `json:"match"`
	Details     []*Explanation `json:"details,omitempty"`
}

// Match builds an explanation for a matching document.
func Match(value float64, description string, details ...*Explanation) *Explanation {
	return &Explanation{Value: value, Description: description, Matched: true, Details: details}
}

// NoMatch builds an explanation for a document that does not match.
func NoMatch(description string, details ...*Explanation) *Explanation {
	return &Explanation{Description: description, Details: details}
}

// String renders the tree one node per line, children indented.
func (e *Explanation) String() string {
	var sb strings.Builder
	e.write(&sb, 0)
	return sb.String()
}

func (e *Explanation) write(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(strconv.FormatFloat(e.Value, 'g', -1, 64))
	sb.WriteString(" = ")
	if !e.Matched {
		sb.WriteString("(NON-MATCH) ")
	}
	sb.WriteString(e.Description)
	sb.WriteByte('\n')
	for _, d := range e.Details {
		d.write(sb, depth+1)
	}
}
