package periodsum

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search/interval"
)

// provider computes interval scores for the documents of one segment. It
// keeps no state between calls.
type provider struct {
	seg   search.Segment
	field string
	rng   interval.Range
}

func newProvider(seg search.Segment, field string, r interval.Range) *provider {
	return &provider{seg: seg, field: field, rng: r}
}

func (p *provider) keys(doc int) ([]int64, error) {
	raw, err := p.seg.SortedNumeric(p.field, doc)
	if err != nil {
		return nil, fmt.Errorf("reading %s of doc %d in segment %s: %w", p.field, doc, p.seg.Name(), err)
	}
	return raw, nil
}

func (p *provider) Score(doc int) (float64, error) {
	raw, err := p.keys(doc)
	if err != nil {
		return 0, err
	}
	return interval.Sum(raw, p.rng), nil
}

// Explain lists one detail per stored interval. A document without
// intervals matches with a score of zero.
func (p *provider) Explain(doc int) (*search.Explanation, error) {
	raw, err := p.keys(doc)
	if err != nil {
		return nil, err
	}
	total, breakdown := interval.ComputeSum(raw, p.rng)
	details := make([]*search.Explanation, len(breakdown))
	for i, c := range breakdown {
		details[i] = search.Match(float64(c.Value),
			fmt.Sprintf("interval period=%d offset=%d", c.Period, c.Offset))
	}
	return search.Match(total, "score sum of:", details...), nil
}
