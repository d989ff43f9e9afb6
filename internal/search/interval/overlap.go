package interval

import "fmt"

// Range is the caller-supplied [Start, End] window. Start > End is not
// rejected here; every overlap against such a range is zero.
type Range struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Inverted reports whether Start lies after End.
func (r Range) Inverted() bool {
	return r.Start > r.End
}

func (r Range) String() string {
	return fmt.Sprintf("[%d TO %d]", r.Start, r.End)
}

// Contribution is one line of an overlap breakdown.
type Contribution struct {
	Key    Key   `json:"key"`
	Period int64 `json:"period"`
	Offset int64 `json:"offset"`
	Value  int64 `json:"value"`
}

// Overlap returns max(0, min(r.End, period) - max(r.Start, offset)) for the
// decoded key.
func Overlap(k Key, r Range) int64 {
	period, offset := k.Decode()
	hi := min(r.End, period)
	lo := max(r.Start, offset)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// Sum adds up the overlap of every raw key with r.
func Sum(raw []int64, r Range) float64 {
	var total float64
	for _, v := range raw {
		total += float64(Overlap(Key(v), r))
	}
	return total
}

// ComputeSum is Sum plus a per-key breakdown in input order.
func ComputeSum(raw []int64, r Range) (float64, []Contribution) {
	var total float64
	breakdown := make([]Contribution, 0, len(raw))
	for _, v := range raw {
		k := Key(v)
		period, offset := k.Decode()
		value := Overlap(k, r)
		total += float64(value)
		breakdown = append(breakdown, Contribution{
			Key:    k,
			Period: period,
			Offset: offset,
			Value:  value,
		})
	}
	return total, breakdown
}
