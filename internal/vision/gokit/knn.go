package gokit

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/Faultbox/cadmatch/internal/vision"
)

// KnnMatch implements vision.Toolkit by brute force. Equal distances are
// ordered by train index.
func (k *Kit) KnnMatch(query, train vision.DescriptorBlock, n int) ([][]vision.DMatch, error) {
	if n <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", n)
	}
	if query.Empty() || train.Empty() {
		return make([][]vision.DMatch, query.Rows), nil
	}
	if query.Cols != train.Cols {
		return nil, fmt.Errorf("descriptor width mismatch: %d vs %d", query.Cols, train.Cols)
	}

	out := make([][]vision.DMatch, query.Rows)
	best := make([]vision.DMatch, 0, n+1)
	for q := 0; q < query.Rows; q++ {
		qd := query.Row(q)
		best = best[:0]
		for t := 0; t < train.Rows; t++ {
			d := float64(hamming(qd, train.Row(t)))
			if len(best) == n && d >= best[n-1].Distance {
				continue
			}
			// insertion keeps best sorted; later equal distances go after
			i := len(best)
			for i > 0 && best[i-1].Distance > d {
				i--
			}
			best = append(best, vision.DMatch{})
			copy(best[i+1:], best[i:])
			best[i] = vision.DMatch{QueryIdx: q, TrainIdx: t, Distance: d}
			if len(best) > n {
				best = best[:n]
			}
		}
		out[q] = append([]vision.DMatch(nil), best...)
	}
	return out, nil
}

func hamming(a, b []byte) int {
	d := 0
	for len(a) >= 8 {
		d += bits.OnesCount64(binary.LittleEndian.Uint64(a) ^ binary.LittleEndian.Uint64(b))
		a, b = a[8:], b[8:]
	}
	for i := range a {
		d += bits.OnesCount8(a[i] ^ b[i])
	}
	return d
}
