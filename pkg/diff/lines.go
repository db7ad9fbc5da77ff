package diff

import "strings"

// Op classifies one line of an edit script.
type Op int

const (
	Equal  Op = iota // present in both
	Insert           // present in the new text only
	Delete           // present in the old text only
)

// Edit is one line of an edit script.
type Edit struct {
	Op   Op
	Line string
}

// SplitLines splits text into lines without their terminators. A trailing
// newline does not produce an empty final line.
func SplitLines(text []byte) []string {
	if len(text) == 0 {
		return nil
	}
	s := strings.TrimSuffix(string(text), "\n")
	return strings.Split(s, "\n")
}

// Lines returns a shortest edit script turning a into b, computed with
// Myers' O((N+M)D) algorithm.
func Lines(a, b []string) []Edit {
	n, m := len(a), len(b)
	switch {
	case n == 0 && m == 0:
		return nil
	case n == 0:
		return uniform(Insert, b)
	case m == 0:
		return uniform(Delete, a)
	}

	max := n + m
	v := make([]int, 2*max+1)
	var trace [][]int
	for d := 0; d <= max; d++ {
		for k := -d; k <= d; k += 2 {
			i := k + max
			var x int
			if k == -d || (k != d && v[i-1] < v[i+1]) {
				x = v[i+1]
			} else {
				x = v[i-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[i] = x
			if x >= n && y >= m {
				trace = append(trace, append([]int(nil), v...))
				return backtrack(trace, a, b)
			}
		}
		trace = append(trace, append([]int(nil), v...))
	}
	return nil
}

func uniform(op Op, lines []string) []Edit {
	out := make([]Edit, len(lines))
	for i, l := range lines {
		out[i] = Edit{Op: op, Line: l}
	}
	return out
}

// backtrack walks the saved frontier snapshots from the end point back to
// the origin. trace[d] is the frontier after d edits.
func backtrack(trace [][]int, a, b []string) []Edit {
	max := len(a) + len(b)
	x, y := len(a), len(b)
	var rev []Edit

	for d := len(trace) - 1; d > 0; d-- {
		prev := trace[d-1]
		k := x - y
		i := k + max

		prevK := k - 1
		if k == -d || (k != d && prev[i-1] < prev[i+1]) {
			prevK = k + 1
		}
		prevX := prev[prevK+max]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			rev = append(rev, Edit{Op: Equal, Line: a[x]})
		}
		if prevK == k-1 {
			x--
			rev = append(rev, Edit{Op: Delete, Line: a[x]})
		} else {
			y--
			rev = append(rev, Edit{Op: Insert, Line: b[y]})
		}
	}
	for x > 0 && y > 0 {
		x--
		y--
		rev = append(rev, Edit{Op: Equal, Line: a[x]})
	}

	for l, r := 0, len(rev)-1; l < r; l, r = l+1, r-1 {
		rev[l], rev[r] = rev[r], rev[l]
	}
	return rev
}
