package emit

import "fmt"

// Split cuts s into n contiguous slices whose sizes differ by at most one,
// earlier slices taking the remainder. Slice i starts at ceil(len*i/n).
func Split[T any](s []T, n int) [][]T {
	if n < 1 {
		panic(fmt.Sprintf("emit: split into %d parts", n))
	}
	bound := func(i int) int {
		return (len(s)*i + n - 1) / n
	}
	out := make([][]T, n)
	for i := range out {
		out[i] = s[bound(i):bound(i+1)]
	}
	return out
}
