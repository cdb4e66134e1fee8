package scoring

// ErrorRate is an order-aware complement to [Score]: the word error rate of
// the candidate against the reference, from a minimum edit-distance
// alignment over the same tokens [Tokenize] produces.
type ErrorRate struct {
	Substitutions  int     `json:"substitutions"`
	Insertions     int     `json:"insertions"`
	Deletions      int     `json:"deletions"`
	ReferenceWords int     `json:"referenceWords"`
	Rate           float64 `json:"rate"`
}

// WordErrorRate computes (S + I + D) / N where N is the number of reference
// tokens. An empty reference returns the zero value.
func WordErrorRate(reference, candidate string) ErrorRate {
	ref := Tokenize(reference)
	hyp := Tokenize(candidate)

	n, m := len(ref), len(hyp)
	if n == 0 {
		return ErrorRate{}
	}

	d := make([][]int, n+1)
	for i := range d {
		d[i] = make([]int, m+1)
		d[i][0] = i
	}
	for j := 0; j <= m; j++ {
		d[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if ref[i-1] == hyp[j-1] {
				d[i][j] = d[i-1][j-1]
				continue
			}
			d[i][j] = 1 + min(d[i-1][j-1], d[i-1][j], d[i][j-1])
		}
	}

	var res ErrorRate
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && ref[i-1] == hyp[j-1]:
			i--
			j--
		case i > 0 && j > 0 && d[i][j] == d[i-1][j-1]+1:
			res.Substitutions++
			i--
			j--
		case i > 0 && d[i][j] == d[i-1][j]+1:
			res.Deletions++
			i--
		default:
			res.Insertions++
			j--
		}
	}

	res.ReferenceWords = n
	res.Rate = float64(res.Substitutions+res.Insertions+res.Deletions) / float64(n)
	return res
}
