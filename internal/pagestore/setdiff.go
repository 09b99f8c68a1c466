package pagestore

// SetDifference returns the elements of a that are not in b. Both a and b
// must be sorted ascending, as produced by Store.Pages(); the result is
// sorted ascending too.
func SetDifference(a, b []uint32) []uint32 {
	var result []uint32

	i, j := 0, 0
	for i < len(a) {
		for j < len(b) && b[j] < a[i] {
			j++
		}

		if j < len(b) && b[j] == a[i] {
			i++
			continue
		}

		result = append(result, a[i])
		i++
	}

	return result
}
