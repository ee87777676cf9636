// Package stringsutil collects small string-slice helpers shared across the
// arena's packages.
package stringsutil

// RemoveEmptyStrings drops empty entries from a slice, keeping order.
func RemoveEmptyStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
