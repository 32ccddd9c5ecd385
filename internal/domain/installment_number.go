package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeInstallmentNumber extracts the 1-based installment index from the
// settlement export's number field. Upstream double formatting produces
// values such as "2/6/6"; only the first "/"-delimited token is meaningful.
// Anything unparsable defaults to 1.
func NormalizeInstallmentNumber(raw string) int {
	head, _, _ := strings.Cut(strings.TrimSpace(raw), "/")
	n, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// InstallmentDisplay renders "k/n".
func InstallmentDisplay(k, n int) string {
	return fmt.Sprintf("%d/%d", k, n)
}

// ParseInstallmentLabel reads the free-text label of a release ("2/6", "1").
// It returns 0 when the label is empty or carries no usable number.
func ParseInstallmentLabel(label string) int {
	head, _, _ := strings.Cut(strings.TrimSpace(label), "/")
	n, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil || n < 1 {
		return 0
	}
	return n
}
