package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatNumber formats an integer with thousands separators.
func FormatNumber(n int64) string {
	if n < 0 {
		if n == math.MinInt64 {
			return "-" + groupThousands(strconv.FormatUint(uint64(math.MaxInt64)+1, 10))
		}
		return "-" + groupThousands(strconv.FormatInt(-n, 10))
	}
	return groupThousands(strconv.FormatInt(n, 10))
}

// groupThousands inserts a comma every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	lead := n % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPrice formats a price with two decimals and grouped thousands.
// Prices below 10 keep four decimals.
func FormatPrice(price float64) string {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return "n/a"
	}
	negative := price < 0
	price = math.Abs(price)

	decimals := 2
	if price < 10 {
		decimals = 4
	}
	str := strconv.FormatFloat(price, 'f', decimals, 64)
	intPart, decPart, _ := strings.Cut(str, ".")

	result := groupThousands(intPart) + "." + decPart
	if negative {
		result = "-" + result
	}
	return result
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatReturn formats a fractional return as a signed percentage.
func FormatReturn(r float64) string {
	return FormatPercent(r * 100)
}

// FormatConfidence formats a 0-1 confidence as a percentage.
func FormatConfidence(conf float64) string {
	return fmt.Sprintf("%.0f%%", conf*100)
}

// FormatVolume formats volume in compact form.
func FormatVolume(volume int64) string {
	v := float64(volume)
	switch {
	case volume >= 1_000_000_000:
		return fmt.Sprintf("%.2fB", v/1_000_000_000)
	case volume >= 1_000_000:
		return fmt.Sprintf("%.2fM", v/1_000_000)
	case volume >= 1_000:
		return fmt.Sprintf("%.2fK", v/1_000)
	}
	return strconv.FormatInt(volume, 10)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// FormatFloat formats an indicator value, showing n/a for undefined ones.
func FormatFloat(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
