package ordertext

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/heididzukai26/telegram-bot-manager/internal/model"
)

// CP amounts outside this range are treated as noise (phone numbers,
// timestamps, message IDs quoted in the order text).
const (
	minCPAmount = 100
	maxCPAmount = 1_000_000
)

var commaNumber = regexp.MustCompile(`(\d+),(\d+)`)

// Ordered strictest-first: an explicit CP marker wins over a number that
// merely sits next to an order-type keyword.
var cpPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s*(?:cp|سی\s*پی|سی‌پی|c\.?p)\b`),
	regexp.MustCompile(`(\d+)\s*(?:unsafe|آنسیف|انسیف|زمانبر)`),
	regexp.MustCompile(`(\d+)\s*(?:fund|فاند|صندوق)`),
	regexp.MustCompile(`(\d+)\s*(?:safe|سیف|fast|فست|سریع)`),
	regexp.MustCompile(`(\d+)\s*(?:slow|اسلو|آهسته)`),
	regexp.MustCompile(`(?:cp|سی\s*پی)\s*[:=]?\s*(\d+)`),
	regexp.MustCompile(`(?:need|نیاز)\s+(?:به\s+)?(\d+)`),
}

var bareNumber = regexp.MustCompile(`\b(\d{3,7})\b`)

// ExtractCPAmount parses the first explicit CP indicator in the order text.
// Returns 0 when no plausible amount is found; 0 is the missing sentinel.
func ExtractCPAmount(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	normalized := strings.ToLower(strings.TrimSpace(text))
	// Collapse digit-grouping commas ("1,000,000" -> "1000000").
	for commaNumber.MatchString(normalized) {
		normalized = commaNumber.ReplaceAllString(normalized, "$1$2")
	}

	for _, p := range cpPatterns {
		m := p.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		amount, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if amount >= minCPAmount && amount <= maxCPAmount {
			return amount
		}
	}

	// Fallback: a single in-range number in the whole text is very likely
	// the CP amount even without an explicit marker.
	var candidates []int
	for _, m := range bareNumber.FindAllStringSubmatch(normalized, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n >= minCPAmount && n <= maxCPAmount {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	return 0
}

// TypeDetector decides the order type for a piece of order text. The
// heuristic is deliberately pluggable so the scoring strategy can be swapped
// without touching admission control.
type TypeDetector interface {
	Detect(text string) (model.OrderType, bool)
}

// KeywordDetector matches order types by keyword co-occurrence with a fixed
// priority: unsafe > fund > safe_slow > safe_fast. The priority prevents
// misclassification when several keywords appear in one order.
type KeywordDetector struct{}

var (
	unsafeKeywords = []string{"unsafe", "unsaf", "آنسیف", "انسیف", "زمانبر", "خطرناک"}
	fundKeywords   = []string{"fund", "فاند", "صندوق", "95%", "safe 95", "safe95", "safe_95"}

	slowKeywords = []string{"slow", "اسلو", "آهسته"}
	fastKeywords = []string{"fast", "فست", "سریع"}
	safeKeywords = []string{"safe", "سیف"}
)

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func (KeywordDetector) Detect(text string) (model.OrderType, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	t := strings.ToLower(text)

	if containsAny(t, unsafeKeywords) {
		return model.TypeUnsafe, true
	}
	if containsAny(t, fundKeywords) {
		return model.TypeFund, true
	}

	// Explicit compound forms take precedence over keyword co-occurrence.
	if strings.Contains(t, "safe slow") || strings.Contains(t, "سیف اسلو") || strings.Contains(t, "safe_slow") {
		return model.TypeSafeSlow, true
	}
	if containsAny(t, slowKeywords) && containsAny(t, safeKeywords) {
		return model.TypeSafeSlow, true
	}

	if strings.Contains(t, "safe fast") || strings.Contains(t, "سیف فست") || strings.Contains(t, "safe_fast") {
		return model.TypeSafeFast, true
	}
	if containsAny(t, fastKeywords) && containsAny(t, safeKeywords) {
		return model.TypeSafeFast, true
	}

	// A bare "safe" defaults to the fast variant.
	if containsAny(t, safeKeywords) {
		return model.TypeSafeFast, true
	}

	return "", false
}

// ExtractOrderType runs the default keyword detector over the order text.
func ExtractOrderType(text string) (model.OrderType, bool) {
	return KeywordDetector{}.Detect(text)
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)

// IsValidOrder applies the structural format check: at least three lines,
// an email address for delivery, and an extractable CP amount and type.
func IsValidOrder(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 3 {
		slog.Debug("order text too short", "lines", len(lines))
		return false
	}

	if !emailPattern.MatchString(text) {
		slog.Debug("order text missing email address")
		return false
	}

	if ExtractCPAmount(text) == 0 {
		return false
	}
	if _, ok := ExtractOrderType(text); !ok {
		return false
	}

	return true
}
