package engine

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/heididzukai26/telegram-bot-manager/internal/model"
)

// Social-filler replies that must never be attributed to an order. Matched
// whole-word against the trimmed, case-folded text.
var falsePositiveReplies = []*regexp.Regexp{
	regexp.MustCompile(`^ok\.?$`),
	regexp.MustCompile(`^yes\.?$`),
	regexp.MustCompile(`^no\.?$`),
	regexp.MustCompile(`^thanks?\.?$`),
	regexp.MustCompile(`^hi\.?$`),
	regexp.MustCompile(`^hello\.?$`),
	regexp.MustCompile(`^bye\.?$`),
}

// isValidWorkerReply decides whether a reply is authentically responding to
// the order. The pipeline is fail-fast and its order is fixed; each stage
// targets a distinct false-match vector: replay, wrong thread, decay, noise,
// accidental taps, social filler. Total function, never errors.
func (m *Manager) isValidWorkerReply(reply model.WorkerReply, order model.Order) bool {
	if m.isProcessed(reply.MessageID) {
		slog.Warn("reply rejected: already processed", "message_id", reply.MessageID)
		return false
	}

	// Primary false-positive guard: an unrelated message in the same
	// channel must never be matched to the order.
	if reply.ReplyToMessageID != order.ReplyMessageID {
		slog.Debug("reply rejected: wrong target message",
			"message_id", reply.MessageID,
			"reply_to", reply.ReplyToMessageID,
			"want", order.ReplyMessageID)
		return false
	}

	if age := m.clock.Now().Sub(reply.Timestamp); age > m.cfg.Validator.StalenessWindow {
		slog.Warn("reply rejected: stale", "message_id", reply.MessageID, "age", age)
		return false
	}

	trimmed := strings.TrimSpace(reply.Text)
	if trimmed == "" && len(reply.Photos) == 0 {
		slog.Debug("reply rejected: no meaningful content", "message_id", reply.MessageID)
		return false
	}

	if trimmed != "" {
		lowered := strings.ToLower(trimmed)

		if utf8.RuneCountInString(lowered) < m.cfg.Validator.MinReplyLength {
			slog.Debug("reply rejected: text too short", "message_id", reply.MessageID, "text", lowered)
			return false
		}

		for _, p := range falsePositiveReplies {
			if p.MatchString(lowered) {
				slog.Debug("reply rejected: false-positive pattern", "message_id", reply.MessageID, "text", lowered)
				return false
			}
		}
	}

	slog.Info("reply validated", "message_id", reply.MessageID, "order_id", order.OrderID)
	return true
}
