package session

import (
	"fmt"
	"math"
	"strings"
)

type ExportFormat string

const (
	ExportFormatText ExportFormat = "txt"
	ExportFormatSRT  ExportFormat = "srt"
)

func exportFilename(sessionID string, format ExportFormat) string {
	return fmt.Sprintf("transcription_%s.%s", sessionID, format)
}

// formatTranscriptText merges consecutive messages of one speaker into a
// "Speaker: text" paragraph, with a blank line between paragraphs.
func formatTranscriptText(messages []TranscriptMessage) string {
	var (
		blocks  []string
		current string
		texts   []string
	)
	flush := func() {
		if len(texts) > 0 {
			blocks = append(blocks, fmt.Sprintf("%s: %s", current, strings.Join(texts, " ")))
		}
	}
	for _, msg := range messages {
		if len(texts) == 0 || msg.Speaker != current {
			flush()
			current = msg.Speaker
			texts = texts[:0]
		}
		texts = append(texts, msg.Text)
	}
	flush()
	return strings.Join(blocks, "\n\n")
}

func formatTranscriptSRT(messages []TranscriptMessage) string {
	if len(messages) == 0 {
		return ""
	}
	lines := make([]string, 0, len(messages)*4)
	for i, msg := range messages {
		lines = append(lines,
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%s --> %s", formatSRTTimestamp(msg.StartTime), formatSRTTimestamp(msg.EndTime)),
			fmt.Sprintf("[%s] %s", msg.Speaker, msg.Text),
			"",
		)
	}
	return strings.Join(lines, "\n")
}

// formatSRTTimestamp renders seconds as HH:MM:SS,mmm, truncating to the
// millisecond.
func formatSRTTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	whole := math.Floor(seconds)
	total := int64(whole)
	millis := int64((seconds - whole) * 1000)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, millis)
}
