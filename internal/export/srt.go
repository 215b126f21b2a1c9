package export

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"

	"scribe/internal/engine"
)

// Cue is one parsed subtitle block.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// SRT renders segments as SubRip blocks numbered from 1. Timestamps truncate
// to the millisecond.
func SRT(segments []engine.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteByte('\n')
		b.WriteString(FormatSRTTimestamp(seg.Start))
		b.WriteString(" --> ")
		b.WriteString(FormatSRTTimestamp(seg.End))
		b.WriteByte('\n')
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteString("\n\n")
	}
	return b.String()
}

// FormatSRTTimestamp renders seconds as HH:MM:SS,mmm. Negative input renders
// as zero.
func FormatSRTTimestamp(seconds float64) string {
	return formatTimestamp(seconds, ',')
}

func formatTimestamp(seconds float64, sep byte) string {
	ms := truncateMillis(seconds)
	hours := ms / 3_600_000
	minutes := (ms % 3_600_000) / 60_000
	secs := (ms % 60_000) / 1000
	millis := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, secs, sep, millis)
}

// truncateMillis converts seconds to whole milliseconds, dropping any
// sub-millisecond part. The small bias absorbs binary representation error
// so 1.001 stays 1001ms.
func truncateMillis(seconds float64) int64 {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	return int64(math.Floor(seconds*1000 + 1e-6))
}

// ParseSRT reads SubRip text back into cues.
func ParseSRT(content string) ([]Cue, error) {
	var cues []Cue
	scanner := bufio.NewScanner(strings.NewReader(strings.ReplaceAll(content, "\r\n", "\n")))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var block []string
	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		cue, err := parseBlock(block)
		block = block[:0]
		if err != nil {
			return err
		}
		cues = append(cues, cue)
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		block = append(block, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return cues, nil
}

func parseBlock(lines []string) (Cue, error) {
	if len(lines) < 2 {
		return Cue{}, fmt.Errorf("srt block %q: missing timing line", strings.Join(lines, " "))
	}
	index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return Cue{}, fmt.Errorf("srt block index %q: %w", lines[0], err)
	}
	parts := strings.Split(lines[1], "-->")
	if len(parts) != 2 {
		return Cue{}, fmt.Errorf("srt block %d: invalid timing line %q", index, lines[1])
	}
	start, err := ParseTimestamp(parts[0])
	if err != nil {
		return Cue{}, fmt.Errorf("srt block %d: %w", index, err)
	}
	end, err := ParseTimestamp(parts[1])
	if err != nil {
		return Cue{}, fmt.Errorf("srt block %d: %w", index, err)
	}
	return Cue{
		Index: index,
		Start: start,
		End:   end,
		Text:  strings.Join(lines[2:], "\n"),
	}, nil
}

// ParseTimestamp parses HH:MM:SS,mmm (or HH:MM:SS.mmm) into seconds.
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	totalMillis := int64(hours)*3_600_000 + int64(minutes)*60_000 + int64(seconds)*1000 + int64(millis)
	return float64(totalMillis) / 1000, nil
}
