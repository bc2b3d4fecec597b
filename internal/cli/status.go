package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/llehouerou/soundplayer/internal/playback"
)

const barWidth = 30

// stateIcons are shown in front of the status line.
var stateIcons = map[playback.State]string{
	playback.StateLoading:  "…",
	playback.StatePlaying:  "▶",
	playback.StatePaused:   "⏸",
	playback.StateFinished: "■",
	playback.StateError:    "✗",
}

// StatusLine renders one line describing the session in info.
func StatusLine(info playback.Info) string {
	var b strings.Builder

	icon := stateIcons[info.State]
	if icon == "" {
		icon = "·"
	}
	b.WriteString(TitleStyle.Render(icon))
	b.WriteString(" ")

	pos := FormatDuration(info.Position)
	if info.Duration.Known() {
		b.WriteString(ValueStyle.Render(pos + " / " + FormatDuration(info.Duration.Value)))
		b.WriteString(" ")
		b.WriteString(ProgressBar(ratio(info.Position, info.Duration.Value), barWidth))
	} else {
		b.WriteString(ValueStyle.Render(pos))
	}

	if info.Source.Kind != playback.SourceFile {
		b.WriteString(" ")
		b.WriteString(KeyStyle.Render(FormatBytes(info.TotalBytes)))
	}
	if info.Bitrate > 0 {
		b.WriteString(" ")
		b.WriteString(KeyStyle.Render(fmt.Sprintf("%d kbps", info.Bitrate/1000)))
	}
	if info.LoopsRemaining != 0 {
		b.WriteString(" ")
		b.WriteString(KeyStyle.Render(loopLabel(info.LoopsRemaining)))
	}
	return b.String()
}

func ratio(pos, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return float64(pos) / float64(total)
}

func loopLabel(n int) string {
	if n < 0 {
		return "↻ ∞"
	}
	return fmt.Sprintf("↻ %d", n)
}

// DescribeSource renders where a session plays from.
func DescribeSource(src playback.Source) string {
	loc := src.Location()
	if src.Encrypted() {
		return loc + " " + SubtitleStyle.Render("(encrypted)")
	}
	return loc
}
