package main

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/client/uploader"
	progressbar "github.com/cheggaaa/pb/v3"
)

const barTemplate = `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{string . "suffix"}}`

// progressBars renders one bar per file with the coordinator's smoothed speed and ETA.
type progressBars struct {
	out     io.Writer
	bar     *progressbar.ProgressBar
	current int
}

func newProgressBars(out io.Writer) *progressBars {
	return &progressBars{out: out, current: -1}
}

func (b *progressBars) update(p uploader.Progress) {
	if p.FileIndex != b.current || b.bar == nil {
		b.finish()
		b.current = p.FileIndex
		b.bar = progressbar.New64(p.Total).SetTemplate(progressbar.ProgressBarTemplate(barTemplate)).
			SetWriter(b.out).
			Set(progressbar.Bytes, true).
			Set("prefix", fmt.Sprintf("[%d/%d] %s ", p.FileIndex+1, p.FileCount, p.File))
		b.bar.Start()
	}

	current := p.Sent
	if p.State != uploader.StateDone && p.Total > 0 {
		// Hold the bar below 100% until the gateway confirms the finalize.
		current = min(current, p.Total*int64(p.Percent)/100)
	}
	b.bar.SetCurrent(current)

	switch p.State {
	case uploader.StateFinalizing:
		b.bar.Set("suffix", "finalizing")
	case uploader.StateDone:
		b.bar.Set("suffix", "done")
	default:
		b.bar.Set("suffix", fmt.Sprintf("%s/s ETA %s", formatBytes(p.BytesPerSecond), formatETA(p.ETA)))
	}
}

func (b *progressBars) finish() {
	if b.bar != nil {
		b.bar.Finish()
		b.bar = nil
	}
}

func formatBytes(n float64) string {
	if n <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	i := min(int(math.Log(n)/math.Log(1024)), len(units)-1)
	return fmt.Sprintf("%.2f %s", n/math.Pow(1024, float64(i)), units[i])
}

func formatETA(d time.Duration) string {
	if d <= 0 {
		return "--"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(math.Ceil(d.Seconds())))
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(math.Ceil(math.Mod(d.Seconds(), 60))))
}
