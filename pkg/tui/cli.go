// Package tui renders pipeline progress and summaries on the terminal.
// Simple streaming output, no full-screen TUI.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/apppulse/apppulse/internal/model"
	"github.com/apppulse/apppulse/pkg/loader"
	"github.com/apppulse/apppulse/pkg/pipeline"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
)

// PrintHeader prints the tool banner.
func PrintHeader(version string) {
	fmt.Println()
	fmt.Println(titleStyle.Render("  APPPULSE") + mutedStyle.Render(" v"+version))
	fmt.Println(mutedStyle.Render("  App catalog pipeline and dashboard"))
	fmt.Println()
}

// PrintLoadResult prints the outcome of one source load.
func PrintLoadResult(name string, res *loader.Result) {
	fmt.Println()
	fmt.Println(successStyle.Render("  ✓ " + name + " LOADED"))
	fmt.Println()
	fmt.Printf("  %s %s\n", mutedStyle.Render("Source:"), titleStyle.Render(res.SourcePath))
	fmt.Printf("  %s %s read, %s loaded\n",
		mutedStyle.Render("Rows:"),
		titleStyle.Render(formatNumber(int64(res.RowsRead))),
		titleStyle.Render(formatNumber(res.RowsLoaded)))

	dropped := 0
	for _, n := range res.Dropped {
		dropped += n
	}
	if dropped > 0 {
		fmt.Printf("  %s %s\n",
			mutedStyle.Render("Dropped:"),
			accentStyle.Render(formatNumber(int64(dropped))))
	}

	if res.Duration > 0 {
		throughput := float64(res.RowsRead) / res.Duration.Seconds()
		fmt.Printf("  %s %s %s\n",
			mutedStyle.Render("Time:"),
			titleStyle.Render(formatDuration(res.Duration)),
			mutedStyle.Render(fmt.Sprintf("(%s rows/sec)", formatNumber(int64(throughput)))))
	}
	fmt.Println()
}

// PrintStageSummary prints one line per pipeline stage.
func PrintStageSummary(results []pipeline.StageResult) {
	fmt.Println()
	for _, r := range results {
		mark := successStyle.Render("✓")
		detail := formatDuration(r.Duration)
		if !r.Succeeded() {
			mark = accentStyle.Render("✗")
			detail = r.Err.Error()
		}
		attempts := ""
		if r.Attempts > 1 {
			attempts = mutedStyle.Render(fmt.Sprintf(" (%d attempts)", r.Attempts))
		}
		fmt.Printf("  %s %s %s%s\n", mark, titleStyle.Render(r.Name), mutedStyle.Render(detail), attempts)
	}
	fmt.Println()
}

// PrintDashboardSummary prints the headline metrics for a category.
func PrintDashboardSummary(data *model.DashboardData) {
	category := data.Category
	if category == "" {
		category = "All Categories"
	}

	fmt.Println()
	fmt.Println(mutedStyle.Render("  ─────────────────────────────────────"))
	fmt.Printf("  %s\n", titleStyle.Render(category))
	fmt.Println(mutedStyle.Render("  ─────────────────────────────────────"))

	if data.Empty {
		fmt.Println(mutedStyle.Render("  No apps match this category."))
		fmt.Println()
		return
	}

	fmt.Printf("  %s %s\n", mutedStyle.Render("Apps:"), titleStyle.Render(formatNumber(data.KPIs.DistinctApps)))
	fmt.Printf("  %s %s\n", mutedStyle.Render("Avg rating:"), titleStyle.Render(fmt.Sprintf("%.2f", data.KPIs.AverageRating)))
	fmt.Printf("  %s %s\n", mutedStyle.Render("Installs:"), titleStyle.Render(data.KPIs.InstallsDisplay))

	if len(data.RankedApps) > 0 {
		fmt.Println()
		fmt.Println(accentStyle.Render("  ▸ TOP RATED"))
		for i, app := range data.RankedApps {
			fmt.Printf("  %s %s %s\n",
				mutedStyle.Render(fmt.Sprintf("%2d.", i+1)),
				titleStyle.Render(app.Name),
				mutedStyle.Render(fmt.Sprintf("%.2f", app.Rating)))
		}
	}
	fmt.Println()
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// ShowProgress creates a progress bar for row loading.
func ShowProgress(total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// Spinner shows a simple loading indicator until done is closed.
func Spinner(message string, done chan bool) {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	i := 0
	for {
		select {
		case <-done:
			fmt.Printf("\r%s %s\n", successStyle.Render("✓"), message)
			return
		default:
			fmt.Printf("\r%s %s", accentStyle.Render(frames[i]), message)
			i = (i + 1) % len(frames)
			time.Sleep(80 * time.Millisecond)
		}
	}
}
