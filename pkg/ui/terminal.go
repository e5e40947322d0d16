package ui

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/term"
)

// Banner printed when a run starts on a terminal
const Banner = `
    ┌──────────────────────────────────────────┐
    │  imgharvest · manifest image downloader  │
    └──────────────────────────────────────────┘
`

var colorEnabled atomic.Bool

func init() {
	colorEnabled.Store(true)
}

// SetColorEnabled turns ANSI colors on or off for every print helper
func SetColorEnabled(enabled bool) {
	colorEnabled.Store(enabled)
}

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		if !colorEnabled.Load() {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// PrintBanner prints the banner in cyan
func PrintBanner(w io.Writer) {
	fmt.Fprint(w, Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(os.Stderr, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(os.Stderr, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Println(Green(msg))
}

// PrintInfo prints an info message in cyan
func PrintInfo(label string, value string) {
	fmt.Printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Println(Yellow(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Println(Yellow(msg))
	}
}

// PrintSummary prints the final "Done. Saved: N, failed: M" line. Skipped rows
// are appended only when there were any.
func PrintSummary(w io.Writer, saved, failed, skipped int) {
	line := fmt.Sprintf("Done. Saved: %s, failed: %s",
		Green(fmt.Sprint(saved)),
		Red(fmt.Sprint(failed)))
	if skipped > 0 {
		line += fmt.Sprintf(", skipped: %s", Yellow(fmt.Sprint(skipped)))
	}
	fmt.Fprintln(w, line)
}
