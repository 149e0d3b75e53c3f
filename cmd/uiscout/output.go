package main

import (
	"fmt"
	"os"
)

// Status lines go to stderr so command output on stdout stays pipeable.
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + ansiReset
}

func stderrLine(color, marker, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(color, marker+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { stderrLine(ansiGreen, "✓", format, args...) }

func printError(format string, args ...any) { stderrLine(ansiRed, "✗", format, args...) }

func printWarning(format string, args ...any) { stderrLine(ansiYellow, "⚠", format, args...) }

func printStep(format string, args ...any) { stderrLine(ansiCyan, "→", format, args...) }

// printStatus renders one "Label: value" row of the status report.
func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n",
		colorize(ansiBold, label+":"),
		fmt.Sprintf(format, args...))
}

// shortID abbreviates an id for table output. Derived ids are 32 hex
// characters, but caller-supplied ids can be arbitrarily short.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
