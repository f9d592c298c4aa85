package main

import (
	"fmt"
	"io"

	"golang.org/x/term"
)

func isTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// printBanner writes the gopgadmin ASCII art. useColor adds a green to yellow
// ANSI gradient.
func printBanner(w io.Writer, useColor bool) {
	lines := []string{
		``,
		`   __ _  ___  _ __   __ _  __ _  __| |_ __ ___ (_)_ __   `,
		`  / _' |/ _ \| '_ \ / _' |/ _' |/ _' | '_ ' _ \| | '_ \  `,
		` | (_| | (_) | |_) | (_| | (_| | (_| | | | | | | | | | | `,
		`  \__, |\___/| .__/ \__, |\__,_|\__,_|_| |_| |_|_|_| |_| `,
		`  |___/      |_|    |___/                                `,
		``,
	}

	if !useColor {
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
		return
	}

	colors := []string{
		"\033[1;32m",
		"\033[1;32m",
		"\033[1;92m",
		"\033[1;33m",
		"\033[1;93m",
		"\033[1;93m",
		"\033[0m",
	}
	for i, line := range lines {
		fmt.Fprintf(w, "%s%s\033[0m\n", colors[i%len(colors)], line)
	}
}
