package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	` _       _            _           _      `,
	`(_)_ __ | |_ ___ _ __| |_   _  __| | ___ `,
	`| | '_ \| __/ _ \ '__| | | | |/ _' |/ _ \`,
	`| | | | | ||  __/ |  | | |_| | (_| |  __/`,
	`|_|_| |_|\__\___|_|  |_|\__,_|\__,_|\___|`,
}

var bannerColors = []string{"#38bdf8", "#22d3ee", "#2dd4bf", "#34d399", "#a3e635"}

// PrintBanner writes the colored banner and the version line to w.
// Colors are dropped when w is not a terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)

	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, out.String(line).Foreground(out.Color(bannerColors[i])))
	}
	fmt.Fprintln(w, out.String("  v"+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}
