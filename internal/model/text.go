package model

import (
	"fmt"
	"strings"
)

const textCellWidth = 4

// RenderText draws the view as a fixed-width grid for terminals. Marked
// days carry a trailing '*'.
func RenderText(v MonthView) string {
	var b strings.Builder
	width := 7*textCellWidth - 1

	pad := (width - len([]rune(v.Title))) / 2
	if pad < 0 {
		pad = 0
	}
	b.WriteString(strings.Repeat(" ", pad) + v.Title + "\n")
	b.WriteString(strings.Join(v.Weekdays, " ") + "\n")

	for _, week := range v.Weeks() {
		var line strings.Builder
		for _, c := range week {
			if c.Blank {
				line.WriteString(strings.Repeat(" ", textCellWidth))
				continue
			}
			mark := " "
			if c.Marked {
				mark = "*"
			}
			fmt.Fprintf(&line, "%3d%s", c.DayOfMonth, mark)
		}
		b.WriteString(strings.TrimRight(line.String(), " ") + "\n")
	}
	return b.String()
}
