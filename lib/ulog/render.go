// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package ulog

import (
	"fmt"
	"strings"
	"time"

	"github.com/muesli/termenv"
)

// levelChars maps an entry level to its display character.
var levelChars = [8]byte{' ', ' ', 'C', 'E', 'W', 'N', 'I', 'D'}

// levelStyle returns the classic ulog color for a level: critical is
// underlined bold red, error bold red, warning bold yellow, notice
// magenta, debug bold black. Info and below stay unstyled.
func levelStyle(out *termenv.Output, level int) termenv.Style {
	switch level & 7 {
	case 2:
		return out.String().Underline().Bold().Foreground(termenv.ANSIRed)
	case 3:
		return out.String().Bold().Foreground(termenv.ANSIRed)
	case 4:
		return out.String().Bold().Foreground(termenv.ANSIYellow)
	case 5:
		return out.String().Foreground(termenv.ANSIMagenta)
	case 7:
		return out.String().Bold().Foreground(termenv.ANSIBlack)
	}
	return out.String()
}

// splitTimestamp splits microseconds into whole seconds and the
// non-negative remainder, flooring for timestamps before the epoch.
func splitTimestamp(ts int64) (sec, rem int64) {
	sec = ts / 1000000
	rem = ts % 1000000
	if rem < 0 {
		sec--
		rem += 1000000
	}
	return sec, rem
}

// Render writes the entry to out in the ulog text layout, one output
// line per message line. Binary entries render as a single BINARY
// line. Colors follow the profile of out.
func (e *Entry) Render(out *termenv.Output) error {
	sec, rem := splitTimestamp(e.Timestamp)
	utc := time.Unix(sec, 0).UTC()

	var info string
	switch {
	case e.TName != "":
		info = fmt.Sprintf("%-12s(%s-%d/%s-%d)", e.Tag, e.PName, e.PID, e.TName, e.TID)
	case e.PName != "":
		info = fmt.Sprintf("%-12s(%s-%d)", e.Tag, e.PName, e.PID)
	default:
		info = fmt.Sprintf("%-12s", e.Tag)
	}
	header := fmt.Sprintf("%c %s.%03d %c %-45s",
		e.Domain, utc.Format("01-02 15:04:05"), rem/1000,
		levelChars[e.Level&7], info)

	style := levelStyle(out, e.Level)
	if e.Binary {
		_, err := fmt.Fprintln(out, style.Styled(header+": BINARY"))
		return err
	}
	for _, line := range strings.Split(e.Msg, "\n") {
		if _, err := fmt.Fprintln(out, style.Styled(header+": "+line)); err != nil {
			return err
		}
	}
	return nil
}
