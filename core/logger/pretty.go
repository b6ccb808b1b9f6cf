package logger

import "github.com/fatih/color"

var levelColors = map[string]*color.Color{
	LevelDebug: color.New(color.FgHiBlack),
	LevelInfo:  color.New(color.FgCyan),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed, color.Bold),
	LevelFatal: color.New(color.FgHiRed, color.Bold),
}

var (
	eventColor  = color.New(color.FgGreen)
	screenColor = color.New(color.FgMagenta)
)

// encodePretty is encodeKV with colored level, event and screen values.
// color.NoColor disables escapes when stdout is not a terminal.
func encodePretty(rec record, order []string) ([]byte, error) {
	return encodePairs(rec, order, func(key, val string) string {
		switch key {
		case "level":
			if c, ok := levelColors[val]; ok {
				return c.Sprint(val)
			}
		case "event":
			return eventColor.Sprint(val)
		case "screen", "next_state":
			return screenColor.Sprint(val)
		}
		return val
	}), nil
}
