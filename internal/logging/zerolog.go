package logging

import (
	"fmt"

	"github.com/rs/zerolog"
)

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorMagenta = 35
	colorBold    = 1
)

type levelStyle struct {
	label  string
	colors []int
}

var levelStyles = map[string]levelStyle{
	zerolog.LevelTraceValue: {"TRACE", []int{colorMagenta}},
	zerolog.LevelDebugValue: {"DEBUG", []int{colorYellow}},
	zerolog.LevelInfoValue:  {"INFO ", []int{colorGreen}},
	zerolog.LevelWarnValue:  {"WARN ", []int{colorRed}},
	zerolog.LevelErrorValue: {"ERROR", []int{colorRed, colorBold}},
	zerolog.LevelFatalValue: {"FATAL", []int{colorRed, colorBold}},
	zerolog.LevelPanicValue: {"PANIC", []int{colorRed, colorBold}},
}

// consoleFormatLevel prints fixed width level names for the console writer.
// Colors are left out when stderr is not a terminal.
func consoleFormatLevel(i interface{}) string {
	l, ok := i.(string)
	if !ok {
		return fmt.Sprintf("%v", i)
	}

	style, ok := levelStyles[l]
	if !ok {
		style = levelStyle{"?????", []int{colorBold}}
	}

	if !isTerminal() {
		return style.label
	}

	out := style.label
	for _, c := range style.colors {
		out = fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, out)
	}
	return out
}
