package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// Theme colors for the TUI.
var (
	ColorBackground      = tcell.NewHexColor(0x1e1e2e)
	ColorBackgroundPanel = tcell.NewHexColor(0x181825)
	ColorBackgroundElem  = tcell.NewHexColor(0x313244)
	ColorPrimary         = tcell.NewHexColor(0x89b4fa) // blue
	ColorAccent          = tcell.NewHexColor(0xcba6f7) // mauve
	ColorText            = tcell.NewHexColor(0xcdd6f4)
	ColorTextMuted       = tcell.NewHexColor(0x6c7086)
	ColorSuccess         = tcell.NewHexColor(0xa6e3a1) // green
	ColorWarning         = tcell.NewHexColor(0xf9e2af) // yellow
	ColorError           = tcell.NewHexColor(0xf38ba8) // red
	ColorBorder          = tcell.NewHexColor(0x45475a)
)

// ConnStatus is the state of the server connection as shown in the header.
type ConnStatus string

const (
	StatusConnecting   ConnStatus = "connecting"
	StatusConnected    ConnStatus = "connected"
	StatusDisconnected ConnStatus = "disconnected"
	StatusError        ConnStatus = "error"
)

// Status icons
const (
	IconConnected    = "●"
	IconConnecting   = "◐"
	IconDisconnected = "○"
	IconError        = "✗"
)

func StatusIcon(status ConnStatus) (string, tcell.Color) {
	switch status {
	case StatusConnected:
		return IconConnected, ColorSuccess
	case StatusConnecting:
		return IconConnecting, ColorWarning
	case StatusError:
		return IconError, ColorError
	default:
		return IconDisconnected, ColorTextMuted
	}
}

// colorTag returns a tview dynamic color tag for c.
func colorTag(c tcell.Color) string {
	return fmt.Sprintf("[#%06x]", c.Hex())
}
