package ui

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/streamsim/internal/view"
)

// Home is the main screen: header, counter, records table and key hints.
type Home struct {
	*tview.Flex
	app     *tview.Application
	header  *tview.TextView
	counter *tview.TextView
	table   *tview.Table
	footer  *tview.TextView

	endpoint   string
	status     ConnStatus
	lastUpdate time.Time

	onStart     func()
	onIncrement func()
	onDecrement func()
	onQuit      func()
}

func NewHome(app *tview.Application, endpoint string) *Home {
	h := &Home{app: app, endpoint: endpoint, status: StatusConnecting}

	h.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	h.header.SetBackgroundColor(ColorBackgroundPanel)

	h.counter = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	h.counter.SetBackgroundColor(ColorBackground)

	h.table = tview.NewTable().
		SetFixed(1, 0).
		SetSelectable(true, false).
		SetSelectedStyle(tcell.StyleDefault.
			Background(ColorPrimary).
			Foreground(ColorBackground))
	h.table.SetBackgroundColor(ColorBackground)
	h.table.SetBorder(true).
		SetBorderColor(ColorBorder).
		SetTitle(" records ").
		SetTitleAlign(tview.AlignLeft)

	h.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	h.footer.SetBackgroundColor(ColorBackgroundPanel)
	h.footer.SetText(
		"[green]s[-] start stream  [green]+/→[-] increment  [green]-/←[-] decrement  " +
			"[green]↑↓[-] scroll  [green]?[-] help  [green]q[-] quit")

	h.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(h.header, 1, 0, false).
		AddItem(h.counter, 3, 0, false).
		AddItem(h.table, 0, 1, true).
		AddItem(h.footer, 1, 0, false)

	h.setupInput()
	h.updateHeader()
	return h
}

func (h *Home) SetCallbacks(onStart, onIncrement, onDecrement, onQuit func()) {
	h.onStart = onStart
	h.onIncrement = onIncrement
	h.onDecrement = onDecrement
	h.onQuit = onQuit
}

// Update redraws the counter and the records table from t.
func (h *Home) Update(t view.Table) {
	h.counter.SetText(fmt.Sprintf("\n%s%d[-]", colorTag(ColorAccent), t.Counter))
	h.renderTable(t)
}

func (h *Home) SetStatus(status ConnStatus) {
	h.status = status
	h.updateHeader()
}

func (h *Home) SetLastUpdate(at time.Time) {
	h.lastUpdate = at
	h.updateHeader()
}

// Tick refreshes time-relative text.
func (h *Home) Tick() {
	h.updateHeader()
}

func (h *Home) renderTable(t view.Table) {
	row, _ := h.table.GetSelection()
	h.table.Clear()
	for col, name := range t.Header {
		h.table.SetCell(0, col, tview.NewTableCell(name).
			SetTextColor(ColorPrimary).
			SetBackgroundColor(ColorBackgroundElem).
			SetExpansion(1).
			SetSelectable(false))
	}
	for i, cells := range t.Rows {
		for col, text := range cells {
			h.table.SetCell(i+1, col, tview.NewTableCell(text).
				SetTextColor(ColorText).
				SetBackgroundColor(ColorBackground).
				SetExpansion(1))
		}
	}

	// Clamp selection
	if row > len(t.Rows) {
		row = len(t.Rows)
	}
	if row < 1 {
		row = 1
	}
	if len(t.Rows) > 0 {
		h.table.Select(row, 0)
	}
}

func (h *Home) updateHeader() {
	h.header.SetText(headerText(h.status, h.endpoint, h.lastUpdate, time.Now()))
}

func headerText(status ConnStatus, endpoint string, last, now time.Time) string {
	icon, color := StatusIcon(status)
	updated := "no records yet"
	if !last.IsZero() {
		updated = "last update " + humanize.RelTime(last, now, "ago", "from now")
	}
	return fmt.Sprintf("[blue]STREAMING SIMULATOR[-]   %s%s %s[-]  %s  %s%s[-]",
		colorTag(color), icon, status, endpoint, colorTag(ColorTextMuted), updated)
}

func (h *Home) setupInput() {
	h.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyRight:
			call(h.onIncrement)
			return nil
		case tcell.KeyLeft:
			call(h.onDecrement)
			return nil
		}

		switch event.Rune() {
		case 's':
			call(h.onStart)
			return nil
		case '+', '=':
			call(h.onIncrement)
			return nil
		case '-', '_':
			call(h.onDecrement)
			return nil
		case 'q':
			call(h.onQuit)
			return nil
		}
		return event
	})
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}
