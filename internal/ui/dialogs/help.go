package dialogs

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const helpText = `[yellow]Keys[-]

  [green]s[-]        Start stream (send current counter)
  [green]+ = →[-]    Increment counter and request records
  [green]- ←[-]      Decrement counter and request records
  [green]↑/↓[-]      Scroll records
  [green]?[-]        This help
  [green]q[-]        Quit

[yellow]Channels[-]

  [green]my event[-]                heartbeat, every interval
  [green]floating info event[-]     counter, after each change
  [green]floating info response[-]  replaces the records table

Press [green]Escape[-] or [green]?[-] to close.`

func HelpDialog(onClose func()) *tview.TextView {
	tv := tview.NewTextView()
	tv.SetBorder(true).SetTitle(" Help ").SetTitleAlign(tview.AlignLeft)
	tv.SetDynamicColors(true)
	tv.SetBackgroundColor(tcell.ColorDefault)
	tv.SetText(helpText)
	tv.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == '?' {
			onClose()
			return nil
		}
		return event
	})
	return tv
}
