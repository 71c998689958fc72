package ui

import (
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/streamsim/internal/session"
	"github.com/zsprackett/streamsim/internal/ui/dialogs"
	"github.com/zsprackett/streamsim/internal/view"
)

type App struct {
	tapp   *tview.Application
	pages  *tview.Pages
	home   *Home
	sess   *session.Session
	logger *slog.Logger
	dirty  chan struct{}
	stop   chan struct{}
}

// NewApp builds the terminal UI for a started session.
func NewApp(sess *session.Session, endpoint string, logger *slog.Logger) *App {
	a := &App{
		sess:   sess,
		logger: logger,
		dirty:  make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}

	a.tapp = tview.NewApplication()
	a.pages = tview.NewPages()
	a.home = NewHome(a.tapp, endpoint)
	a.home.SetStatus(StatusConnected)

	a.pages.AddPage("home", a.home, true, true)
	a.tapp.SetRoot(a.pages, true).EnableMouse(false)
	a.tapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == '?' {
			a.toggleHelp()
			return nil
		}
		return event
	})

	v := sess.View()
	a.home.SetCallbacks(
		v.StartStream,
		v.Increment,
		v.Decrement,
		func() { a.tapp.Stop() },
	)
	// Observers fire on the key handler's goroutine as well as the socket's,
	// so they only mark the view dirty; watch does the redraw.
	v.OnChange(func(view.Change) { a.markDirty() })

	return a
}

func (a *App) Run() error {
	a.refresh()
	go a.watch()
	defer close(a.stop)
	return a.tapp.Run()
}

// markDirty requests a redraw. Requests coalesce and are dropped once the
// app has stopped.
func (a *App) markDirty() {
	select {
	case <-a.stop:
		return
	default:
	}
	select {
	case a.dirty <- struct{}{}:
	default:
	}
}

func (a *App) refresh() {
	a.home.Update(a.sess.View().Render())
	a.home.SetLastUpdate(a.sess.LastUpdate())
}

func (a *App) watch() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case <-a.dirty:
			a.tapp.QueueUpdateDraw(a.refresh)
		case <-ticker.C:
			a.tapp.QueueUpdateDraw(a.home.Tick)
		case <-a.sess.Done():
			status := StatusDisconnected
			if err := a.sess.Err(); err != nil {
				a.logger.Warn("connection lost", "err", err)
				status = StatusError
			}
			a.tapp.QueueUpdateDraw(func() { a.home.SetStatus(status) })
			return
		}
	}
}

func (a *App) showDialog(name string, widget tview.Primitive, width, height int) {
	modal := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexColumn).
			AddItem(nil, 0, 1, false).
			AddItem(widget, width, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(nil, 0, 1, false)
	a.pages.AddPage(name, modal, true, true)
	a.tapp.SetFocus(widget)
}

func (a *App) closeDialog(name string) {
	a.pages.RemovePage(name)
	a.tapp.SetFocus(a.home.table)
}

func (a *App) toggleHelp() {
	if a.pages.HasPage("help") {
		a.closeDialog("help")
		return
	}
	help := dialogs.HelpDialog(func() {
		a.closeDialog("help")
	})
	a.showDialog("help", help, 60, 22)
}
