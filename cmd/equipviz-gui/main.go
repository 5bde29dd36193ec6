//go:build gui
// +build gui

package main

// EquipViz desktop GUI
// --------------------
// Optional Fyne front-end for the analysis service. Built behind the `gui`
// tag so default builds stay free of graphical dependencies:
//
//   go build -tags gui -o equipviz-gui ./cmd/equipviz-gui

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	fapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"github.com/Tarrifer/chemical-equipment-visualizer/pkg/api"
	"github.com/Tarrifer/chemical-equipment-visualizer/pkg/config"
	"github.com/Tarrifer/chemical-equipment-visualizer/pkg/report"
	"github.com/Tarrifer/chemical-equipment-visualizer/pkg/session"
	statepkg "github.com/Tarrifer/chemical-equipment-visualizer/pkg/state"
)

// version override via -ldflags "-X main.version=..."
var version = "dev-gui"

// barPalette mirrors the console chart colors, cycled by bar index.
var barPalette = []color.Color{
	color.RGBA{R: 0xff, G: 0x63, B: 0x84, A: 0xff},
	color.RGBA{R: 0x36, G: 0xa2, B: 0xeb, A: 0xff},
	color.RGBA{R: 0xff, G: 0xce, B: 0x56, A: 0xff},
	color.RGBA{R: 0x4b, G: 0xc0, B: 0xc0, A: 0xff},
	color.RGBA{R: 0x99, G: 0x66, B: 0xff, A: 0xff},
	color.RGBA{R: 0xff, G: 0x9f, B: 0x40, A: 0xff},
}

// Runtime encapsulates the live (non-persisted) GUI execution state: the
// session controller that owns the API client, the upload pipeline, the
// transient notice queue, and the persisted application state it saves on
// exit. It is created once per application run.
type Runtime struct {
	mu sync.RWMutex

	cfg       *config.Config
	appState  *statepkg.AppState
	statePath string
	tokens    statepkg.TokenStore

	ctrl       *session.Controller
	uploader   *session.Uploader
	downloader *report.Downloader
	notices    *session.Notices

	historyEntries []api.HistoryEntry
}

// NewRuntime wires the controller, uploader, and downloader around loaded
// config and persisted state. Call this once after state loading.
func NewRuntime(cfg *config.Config, appState *statepkg.AppState, statePath string) *Runtime {
	tokens := statepkg.NewFallbackTokenStore(
		statepkg.NewFileTokenStore(appState, statePath),
		statepkg.NewMemoryTokenStore(),
	)
	factory := func(token string) *api.Client {
		return api.New(api.Config{
			BaseURL: cfg.BaseURL,
			Token:   token,
			Timeout: cfg.RequestTimeout(),
		})
	}
	ctrl := session.NewController(tokens, factory, slog.Default())
	return &Runtime{
		cfg:        cfg,
		appState:   appState,
		statePath:  statePath,
		tokens:     tokens,
		ctrl:       ctrl,
		uploader:   session.NewUploader(ctrl.Client, slog.Default()),
		downloader: report.NewDownloader(ctrl.Client, slog.Default()),
		notices:    session.NewNotices(nil),
	}
}

func main() {
	app := fapp.NewWithID("equipviz.desktop")

	statePath := statepkg.DefaultStatePath()
	appState, err := statepkg.LoadAppState(statePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load state: %v\n", err)
		appState = statepkg.NewDefaultAppState()
	}
	cfg, err := config.Load(config.DefaultConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		cfg = config.Default()
	}

	rt := NewRuntime(cfg, appState, statePath)

	// Apply the persisted theme variant so Fyne picks it up directly.
	switch strings.ToLower(appState.Theme) {
	case statepkg.ThemeLight:
		app.Preferences().SetString("themeVariant", "light")
	default:
		app.Preferences().SetString("themeVariant", "dark")
		rt.appState.Theme = statepkg.ThemeDark
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))
	slog.Info("GUI starting", "version", version, "statePath", statePath, "service", cfg.BaseURL)

	w := app.NewWindow("EquipViz")
	w.Resize(fyne.NewSize(float32(appState.LastWindow.Width), float32(appState.LastWindow.Height)))

	// --- Serialized UI Event Dispatcher ---
	uiQueue := make(chan func(), 256)
	var uiOnce sync.Once
	go func() {
		for fn := range uiQueue {
			// Recover to prevent a single panic from stopping dispatcher
			func() {
				defer func() {
					if r := recover(); r != nil {
						slog.Error("UI dispatcher panic recovered", "error", r)
					}
				}()
				fn()
			}()
		}
	}()
	enqueueUI := func(fn func()) {
		select {
		case uiQueue <- fn:
		default:
			slog.Warn("UI queue full; dropping oldest event")
			<-uiQueue
			uiQueue <- fn
		}
	}

	ui := newAppUI(app, w, rt, enqueueUI)
	w.SetContent(ui.root)
	ui.refreshView()
	ui.startNoticeSweeper()

	w.SetCloseIntercept(func() {
		slog.Info("Window closing - saving state")
		saveState(rt)
		ui.stopNoticeSweeper()
		uiOnce.Do(func() { close(uiQueue) })
		app.Quit()
	})

	w.ShowAndRun()
}

// ----- UI Composition -----

// appUI owns the three view containers and swaps them according to the
// controller's current view.
type appUI struct {
	app       fyne.App
	win       fyne.Window
	rt        *Runtime
	enqueueUI func(func())

	root      *fyne.Container
	noticeBar *widget.Label

	// dashboard widgets updated when a new result arrives
	summaryTotal    *widget.Label
	summaryFlowrate *widget.Label
	summaryPressure *widget.Label
	summaryTemp     *widget.Label
	chartBox        *fyne.Container
	historyBox      *fyne.Container

	sweepStop chan struct{}
}

func newAppUI(app fyne.App, w fyne.Window, rt *Runtime, enqueueUI func(func())) *appUI {
	ui := &appUI{
		app:       app,
		win:       w,
		rt:        rt,
		enqueueUI: enqueueUI,
		noticeBar: widget.NewLabel(""),
		root:      container.NewStack(),
		sweepStop: make(chan struct{}),
	}
	ui.noticeBar.Alignment = fyne.TextAlignCenter

	// Every new analysis result repaints summary and chart together.
	rt.uploader.Subscribe(func(res *api.UploadResult) {
		ui.enqueueUI(func() {
			ui.renderSummary(res)
			ui.renderChart(res)
		})
	})
	return ui
}

// refreshView swaps the visible view to match the session controller.
func (ui *appUI) refreshView() {
	var view fyne.CanvasObject
	switch ui.rt.ctrl.CurrentView() {
	case session.ViewSignup:
		view = ui.buildSignupView()
	case session.ViewDashboard:
		view = ui.buildDashboardView()
		ui.refreshHistory()
	default:
		view = ui.buildLoginView()
	}
	ui.root.Objects = []fyne.CanvasObject{container.NewBorder(nil, ui.noticeBar, nil, nil, view)}
	ui.root.Refresh()
}

func (ui *appUI) pushNotice(msg string, level session.NoticeLevel) {
	ui.rt.notices.Push(msg, level, session.DefaultNoticeTTL)
	ui.repaintNotices()
}

func (ui *appUI) repaintNotices() {
	active := ui.rt.notices.Active()
	if len(active) == 0 {
		ui.noticeBar.SetText("")
		return
	}
	parts := make([]string, 0, len(active))
	for _, n := range active {
		parts = append(parts, n.Message)
	}
	ui.noticeBar.SetText(strings.Join(parts, " · "))
}

// startNoticeSweeper prunes expired notices so success messages disappear on
// their own.
func (ui *appUI) startNoticeSweeper() {
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ui.enqueueUI(ui.repaintNotices)
			case <-ui.sweepStop:
				return
			}
		}
	}()
}

func (ui *appUI) stopNoticeSweeper() {
	close(ui.sweepStop)
}

// ----- Login / Signup Views -----

func (ui *appUI) buildLoginView() fyne.CanvasObject {
	username := widget.NewEntry()
	username.SetPlaceHolder("Username")
	password := widget.NewPasswordEntry()
	password.SetPlaceHolder("Password")
	status := widget.NewLabel("")

	var form *widget.Form
	form = &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Username", Widget: username},
			{Text: "Password", Widget: password},
		},
		OnSubmit: func() {
			form.Disable()
			status.SetText("Logging in...")
			user, pass := username.Text, password.Text
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), ui.rt.cfg.RequestTimeout())
				defer cancel()
				err := ui.rt.ctrl.Login(ctx, user, pass)
				ui.enqueueUI(func() {
					form.Enable()
					if err != nil {
						status.SetText(err.Error())
						return
					}
					ui.pushNotice("Logged in", session.NoticeSuccess)
					ui.refreshView()
				})
			}()
		},
		SubmitText: "Login",
	}

	signupLink := widget.NewButton("Create an account", func() {
		ui.rt.ctrl.GoToSignup()
		ui.refreshView()
	})
	signupLink.Importance = widget.LowImportance

	title := widget.NewLabelWithStyle("EquipViz Login", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	return container.NewCenter(container.NewVBox(title, form, status, signupLink))
}

func (ui *appUI) buildSignupView() fyne.CanvasObject {
	username := widget.NewEntry()
	username.SetPlaceHolder("Username")
	password := widget.NewPasswordEntry()
	password.SetPlaceHolder("Password")
	confirm := widget.NewPasswordEntry()
	confirm.SetPlaceHolder("Confirm password")
	status := widget.NewLabel("")

	var form *widget.Form
	form = &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Username", Widget: username},
			{Text: "Password", Widget: password},
			{Text: "Confirm", Widget: confirm},
		},
		OnSubmit: func() {
			form.Disable()
			status.SetText("Creating account...")
			user, pass, conf := username.Text, password.Text, confirm.Text
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), ui.rt.cfg.RequestTimeout())
				defer cancel()
				err := ui.rt.ctrl.Signup(ctx, user, pass, conf)
				ui.enqueueUI(func() {
					form.Enable()
					if err != nil {
						status.SetText(err.Error())
						return
					}
					ui.pushNotice("Account created, please log in", session.NoticeSuccess)
					ui.refreshView()
				})
			}()
		},
		SubmitText: "Sign up",
	}

	backLink := widget.NewButton("Back to login", func() {
		ui.rt.ctrl.BackToLogin()
		ui.refreshView()
	})
	backLink.Importance = widget.LowImportance

	title := widget.NewLabelWithStyle("Create Account", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	return container.NewCenter(container.NewVBox(title, form, status, backLink))
}

// ----- Dashboard View -----

func (ui *appUI) buildDashboardView() fyne.CanvasObject {
	ui.summaryTotal = widget.NewLabel("-")
	ui.summaryFlowrate = widget.NewLabel("-")
	ui.summaryPressure = widget.NewLabel("-")
	ui.summaryTemp = widget.NewLabel("-")
	ui.chartBox = container.NewVBox(widget.NewLabel("Upload a CSV to see the type distribution"))
	ui.historyBox = container.NewVBox(widget.NewLabel("Loading history..."))

	uploadBtn := widget.NewButton("Upload CSV...", func() { ui.showUploadDialog() })
	uploadBtn.Importance = widget.HighImportance
	reportBtn := widget.NewButton("Download Report...", func() { ui.showReportDialog() })
	themeBtn := widget.NewButton("Toggle Theme", func() { ui.toggleTheme() })
	logoutBtn := widget.NewButton("Logout", func() {
		ui.rt.ctrl.Logout()
		ui.pushNotice("Logged out", session.NoticeInfo)
		ui.refreshView()
	})

	summary := widget.NewForm(
		widget.NewFormItem("Total Equipment", ui.summaryTotal),
		widget.NewFormItem("Average Flowrate", ui.summaryFlowrate),
		widget.NewFormItem("Average Pressure", ui.summaryPressure),
		widget.NewFormItem("Average Temperature", ui.summaryTemp),
	)

	if res := ui.rt.uploader.Latest(); res != nil {
		ui.renderSummary(res)
		ui.renderChart(res)
	}

	toolbar := container.NewHBox(uploadBtn, reportBtn, themeBtn, logoutBtn)
	left := container.NewVBox(
		widget.NewLabelWithStyle("Summary", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		summary,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Type Distribution", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		ui.chartBox,
	)
	right := container.NewVBox(
		widget.NewLabelWithStyle("Recent Uploads", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		ui.historyBox,
	)

	split := container.NewHSplit(left, container.NewVScroll(right))
	split.SetOffset(0.62)
	return container.NewBorder(toolbar, nil, nil, nil, split)
}

func (ui *appUI) renderSummary(res *api.UploadResult) {
	ui.summaryTotal.SetText(fmt.Sprintf("%v", res.TotalEquipment))
	ui.summaryFlowrate.SetText(fmt.Sprintf("%v", res.AverageFlowrate))
	ui.summaryPressure.SetText(fmt.Sprintf("%v", res.AveragePressure))
	ui.summaryTemp.SetText(fmt.Sprintf("%v", res.AverageTemperature))
}

func (ui *appUI) renderChart(res *api.UploadResult) {
	rows := []fyne.CanvasObject{}
	maxCount := res.TypeDistribution.MaxCount()
	for i, tc := range res.TypeDistribution {
		bar := canvas.NewRectangle(barPalette[i%len(barPalette)])
		width := float32(24)
		if maxCount > 0 {
			width = 24 + 240*float32(tc.Count)/float32(maxCount)
		}
		bar.SetMinSize(fyne.NewSize(width, 18))
		label := widget.NewLabel(tc.Label)
		count := widget.NewLabel(fmt.Sprintf("%d", tc.Count))
		rows = append(rows, container.NewHBox(label, bar, count))
	}
	if len(rows) == 0 {
		rows = append(rows, widget.NewLabel("No equipment type data"))
	}
	ui.chartBox.Objects = rows
	ui.chartBox.Refresh()
}

func (ui *appUI) refreshHistory() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), ui.rt.cfg.RequestTimeout())
		defer cancel()
		entries, err := ui.rt.ctrl.Client().History(ctx)
		ui.enqueueUI(func() {
			if err != nil {
				slog.Warn("History fetch failed", "error", err)
				ui.historyBox.Objects = []fyne.CanvasObject{widget.NewLabel("Failed to load history")}
				ui.historyBox.Refresh()
				return
			}
			ui.rt.mu.Lock()
			ui.rt.historyEntries = entries
			ui.rt.mu.Unlock()
			ui.renderHistory(entries)
		})
	}()
}

func (ui *appUI) renderHistory(entries []api.HistoryEntry) {
	rows := []fyne.CanvasObject{}
	for _, e := range entries {
		line := fmt.Sprintf("%s | %v items, flow %v, press %v, temp %v",
			e.UploadedAt, e.TotalEquipment, e.AverageFlowrate, e.AveragePressure, e.AverageTemperature)
		lbl := widget.NewLabel(line)
		lbl.Wrapping = fyne.TextWrapWord
		rows = append(rows, lbl)
		if len(e.TypeDistribution) > 0 {
			types := widget.NewLabel("    " + strings.Join(e.TypeDistribution.Labels(), ", "))
			rows = append(rows, types)
		}
	}
	if len(rows) == 0 {
		rows = append(rows, widget.NewLabel("No history available"))
	}
	ui.historyBox.Objects = rows
	ui.historyBox.Refresh()
}

// ----- Upload / Report Dialogs -----

func (ui *appUI) showUploadDialog() {
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, ui.win)
			return
		}
		if rc == nil {
			return
		}
		path := rc.URI().Path()
		_ = rc.Close()
		ui.startUpload(path)
	}, ui.win)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".csv"}))
	fd.Show()
}

// startUpload submits the file. The uploader remembers the path, so a
// failure offers a retry without reopening the file dialog.
func (ui *appUI) startUpload(path string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), ui.rt.cfg.RequestTimeout())
		defer cancel()
		_, err := ui.rt.uploader.Upload(ctx, path)
		ui.enqueueUI(func() {
			if err != nil {
				retry := ui.rt.uploader.LastPath()
				dialog.ShowCustomConfirm("Upload Failed", "Retry", "Close",
					widget.NewLabel(err.Error()),
					func(again bool) {
						if again && retry != "" {
							ui.startUpload(retry)
						}
					}, ui.win)
				return
			}
			ui.pushNotice("Analysis complete", session.NoticeSuccess)
			ui.refreshHistory()
		})
	}()
}

func (ui *appUI) showReportDialog() {
	fs := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, ui.win)
			return
		}
		if uc == nil {
			return
		}
		dest := uc.URI().Path()
		_ = uc.Close()

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), ui.rt.cfg.RequestTimeout())
			defer cancel()
			err := ui.rt.downloader.Download(ctx, dest)
			ui.enqueueUI(func() {
				if err != nil {
					dialog.ShowError(fmt.Errorf("report download failed: %w", err), ui.win)
					return
				}
				ui.rt.mu.Lock()
				ui.rt.appState.AppendRecentReport(dest, 10)
				ui.rt.mu.Unlock()
				saveState(ui.rt)
				ui.pushNotice("Report saved", session.NoticeSuccess)
			})
		}()
	}, ui.win)
	fs.SetFileName(report.DefaultFilename)
	fs.Show()
}

// ----- Theme -----

func (ui *appUI) toggleTheme() {
	ui.rt.mu.Lock()
	next := ui.rt.appState.ToggleTheme()
	ui.rt.mu.Unlock()
	ui.app.Preferences().SetString("themeVariant", next)
	saveState(ui.rt)
	ui.pushNotice(fmt.Sprintf("Theme: %s", next), session.NoticeInfo)
}

// ----- State Saving (Debounced) -----

var saveMu sync.Mutex

var saveTimer *time.Timer

func saveState(rt *Runtime) {
	saveMu.Lock()
	defer saveMu.Unlock()

	if saveTimer != nil {
		saveTimer.Stop()
	}
	// Debounce writes (250ms)
	saveTimer = time.AfterFunc(250*time.Millisecond, func() {
		saveMu.Lock()
		defer saveMu.Unlock()
		rt.mu.RLock()
		st := rt.appState
		path := rt.statePath
		rt.mu.RUnlock()

		if err := statepkg.SaveAppState(st, path); err != nil {
			slog.Error("Failed to save state", "error", err)
		} else {
			slog.Debug("State saved", "path", path)
		}
	})
}
