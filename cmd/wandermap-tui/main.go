// Command wandermap-tui draws the visited-countries map into the terminal.
// Hover a country to see its name, click to mark it visited.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"

	"wandermap/pkg/cache"
	"wandermap/pkg/config"
	"wandermap/pkg/country"
	"wandermap/pkg/db"
	"wandermap/pkg/export"
	"wandermap/pkg/geometry"
	"wandermap/pkg/logging"
	"wandermap/pkg/request"
	"wandermap/pkg/session"
	"wandermap/pkg/tracker"
)

// palette is cycled with the 'c' key.
var palette = []string{"#2196F3", "#4caf50", "#ff9800", "#9c27b0", "#f44336"}

var configPath = flag.String("config", "configs/wandermap.yaml", "Path to config file")

func main() {
	flag.Parse()
	_ = godotenv.Load(".env")

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "wandermap-tui: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cleanupLogs, err := logging.InitQuiet(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	dbConn, err := db.Init(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbConn.Close()

	reqClient := request.New(cache.NewSQLiteCache(dbConn), tracker.New(), cfg.Request)
	src, err := geometry.NewSource(cfg.Geometry, reqClient)
	if err != nil {
		return fmt.Errorf("failed to configure geometry source: %w", err)
	}

	opts := session.OptionsFromConfig(cfg, geometry.Recorded(src, dbConn))
	opts.Trace = logging.TraceDefault
	mgr := session.NewManager(ctx, opts, 0, 1)
	defer mgr.CloseAll()

	s, err := mgr.Create()
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	t := newTUI(screen, s, cfg)
	return t.loop()
}

type tui struct {
	screen  tcell.Screen
	s       *session.Session
	cfg     *config.Config
	canvas  *canvas
	color   int
	search  []rune
	inInput bool
	notice  string
	buttons tcell.ButtonMask
}

func newTUI(screen tcell.Screen, s *session.Session, cfg *config.Config) *tui {
	screen.EnableMouse(tcell.MouseMotionEvents)
	return &tui{screen: screen, s: s, cfg: cfg, canvas: newCanvas(s.Viewport())}
}

// loop forwards session batches into the tcell event queue so the canvas
// is only mutated here.
func (t *tui) loop() error {
	sub := t.s.Subscribe()
	defer sub.Release()
	go func() {
		for b := range sub.C {
			_ = t.screen.PostEvent(tcell.NewEventInterrupt(b))
		}
	}()

	for {
		t.draw()
		switch ev := t.screen.PollEvent().(type) {
		case nil:
			return nil
		case *tcell.EventInterrupt:
			if b, ok := ev.Data().(session.Batch); ok {
				t.canvas.apply(b)
			}
		case *tcell.EventResize:
			t.screen.Sync()
		case *tcell.EventMouse:
			t.handleMouse(ev)
		case *tcell.EventKey:
			if !t.handleKey(ev) {
				return nil
			}
		}
	}
}

func (t *tui) mapRows() (cols, rows int) {
	cols, rows = t.screen.Size()
	return cols, rows - 1
}

func (t *tui) handleMouse(ev *tcell.EventMouse) {
	cols, rows := t.mapRows()
	col, row := ev.Position()
	// Motion events repeat the held buttons; only the press toggles.
	pressed := ev.Buttons()&tcell.Button1 != 0 && t.buttons&tcell.Button1 == 0
	t.buttons = ev.Buttons()
	if row >= rows {
		t.s.PointerLeave()
		return
	}
	x, y := t.canvas.toViewport(col, row, cols, rows)
	if pressed {
		if sel, ok := t.s.PointerClick(x, y); ok {
			t.notice = "Toggled " + sel.Name
		}
		return
	}
	t.s.PointerMove(x, y)
}

func (t *tui) handleKey(ev *tcell.EventKey) bool {
	if t.inInput {
		t.handleSearchKey(ev)
		return true
	}
	switch {
	case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC:
		return false
	case ev.Key() != tcell.KeyRune:
		return true
	}

	switch ev.Rune() {
	case 'q':
		return false
	case 'c':
		t.color = (t.color + 1) % len(palette)
		if _, err := t.s.SetColor(palette[t.color]); err != nil {
			t.notice = err.Error()
		}
	case '/':
		t.inInput = true
		t.search = t.search[:0]
	case 'x':
		if err := t.s.ClearSearch(); err != nil {
			t.notice = err.Error()
		}
	case 'e':
		t.notice = t.exportPNG()
	}
	return true
}

func (t *tui) handleSearchKey(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape:
		t.inInput = false
	case tcell.KeyEnter:
		t.inInput = false
		results := country.Search(string(t.search), t.cfg.Visits.SearchLimit)
		if len(results) == 0 {
			t.notice = "No match for " + string(t.search)
			return
		}
		if _, err := t.s.SearchSelect(results[0].Alpha3); err != nil {
			t.notice = err.Error()
			return
		}
		t.notice = "Selected " + results[0].Name
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(t.search) > 0 {
			t.search = t.search[:len(t.search)-1]
		}
	case tcell.KeyRune:
		t.search = append(t.search, ev.Rune())
	}
}

func (t *tui) exportPNG() string {
	f, err := os.Create(t.cfg.Export.Filename)
	if err != nil {
		slog.Error("Export failed", "error", err)
		return err.Error()
	}
	defer f.Close()
	err = export.PNG(f, t.s.ExportFrame().Commands, t.s.Viewport(), t.cfg.Export.Scale, t.cfg.Export.Background)
	if err != nil {
		slog.Error("Export failed", "error", err)
		return err.Error()
	}
	return "Exported " + t.cfg.Export.Filename
}

func (t *tui) draw() {
	cols, rows := t.mapRows()
	t.screen.Clear()
	t.canvas.draw(t.screen, cols, rows, t.cfg.Export.Background)
	drawText(t.screen, 0, rows, t.statusLine(cols), tcell.StyleDefault.Reverse(true))
	t.screen.Show()
}

func (t *tui) statusLine(width int) string {
	st := t.s.Stats()
	parts := []string{fmt.Sprintf("%d/%d (%.1f%%)", st.Visited, st.Total, st.Percent), t.s.Color()}
	switch {
	case t.inInput:
		results := country.Search(string(t.search), t.cfg.Visits.SearchLimit)
		names := make([]string, len(results))
		for i, r := range results {
			names[i] = r.Name
		}
		parts = append(parts, "/"+string(t.search), strings.Join(names, ", "))
	case t.canvas.tooltip != "":
		parts = append(parts, t.canvas.tooltip)
	case t.notice != "":
		parts = append(parts, t.notice)
	default:
		parts = append(parts, logging.GlobalLogCapture.GetLastLine())
	}
	line := strings.Join(parts, " | ")
	if r := []rune(line); len(r) > width && width > 0 {
		line = string(r[:width])
	}
	return line
}
