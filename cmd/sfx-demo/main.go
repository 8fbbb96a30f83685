// Command sfx-demo is an interactive playback console: number keys play
// catalog sounds, letters stop them. Run with a catalog YAML and asset files
// next to it.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/sfx/audio"
	"github.com/lixenwraith/sfx/catalog"
	"github.com/lixenwraith/sfx/settings"
)

func main() {
	catalogPath := flag.String("catalog", "sounds.yaml", "catalog YAML file")
	settingsPath := flag.String("settings", "mixer.yaml", "persisted mixer volumes")
	flag.Parse()

	if err := run(*catalogPath, *settingsPath); err != nil {
		fmt.Fprintf(os.Stderr, "sfx-demo: %v\n", err)
		os.Exit(1)
	}
}

func run(catalogPath, settingsPath string) error {
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return err
	}

	store, err := settings.Open(settingsPath)
	if err != nil {
		return err
	}

	logFile, err := os.OpenFile("sfx-demo.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer logFile.Close()

	logger := slog.New(slog.NewTextHandler(logFile, nil))

	cfg := audio.DefaultConfig()
	cfg.Store = store
	cfg.Logger = logger

	mgr, err := audio.NewSoundManager(cat, cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	if err := mgr.Initialize(); err != nil {
		// No audio device is not fatal; the console still works silently
		fmt.Fprintf(os.Stderr, "audio initialization failed, running silent: %v\n", err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	ids := cat.IDs()

	watcher, err := catalog.Watch(catalogPath)
	if err != nil {
		logger.Warn("catalog watch unavailable", "error", err)
	} else {
		defer watcher.Close()
	}
	var reloads <-chan *catalog.Catalog
	var reloadErrs <-chan error
	if watcher != nil {
		reloads = watcher.Events
		reloadErrs = watcher.Errors
	}

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		draw(screen, mgr, ids)

		select {
		case <-ticker.C:
			// Redraw active voice counts

		case reloaded := <-reloads:
			if err := mgr.UpdateCatalog(reloaded); err != nil {
				logger.Warn("catalog reload rejected", "error", err)
				continue
			}
			ids = reloaded.IDs()

		case err := <-reloadErrs:
			logger.Warn("catalog reload failed", "error", err)

		case ev := <-events:
			key, ok := ev.(*tcell.EventKey)
			if !ok {
				continue
			}
			switch {
			case key.Key() == tcell.KeyEscape || key.Key() == tcell.KeyCtrlC:
				return nil
			case key.Rune() >= '1' && key.Rune() <= '9':
				i := int(key.Rune() - '1')
				if i < len(ids) {
					go mgr.Play(ids[i])
				}
			case key.Rune() == 'r':
				go mgr.PlayRandom()
			case key.Rune() == 's':
				mgr.StopAll()
			case key.Rune() >= 'a' && key.Rune() <= 'i':
				i := int(key.Rune() - 'a')
				if i < len(ids) {
					mgr.Stop(ids[i])
				}
			}
		}
	}
}

func draw(screen tcell.Screen, mgr *audio.SoundManager, ids []string) {
	screen.Clear()

	header := tcell.StyleDefault.Foreground(tcell.ColorAqua).Bold(true)
	normal := tcell.StyleDefault
	dim := tcell.StyleDefault.Foreground(tcell.ColorGray)

	puts(screen, 0, 0, "sfx-demo  1-9 play  a-i stop  r random  s stop all  esc quit", header)

	for i, id := range ids {
		if i >= 9 {
			break
		}
		line := fmt.Sprintf("%d/%c  %-24s voices: %d", i+1, 'a'+i, id, mgr.ActiveVoiceCount(id))
		style := normal
		if mgr.ActiveVoiceCount(id) == 0 {
			style = dim
		}
		puts(screen, 0, 2+i, line, style)
	}

	screen.Show()
}

func puts(screen tcell.Screen, x, y int, s string, style tcell.Style) {
	for i, r := range s {
		screen.SetContent(x+i, y, r, nil, style)
	}
}
