package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ayusman/sightline/internal/actuate"
	"github.com/ayusman/sightline/internal/capture"
	"github.com/ayusman/sightline/internal/config"
	"github.com/ayusman/sightline/internal/detect"
	"github.com/ayusman/sightline/internal/hook"
	"github.com/ayusman/sightline/internal/server"
	"github.com/ayusman/sightline/internal/shortcut"
	"github.com/ayusman/sightline/internal/store"
	"github.com/ayusman/sightline/internal/tracker"
	"github.com/ayusman/sightline/internal/tray"
)

// statsInterval is how often running statistics are logged.
const statsInterval = 10 * time.Second

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}
	if err := run(opts); err != nil {
		log.Fatalf("sightline: %v", err)
	}
}

func run(opts *options) error {
	fmt.Println("Sightline - Real-Time Object Tracker")

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := opts.apply(cfg); err != nil {
		return err
	}
	tracker.Verbose = opts.verbose

	src, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	engine := detect.NewEngine(cfg.Tracking.ConfidenceThreshold)
	defer engine.Close()
	if err := configureEngine(engine, cfg, opts.configPath); err != nil {
		return err
	}
	log.Printf("Detector: %s", engine.Describe())

	var st *store.Store
	if cfg.Store.Path != "" {
		if dir := filepath.Dir(cfg.Store.Path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("create data directory: %w", err)
			}
		}
		if st, err = store.New(cfg.Store.Path); err != nil {
			return fmt.Errorf("initialize store: %w", err)
		}
		defer st.Close()
	}

	tr := tracker.New(tracker.Config{
		Source:        src,
		Engine:        engine,
		Actuator:      actuate.New(actuate.NewRobotPointer(), cfg.MouseSettings()),
		Store:         st,
		FPS:           cfg.Tracking.FPS,
		Region:        cfg.Region(),
		MouseEnabled:  true,
		CircleRadius:  cfg.Visual.CircleRadius,
		ShowCrosshair: cfg.Visual.ShowCrosshair,
		Preview:       cfg.Server.Addr != "",
	})

	if opts.testDetect {
		return testDetection(tr, opts.saveTest, cfg.Visual.SaveDir)
	}

	if runner := startHooks(cfg); runner != nil {
		tr.AddListener(runner)
		defer runner.Close()
	}

	var (
		menu     *tray.Tray
		quitOnce sync.Once
	)
	quit := func() {
		quitOnce.Do(func() {
			tr.Shutdown()
			if menu != nil {
				menu.Quit()
			}
		})
	}

	if !opts.noShortcuts {
		d := shortcut.NewDispatcher(shortcut.NewGoHookBackend())
		if err := shortcut.RegisterDefaults(d, tr, cfg.Visual.SaveDir, quit); err != nil {
			return err
		}
		if err := d.Start(); err != nil {
			log.Printf("Shortcuts unavailable: %v", err)
		} else {
			tr.SetDetacher(d)
			log.Print(d.Help())
		}
	}

	if cfg.Server.Addr != "" {
		hub := server.NewEventHub()
		defer hub.Close()
		tr.AddListener(hub)

		srv := server.New(server.Config{
			StaticDir:  findWebDir(),
			Store:      st,
			Tracker:    tr,
			Events:     hub,
			Settings:   cfg,
			ConfigPath: opts.configPath,
		})
		go func() {
			log.Printf("Control panel on http://%s", cfg.Server.Addr)
			if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
				log.Printf("Server failed: %v", err)
			}
		}()
	}

	if opts.tray {
		menu = tray.New(tr)
		menu.OnQuit(quit)
		if cfg.Server.Addr != "" {
			url := "http://" + cfg.Server.Addr
			menu.OnOpen(func() { openBrowser(url) })
		}
		tr.AddListener(menu)
	}

	if err := tr.Start(); err != nil {
		return err
	}
	log.Println("Tracking started. Press Ctrl+C or Ctrl+Shift+Q to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Stopping tracking...")
		quit()
	}()

	done := make(chan struct{})
	go logStats(tr, done)

	if menu != nil {
		menu.Run()
	} else {
		tr.Wait()
	}
	close(done)

	quit()
	tr.LogStats()
	return nil
}

// openSource opens the frame source the config selects.
func openSource(cfg *config.Config) (capture.Source, error) {
	if cfg.Capture.Source == config.SourceDevice {
		cam := capture.NewCameraSource(cfg.Capture.Device)
		cam.SetFPS(cfg.Tracking.FPS)
		if err := cam.Open(); err != nil {
			return nil, fmt.Errorf("capture device %d: %w", cfg.Capture.Device, err)
		}
		log.Printf("Capturing from device %d (%v)", cfg.Capture.Device, cam.Bounds())
		return cam, nil
	}

	src, err := capture.NewScreenSource(cfg.Capture.Display)
	if err != nil {
		return nil, fmt.Errorf("screen capture: %w", err)
	}
	return src, nil
}

func testDetection(tr *tracker.Tracker, save bool, dir string) error {
	log.Println("Testing detection on single frame...")
	res, path, err := tr.TestDetection(save, dir)
	if err != nil {
		return err
	}

	if !res.Found {
		log.Printf("No objects detected in test frame (confidence %.3f)", res.Confidence)
		return nil
	}
	log.Printf("Detection successful! Center: %v, Confidence: %.3f", res.Center, res.Confidence)
	if len(res.Objects) > 1 {
		log.Printf("Detected %d objects", len(res.Objects))
	}
	if path != "" {
		log.Printf("Saved %s", path)
	}
	return nil
}

// startHooks returns a runner when the hook directory holds any hooks.
func startHooks(cfg *config.Config) *hook.Runner {
	mgr := hook.NewManager(cfg.Hooks.Dir)
	if err := mgr.Discover(); err != nil {
		log.Printf("Hooks unavailable: %v", err)
		return nil
	}
	hooks := mgr.List()
	if len(hooks) == 0 {
		return nil
	}
	for _, h := range hooks {
		log.Printf("Hook %s %s: %v", h.Manifest.Name, h.Manifest.Version, h.Manifest.Events)
	}
	return hook.NewRunner(mgr, hook.NewExecutor(cfg.Hooks.TimeoutMs))
}

func logStats(tr *tracker.Tracker, done <-chan struct{}) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if tr.IsTracking() {
				tr.LogStats()
			}
		}
	}
}

// findWebDir searches for the control panel assets in common locations.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(home, ".sightline", "web")
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return ""
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Open %s: %v", url, err)
	}
}
