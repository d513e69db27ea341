package shortcut

import (
	"fmt"
	"log"

	"github.com/ayusman/sightline/internal/detect"
)

// Controller is the tracker surface the default shortcuts drive.
type Controller interface {
	Stop()
	TogglePause() bool
	Screenshot(dir string) (string, error)
	ToggleAutoClick() bool
	CycleMethod() detect.Method
	ResetDetection()
	LogStats()
	TestDetection(save bool, dir string) (detect.Result, string, error)
	AdjustCircleRadius(delta int) int
}

// radiusStep is the circle radius change per keypress.
const radiusStep = 10

// RegisterDefaults registers the standard Ctrl+Shift bindings. quit runs
// after tracking stops on Q or X; it may be nil.
func RegisterDefaults(d *Dispatcher, c Controller, saveDir string, quit func()) error {
	stop := func() {
		log.Println("shortcut: stop requested")
		c.Stop()
		if quit != nil {
			quit()
		}
	}

	bindings := []Binding{
		{Name: "stop", Keys: combo("q"), Description: "stop tracking", Action: stop},
		{Name: "stop-alt", Keys: combo("x"), Description: "stop tracking", Action: stop},
		{Name: "pause", Keys: combo("p"), Description: "pause / resume", Action: func() {
			c.TogglePause()
		}},
		{Name: "screenshot", Keys: combo("s"), Description: "save a debug screenshot", Action: func() {
			if _, err := c.Screenshot(saveDir); err != nil {
				log.Printf("shortcut: screenshot: %v", err)
			}
		}},
		{Name: "auto-click", Keys: combo("c"), Description: "toggle auto-click", Action: func() {
			c.ToggleAutoClick()
		}},
		{Name: "cycle", Keys: combo("m"), Description: "cycle detection method", Action: func() {
			c.CycleMethod()
		}},
		{Name: "reset", Keys: combo("r"), Description: "reset detection state", Action: c.ResetDetection},
		{Name: "help", Keys: combo("h"), Description: "show shortcuts", Action: func() {
			log.Print(d.Help())
		}},
		{Name: "stats", Keys: combo("f"), Description: "log tracking statistics", Action: c.LogStats},
		{Name: "test", Keys: combo("t"), Description: "test detection on one frame", Action: func() {
			res, path, err := c.TestDetection(true, saveDir)
			if err != nil {
				log.Printf("shortcut: test detection: %v", err)
				return
			}
			log.Printf("shortcut: test detection: %s", describe(res, path))
		}},
		{Name: "radius-up", Keys: combo("="), Description: "grow target circle", Action: func() {
			log.Printf("shortcut: circle radius %d", c.AdjustCircleRadius(radiusStep))
		}},
		{Name: "radius-down", Keys: combo("-"), Description: "shrink target circle", Action: func() {
			log.Printf("shortcut: circle radius %d", c.AdjustCircleRadius(-radiusStep))
		}},
	}

	for _, b := range bindings {
		if err := d.Register(b); err != nil {
			return err
		}
	}
	return nil
}

func combo(key string) []string {
	return []string{"ctrl", "shift", key}
}

func describe(res detect.Result, path string) string {
	if !res.Found {
		return fmt.Sprintf("not found (confidence %.3f)", res.Confidence)
	}
	s := fmt.Sprintf("found at %v (confidence %.3f)", res.Center, res.Confidence)
	if path != "" {
		s += ", saved " + path
	}
	return s
}
