// Package launcher opens URLs in a web browser. The default launcher
// honors the BROWSER environment variable and otherwise hands the URL
// to the platform opener (xdg-open, open, start).
package launcher

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/browser"
)

func init() {
	// The platform opener occasionally chats on stdout; that would
	// corrupt row output when forage is piped, so discard it.
	browser.Stdout = io.Discard
	browser.Stderr = os.Stderr
}

// Launcher opens a single URL. Implementations report failure with an
// error; callers decide whether that is fatal.
type Launcher interface {
	Launch(url string) error
}

// System returns a launcher for the user's browser.
func System() Launcher {
	return &systemLauncher{browserEnv: os.Getenv("BROWSER")}
}

type systemLauncher struct {
	browserEnv string
}

func (l *systemLauncher) Launch(url string) error {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("refusing to open non-http URL %q", url)
	}

	if l.browserEnv != "" {
		cmd := exec.Command(l.browserEnv, url)
		cmd.Stdout = io.Discard
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("launch %s: %w", l.browserEnv, err)
		}
		return nil
	}

	if err := browser.OpenURL(url); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}

// Func adapts a function to the Launcher interface.
type Func func(url string) error

func (f Func) Launch(url string) error { return f(url) }
