package plot

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// ErrNoDisplay is returned by Open when there is nowhere to show the chart
var ErrNoDisplay = errors.New("no display available")

// viewerCommand returns the platform image viewer for path
func viewerCommand(goos, path string, getenv func(string) string) (*exec.Cmd, error) {
	switch goos {
	case "darwin":
		return exec.Command("open", path), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", path), nil
	default:
		if getenv("DISPLAY") == "" && getenv("WAYLAND_DISPLAY") == "" {
			return nil, ErrNoDisplay
		}
		return exec.Command("xdg-open", path), nil
	}
}

// Open shows the image at path in the desktop viewer without waiting for it
func Open(path string) error {
	cmd, err := viewerCommand(runtime.GOOS, path, os.Getenv)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}
	go cmd.Wait()
	return nil
}
