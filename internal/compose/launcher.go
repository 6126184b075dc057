package compose

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

// BrowserLauncher opens compose links in the default browser.
type BrowserLauncher struct{}

func (BrowserLauncher) Launch(ctx context.Context, link string) error {
	return openBrowser(ctx, link)
}

func openBrowser(ctx context.Context, link string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", link)
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", link)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", link)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

// PrintLauncher writes compose links to W, one per line, for terminals
// without a browser.
type PrintLauncher struct {
	W io.Writer
}

func (p PrintLauncher) Launch(ctx context.Context, link string) error {
	_, err := fmt.Fprintln(p.W, link)
	return err
}
