package shared

import (
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func TestOpenBrowser(t *testing.T) {
	origRuntime, origStart := getRuntime, startCommand
	t.Cleanup(func() { getRuntime, startCommand = origRuntime, origStart })

	var started []string
	startCommand = func(cmd *exec.Cmd) error {
		started = append(started, strings.Join(cmd.Args, " "))
		return nil
	}

	tests := []struct {
		name    string
		goos    string
		link    string
		want    string
		wantErr error
	}{
		{name: "darwin", goos: "darwin", link: "https://open.spotify.com/playlist/p1", want: "open https://open.spotify.com/playlist/p1"},
		{name: "linux", goos: "linux", link: "https://open.spotify.com/track/t1", want: "xdg-open https://open.spotify.com/track/t1"},
		{name: "windows", goos: "windows", link: "https://open.spotify.com/track/t1", want: "rundll32 url.dll,FileProtocolHandler https://open.spotify.com/track/t1"},
		{name: "not a link", goos: "linux", link: "rm -rf /", wantErr: ErrInvalidArgument},
		{name: "file scheme", goos: "linux", link: "file:///etc/passwd", wantErr: ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			started = nil
			getRuntime = func() string { return tt.goos }

			err := OpenBrowser(tt.link)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if len(started) != 0 {
					t.Error("no command should start for a rejected link")
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenBrowser() error = %v", err)
			}
			if len(started) != 1 || started[0] != tt.want {
				t.Errorf("started %v, want %q", started, tt.want)
			}
		})
	}

	t.Run("unsupported platform", func(t *testing.T) {
		getRuntime = func() string { return "plan9" }
		if err := OpenBrowser("https://open.spotify.com"); err == nil || !strings.Contains(err.Error(), "unsupported platform") {
			t.Errorf("expected unsupported platform error, got %v", err)
		}
	})

	t.Run("start failure", func(t *testing.T) {
		getRuntime = func() string { return "linux" }
		startCommand = func(*exec.Cmd) error { return errors.New("no xdg-open") }
		if err := OpenBrowser("https://open.spotify.com"); err == nil {
			t.Error("expected error when the command cannot start")
		}
	})
}
