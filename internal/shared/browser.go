package shared

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// OpenBrowser starts the system browser on url and returns without waiting for it.
//
// $BROWSER, when set, takes precedence over the platform opener.
func OpenBrowser(url string) error {
	name, args, err := browserCommand(runtime.GOOS, os.Getenv("BROWSER"), url)
	if err != nil {
		return err
	}
	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

func browserCommand(goos, override, url string) (string, []string, error) {
	if fields := strings.Fields(override); len(fields) > 0 {
		return fields[0], append(fields[1:], url), nil
	}

	switch goos {
	case "darwin":
		return "open", []string{url}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	default:
		return "", nil, fmt.Errorf("%w: cannot open a browser on %s; visit %s", ErrNotImplemented, goos, url)
	}
}
