package shared

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestTrackKey(t *testing.T) {
	tc := []struct {
		name   string
		artist string
		title  string
		other  [2]string
		same   bool
	}{
		{name: "identical pair", artist: "Nujabes", title: "Feather", other: [2]string{"Nujabes", "Feather"}, same: true},
		{name: "case sensitive", artist: "Nujabes", title: "Feather", other: [2]string{"nujabes", "feather"}},
		{name: "whitespace sensitive", artist: "Nujabes", title: "Feather", other: [2]string{"Nujabes ", "Feather"}},
		{name: "separator is not ambiguous", artist: "a b", title: "c", other: [2]string{"a", "b c"}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := TrackKey(tt.artist, tt.title) == TrackKey(tt.other[0], tt.other[1])
			if got != tt.same {
				t.Errorf("TrackKey equality = %v, want %v", got, tt.same)
			}
		})
	}
}

func TestFormatConfidence(t *testing.T) {
	tc := map[float64]string{0: "0%", 0.5: "50%", 0.824: "82%", 1: "100%"}
	for p, want := range tc {
		if got := FormatConfidence(p); got != want {
			t.Errorf("FormatConfidence(%v) = %q, want %q", p, got, want)
		}
	}
}

func TestMarshalJSON(t *testing.T) {
	v := map[string]int{"rows": 3}

	compact, err := MarshalJSON(v, false)
	if err != nil || string(compact) != `{"rows":3}` {
		t.Errorf("compact = %q, %v", compact, err)
	}

	pretty, err := MarshalJSON(v, true)
	if err != nil || string(pretty) != "{\n  \"rows\": 3\n}" {
		t.Errorf("pretty = %q, %v", pretty, err)
	}

	if _, err := MarshalJSON(make(chan int), false); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b || len(a) != 36 {
		t.Errorf("unexpected IDs %q %q", a, b)
	}
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	b, _ := GenerateState()
	if a == b || len(a) != 43 || strings.ContainsAny(a, "+/=") {
		t.Errorf("unexpected states %q %q", a, b)
	}
}

func TestLoggers(t *testing.T) {
	t.Run("SetLogLevel", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)

		SetLogLevel(logger, " DEBUG ")
		if logger.GetLevel() != log.DebugLevel {
			t.Errorf("expected debug level, got %v", logger.GetLevel())
		}

		SetLogLevel(logger, "verbose")
		if logger.GetLevel() != log.InfoLevel {
			t.Errorf("expected fallback to info, got %v", logger.GetLevel())
		}
	})

	t.Run("WithLogger", func(t *testing.T) {
		var buf bytes.Buffer
		WithLogger(NewLogger(&buf), "run", "r1").Info("started")
		if !strings.Contains(buf.String(), "run=r1") {
			t.Errorf("expected key in output, got %q", buf.String())
		}
	})

	t.Run("NewFileLogger", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "review.log")
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger() error = %v", err)
		}
		logger.Info("hello")

		// The file handle stays open for the life of the logger.
		data := mustRead(t, path)
		if !strings.Contains(data, "hello") {
			t.Errorf("expected message in log file, got %q", data)
		}
	})
}

func TestBrowserCommand(t *testing.T) {
	const url = "https://accounts.spotify.com/authorize"
	tc := []struct {
		name     string
		goos     string
		override string
		want     []string
	}{
		{name: "darwin", goos: "darwin", want: []string{"open", url}},
		{name: "linux", goos: "linux", want: []string{"xdg-open", url}},
		{name: "windows", goos: "windows", want: []string{"rundll32", "url.dll,FileProtocolHandler", url}},
		{name: "override", goos: "linux", override: "firefox --new-tab", want: []string{"firefox", "--new-tab", url}},
		{name: "blank override", goos: "darwin", override: "  ", want: []string{"open", url}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			name, args, err := browserCommand(tt.goos, tt.override, url)
			if err != nil {
				t.Fatalf("browserCommand() error = %v", err)
			}
			if got := append([]string{name}, args...); !slices.Equal(got, tt.want) {
				t.Errorf("browserCommand() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("unsupported platform", func(t *testing.T) {
		_, _, err := browserCommand("plan9", "", url)
		if !errors.Is(err, ErrNotImplemented) || !strings.Contains(err.Error(), url) {
			t.Errorf("expected ErrNotImplemented naming the URL, got %v", err)
		}
	})
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}
