package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":  DebugLevel,
		" WARN ": WarnLevel,
		"error":  ErrorLevel,
		"bogus":  InfoLevel,
		"":       InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogFieldsRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetFormat("json")
	SetLevel(WarnLevel)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetFormat("text")
		SetLevel(InfoLevel)
	})

	LogFields(InfoLevel, Fields{"path": "/quiet"}, "http.request")
	LogFields(ErrorLevel, Fields{"path": "/loud"}, "http.request")

	out := buf.String()
	if strings.Contains(out, "/quiet") {
		t.Fatalf("info entry written at warn level: %s", out)
	}
	if !strings.Contains(out, `"path":"/loud"`) || !strings.Contains(out, `"msg":"http.request"`) {
		t.Fatalf("unexpected output %s", out)
	}
}
