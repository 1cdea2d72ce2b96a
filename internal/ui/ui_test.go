package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderPlain(t *testing.T) {
	DisableColor()
	for name, fn := range map[string]func(string) string{
		"accent": RenderAccent,
		"pass":   RenderPass,
		"warn":   RenderWarn,
		"fail":   RenderFail,
		"muted":  RenderMuted,
	} {
		if got := fn("text"); got != "text" {
			t.Errorf("%s: got %q, want plain text", name, got)
		}
	}
}

func TestTable(t *testing.T) {
	DisableColor()
	var buf bytes.Buffer
	err := Table(&buf, []string{"#", "TITLE"}, [][]string{{"0", "first"}, {"1", "second"}}, 1)
	if err != nil {
		t.Fatalf("Table() failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"TITLE", "first", "second"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "first") > strings.Index(out, "second") {
		t.Errorf("rows out of order:\n%s", out)
	}
}

func TestIsTerminalNil(t *testing.T) {
	if IsTerminal(nil) {
		t.Error("IsTerminal(nil) = true")
	}
}
