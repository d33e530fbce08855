package banner

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, "memory", "static")

	out := buf.String()
	if !strings.Contains(out, "v"+Version) {
		t.Errorf("banner missing version: %q", out)
	}
	if !strings.Contains(out, "storage=memory source=static") {
		t.Errorf("banner missing modes: %q", out)
	}
}
