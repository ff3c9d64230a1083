package compileinfo

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	for _, v := range []struct {
		Info     CompileInfo
		Contains []string
	}{
		{CompileInfo{}, []string{"No build information"}},
		{CompileInfo{Binary: "multiwgcna/cmd/rundme", GoVersion: "go1.18", Commit: "abc123"}, []string{"rundme", "go1.18", "commit abc123"}},
		{CompileInfo{GoVersion: "go1.18", Modified: true}, []string{"commit unknown", "uncommitted"}},
	} {
		s := v.Info.String()
		for _, want := range v.Contains {
			if !strings.Contains(s, want) {
				t.Fatalf("%q does not contain %q", s, want)
			}
		}
	}
}

func TestBanner(t *testing.T) {
	info := CompileInfo{Binary: "github.com/carbocation/multiwgcna/cmd/rundme", GoVersion: "go1.18", Commit: "abc123"}

	b := info.Banner("rundme")
	if !strings.HasPrefix(b, "rundme: ") || !strings.HasSuffix(strings.TrimSpace(b), strings.TrimSpace(info.String())) {
		t.Fatalf("Unexpected banner %q", b)
	}

	var buf strings.Builder
	Fprint(&buf, "buildnetworks")
	if !strings.HasPrefix(buf.String(), "buildnetworks: ") || !strings.HasSuffix(buf.String(), "\n") {
		t.Fatalf("Unexpected output %q", buf.String())
	}
}
