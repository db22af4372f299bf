package version

import (
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if BuildTime == "" || GitCommit == "" {
		t.Error("build info should be initialized")
	}
}

func TestStringAndUserAgent(t *testing.T) {
	if !strings.HasPrefix(String(), "pagesmith "+Version) {
		t.Errorf("unexpected version line %q", String())
	}
	if UserAgent() != "pagesmith/"+Version {
		t.Errorf("unexpected user agent %q", UserAgent())
	}
}
