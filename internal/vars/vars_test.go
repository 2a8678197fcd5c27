package vars

import (
	"bytes"
	"strings"
	"testing"
)

func TestCommitShort(t *testing.T) {
	orig := Commit
	t.Cleanup(func() { Commit = orig })

	Commit = "da15c174cd2ada1ad247906536c101e8f6799def"
	if got := CommitShort(); got != "da15c17" {
		t.Errorf("CommitShort = %q", got)
	}

	Commit = "abc"
	if got := CommitShort(); got != "abc" {
		t.Errorf("CommitShort = %q", got)
	}
}

func TestFprint(t *testing.T) {
	var buf bytes.Buffer
	Fprint(&buf)

	out := buf.String()
	for _, key := range []string{"name:", "version:", "commit:", "license:"} {
		if !strings.Contains(out, key) {
			t.Errorf("output misses %q:\n%s", key, out)
		}
	}
	if !strings.Contains(out, Name) {
		t.Errorf("output misses project name:\n%s", out)
	}
}
