package version

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	v := Get()
	if v == "" {
		t.Fatal("empty version")
	}
	if strings.TrimSpace(v) != v {
		t.Errorf("version %q not trimmed", v)
	}
}

func TestString(t *testing.T) {
	old := Commit
	defer func() { Commit = old }()

	Commit = ""
	if s := String(); !strings.HasPrefix(s, "hivemind "+Get()+" ") {
		t.Errorf("String() = %q", s)
	}

	Commit = "abc1234"
	if s := String(); !strings.Contains(s, "(abc1234)") {
		t.Errorf("String() = %q, want commit", s)
	}
}
