package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/mind-engage/emoscreen/internal/config"
)

func TestCleanKey(t *testing.T) {
	cases := map[string]string{
		"workbooks/a.xlsx":    "workbooks/a.xlsx",
		"/workbooks//a.xlsx":  "workbooks/a.xlsx",
		`workbooks\b.xlsx`:    "workbooks/b.xlsx",
		"./uploads/./c.xlsx ": "uploads/c.xlsx",
	}
	for in, want := range cases {
		got, err := CleanKey(in)
		if err != nil || got != want {
			t.Fatalf("CleanKey(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "  ", "../etc/passwd", "a/../../b", "/"} {
		if _, err := CleanKey(bad); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("CleanKey(%q) err = %v", bad, err)
		}
	}
}

func TestFSStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, config.Config{BlobDriver: "fs", BlobBasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	key, err := st.Put(ctx, "/workbooks/run-1.xlsx", strings.NewReader("PK-data"))
	if err != nil || key != "workbooks/run-1.xlsx" {
		t.Fatalf("put = %q, %v", key, err)
	}
	rc, err := st.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	buf, _ := io.ReadAll(rc)
	rc.Close()
	if string(buf) != "PK-data" {
		t.Fatalf("content = %q", buf)
	}
	if _, err := st.Get(ctx, "workbooks/missing.xlsx"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}
	u, err := st.SignedURL(ctx, key)
	if err != nil || !strings.HasPrefix(u, "file://") || !strings.HasSuffix(u, "/workbooks/run-1.xlsx") {
		t.Fatalf("url = %q, %v", u, err)
	}
	if _, err := Open(ctx, config.Config{BlobDriver: "ftp"}); err == nil {
		t.Fatalf("unknown driver accepted")
	}
}
