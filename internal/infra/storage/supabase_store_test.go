package storage

import (
	"strings"
	"testing"
	"time"
)

func newStore(t *testing.T) *SupabaseStore {
	t.Helper()
	s, err := NewSupabaseStore("https://proj.supabase.co", "service-key", "garments", 5*time.Second)
	if err != nil {
		t.Fatalf("NewSupabaseStore: %v", err)
	}
	return s
}

func TestNewSupabaseStore_RequiresURLAndBucket(t *testing.T) {
	if _, err := NewSupabaseStore("", "k", "b", time.Second); err == nil {
		t.Error("empty project url accepted")
	}
	if _, err := NewSupabaseStore("https://proj.supabase.co", "k", "", time.Second); err == nil {
		t.Error("empty bucket accepted")
	}
}

func TestObjectPath_InvertsPublicURL(t *testing.T) {
	s := newStore(t)
	url := s.publicURL("designs/abc_shirt.png")
	got, ok := s.objectPath(url)
	if !ok {
		t.Fatalf("objectPath rejected own URL %q", url)
	}
	if got != "designs/abc_shirt.png" {
		t.Errorf("objectPath %q", got)
	}
}

func TestObjectPath_RejectsForeignURLs(t *testing.T) {
	s := newStore(t)
	for _, url := range []string{
		"https://other.supabase.co/storage/v1/object/public/garments/designs/a.png",
		"https://proj.supabase.co/storage/v1/object/public/other-bucket/designs/a.png",
		"not-a-url",
	} {
		if _, ok := s.objectPath(url); ok {
			t.Errorf("foreign url accepted: %q", url)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"shirt.png":           "shirt.png",
		"my photo (1).jpg":    "my_photo__1_.jpg",
		"../../etc/passwd":    "passwd",
		`C:\pics\selfie.jpeg`: "selfie.jpeg",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	if got := contentTypeFor("a.PNG"); got != "image/png" {
		t.Errorf("png: %q", got)
	}
	if got := contentTypeFor("a.jpg"); got != "image/jpeg" {
		t.Errorf("jpg: %q", got)
	}
	if got := contentTypeFor("mystery"); !strings.HasPrefix(got, "image/") {
		t.Errorf("fallback: %q", got)
	}
}
