package caching

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	c, err := NewCache(filepath.Join(t.TempDir(), "cache"), time.Hour)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}

	if _, ok := c.Get("https://example.com"); ok {
		t.Fatal("Get() hit on empty cache")
	}
	if err := c.Set("https://example.com", []byte("<p>hi</p>")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok := c.Get("https://example.com")
	if !ok || string(got) != "<p>hi</p>" {
		t.Errorf("Get() = %q, %v; want body, true", got, ok)
	}
	if _, ok := c.Get("https://example.org"); ok {
		t.Error("Get() hit for a different url")
	}
}

func TestCache_Expired(t *testing.T) {
	c, err := NewCache(t.TempDir(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set("u", []byte("x")); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Minute)
	if err := os.Chtimes(c.file("u"), old, old); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("u"); ok {
		t.Error("Get() returned expired entry")
	}
}
