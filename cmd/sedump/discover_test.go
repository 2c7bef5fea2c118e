package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeTree(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		path := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("<x/>\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return dir
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	dir := writeTree(t,
		"Sites.xml",
		"cooking/Users.xml",
		"cooking/Posts.xml",
		"scifi/Users.xml",
	)

	d, err := discover(dir, nil)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if d.SitesFile != filepath.Join(dir, "Sites.xml") {
		t.Fatalf("SitesFile = %q", d.SitesFile)
	}

	want := []Site{
		{
			TinyName:  "cooking",
			UsersFile: filepath.Join(dir, "cooking", "Users.xml"),
			PostsFile: filepath.Join(dir, "cooking", "Posts.xml"),
		},
		{
			TinyName:  "scifi",
			UsersFile: filepath.Join(dir, "scifi", "Users.xml"),
		},
	}
	if !reflect.DeepEqual(d.Sites, want) {
		t.Fatalf("sites = %+v, want %+v", d.Sites, want)
	}
}

func TestDiscoverOnlyFilter(t *testing.T) {
	t.Parallel()

	dir := writeTree(t,
		"Sites.xml",
		"cooking/Users.xml",
		"scifi/Users.xml",
		"math/Users.xml",
	)

	d, err := discover(dir, []string{"scifi"})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(d.Sites) != 1 || d.Sites[0].TinyName != "scifi" {
		t.Fatalf("sites = %+v", d.Sites)
	}
}

func TestDiscoverSkipsEmptyDirs(t *testing.T) {
	t.Parallel()

	dir := writeTree(t,
		"Sites.xml",
		"cooking/Users.xml",
		"junk/readme.txt",
	)

	d, err := discover(dir, nil)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(d.Sites) != 1 || d.Sites[0].TinyName != "cooking" {
		t.Fatalf("sites = %+v", d.Sites)
	}
}

func TestDiscoverMissingSitesFile(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, "cooking/Users.xml")
	if _, err := discover(dir, nil); err == nil {
		t.Fatal("want error when Sites.xml is missing")
	}
}

func TestDiscoveryFiles(t *testing.T) {
	t.Parallel()

	dir := writeTree(t,
		"Sites.xml",
		"cooking/Users.xml",
		"cooking/Posts.xml",
	)

	d, err := discover(dir, nil)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	files := d.Files()
	if len(files) != 3 || files[0] != d.SitesFile {
		t.Fatalf("files = %v", files)
	}
}

func TestSplitSites(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"scifi", []string{"scifi"}},
		{"scifi,cooking", []string{"scifi", "cooking"}},
		{" scifi , ,cooking,", []string{"scifi", "cooking"}},
	}
	for _, tt := range tests {
		if got := splitSites(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("splitSites(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
