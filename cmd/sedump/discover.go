package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// Site groups the dump files found under one per-site subdirectory of the
// dump root. A missing file is an empty path; trimmed-down dumps can ship
// users without posts.
type Site struct {
	TinyName  string
	UsersFile string
	PostsFile string
}

// Discovery is the result of scanning a dump root.
type Discovery struct {
	SitesFile string
	Sites     []Site
}

// Files returns every discovered dump file path, Sites.xml first.
func (d *Discovery) Files() []string {
	out := []string{d.SitesFile}
	for _, s := range d.Sites {
		if s.UsersFile != "" {
			out = append(out, s.UsersFile)
		}
		if s.PostsFile != "" {
			out = append(out, s.PostsFile)
		}
	}
	return out
}

// discover scans a dump root: Sites.xml at the top level, then one
// subdirectory per site, named by the site's tiny-name, holding Users.xml
// and Posts.xml. When only is non-empty, subdirectories outside it are
// ignored. Subdirectories with neither dump file are skipped.
//
// Sites come back in directory-name order (os.ReadDir sorts), which keeps
// load order stable across runs.
func discover(dir string, only []string) (*Discovery, error) {
	sitesFile := filepath.Join(dir, "Sites.xml")
	if _, err := os.Stat(sitesFile); err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}

	want := make(map[string]struct{}, len(only))
	for _, s := range only {
		want[s] = struct{}{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}

	d := &Discovery{SitesFile: sitesFile}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if len(want) > 0 {
			if _, ok := want[name]; !ok {
				continue
			}
		}

		site := Site{TinyName: name}
		if p := filepath.Join(dir, name, "Users.xml"); fileExists(p) {
			site.UsersFile = p
		}
		if p := filepath.Join(dir, name, "Posts.xml"); fileExists(p) {
			site.PostsFile = p
		}
		if site.UsersFile == "" && site.PostsFile == "" {
			continue
		}
		d.Sites = append(d.Sites, site)
	}
	return d, nil
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
