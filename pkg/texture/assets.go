package texture

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ImageExtensions are tried in order when a logical texture name has none.
var ImageExtensions = []string{".png", ".tga", ".jpg", ".jpeg", ".bmp", ".webp"}

// AssetTree is a root directory laid out as assets/<domain>/textures/...
type AssetTree struct {
	Root string
}

// FindAssetRoot walks up from start looking for a directory that holds an
// "assets" directory, or for an "assets" path component.
func FindAssetRoot(start string) (string, bool) {
	if start == "" {
		return "", false
	}
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for dir := abs; ; {
		if filepath.Base(dir) == "assets" {
			return filepath.Dir(dir), true
		}
		if info, err := os.Stat(filepath.Join(dir, "assets")); err == nil && info.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// DomainOf returns the <domain> segment of a path under assets/<domain>/.
func DomainOf(path string) string {
	if path == "" {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")
	for i := len(parts) - 2; i >= 0; i-- {
		if parts[i] == "assets" {
			return parts[i+1]
		}
	}
	return ""
}

// Domains lists the domains under assets/, sorted.
func (a *AssetTree) Domains() []string {
	entries, err := os.ReadDir(filepath.Join(a.Root, "assets"))
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	slices.Sort(out)
	return out
}

// Lookup finds assets/<domain>/textures/<name> on disk. The preferred
// domains are searched first in the order given, then every other domain in
// lexical order.
func (a *AssetTree) Lookup(name string, preferred ...string) (string, bool) {
	name = strings.TrimPrefix(filepath.ToSlash(name), "/")
	name = strings.TrimPrefix(name, "textures/")
	if name == "" || strings.Contains(name, "..") {
		return "", false
	}

	candidates := []string{name}
	if ext := strings.ToLower(filepath.Ext(name)); !slices.Contains(ImageExtensions, ext) {
		candidates = candidates[:0]
		for _, ext := range ImageExtensions {
			candidates = append(candidates, name+ext)
		}
	}

	for _, domain := range a.searchOrder(preferred) {
		for _, c := range candidates {
			p := filepath.Join(a.Root, "assets", domain, "textures", filepath.FromSlash(c))
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, true
			}
		}
	}
	return "", false
}

// Find returns assets/<domain>/<kind>/<rel> when it exists as a file.
func (a *AssetTree) Find(domain, kind, rel string) (string, bool) {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "/")
	if domain == "" || rel == "" || strings.Contains(rel, "..") {
		return "", false
	}
	p := filepath.Join(a.Root, "assets", domain, kind, filepath.FromSlash(rel))
	if info, err := os.Stat(p); err == nil && !info.IsDir() {
		return p, true
	}
	return "", false
}

func (a *AssetTree) searchOrder(preferred []string) []string {
	var order []string
	for _, d := range preferred {
		if d != "" && !slices.Contains(order, d) {
			order = append(order, d)
		}
	}
	for _, d := range a.Domains() {
		if !slices.Contains(order, d) {
			order = append(order, d)
		}
	}
	return order
}
