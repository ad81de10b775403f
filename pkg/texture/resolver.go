package texture

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Reasons a reference could not be resolved. They are recorded as Misses,
// never returned to callers.
var (
	ErrNotFound    = errors.New("not found")
	ErrNoBasePath  = errors.New("no base path to resolve against")
	ErrRead        = errors.New("read failed")
	ErrDecode      = errors.New("cannot decode")
	ErrOutsideBase = errors.New("outside the base path")
)

// MaxFileSize bounds companion reads so one bad reference cannot stall a
// thumbnail.
const MaxFileSize = 64 << 20

// Miss records one reference that resolved to "unavailable".
type Miss struct {
	Ref string
	Err error
}

func (m Miss) Error() string {
	return fmt.Sprintf("%s: %v", m.Ref, m.Err)
}

func (m Miss) Unwrap() error {
	return m.Err
}

// Resolver turns texture references into decoded textures. A Resolver
// belongs to one parse: it memoizes decoded files and is not safe for
// concurrent use.
type Resolver struct {
	// BasePath is the directory companion files are resolved against.
	// Empty means only embedded data can be resolved.
	BasePath string
	// Assets is the asset tree used for logical texture names. When nil it
	// is discovered from BasePath on first use.
	Assets *AssetTree

	misses      []Miss
	cache       map[string]*Texture
	assetsProbe bool
}

// NewResolver creates a resolver rooted at basePath.
func NewResolver(basePath string) *Resolver {
	return &Resolver{BasePath: basePath, cache: make(map[string]*Texture)}
}

// Misses returns every reference that could not be resolved, in order.
func (r *Resolver) Misses() []Miss {
	return r.misses
}

// TakeMisses returns the misses recorded since the last call and forgets them.
func (r *Resolver) TakeMisses() []Miss {
	m := r.misses
	r.misses = nil
	return m
}

// Miss records ref as unavailable for the given reason.
func (r *Resolver) Miss(ref string, err error) {
	r.misses = append(r.misses, Miss{Ref: ref, Err: err})
}

// FromBytes decodes raw embedded image bytes.
func (r *Resolver) FromBytes(ref string, data []byte) (*Texture, bool) {
	if len(data) == 0 {
		r.Miss(ref, ErrNotFound)
		return nil, false
	}
	tex, err := Decode(data)
	if err != nil {
		r.Miss(ref, fmt.Errorf("%w: %v", ErrDecode, err))
		return nil, false
	}
	return tex, true
}

// FromDataURI decodes a data: URI carrying an image.
func (r *Resolver) FromDataURI(uri string) (*Texture, bool) {
	data, err := DecodeDataURI(uri)
	if err != nil {
		r.Miss(shortRef(uri), fmt.Errorf("%w: %v", ErrDecode, err))
		return nil, false
	}
	return r.FromBytes(shortRef(uri), data)
}

// Resolve handles either a data URI or a companion-file path.
func (r *Resolver) Resolve(ref string) (*Texture, bool) {
	if IsDataURI(ref) {
		return r.FromDataURI(ref)
	}
	return r.FromFile(ref)
}

// FromFile loads and decodes a companion file. Relative paths are resolved
// against BasePath.
func (r *Resolver) FromFile(rel string) (*Texture, bool) {
	path, ok := r.locate(rel)
	if !ok {
		return nil, false
	}
	return r.loadPath(rel, path)
}

// TryFile is FromFile for optional companions: a file that does not exist
// is not recorded as a miss.
func (r *Resolver) TryFile(rel string) (*Texture, bool) {
	p, err := r.contain(rel)
	if err != nil {
		return nil, false
	}
	if info, err := os.Stat(p); err != nil || info.IsDir() {
		return nil, false
	}
	return r.loadPath(rel, p)
}

// ReadFile reads a companion file such as an MTL library. ok is false, with
// a Miss recorded, when the file is unavailable.
func (r *Resolver) ReadFile(rel string) ([]byte, bool) {
	path, ok := r.locate(rel)
	if !ok {
		return nil, false
	}
	data, err := readBounded(path)
	if err != nil {
		r.Miss(rel, err)
		return nil, false
	}
	return data, true
}

// FromAssetTree resolves a logical texture name such as "block/stone"
// through the asset tree, preferring the given domains in order.
func (r *Resolver) FromAssetTree(name string, domains ...string) (*Texture, bool) {
	tree := r.assetTree()
	if tree == nil {
		r.Miss(name, ErrNoBasePath)
		return nil, false
	}
	path, ok := tree.Lookup(name, domains...)
	if !ok {
		r.Miss(name, ErrNotFound)
		return nil, false
	}
	return r.loadPath(name, path)
}

// ReadAsset reads assets/<domain>/<kind>/<rel> from the asset tree, such as
// a parent model. A file that does not exist is not recorded as a miss.
func (r *Resolver) ReadAsset(domain, kind, rel string) ([]byte, bool) {
	tree := r.assetTree()
	if tree == nil {
		return nil, false
	}
	p, ok := tree.Find(domain, kind, rel)
	if !ok {
		return nil, false
	}
	data, err := readBounded(p)
	if err != nil {
		r.Miss(rel, err)
		return nil, false
	}
	return data, true
}

// AssetDomain returns the domain the base path lives in, or "" when the
// base path is not inside an asset tree.
func (r *Resolver) AssetDomain() string {
	return DomainOf(r.BasePath)
}

func (r *Resolver) assetTree() *AssetTree {
	if r.Assets == nil && !r.assetsProbe {
		r.assetsProbe = true
		if root, ok := FindAssetRoot(r.BasePath); ok {
			r.Assets = &AssetTree{Root: root}
		}
	}
	return r.Assets
}

func (r *Resolver) locate(rel string) (string, bool) {
	p, err := r.contain(rel)
	if err != nil {
		r.Miss(strings.TrimSpace(rel), err)
		return "", false
	}
	return p, true
}

// contain maps a companion reference to a path under BasePath. Absolute
// references and references that climb out of BasePath are rejected.
func (r *Resolver) contain(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", ErrNotFound
	}
	if unescaped, err := url.PathUnescape(rel); err == nil {
		rel = unescaped
	}
	rel = strings.ReplaceAll(rel, `\`, "/")
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") || filepath.VolumeName(rel) != "" {
		return "", fmt.Errorf("%w: absolute path %s", ErrOutsideBase, rel)
	}
	if r.BasePath == "" {
		return "", ErrNoBasePath
	}

	p := filepath.Join(r.BasePath, filepath.FromSlash(rel))
	within, err := filepath.Rel(filepath.Clean(r.BasePath), p)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideBase, rel)
	}
	return p, nil
}

func (r *Resolver) loadPath(ref, path string) (*Texture, bool) {
	if r.cache == nil {
		r.cache = make(map[string]*Texture)
	}
	if tex, ok := r.cache[path]; ok {
		return tex, true
	}
	data, err := readBounded(path)
	if err != nil {
		r.Miss(ref, err)
		return nil, false
	}
	tex, err := Decode(data)
	if err != nil {
		r.Miss(ref, fmt.Errorf("%w: %v", ErrDecode, err))
		return nil, false
	}
	r.cache[path] = tex
	return tex, true
}

func readBounded(path string) ([]byte, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	case info.IsDir():
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	case info.Size() > MaxFileSize:
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrRead, path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	return data, nil
}

// IsDataURI reports whether s is a data: URI.
func IsDataURI(s string) bool {
	return len(s) > 5 && strings.EqualFold(s[:5], "data:")
}

// DecodeDataURI returns the payload of a data: URI. Both base64 and
// percent-encoded payloads are accepted.
func DecodeDataURI(uri string) ([]byte, error) {
	if !IsDataURI(uri) {
		return nil, errors.New("not a data URI")
	}
	header, payload, ok := strings.Cut(uri[5:], ",")
	if !ok {
		return nil, errors.New("data URI has no payload")
	}
	if !strings.HasSuffix(strings.ToLower(header), ";base64") {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	}
	payload = strings.TrimSpace(payload)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some exporters drop the padding.
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, err
	}
	return data, nil
}

func shortRef(uri string) string {
	if header, _, ok := strings.Cut(uri, ","); ok {
		return header + ",..."
	}
	return uri
}
