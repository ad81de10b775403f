// Package detect identifies which model format a byte buffer holds.
package detect

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"slices"
	"strings"

	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// Format is the closed set of model formats glimpse understands.
type Format int

const (
	Unknown Format = iota
	GltfJSON
	GltfBinary
	Obj
	Blockbench
	MinecraftBedrock
	MinecraftJava
	VintageStory
)

// Formats lists every recognized format.
var Formats = []Format{GltfJSON, GltfBinary, Obj, Blockbench, MinecraftBedrock, MinecraftJava, VintageStory}

var formatNames = map[Format]string{
	Unknown:          "unknown",
	GltfJSON:         "gltf",
	GltfBinary:       "glb",
	Obj:              "obj",
	Blockbench:       "blockbench",
	MinecraftBedrock: "bedrock",
	MinecraftJava:    "java",
	VintageStory:     "vintagestory",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "unknown"
}

// Extensions returns the file extensions, with the dot, a format is stored
// under.
func (f Format) Extensions() []string {
	switch f {
	case GltfJSON:
		return []string{".gltf"}
	case GltfBinary:
		return []string{".glb"}
	case Obj:
		return []string{".obj"}
	case Blockbench:
		return []string{".bbmodel"}
	case MinecraftBedrock, MinecraftJava, VintageStory:
		return []string{".json"}
	}
	return nil
}

// ParseFormat maps a format name, as printed by String, back to a Format.
func ParseFormat(name string) (Format, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range formatNames {
		if n == name && f != Unknown {
			return f, true
		}
	}
	return Unknown, false
}

// ModelExtensions are the extensions Detect may return a known format for.
var ModelExtensions = []string{".gltf", ".glb", ".obj", ".bbmodel", ".json"}

// IsModelFile reports whether name carries one of ModelExtensions.
func IsModelFile(name string) bool {
	return slices.Contains(ModelExtensions, normalizeExt(name))
}

var glbMagic = []byte("glTF")

// Detect returns the format of data. hint is a file name or an extension,
// with or without the leading dot. Extension-only formats are decided by the
// hint; .json files and unhinted data are sniffed.
func Detect(data []byte, hint string) Format {
	switch normalizeExt(hint) {
	case ".gltf":
		return GltfJSON
	case ".glb":
		return GltfBinary
	case ".bbmodel":
		return Blockbench
	case ".obj":
		return Obj
	case ".json":
		return sniffJSON(data)
	}
	return sniff(data)
}

func sniff(data []byte) Format {
	if bytes.HasPrefix(data, glbMagic) {
		return GltfBinary
	}
	top, ok := decodeObject(data)
	if !ok {
		return Unknown
	}
	if asset, ok := top["asset"].(map[string]any); ok {
		if _, ok := asset["version"]; ok {
			return GltfJSON
		}
	}
	return classify(top)
}

func sniffJSON(data []byte) Format {
	top, ok := decodeObject(data)
	if !ok {
		return Unknown
	}
	return classify(top)
}

// classify applies the .json content rules in order. The first match wins.
func classify(top map[string]any) Format {
	if _, ok := top["minecraft:geometry"]; ok {
		return MinecraftBedrock
	}

	elements, hasElements := top["elements"].([]any)
	_, hasParent := top["parent"]
	_, hasTextureSize := top["texture_size"]
	if hasElements && (hasParent || hasTextureSize) {
		return MinecraftJava
	}

	_, hasMeta := top["meta"]
	_, hasVersion := top["format_version"]
	if hasMeta && hasVersion {
		return Blockbench
	}

	if hasElements && hasCubeBounds(elements, 0) {
		return VintageStory
	}

	// Pre-1.12 Bedrock geometry keys each model as "geometry.<name>".
	for k, v := range top {
		if g, ok := v.(map[string]any); ok && strings.HasPrefix(k, "geometry.") {
			if _, ok := g["bones"]; ok {
				return MinecraftBedrock
			}
		}
	}
	return Unknown
}

const maxSniffDepth = 64

func hasCubeBounds(elements []any, depth int) bool {
	if depth > maxSniffDepth {
		return false
	}
	for _, e := range elements {
		el, ok := e.(map[string]any)
		if !ok {
			continue
		}
		_, hasFrom := el["from"]
		_, hasTo := el["to"]
		if hasFrom && hasTo {
			return true
		}
		if children, ok := el["children"].([]any); ok && hasCubeBounds(children, depth+1) {
			return true
		}
	}
	return false
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeObject parses data as a JSON object, retrying as JSON5 when strict
// decoding fails.
func decodeObject(data []byte) (map[string]any, bool) {
	data = bytes.TrimPrefix(data, utf8BOM)
	var top map[string]any
	if err := json.Unmarshal(data, &top); err == nil {
		return top, top != nil
	}
	top = nil
	if err := json5.Unmarshal(data, &top); err != nil {
		return nil, false
	}
	return top, top != nil
}

func normalizeExt(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return ""
	}
	if ext := filepath.Ext(hint); ext != "" {
		return ext
	}
	return "." + hint
}
