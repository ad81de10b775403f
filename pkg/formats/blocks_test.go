package formats

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/taigrr/glimpse/pkg/detect"
	"github.com/taigrr/glimpse/pkg/scene"
)

// assetTree lays out root/assets/<domain>/textures/block/stone.png in the
// given colors and returns root.
func assetTree(t *testing.T, colors map[string][]byte) string {
	t.Helper()
	root := t.TempDir()
	for domain, img := range colors {
		writeFile(t, filepath.Join(root, "assets", domain, "textures", "block", "stone.png"), img)
	}
	return root
}

func TestVintageStoryDomainPreference(t *testing.T) {
	root := assetTree(t, map[string][]byte{
		"game":     pngBytes(t, blue),
		"mydomain": pngBytes(t, red),
	})
	base := filepath.Join(root, "assets", "mydomain", "shapes", "block")

	tests := []struct {
		name string
		ref  string
		want any
	}{
		{"model domain wins", "block/stone", red},
		{"explicit domain", "game:block/stone", blue},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			shape := `{
				"textures": {"all": "` + tc.ref + `"},
				"elements": [{"from": [0,0,0], "to": [16,16,16], "faces": {"north": {"texture": "#all", "uv": [0,0,16,16]}}}]
			}`
			s := mustParse(t, detect.VintageStory, Asset{Data: []byte(shape), Hint: "thing.json", BasePath: base})
			tex := faceTexture(t, s)
			if tex == nil {
				t.Fatalf("texture unresolved: %v", s.Warnings)
			}
			if got := tex.GetPixel(0, 0); got != tc.want {
				t.Errorf("texture color = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestVintageStoryFaces(t *testing.T) {
	shape := `{
		"elements": [{
			"from": [0,0,0], "to": [16,16,16],
			"faces": {
				"north": {"texture": "#a"},
				"south": {"texture": "#a", "enabled": false},
				"up": {"texture": "#a", "enabled": true}
			}
		}]
	}`
	s := mustParse(t, detect.VintageStory, Asset{Data: []byte(shape)})
	if got := s.TriangleCount(); got != 4 {
		t.Errorf("TriangleCount() = %d, want 4 (disabled face skipped)", got)
	}
	if e := extent(s); !near(e.X, 1) || !near(e.Y, 1) || !near(e.Z, 1) {
		t.Errorf("extent = %v, want one block", e)
	}
}

func TestVintageStoryChildOffset(t *testing.T) {
	shape := `{
		"elements": [{
			"from": [15,0,0], "to": [16,1,1],
			"faces": {"north": {"texture": "#a"}},
			"children": [{"from": [0,0,0], "to": [1,1,1], "faces": {"north": {"texture": "#a"}}}]
		}]
	}`
	s := mustParse(t, detect.VintageStory, Asset{Data: []byte(shape)})
	if e := extent(s); !near(e.X, 1.0/16) {
		t.Errorf("extent = %v, want the child to sit inside its parent", e)
	}
}

func TestBedrockCubes(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantFaces int
		warn      error
	}{
		{"box uv", `{"format_version": "1.12.0", "minecraft:geometry": [{
			"description": {"identifier": "geometry.box", "texture_width": 64, "texture_height": 32},
			"bones": [{"name": "root", "pivot": [0,0,0], "cubes": [{"origin": [-8,0,-8], "size": [16,16,16], "uv": [0,0]}]}]
		}]}`, 12, nil},
		{"per-face uv skips absent faces", `{"format_version": "1.16.0", "minecraft:geometry": [{
			"description": {"identifier": "geometry.face"},
			"bones": [{"name": "root", "cubes": [{"origin": [0,0,0], "size": [4,4,4], "uv": {"north": {"uv": [0,0], "uv_size": [4,4]}}}]}]
		}]}`, 2, nil},
		{"legacy layout", `{"format_version": "1.8.0", "geometry.old": {
			"texturewidth": 64, "textureheight": 64,
			"bones": [{"name": "body", "cubes": [{"origin": [0,0,0], "size": [2,2,2], "uv": [0,0]}]}]
		}}`, 12, nil},
		{"missing parent becomes root", `{"minecraft:geometry": [{
			"bones": [{"name": "arm", "parent": "ghost", "rotation": [0,0,45], "cubes": [{"origin": [0,0,0], "size": [1,1,1]}]}]
		}]}`, 12, scene.ErrMalformedInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := mustParse(t, detect.MinecraftBedrock, Asset{Data: []byte(tc.src)})
			if got := s.TriangleCount(); got != tc.wantFaces {
				t.Errorf("TriangleCount() = %d, want %d", got, tc.wantFaces)
			}
			if tc.warn != nil && !hasWarning(s, tc.warn) {
				t.Errorf("warnings %v do not include %v", s.Warnings, tc.warn)
			}
		})
	}
}

func TestBedrockBoneCycle(t *testing.T) {
	src := `{"minecraft:geometry": [{"bones": [
		{"name": "a", "parent": "b", "cubes": [{"origin": [0,0,0], "size": [1,1,1]}]},
		{"name": "b", "parent": "a"}
	]}]}`
	_, err := Parse(Asset{Data: []byte(src)}, detect.MinecraftBedrock, nil)
	if !errors.Is(err, scene.ErrMalformedInput) {
		t.Errorf("error = %v, want ErrMalformedInput", err)
	}
}

func TestBedrockSiblingTexture(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pig.png"), pngBytes(t, red))
	src := `{"minecraft:geometry": [{"bones": [{"name": "body", "cubes": [{"origin": [0,0,0], "size": [8,8,8], "uv": [0,0]}]}]}]}`

	s := mustParse(t, detect.MinecraftBedrock, Asset{Data: []byte(src), Hint: "pig.geo.json", BasePath: dir})
	tex := faceTexture(t, s)
	if tex == nil || tex.GetPixel(0, 0) != red {
		t.Errorf("sibling texture not used: %v", s.Warnings)
	}
}

func TestBlockbenchFaces(t *testing.T) {
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, red))
	src := `{
		"meta": {"format_version": "4.5", "model_format": "free"},
		"resolution": {"width": 16, "height": 16},
		"textures": [{"name": "skin", "uuid": "tex-1", "source": "` + uri + `"}],
		"elements": [
			{"name": "cube", "uuid": "e1", "from": [0,0,0], "to": [16,16,16], "origin": [8,8,8],
			 "faces": {
				"north": {"uv": [0,0,16,16], "texture": 0},
				"south": {"uv": [0,0,16,16], "texture": "tex-1"},
				"east": {"uv": [0,0,16,16], "texture": null},
				"west": {"uv": [0,0,16,16]}
			 }},
			{"name": "hidden", "uuid": "e2", "from": [0,0,0], "to": [1,1,1], "visibility": false,
			 "faces": {"north": {"uv": [0,0,1,1], "texture": 0}}},
			{"name": "poly", "uuid": "e3", "type": "mesh"}
		],
		"outliner": [{"name": "root", "uuid": "g1", "origin": [0,0,0], "rotation": [0,0,0], "children": ["e1", "e2"]}]
	}`

	s := mustParse(t, detect.Blockbench, Asset{Data: []byte(src), Hint: "model.bbmodel"})
	if got := s.TriangleCount(); got != 4 {
		t.Errorf("TriangleCount() = %d, want 4 (null texture and hidden element skipped)", got)
	}
	if tex := faceTexture(t, s); tex == nil || tex.GetPixel(0, 0) != red {
		t.Error("embedded texture not decoded")
	}
	if len(s.Materials) != 1 {
		t.Errorf("got %d materials, want index and UUID to share one", len(s.Materials))
	}
	if !hasWarning(s, scene.ErrUnsupportedPrimitive) {
		t.Errorf("warnings %v do not mention the mesh element", s.Warnings)
	}
}

func TestBlockbenchAuthorTexturePath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "skin.png"), pngBytes(t, red), 0o644); err != nil {
		t.Fatal(err)
	}
	src := `{
		"meta": {"format_version": "4.5"},
		"textures": [{"name": "skin", "path": "C:\\Users\\artist\\skin.png"}],
		"elements": [{"uuid": "e1", "from": [0,0,0], "to": [16,16,16], "faces": {"north": {"uv": [0,0,16,16], "texture": 0}}}],
		"outliner": ["e1"]
	}`
	s := mustParse(t, detect.Blockbench, Asset{Data: []byte(src), Hint: "model.bbmodel", BasePath: dir})
	if tex := faceTexture(t, s); tex == nil || tex.GetPixel(0, 0) != red {
		t.Error("texture next to the model not used for an absolute author path")
	}
}

func TestBlockbenchOutlinerCycle(t *testing.T) {
	src := `{
		"meta": {"format_version": "4.10"},
		"elements": [{"uuid": "e1", "from": [0,0,0], "to": [1,1,1], "faces": {"north": {"uv": [0,0,1,1], "texture": 0}}}],
		"groups": [{"uuid": "g1", "name": "loop", "children": ["e1", "g1"]}],
		"outliner": ["g1"]
	}`
	_, err := Parse(Asset{Data: []byte(src)}, detect.Blockbench, nil)
	if !errors.Is(err, scene.ErrMalformedInput) {
		t.Errorf("error = %v, want ErrMalformedInput", err)
	}
}

func TestBlockbenchGroupRotation(t *testing.T) {
	// A 90 degree group turn about Y swaps the slab's X and Z extents.
	src := `{
		"meta": {"format_version": "4.5"},
		"elements": [{"uuid": "e1", "from": [0,0,0], "to": [16,16,4], "faces": {"north": {"texture": 0}, "south": {"texture": 0}}}],
		"outliner": [{"uuid": "g1", "origin": [0,0,0], "rotation": [0,90,0], "children": ["e1"]}]
	}`
	s := mustParse(t, detect.Blockbench, Asset{Data: []byte(src)})
	if e := extent(s); !near(e.X, 0.25) || !near(e.Z, 1) {
		t.Errorf("extent = %v, want the slab turned onto the X axis", e)
	}
}

func TestJavaTextureReferences(t *testing.T) {
	root := assetTree(t, map[string][]byte{"minecraft": pngBytes(t, red)})
	base := filepath.Join(root, "assets", "minecraft", "models", "block")

	src := `{
		"textures": {"side": "#all", "all": "block/stone"},
		"elements": [{"from": [0,0,0], "to": [16,16,16], "faces": {
			"north": {"texture": "#side"},
			"south": {"texture": "#missing"},
			"up": {}
		}}]
	}`
	s := mustParse(t, detect.MinecraftJava, Asset{Data: []byte(src), Hint: "stone.json", BasePath: base})

	if got := s.TriangleCount(); got != 4 {
		t.Errorf("TriangleCount() = %d, want 4 (face without texture skipped)", got)
	}
	var resolved, unresolved bool
	for _, m := range s.Materials {
		switch m.TextureRef {
		case "block/stone":
			resolved = m.Texture != nil && m.Texture.GetPixel(0, 0) == red
		case "#missing":
			unresolved = m.Texture == nil
		}
	}
	if !resolved {
		t.Error("#side did not resolve through #all to block/stone")
	}
	if !unresolved || !hasWarning(s, scene.ErrMissingResource) {
		t.Errorf("unresolved reference not reported: %v", s.Warnings)
	}
}

func TestJavaParentInheritance(t *testing.T) {
	root := assetTree(t, map[string][]byte{"minecraft": pngBytes(t, red)})
	models := filepath.Join(root, "assets", "minecraft", "models")
	writeFile(t, filepath.Join(models, "block", "cube.json"), []byte(`{
		"parent": "block/block",
		"elements": [{"from": [0,0,0], "to": [16,16,16], "faces": {"north": {"texture": "#all"}, "up": {"texture": "#top"}}}],
		"textures": {"top": "#all"}
	}`))

	src := `{"parent": "minecraft:block/cube", "textures": {"all": "block/stone"}}`
	s := mustParse(t, detect.MinecraftJava, Asset{Data: []byte(src), BasePath: filepath.Join(models, "block")})

	if got := s.TriangleCount(); got != 4 {
		t.Fatalf("TriangleCount() = %d, want the parent's elements", got)
	}
	if len(s.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", s.Warnings)
	}
}
