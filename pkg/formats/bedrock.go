package formats

import (
	"encoding/json"
	"path/filepath"
	"slices"
	"strings"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/scene"
	"github.com/taigrr/glimpse/pkg/texture"
)

type bedrockFile struct {
	Geometry []bedrockGeometry `json:"minecraft:geometry"`
}

type bedrockGeometry struct {
	Description struct {
		Identifier    string `json:"identifier"`
		TextureWidth  number `json:"texture_width"`
		TextureHeight number `json:"texture_height"`
	} `json:"description"`
	// Pre-1.12 files keep the texture size beside the bones.
	LegacyWidth  number        `json:"texturewidth"`
	LegacyHeight number        `json:"textureheight"`
	Bones        []bedrockBone `json:"bones"`
}

type bedrockBone struct {
	Name     string        `json:"name"`
	Parent   string        `json:"parent"`
	Pivot    vec3          `json:"pivot"`
	Rotation vec3          `json:"rotation"`
	Mirror   optBool       `json:"mirror"`
	Inflate  number        `json:"inflate"`
	Cubes    []bedrockCube `json:"cubes"`
}

type bedrockCube struct {
	Origin   vec3            `json:"origin"`
	Size     vec3            `json:"size"`
	Pivot    vec3            `json:"pivot"`
	Rotation vec3            `json:"rotation"`
	Inflate  *number         `json:"inflate"`
	Mirror   optBool         `json:"mirror"`
	UV       json.RawMessage `json:"uv"`
}

type bedrockFaceUV struct {
	UV         floats `json:"uv"`
	UVSize     floats `json:"uv_size"`
	UVRotation number `json:"uv_rotation"`
}

type bedrockParser struct{}

func (bedrockParser) Parse(asset Asset, res *texture.Resolver) (*scene.Scene, error) {
	geo, err := decodeBedrock(asset.Data)
	if err != nil {
		return nil, err
	}

	s := scene.New()
	if geo == nil {
		return s, nil
	}

	chains, err := boneChains(geo.Bones, s)
	if err != nil {
		return nil, err
	}

	width := orDefault(float64(geo.Description.TextureWidth), orDefault(float64(geo.LegacyWidth), 16))
	height := orDefault(float64(geo.Description.TextureHeight), orDefault(float64(geo.LegacyHeight), 16))

	name := geo.Description.Identifier
	if name == "" {
		name = "geometry"
	}
	b := newCubeBuilder(s, name, scene.DefaultBaseColor)
	mat := bedrockMaterial(b, asset.Hint, res)

	for bi := range geo.Bones {
		bone := &geo.Bones[bi]
		for ci := range bone.Cubes {
			addBedrockCube(b, bone, &bone.Cubes[ci], chains[bi], width, height, mat)
		}
	}
	b.finish()
	return s, nil
}

// decodeBedrock returns the first geometry in either the current
// "minecraft:geometry" layout or the legacy "geometry.<name>" layout.
func decodeBedrock(data []byte) (*bedrockGeometry, error) {
	var f bedrockFile
	if err := decodeJSON(data, &f); err != nil {
		return nil, err
	}
	if len(f.Geometry) > 0 {
		return &f.Geometry[0], nil
	}

	var legacy map[string]json.RawMessage
	if err := decodeJSON(data, &legacy); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(legacy))
	for k := range legacy {
		if strings.HasPrefix(k, "geometry.") {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		var g bedrockGeometry
		if err := json.Unmarshal(legacy[k], &g); err != nil {
			continue
		}
		g.Description.Identifier = k
		return &g, nil
	}
	return nil, nil
}

// boneChains resolves each bone's rotation chain: its own rotation, then
// each ancestor's up to the root. Bones are an arena addressed by index; a
// parent cycle is malformed input.
func boneChains(bones []bedrockBone, s *scene.Scene) ([][]rotation, error) {
	index := make(map[string]int, len(bones))
	for i, b := range bones {
		if _, dup := index[b.Name]; dup {
			s.Warnf(scene.ErrMalformedInput, "duplicate bone %q", b.Name)
			continue
		}
		index[b.Name] = i
	}

	parent := make([]int, len(bones))
	for i, b := range bones {
		parent[i] = -1
		if b.Parent == "" {
			continue
		}
		p, ok := index[b.Parent]
		if !ok {
			s.Warnf(scene.ErrMalformedInput, "bone %q: parent %q not found, treating as root", b.Name, b.Parent)
			continue
		}
		parent[i] = p
	}

	chains := make([][]rotation, len(bones))
	for i := range bones {
		var chain []rotation
		steps := 0
		for cur := i; cur >= 0; cur = parent[cur] {
			if steps > len(bones) {
				return nil, scene.Malformed("bone hierarchy has a cycle through %q", bones[i].Name)
			}
			steps++
			b := &bones[cur]
			r := rotation{Origin: b.Pivot.Vec3, Angles: b.Rotation.Vec3, Order: math3d.EulerZYX}
			if !r.isZero() {
				chain = append(chain, r)
			}
		}
		chains[i] = chain
	}
	return chains, nil
}

func addBedrockCube(b *cubeBuilder, bone *bedrockBone, c *bedrockCube, chain []rotation, width, height float64, mat int) {
	inflate := float64(bone.Inflate)
	if c.Inflate != nil {
		inflate = float64(*c.Inflate)
	}
	grow := math3d.V3(inflate, inflate, inflate)
	from := c.Origin.Sub(grow)
	to := c.Origin.Add(c.Size.Vec3).Add(grow)
	corners := cubeCorners(from.Scale(BlockScale), to.Scale(BlockScale))

	own := rotation{Angles: c.Rotation.Vec3, Order: math3d.EulerZYX}
	if c.Pivot.Set {
		own.Origin = c.Pivot.Vec3
	} else {
		own.Origin = from.Add(to).Scale(0.5)
	}
	applyRotations(&corners, BlockScale, own)
	applyRotations(&corners, BlockScale, chain...)

	mirror := bone.Mirror.Val
	if c.Mirror.Set {
		mirror = c.Mirror.Val
	}

	faces, perFace := bedrockUVs(c, mirror, width, height)
	for dir := range faceNames {
		uvs, ok := faces[dir], true
		if perFace != nil {
			uvs, ok = perFace[dir]
		}
		if !ok {
			continue
		}
		b.addQuad(&corners, blockFaces[dir], uvs, mat)
	}
}

// bedrockUVs returns either six box-layout UVs, or per-face UVs where a
// face missing from the map is not drawn.
func bedrockUVs(c *bedrockCube, mirror bool, width, height float64) ([6]uvQuad, map[int]uvQuad) {
	var box [6]uvQuad
	for i := range box {
		box[i] = defaultUVs
	}
	if isNull(c.UV) {
		return box, nil
	}

	var origin floats
	if err := json.Unmarshal(c.UV, &origin); err == nil && len(origin) >= 2 {
		return boxUV(origin[0], origin[1], c.Size.Vec3, mirror, width, height), nil
	}

	var perFace map[string]bedrockFaceUV
	if err := json.Unmarshal(c.UV, &perFace); err != nil {
		return box, nil
	}
	out := make(map[int]uvQuad, len(perFace))
	for dir, name := range faceNames {
		f, ok := perFace[name]
		if !ok || len(f.UV) < 2 {
			continue
		}
		u, v := f.UV[0], f.UV[1]
		out[dir] = pixelRect(u, v, u+f.UVSize.at(0, 0), v+f.UVSize.at(1, 0), width, height).rotated(float64(f.UVRotation))
	}
	return box, out
}

// boxUV lays the six faces out in the standard unwrapped-box pattern
// starting at (u, v).
func boxUV(u, v float64, size math3d.Vec3, mirror bool, width, height float64) [6]uvQuad {
	w, h, d := size.X, size.Y, size.Z
	rect := func(u1, v1, u2, v2 float64) uvQuad {
		if mirror {
			u1, u2 = u2, u1
		}
		return pixelRect(u+u1, v+v1, u+u2, v+v2, width, height)
	}

	var out [6]uvQuad
	out[faceEast] = rect(0, d, d, d+h)
	out[faceNorth] = rect(d, d, d+w, d+h)
	out[faceWest] = rect(d+w, d, 2*d+w, d+h)
	out[faceSouth] = rect(2*d+w, d, 2*d+2*w, d+h)
	out[faceUp] = rect(d+w, d, d, 0)
	out[faceDown] = rect(d+2*w, 0, d+w, d)
	if mirror {
		out[faceEast], out[faceWest] = out[faceWest], out[faceEast]
	}
	return out
}

// bedrockMaterial looks for a texture saved next to the geometry file, as
// "<name>.png" for "<name>.geo.json" or "<name>.json". Geometry files do not
// reference textures themselves.
func bedrockMaterial(b *cubeBuilder, hint string, res *texture.Resolver) int {
	base := filepath.Base(hint)
	stem := strings.TrimSuffix(strings.TrimSuffix(base, filepath.Ext(base)), ".geo")
	if stem == "" || stem == "." {
		return b.solid()
	}
	for _, ext := range texture.ImageExtensions {
		if tex, ok := res.TryFile(stem + ext); ok {
			return b.material(stem+ext, func() scene.Material {
				return scene.Material{Name: stem, TextureRef: stem + ext, Texture: tex}
			})
		}
	}
	return b.solid()
}
