package formats

import (
	"math"
	"path"
	"strings"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/scene"
	"github.com/taigrr/glimpse/pkg/texture"
)

// javaNamespace is the default resource namespace of Java-edition models.
const javaNamespace = "minecraft"

// maxParentDepth bounds "parent" model inheritance.
const maxParentDepth = 32

type javaModel struct {
	Parent      string            `json:"parent"`
	TextureSize floats            `json:"texture_size"`
	Textures    map[string]string `json:"textures"`
	Elements    []javaElement     `json:"elements"`
}

type javaElement struct {
	From     vec3                `json:"from"`
	To       vec3                `json:"to"`
	Rotation *javaRotation       `json:"rotation"`
	Faces    map[string]javaFace `json:"faces"`
}

type javaRotation struct {
	Angle   number  `json:"angle"`
	Axis    string  `json:"axis"`
	Origin  vec3    `json:"origin"`
	Rescale optBool `json:"rescale"`
}

type javaFace struct {
	UV       floats `json:"uv"`
	Texture  string `json:"texture"`
	Rotation number `json:"rotation"`
}

type javaParser struct{}

func (javaParser) Parse(asset Asset, res *texture.Resolver) (*scene.Scene, error) {
	var model javaModel
	if err := decodeJSON(asset.Data, &model); err != nil {
		return nil, err
	}

	s := scene.New()
	inheritParents(&model, res, s)

	j := &javaConverter{
		model:   &model,
		res:     res,
		builder: newCubeBuilder(s, "model", scene.DefaultBaseColor),
		width:   orDefault(model.TextureSize.at(0, 16), 16),
		height:  orDefault(model.TextureSize.at(1, 16), 16),
	}
	for i := range model.Elements {
		j.element(&model.Elements[i])
	}
	j.builder.finish()
	return s, nil
}

// inheritParents follows the parent chain through the asset tree. Textures
// merge with the child winning; elements come from the nearest model that
// has any. Parents that cannot be found end the chain quietly: builtin
// parents such as "block/block" never exist on disk.
func inheritParents(model *javaModel, res *texture.Resolver, s *scene.Scene) {
	if res.Assets == nil && res.BasePath == "" {
		return
	}
	seen := map[string]bool{}
	parent := model.Parent
	for depth := 0; parent != "" && !strings.HasPrefix(parent, "builtin/"); depth++ {
		if depth >= maxParentDepth || seen[parent] {
			s.Warnf(scene.ErrMalformedInput, "parent chain at %q loops or is too deep", parent)
			return
		}
		seen[parent] = true

		ns, rel := splitDomain(parent)
		if ns == "" {
			ns = javaNamespace
		}
		data, ok := res.ReadAsset(ns, "models", rel+".json")
		if !ok {
			return
		}
		var pm javaModel
		if err := decodeJSON(data, &pm); err != nil {
			s.Warnf(scene.ErrMissingResource, "parent %q: %v", parent, err)
			return
		}
		for k, v := range pm.Textures {
			if model.Textures == nil {
				model.Textures = map[string]string{}
			}
			if _, ok := model.Textures[k]; !ok {
				model.Textures[k] = v
			}
		}
		if len(model.Elements) == 0 {
			model.Elements = pm.Elements
		}
		if len(model.TextureSize) == 0 {
			model.TextureSize = pm.TextureSize
		}
		parent = pm.Parent
	}
}

type javaConverter struct {
	model   *javaModel
	res     *texture.Resolver
	builder *cubeBuilder
	width   float64
	height  float64
}

func (j *javaConverter) element(e *javaElement) {
	corners := cubeCorners(e.From.Scale(BlockScale), e.To.Scale(BlockScale))

	if r := e.Rotation; r != nil {
		rot := rotation{Origin: r.Origin.Vec3, Angles: axisAngles(r.Axis, float64(r.Angle)), Order: math3d.EulerXYZ}
		if r.Rescale.Val && !rot.isZero() {
			rescale(&corners, rot.Origin.Scale(BlockScale), r.Axis, float64(r.Angle))
		}
		applyRotations(&corners, BlockScale, rot)
	}

	for dir, name := range faceNames {
		face, ok := e.Faces[name]
		if !ok || face.Texture == "" {
			continue
		}
		var uvs uvQuad
		if len(face.UV) >= 4 {
			uvs = pixelRect(face.UV[0], face.UV[1], face.UV[2], face.UV[3], j.width, j.height)
		} else {
			uvs = autoUV(faceDir(dir), e.From.Vec3, e.To.Vec3)
		}
		uvs = uvs.rotated(float64(face.Rotation))
		j.builder.addQuad(&corners, blockFaces[dir], uvs, j.material(face.Texture))
	}
}

// autoUV derives face UVs from the element's position in the 16x16 block,
// the way the game does when a face omits "uv".
func autoUV(dir faceDir, from, to math3d.Vec3) uvQuad {
	var r [4]float64
	switch dir {
	case faceDown:
		r = [4]float64{from.X, 16 - to.Z, to.X, 16 - from.Z}
	case faceUp:
		r = [4]float64{from.X, from.Z, to.X, to.Z}
	case faceNorth:
		r = [4]float64{16 - to.X, 16 - to.Y, 16 - from.X, 16 - from.Y}
	case faceSouth:
		r = [4]float64{from.X, 16 - to.Y, to.X, 16 - from.Y}
	case faceWest:
		r = [4]float64{from.Z, 16 - to.Y, to.Z, 16 - from.Y}
	case faceEast:
		r = [4]float64{16 - to.Z, 16 - to.Y, 16 - from.Z, 16 - from.Y}
	}
	return pixelRect(r[0], r[1], r[2], r[3], 16, 16)
}

// rescale stretches the two axes perpendicular to the rotation axis by
// 1/cos(angle) about origin, so a rotated face still spans the block.
func rescale(corners *[8]math3d.Vec3, origin math3d.Vec3, axis string, angle float64) {
	c := math.Cos(math3d.Deg2Rad(angle))
	if math.Abs(c) < 1e-6 {
		return
	}
	f := 1 / math.Abs(c)
	s := math3d.V3(f, 1, f)
	switch axis {
	case "x", "X":
		s = math3d.V3(1, f, f)
	case "z", "Z":
		s = math3d.V3(f, f, 1)
	}
	m := math3d.Translate(origin).Mul(math3d.Scale(s)).Mul(math3d.Translate(origin.Scale(-1)))
	for i := range corners {
		corners[i] = m.MulVec3(corners[i])
	}
}

// resolveRef follows "#name" indirection through the textures map.
func (j *javaConverter) resolveRef(ref string) string {
	for range maxParentDepth {
		if !strings.HasPrefix(ref, "#") {
			return ref
		}
		next, ok := j.model.Textures[ref[1:]]
		if !ok {
			return ref
		}
		ref = next
	}
	return ref
}

func (j *javaConverter) material(ref string) int {
	target := j.resolveRef(ref)
	return j.builder.material(target, func() scene.Material {
		m := scene.Material{Name: strings.TrimPrefix(ref, "#"), TextureRef: target}
		if strings.HasPrefix(target, "#") {
			j.res.Miss(target, texture.ErrNotFound)
			return m
		}
		ns, rel := splitDomain(target)
		if ns == "" {
			ns = javaNamespace
		}
		if tex, ok := j.res.FromAssetTree(path.Clean(rel), ns); ok {
			m.Texture = tex
		}
		return m
	})
}
