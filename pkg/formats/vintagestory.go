package formats

import (
	"strings"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/scene"
	"github.com/taigrr/glimpse/pkg/texture"
)

// MaxElementDepth bounds element and group nesting in block-model formats.
const MaxElementDepth = 256

// vsBaseDomain is the asset domain of the base game.
const vsBaseDomain = "game"

var vsColor = math3d.V4(0.75, 0.75, 0.78, 1)

type vsShape struct {
	TextureWidth  number            `json:"textureWidth"`
	TextureHeight number            `json:"textureHeight"`
	TextureSizes  map[string]floats `json:"textureSizes"`
	Textures      map[string]string `json:"textures"`
	Elements      []vsElement       `json:"elements"`
}

type vsElement struct {
	Name           string            `json:"name"`
	From           vec3              `json:"from"`
	To             vec3              `json:"to"`
	RotationOrigin vec3              `json:"rotationOrigin"`
	RotationX      number            `json:"rotationX"`
	RotationY      number            `json:"rotationY"`
	RotationZ      number            `json:"rotationZ"`
	Faces          map[string]vsFace `json:"faces"`
	Children       []vsElement       `json:"children"`
}

type vsFace struct {
	Texture  string  `json:"texture"`
	UV       floats  `json:"uv"`
	Rotation number  `json:"rotation"`
	Enabled  optBool `json:"enabled"`
}

func (e *vsElement) angles() math3d.Vec3 {
	return math3d.V3(float64(e.RotationX), float64(e.RotationY), float64(e.RotationZ))
}

type vintageStoryParser struct{}

func (vintageStoryParser) Parse(asset Asset, res *texture.Resolver) (*scene.Scene, error) {
	var shape vsShape
	if err := decodeJSON(asset.Data, &shape); err != nil {
		return nil, err
	}

	s := scene.New()
	c := &vsConverter{
		shape:   &shape,
		res:     res,
		domain:  res.AssetDomain(),
		builder: newCubeBuilder(s, "shape", vsColor),
		width:   orDefault(float64(shape.TextureWidth), 16),
		height:  orDefault(float64(shape.TextureHeight), 16),
	}
	for i := range shape.Elements {
		c.element(&shape.Elements[i], nil, math3d.Vec3{}, 0)
	}
	if c.tooDeep {
		s.Warnf(scene.ErrMalformedInput, "element nesting deeper than %d ignored", MaxElementDepth)
	}
	c.builder.finish()
	return s, nil
}

type vsConverter struct {
	shape   *vsShape
	res     *texture.Resolver
	domain  string
	builder *cubeBuilder
	width   float64
	height  float64
	tooDeep bool
}

// element emits e and its children. Child coordinates are relative to the
// accumulated parent from; parents lists ancestor rotations root first.
func (c *vsConverter) element(e *vsElement, parents []rotation, offset math3d.Vec3, depth int) {
	if depth >= MaxElementDepth {
		c.tooDeep = true
		return
	}

	from := e.From.Add(offset)
	to := e.To.Add(offset)
	corners := cubeCorners(from.Scale(BlockScale), to.Scale(BlockScale))

	own := rotation{Angles: e.angles(), Order: math3d.EulerXYZ}
	if e.RotationOrigin.Set {
		own.Origin = e.RotationOrigin.Add(offset)
	} else {
		own.Origin = from.Add(to).Scale(0.5)
	}
	applyRotations(&corners, BlockScale, own)
	for i := len(parents) - 1; i >= 0; i-- {
		applyRotations(&corners, BlockScale, parents[i])
	}

	for dir, name := range faceNames {
		face, ok := e.Faces[name]
		if !ok || (face.Enabled.Set && !face.Enabled.Val) {
			continue
		}
		code := strings.TrimPrefix(face.Texture, "#")
		w, h := c.textureSize(code)
		uvs := defaultUVs
		if len(face.UV) >= 4 {
			uvs = pixelRect(face.UV[0], face.UV[1], face.UV[2], face.UV[3], w, h).rotated(float64(face.Rotation))
		}
		c.builder.addQuad(&corners, vsFaces[dir], uvs, c.material(code))
	}

	if len(e.Children) == 0 {
		return
	}
	// Children pivot about the raw rotation origin, defaulting to the parent
	// offset, not the cube center.
	childRot := rotation{Origin: e.RotationOrigin.Add(offset), Angles: e.angles(), Order: math3d.EulerXYZ}
	childParents := parents
	if !childRot.isZero() {
		childParents = append(append([]rotation(nil), parents...), childRot)
	}
	childOffset := offset.Add(e.From.Vec3)
	for i := range e.Children {
		c.element(&e.Children[i], childParents, childOffset, depth+1)
	}
}

func (c *vsConverter) textureSize(code string) (float64, float64) {
	if size, ok := c.shape.TextureSizes[code]; ok && len(size) >= 2 && size[0] > 0 && size[1] > 0 {
		return size[0], size[1]
	}
	return c.width, c.height
}

func (c *vsConverter) material(code string) int {
	if code == "" {
		return c.builder.solid()
	}
	return c.builder.material(code, func() scene.Material {
		ref, ok := c.shape.Textures[code]
		if !ok {
			ref = code
		}
		m := scene.Material{Name: code, TextureRef: ref}
		domain, path := splitDomain(ref)
		if tex, ok := c.res.FromAssetTree(path, domain, c.domain, vsBaseDomain); ok {
			m.Texture = tex
		}
		return m
	})
}

// splitDomain splits "domain:path" references. A reference without a
// domain returns an empty domain.
func splitDomain(ref string) (domain, path string) {
	if d, p, ok := strings.Cut(ref, ":"); ok && d != "" && !strings.ContainsAny(d, `/\`) {
		return d, p
	}
	return "", ref
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
