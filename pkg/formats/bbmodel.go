package formats

import (
	"encoding/json"
	"path"
	"strconv"
	"strings"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/scene"
	"github.com/taigrr/glimpse/pkg/texture"
)

type bbModel struct {
	Meta struct {
		FormatVersion string `json:"format_version"`
		ModelFormat   string `json:"model_format"`
	} `json:"meta"`
	Resolution struct {
		Width  number `json:"width"`
		Height number `json:"height"`
	} `json:"resolution"`
	Textures []bbTexture       `json:"textures"`
	Elements []bbElement       `json:"elements"`
	Outliner []json.RawMessage `json:"outliner"`
	Groups   []bbGroup         `json:"groups"`
}

type bbTexture struct {
	Name         string `json:"name"`
	UUID         string `json:"uuid"`
	Source       string `json:"source"`
	Path         string `json:"path"`
	RelativePath string `json:"relative_path"`
	UVWidth      number `json:"uv_width"`
	UVHeight     number `json:"uv_height"`
}

type bbElement struct {
	Name       string            `json:"name"`
	UUID       string            `json:"uuid"`
	Type       string            `json:"type"`
	From       vec3              `json:"from"`
	To         vec3              `json:"to"`
	Origin     vec3              `json:"origin"`
	Inflate    number            `json:"inflate"`
	Rotation   json.RawMessage   `json:"rotation"`
	Visibility optBool           `json:"visibility"`
	Faces      map[string]bbFace `json:"faces"`
}

type bbFace struct {
	UV       floats          `json:"uv"`
	Texture  json.RawMessage `json:"texture"`
	Rotation number          `json:"rotation"`
	MirrorU  optBool         `json:"mirror_u"`
	MirrorV  optBool         `json:"mirror_v"`
}

type bbGroup struct {
	UUID     string            `json:"uuid"`
	Name     string            `json:"name"`
	Origin   vec3              `json:"origin"`
	Rotation vec3              `json:"rotation"`
	Children []json.RawMessage `json:"children"`
}

type blockbenchParser struct{}

func (blockbenchParser) Parse(asset Asset, res *texture.Resolver) (*scene.Scene, error) {
	var model bbModel
	if err := decodeJSON(asset.Data, &model); err != nil {
		return nil, err
	}

	order := math3d.EulerZYX
	if model.Meta.ModelFormat == "java_block" {
		order = math3d.EulerXYZ
	}

	s := scene.New()
	parents, err := outlinerRotations(&model, order, s)
	if err != nil {
		return nil, err
	}

	c := &bbConverter{
		model:   &model,
		res:     res,
		order:   order,
		builder: newCubeBuilder(s, "model", scene.DefaultBaseColor),
	}
	c.width, c.height = model.uvSize()

	for i := range model.Elements {
		e := &model.Elements[i]
		if e.Visibility.Set && !e.Visibility.Val {
			continue
		}
		switch e.Type {
		case "", "cube":
			c.element(e, parents[e.UUID])
		case "mesh":
			s.Warnf(scene.ErrUnsupportedPrimitive, "element %q: free-form mesh elements are not drawn", e.Name)
		}
	}
	c.builder.finish()
	return s, nil
}

// uvSize is the pixel size face UVs are normalized by: the first texture's
// UV size, else the project resolution, else 16.
func (m *bbModel) uvSize() (float64, float64) {
	if len(m.Textures) > 0 && m.Textures[0].UVWidth > 0 && m.Textures[0].UVHeight > 0 {
		return float64(m.Textures[0].UVWidth), float64(m.Textures[0].UVHeight)
	}
	return orDefault(float64(m.Resolution.Width), 16), orDefault(float64(m.Resolution.Height), 16)
}

// outlinerRotations walks the outliner tree and returns, per element UUID,
// the rotations of its enclosing groups ordered root first. Groups listed
// in "groups" are addressed by UUID; a group that contains itself is
// malformed input.
func outlinerRotations(m *bbModel, order math3d.EulerOrder, s *scene.Scene) (map[string][]rotation, error) {
	w := &outlinerWalker{
		groups:  make(map[string]*bbGroup, len(m.Groups)),
		order:   order,
		parents: make(map[string][]rotation),
		active:  make(map[string]bool),
	}
	for i := range m.Groups {
		if g := &m.Groups[i]; g.UUID != "" {
			w.groups[g.UUID] = g
		}
	}
	for _, node := range m.Outliner {
		if err := w.node(node, nil, 0); err != nil {
			return nil, err
		}
	}
	if w.tooDeep {
		s.Warnf(scene.ErrMalformedInput, "outliner nesting deeper than %d ignored", MaxElementDepth)
	}
	return w.parents, nil
}

type outlinerWalker struct {
	groups  map[string]*bbGroup
	order   math3d.EulerOrder
	parents map[string][]rotation
	active  map[string]bool
	tooDeep bool
}

func (w *outlinerWalker) node(raw json.RawMessage, chain []rotation, depth int) error {
	if depth >= MaxElementDepth {
		w.tooDeep = true
		return nil
	}

	if uuid, ok := jsonString(raw); ok {
		if g, ok := w.groups[uuid]; ok {
			return w.group(g, g.Children, chain, depth)
		}
		w.assign(uuid, chain)
		return nil
	}

	var g bbGroup
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil
	}
	children := g.Children
	if known, ok := w.groups[g.UUID]; ok {
		if children == nil {
			children = known.Children
		}
		g.Origin, g.Rotation = known.Origin, known.Rotation
	}
	return w.group(&g, children, chain, depth)
}

func (w *outlinerWalker) group(g *bbGroup, children []json.RawMessage, chain []rotation, depth int) error {
	if g.UUID != "" {
		if w.active[g.UUID] {
			return scene.Malformed("outliner group %q contains itself", g.Name)
		}
		w.active[g.UUID] = true
		defer delete(w.active, g.UUID)
	}

	r := rotation{Origin: g.Origin.Vec3, Angles: g.Rotation.Vec3, Order: w.order}
	if !r.isZero() {
		chain = append(append([]rotation(nil), chain...), r)
	}
	for _, child := range children {
		if err := w.node(child, chain, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (w *outlinerWalker) assign(uuid string, chain []rotation) {
	if uuid == "" {
		return
	}
	if _, ok := w.parents[uuid]; !ok {
		w.parents[uuid] = chain
	}
}

type bbConverter struct {
	model   *bbModel
	res     *texture.Resolver
	order   math3d.EulerOrder
	builder *cubeBuilder
	width   float64
	height  float64
}

func (c *bbConverter) element(e *bbElement, parents []rotation) {
	grow := math3d.V3(float64(e.Inflate), float64(e.Inflate), float64(e.Inflate))
	corners := cubeCorners(e.From.Sub(grow).Scale(BlockScale), e.To.Add(grow).Scale(BlockScale))

	applyRotations(&corners, BlockScale, c.ownRotation(e))
	for i := len(parents) - 1; i >= 0; i-- {
		applyRotations(&corners, BlockScale, parents[i])
	}

	for dir, name := range faceNames {
		face, ok := e.Faces[name]
		if !ok || isNull(face.Texture) {
			continue
		}
		u1, v1 := face.UV.at(0, 0), face.UV.at(1, 0)
		u2, v2 := face.UV.at(2, 0), face.UV.at(3, 0)
		if face.MirrorU.Val {
			u1, u2 = u2, u1
		}
		if face.MirrorV.Val {
			v1, v2 = v2, v1
		}
		uvs := pixelRect(u1, v1, u2, v2, c.width, c.height).rotated(float64(face.Rotation))
		c.builder.addQuad(&corners, blockFaces[dir], uvs, c.material(face.Texture))
	}
}

// ownRotation reads an element rotation, either an [x, y, z] array in the
// model's Euler order or a single-axis {angle, axis, origin} object.
func (c *bbConverter) ownRotation(e *bbElement) rotation {
	r := rotation{Origin: e.Origin.Vec3, Order: c.order}
	if isNull(e.Rotation) {
		return r
	}
	var angles vec3
	if err := json.Unmarshal(e.Rotation, &angles); err == nil && angles.Set {
		r.Angles = angles.Vec3
		return r
	}
	var single struct {
		Angle  number `json:"angle"`
		Axis   string `json:"axis"`
		Origin vec3   `json:"origin"`
	}
	if err := json.Unmarshal(e.Rotation, &single); err == nil {
		r.Angles = axisAngles(single.Axis, float64(single.Angle))
		if single.Origin.Set {
			r.Origin = single.Origin.Vec3
		}
	}
	return r
}

// textureIndex maps a face texture reference, an index or a texture UUID,
// to a position in the textures list.
func (c *bbConverter) textureIndex(raw json.RawMessage) (int, bool) {
	var idx float64
	if err := json.Unmarshal(raw, &idx); err == nil {
		i := int(idx)
		return i, i >= 0 && i < len(c.model.Textures)
	}
	if ref, ok := jsonString(raw); ok {
		for i, t := range c.model.Textures {
			if t.UUID != "" && t.UUID == ref {
				return i, true
			}
		}
		if i, err := strconv.Atoi(ref); err == nil && i >= 0 && i < len(c.model.Textures) {
			return i, true
		}
	}
	return 0, false
}

func (c *bbConverter) material(raw json.RawMessage) int {
	i, ok := c.textureIndex(raw)
	if !ok {
		c.res.Miss(describe(raw), texture.ErrNotFound)
		return c.builder.solid()
	}
	return c.builder.material("tex:"+strconv.Itoa(i), func() scene.Material {
		t := &c.model.Textures[i]
		m := scene.Material{Name: t.Name}
		switch {
		case texture.IsDataURI(t.Source):
			m.TextureRef = t.Name
			m.Texture, _ = c.res.FromDataURI(t.Source)
		case t.RelativePath != "":
			m.TextureRef = t.RelativePath
			m.Texture, _ = c.res.FromFile(t.RelativePath)
		case t.Path != "":
			// path is absolute on the author's machine; look for the
			// file next to the model instead.
			name := path.Base(strings.ReplaceAll(t.Path, `\`, "/"))
			m.TextureRef = t.Path
			m.Texture, _ = c.res.FromFile(name)
		default:
			c.res.Miss(t.Name, texture.ErrNotFound)
		}
		return m
	})
}
