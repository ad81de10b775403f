package formats

import (
	"bytes"
	"fmt"
	"os"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/scene"
	"github.com/taigrr/glimpse/pkg/texture"
)

// MaxNodeDepth bounds the glTF node hierarchy.
const MaxNodeDepth = 256

type gltfParser struct{}

func (gltfParser) Parse(asset Asset, res *texture.Resolver) (*scene.Scene, error) {
	doc, err := decodeGLTF(asset)
	if err != nil {
		return nil, err
	}

	parents, err := nodeParents(doc)
	if err != nil {
		return nil, err
	}

	g := &gltfConverter{
		doc:       doc,
		res:       res,
		s:         scene.New(),
		materials: make(map[int]int),
		textures:  make(map[int]*texture.Texture),
	}
	for _, root := range sceneRoots(doc, parents) {
		g.walk(root)
	}
	return g.s, nil
}

// decodeGLTF decodes glTF JSON or GLB. With a base path, external buffers
// load from its directory; when that fails the document is decoded again
// without them so the embedded parts still render.
func decodeGLTF(asset Asset) (*gltf.Document, error) {
	doc := new(gltf.Document)
	if asset.BasePath != "" {
		err := gltf.NewDecoderFS(bytes.NewReader(asset.Data), os.DirFS(asset.BasePath)).Decode(doc)
		if err == nil {
			return doc, nil
		}
		doc = new(gltf.Document)
	}
	if err := gltf.NewDecoder(bytes.NewReader(asset.Data)).Decode(doc); err != nil {
		return nil, scene.Malformed("gltf: %v", err)
	}
	return doc, nil
}

// nodeParents builds the parent index of every node. A node claimed by two
// parents, an out-of-range child, a cycle, or nesting deeper than
// MaxNodeDepth is malformed input.
func nodeParents(doc *gltf.Document) ([]int, error) {
	n := len(doc.Nodes)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = -1
	}
	for i, node := range doc.Nodes {
		if node == nil {
			continue
		}
		for _, c := range node.Children {
			if c < 0 || c >= n {
				return nil, scene.Malformed("gltf: node %d: child %d out of range", i, c)
			}
			if c == i {
				return nil, scene.Malformed("gltf: node %d is its own child", i)
			}
			if parent[c] != -1 {
				return nil, scene.Malformed("gltf: node %d has two parents (%d and %d)", c, parent[c], i)
			}
			parent[c] = i
		}
	}

	// With unique parents, following parent links either reaches a root or
	// loops. Depth memoization keeps this linear.
	depth := make([]int, n)
	for i := range depth {
		depth[i] = -1
	}
	for i := range n {
		var path []int
		cur := i
		for cur >= 0 && depth[cur] < 0 {
			if len(path) > n {
				return nil, scene.Malformed("gltf: node hierarchy has a cycle through node %d", i)
			}
			path = append(path, cur)
			cur = parent[cur]
		}
		base := 0
		if cur >= 0 {
			base = depth[cur] + 1
		}
		for k := len(path) - 1; k >= 0; k-- {
			depth[path[k]] = base
			base++
		}
		if depth[i] >= MaxNodeDepth {
			return nil, scene.Malformed("gltf: node %d is nested %d deep, limit %d", i, depth[i], MaxNodeDepth)
		}
	}
	return parent, nil
}

// sceneRoots returns the nodes to draw: the default scene, else scene 0,
// else every parentless node.
func sceneRoots(doc *gltf.Document, parents []int) []int {
	pick := -1
	if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
		pick = *doc.Scene
	} else if len(doc.Scenes) > 0 {
		pick = 0
	}
	var roots []int
	if pick >= 0 && doc.Scenes[pick] != nil {
		for _, r := range doc.Scenes[pick].Nodes {
			if r >= 0 && r < len(doc.Nodes) {
				roots = append(roots, r)
			}
		}
		return roots
	}
	for i, p := range parents {
		if p < 0 {
			roots = append(roots, i)
		}
	}
	return roots
}

type gltfConverter struct {
	doc       *gltf.Document
	res       *texture.Resolver
	s         *scene.Scene
	materials map[int]int
	textures  map[int]*texture.Texture
	visited   map[int]bool
}

type nodeFrame struct {
	node  int
	world math3d.Mat4
}

// walk draws root and its descendants, composing world = parent * local.
func (g *gltfConverter) walk(root int) {
	if g.visited == nil {
		g.visited = make(map[int]bool)
	}
	stack := []nodeFrame{{node: root, world: math3d.Identity()}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if g.visited[f.node] {
			continue
		}
		g.visited[f.node] = true

		node := g.doc.Nodes[f.node]
		if node == nil {
			continue
		}
		world := f.world.Mul(localMatrix(node))
		if node.Mesh != nil {
			g.mesh(*node.Mesh, world)
		}
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, nodeFrame{node: node.Children[i], world: world})
		}
	}
}

func localMatrix(n *gltf.Node) math3d.Mat4 {
	if m := math3d.Mat4(n.MatrixOrDefault()); m != math3d.Identity() {
		return m
	}
	return math3d.TRS(
		math3d.FromArray(n.TranslationOrDefault()),
		n.RotationOrDefault(),
		math3d.FromArray(n.ScaleOrDefault()),
	)
}

func (g *gltfConverter) mesh(index int, world math3d.Mat4) {
	if index < 0 || index >= len(g.doc.Meshes) || g.doc.Meshes[index] == nil {
		g.s.Warnf(scene.ErrMalformedInput, "gltf: mesh %d out of range", index)
		return
	}
	m := g.doc.Meshes[index]
	for pi, prim := range m.Primitives {
		if prim == nil {
			continue
		}
		if prim.Mode != gltf.PrimitiveTriangles {
			g.s.Warnf(scene.ErrUnsupportedPrimitive, "gltf: mesh %q primitive %d: mode %v", m.Name, pi, prim.Mode)
			continue
		}
		if err := g.primitive(m.Name, prim, world); err != nil {
			g.s.Warnf(scene.ErrMissingResource, "gltf: mesh %q primitive %d: %v", m.Name, pi, err)
		}
	}
}

func (g *gltfConverter) accessor(idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(g.doc.Accessors) || g.doc.Accessors[idx] == nil {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	return g.doc.Accessors[idx], nil
}

func (g *gltfConverter) primitive(name string, prim *gltf.Primitive, world math3d.Mat4) error {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return fmt.Errorf("no POSITION attribute")
	}
	acc, err := g.accessor(posIdx)
	if err != nil {
		return err
	}
	positions, err := modeler.ReadPosition(g.doc, acc, nil)
	if err != nil {
		return fmt.Errorf("read positions: %w", err)
	}

	var normals [][3]float32
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if acc, err := g.accessor(idx); err == nil {
			normals, _ = modeler.ReadNormal(g.doc, acc, nil)
		}
	}
	var uvs [][2]float32
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if acc, err := g.accessor(idx); err == nil {
			uvs, _ = modeler.ReadTextureCoord(g.doc, acc, nil)
		}
	}
	var colors [][4]uint8
	if idx, ok := prim.Attributes[gltf.COLOR_0]; ok {
		if acc, err := g.accessor(idx); err == nil {
			colors, _ = modeler.ReadColor(g.doc, acc, nil)
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		acc, err := g.accessor(*prim.Indices)
		if err != nil {
			return err
		}
		if indices, err = modeler.ReadIndices(g.doc, acc, nil); err != nil {
			return fmt.Errorf("read indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	normalMat := world.NormalMatrix()
	mesh := scene.NewMesh(name)
	mesh.HasColor = len(colors) > 0
	mesh.Vertices = make([]scene.Vertex, len(positions))
	for i, p := range positions {
		v := scene.Vertex{
			Position: world.MulVec3(math3d.V3(float64(p[0]), float64(p[1]), float64(p[2]))),
			Color:    math3d.V4(1, 1, 1, 1),
		}
		if i < len(normals) {
			n := normals[i]
			v.Normal = normalMat.MulVec3Dir(math3d.V3(float64(n[0]), float64(n[1]), float64(n[2]))).Normalize()
		}
		if i < len(uvs) {
			v.UV = math3d.V2(float64(uvs[i][0]), float64(uvs[i][1]))
		}
		if i < len(colors) {
			c := colors[i]
			v.Color = math3d.V4(float64(c[0])/255, float64(c[1])/255, float64(c[2])/255, float64(c[3])/255)
		}
		mesh.Vertices[i] = v
	}

	material := g.material(prim.Material)
	skipped := 0
	nv := uint32(len(positions))
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		if a >= nv || b >= nv || c >= nv {
			skipped++
			continue
		}
		mesh.Faces = append(mesh.Faces, scene.Face{V: [3]int{int(a), int(b), int(c)}, Material: material})
	}
	if skipped > 0 {
		g.s.Warnf(scene.ErrMalformedInput, "gltf: mesh %q: skipped %d triangles with out-of-range indices", name, skipped)
	}
	if len(normals) < len(positions) {
		mesh.CalculateSmoothNormals()
	}
	g.s.AddMesh(mesh)
	return nil
}

// material converts a glTF material once and returns its scene index.
func (g *gltfConverter) material(idx *int) int {
	if idx == nil || *idx < 0 || *idx >= len(g.doc.Materials) || g.doc.Materials[*idx] == nil {
		return scene.DefaultMaterial
	}
	if si, ok := g.materials[*idx]; ok {
		return si
	}

	src := g.doc.Materials[*idx]
	m := scene.Material{Name: src.Name, BaseColor: math3d.V4(1, 1, 1, 1)}
	if pbr := src.PBRMetallicRoughness; pbr != nil {
		if f := pbr.BaseColorFactor; f != nil {
			m.BaseColor = math3d.V4(f[0], f[1], f[2], f[3])
		}
		if info := pbr.BaseColorTexture; info != nil {
			m.TextureRef = fmt.Sprintf("texture %d", info.Index)
			m.Texture = g.texture(info.Index)
		}
	}
	si := g.s.AddMaterial(m)
	g.materials[*idx] = si
	return si
}

// texture resolves a glTF texture's image from a buffer view, a data URI or
// a companion file.
func (g *gltfConverter) texture(idx int) *texture.Texture {
	if tex, ok := g.textures[idx]; ok {
		return tex
	}
	var out *texture.Texture
	defer func() { g.textures[idx] = out }()

	if idx < 0 || idx >= len(g.doc.Textures) || g.doc.Textures[idx] == nil || g.doc.Textures[idx].Source == nil {
		g.res.Miss(fmt.Sprintf("texture %d", idx), texture.ErrNotFound)
		return nil
	}
	t := g.doc.Textures[idx]
	imgIdx := *t.Source
	if imgIdx < 0 || imgIdx >= len(g.doc.Images) || g.doc.Images[imgIdx] == nil {
		g.res.Miss(fmt.Sprintf("image %d", imgIdx), texture.ErrNotFound)
		return nil
	}
	img := g.doc.Images[imgIdx]
	ref := img.Name
	if ref == "" {
		ref = fmt.Sprintf("image %d", imgIdx)
	}

	var tex *texture.Texture
	switch {
	case img.BufferView != nil:
		data, err := g.bufferView(*img.BufferView)
		if err != nil {
			g.res.Miss(ref, fmt.Errorf("%w: %v", texture.ErrNotFound, err))
			return nil
		}
		tex, _ = g.res.FromBytes(ref, data)
	case texture.IsDataURI(img.URI):
		tex, _ = g.res.FromDataURI(img.URI)
	case img.URI != "":
		tex, _ = g.res.FromFile(img.URI)
	default:
		g.res.Miss(ref, texture.ErrNotFound)
	}
	if tex == nil {
		return nil
	}

	sampled := *tex
	if t.Sampler != nil && *t.Sampler >= 0 && *t.Sampler < len(g.doc.Samplers) {
		if s := g.doc.Samplers[*t.Sampler]; s != nil {
			if s.MagFilter == gltf.MagLinear {
				sampled.Filter = texture.FilterBilinear
			}
			if s.WrapS == gltf.WrapClampToEdge {
				sampled.WrapU = texture.WrapClamp
			}
			if s.WrapT == gltf.WrapClampToEdge {
				sampled.WrapV = texture.WrapClamp
			}
		}
	}
	out = &sampled
	return out
}

func (g *gltfConverter) bufferView(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(g.doc.BufferViews) || g.doc.BufferViews[idx] == nil {
		return nil, fmt.Errorf("buffer view %d out of range", idx)
	}
	bv := g.doc.BufferViews[idx]
	if bv.Buffer < 0 || bv.Buffer >= len(g.doc.Buffers) || g.doc.Buffers[bv.Buffer] == nil {
		return nil, fmt.Errorf("buffer %d out of range", bv.Buffer)
	}
	data := g.doc.Buffers[bv.Buffer].Data
	end := bv.ByteOffset + bv.ByteLength
	if bv.ByteOffset < 0 || end > len(data) {
		return nil, fmt.Errorf("buffer view %d exceeds buffer data", idx)
	}
	return data[bv.ByteOffset:end], nil
}
