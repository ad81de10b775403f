package formats

import (
	"bufio"
	"bytes"
	"path"
	"strconv"
	"strings"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/scene"
	"github.com/taigrr/glimpse/pkg/texture"
)

// maxLine bounds one OBJ or MTL line.
const maxLine = 1 << 20

type objParser struct{}

type objCorner struct {
	v, vt, vn int // resolved 0-based indices, -1 when absent
}

type objReader struct {
	s   *scene.Scene
	res *texture.Resolver

	positions []math3d.Vec3
	colors    []math3d.Vec4
	uvs       []math3d.Vec2
	normals   []math3d.Vec3

	materials map[string]int
	current   int
	mesh      *scene.Mesh

	badFaces   int
	primitives int
	unknownMtl map[string]bool
}

func (objParser) Parse(asset Asset, res *texture.Resolver) (*scene.Scene, error) {
	r := &objReader{
		s:          scene.New(),
		res:        res,
		materials:  make(map[string]int),
		current:    scene.DefaultMaterial,
		mesh:       scene.NewMesh("default"),
		unknownMtl: make(map[string]bool),
	}

	sc := newLineScanner(asset.Data)
	for sc.Scan() {
		r.line(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, scene.Malformed("obj: %v", err)
	}
	r.s.AddMesh(r.mesh)

	if r.badFaces > 0 {
		r.s.Warnf(scene.ErrMalformedInput, "obj: skipped %d faces with invalid vertex references", r.badFaces)
	}
	if r.primitives > 0 {
		r.s.Warnf(scene.ErrUnsupportedPrimitive, "obj: skipped %d line or point elements", r.primitives)
	}
	return r.s, nil
}

// newLineScanner yields logical lines, joining backslash continuations.
func newLineScanner(data []byte) *bufio.Scanner {
	data = bytes.ReplaceAll(data, []byte("\\\r\n"), []byte(" "))
	data = bytes.ReplaceAll(data, []byte("\\\n"), []byte(" "))
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return sc
}

func (r *objReader) line(text string) {
	if i := strings.IndexByte(text, '#'); i >= 0 {
		text = text[:i]
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return
	}
	args := fields[1:]

	switch fields[0] {
	case "v":
		r.positions = append(r.positions, parseVec3(args))
		if len(args) >= 6 {
			r.colors = append(r.colors, math3d.V4(parseFloat(args, 3), parseFloat(args, 4), parseFloat(args, 5), 1))
		} else {
			r.colors = append(r.colors, math3d.V4(1, 1, 1, 1))
		}
	case "vt":
		// OBJ puts V=0 at the bottom; textures sample with V=0 at the top.
		r.uvs = append(r.uvs, math3d.V2(parseFloat(args, 0), 1-parseFloat(args, 1)))
	case "vn":
		r.normals = append(r.normals, parseVec3(args))
	case "f":
		r.face(args)
	case "l", "p":
		r.primitives++
	case "o", "g":
		name := strings.Join(args, " ")
		if len(r.mesh.Faces) > 0 {
			r.s.AddMesh(r.mesh)
			r.mesh = scene.NewMesh(name)
		} else if name != "" {
			r.mesh.Name = name
		}
	case "usemtl":
		r.useMaterial(strings.Join(args, " "))
	case "mtllib":
		for _, lib := range mtllibNames(text) {
			r.loadLibrary(lib)
		}
	}
}

func (r *objReader) face(args []string) {
	if len(args) < 3 {
		r.badFaces++
		return
	}
	corners := make([]objCorner, len(args))
	for i, tok := range args {
		c, ok := r.corner(tok)
		if !ok {
			r.badFaces++
			return
		}
		corners[i] = c
	}

	r.mesh.HasColor = r.mesh.HasColor || r.hasVertexColor(corners)

	// Fan from the first corner: n corners give n-2 triangles.
	for i := 1; i+1 < len(corners); i++ {
		a, b, c := r.vertex(corners[0]), r.vertex(corners[i]), r.vertex(corners[i+1])
		if a.Normal.IsZero(1e-12) || b.Normal.IsZero(1e-12) || c.Normal.IsZero(1e-12) {
			n := scene.FaceNormal(a.Position, b.Position, c.Position)
			for _, v := range []*scene.Vertex{&a, &b, &c} {
				if v.Normal.IsZero(1e-12) {
					v.Normal = n
				}
			}
		}
		r.mesh.AddTriangle(a, b, c, r.current)
	}
}

func (r *objReader) hasVertexColor(corners []objCorner) bool {
	for _, c := range corners {
		if r.colors[c.v] != math3d.V4(1, 1, 1, 1) {
			return true
		}
	}
	return false
}

// corner parses v, v/vt, v//vn or v/vt/vn. Negative indices count back from
// the most recent element.
func (r *objReader) corner(tok string) (objCorner, bool) {
	parts := strings.Split(tok, "/")
	c := objCorner{v: -1, vt: -1, vn: -1}

	var ok bool
	if c.v, ok = objIndex(parts[0], len(r.positions)); !ok {
		return c, false
	}
	if len(parts) > 1 && parts[1] != "" {
		if c.vt, ok = objIndex(parts[1], len(r.uvs)); !ok {
			c.vt = -1
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if c.vn, ok = objIndex(parts[2], len(r.normals)); !ok {
			c.vn = -1
		}
	}
	return c, true
}

func objIndex(s string, n int) (int, bool) {
	i, err := strconv.Atoi(s)
	if err != nil || i == 0 {
		return -1, false
	}
	if i < 0 {
		i = n + i
	} else {
		i--
	}
	return i, i >= 0 && i < n
}

func (r *objReader) vertex(c objCorner) scene.Vertex {
	v := scene.Vertex{Position: r.positions[c.v], Color: r.colors[c.v]}
	if c.vt >= 0 {
		v.UV = r.uvs[c.vt]
	}
	if c.vn >= 0 {
		v.Normal = r.normals[c.vn].Normalize()
	}
	return v
}

func (r *objReader) useMaterial(name string) {
	if idx, ok := r.materials[name]; ok {
		r.current = idx
		return
	}
	if !r.unknownMtl[name] {
		r.unknownMtl[name] = true
		r.res.Miss("material "+name, texture.ErrNotFound)
	}
	r.current = scene.DefaultMaterial
}

// mtllibNames splits an mtllib line. Names are space separated unless the
// whole remainder ends in ".mtl", in which case it is one name with spaces.
func mtllibNames(line string) []string {
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "mtllib"))
	if strings.Count(strings.ToLower(rest), ".mtl") <= 1 {
		if rest == "" {
			return nil
		}
		return []string{rest}
	}
	return strings.Fields(rest)
}

func (r *objReader) loadLibrary(rel string) {
	data, ok := r.res.ReadFile(rel)
	if !ok {
		return
	}
	dir := path.Dir(strings.ReplaceAll(rel, `\`, "/"))

	var cur *scene.Material
	flush := func() {
		if cur == nil {
			return
		}
		if _, exists := r.materials[cur.Name]; !exists {
			r.materials[cur.Name] = r.s.AddMaterial(*cur)
		}
		cur = nil
	}

	sc := newLineScanner(data)
	for sc.Scan() {
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		args := fields[1:]
		switch fields[0] {
		case "newmtl":
			flush()
			cur = &scene.Material{Name: strings.Join(args, " "), BaseColor: math3d.V4(1, 1, 1, 1)}
		case "Kd":
			if cur != nil && len(args) >= 3 {
				cur.BaseColor.X, cur.BaseColor.Y, cur.BaseColor.Z = parseFloat(args, 0), parseFloat(args, 1), parseFloat(args, 2)
			}
		case "d":
			if cur != nil && len(args) >= 1 {
				cur.BaseColor.W = clamp01(parseFloat(args, len(args)-1))
			}
		case "Tr":
			if cur != nil && len(args) >= 1 {
				cur.BaseColor.W = clamp01(1 - parseFloat(args, len(args)-1))
			}
		case "map_Kd":
			if cur != nil {
				if name := mapFileName(args); name != "" {
					ref := path.Join(dir, strings.ReplaceAll(name, `\`, "/"))
					cur.TextureRef = ref
					cur.Texture, _ = r.res.FromFile(ref)
				}
			}
		}
	}
	flush()
	if err := sc.Err(); err != nil {
		r.res.Miss(rel, texture.ErrRead)
	}
}

// mapOptionArgs is the number of values each map_* option takes.
var mapOptionArgs = map[string]int{
	"-blendu": 1, "-blendv": 1, "-boost": 1, "-cc": 1, "-clamp": 1,
	"-imfchan": 1, "-texres": 1, "-bm": 1, "-type": 1,
	"-mm": 2, "-o": 3, "-s": 3, "-t": 3,
}

// mapFileName strips leading map options and returns the file name.
func mapFileName(args []string) string {
	i := 0
	for i < len(args)-1 {
		n, ok := mapOptionArgs[args[i]]
		if !ok {
			break
		}
		i++
		// -o, -s and -t take one to three values; the rest exactly n.
		for k := 0; k < n && i < len(args)-1; k++ {
			if _, err := strconv.ParseFloat(args[i], 64); err != nil && k > 0 {
				break
			}
			i++
		}
	}
	return strings.Join(args[i:], " ")
}

func parseFloat(args []string, i int) float64 {
	if i >= len(args) {
		return 0
	}
	f, err := strconv.ParseFloat(args[i], 64)
	if err != nil {
		return 0
	}
	return f
}

func parseVec3(args []string) math3d.Vec3 {
	return math3d.V3(parseFloat(args, 0), parseFloat(args, 1), parseFloat(args, 2))
}

func clamp01(f float64) float64 {
	return max(0, min(1, f))
}
