package rigid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// ParseOBJ reads a Wavefront OBJ mesh and builds a Shape from its `v` and
// `f` records. Normals, texture coordinates, groups, and materials are
// ignored; face entries of the form v, v/vt, v/vt/vn, and v//vn are all
// accepted. The mesh must describe a single closed convex polyhedron or
// NewShape rejects it.
func ParseOBJ(r io.Reader) (*Shape, error) {
	var (
		vertices []mgl64.Vec3
		faces    [][]int
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: obj line %d: short vertex", ErrInvalidShape, lineNo)
			}
			var coords [3]float64
			for i := 0; i < 3; i++ {
				val, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("%w: obj line %d: %v", ErrInvalidShape, lineNo, err)
				}
				coords[i] = val
			}
			vertices = append(vertices, mgl64.Vec3{coords[0], coords[1], coords[2]})

		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: obj line %d: face needs 3+ vertices", ErrInvalidShape, lineNo)
			}
			loop := make([]int, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				// Only the position index matters here.
				idxStr, _, _ := strings.Cut(ref, "/")
				idx, err := strconv.Atoi(idxStr)
				if err != nil {
					return nil, fmt.Errorf("%w: obj line %d: %v", ErrInvalidShape, lineNo, err)
				}
				if idx < 0 {
					idx = len(vertices) + 1 + idx // negative refs count from the end
				}
				loop = append(loop, idx-1)
			}
			faces = append(faces, loop)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return NewShape(vertices, faces)
}

// LoadOBJ parses an OBJ file from disk.
func LoadOBJ(path string) (*Shape, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseOBJ(f)
}
