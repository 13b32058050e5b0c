package spatial

// Overlap names two differently labelled polygons that share area
type Overlap struct {
	A string `json:"a"`
	B string `json:"b"`
}

// Overlaps lists label pairs whose polygons overlap. Locate resolves such
// points to the first polygon in file order, so a non-empty result means
// the reference file should be reviewed before being relied on.
//
// The check is approximate: two polygons overlap when a vertex of one lies
// strictly inside the other.
func (rs *ReferenceSet) Overlaps() []Overlap {
	seen := make(map[Overlap]bool)
	var out []Overlap

	for i := range rs.entries {
		a := &rs.entries[i]
		for j := i + 1; j < len(rs.entries); j++ {
			b := &rs.entries[j]
			if a.Label == b.Label || !boxesIntersect(a, b) {
				continue
			}
			if vertexInside(a, b) || vertexInside(b, a) {
				key := Overlap{A: a.Label, B: b.Label}
				if !seen[key] {
					seen[key] = true
					out = append(out, key)
				}
			}
		}
	}
	return out
}

func boxesIntersect(a, b *Entry) bool {
	return a.minX <= b.maxX && b.minX <= a.maxX && a.minY <= b.maxY && b.minY <= a.maxY
}

// vertexInside reports whether any outer-ring vertex of a lies inside b and
// not on b's outline.
func vertexInside(a, b *Entry) bool {
	flat := a.Polygon.LinearRing(0).FlatCoords()
	stride := a.Polygon.Stride()
	for k := 0; k+1 < len(flat); k += stride {
		x, y := flat[k], flat[k+1]
		if polygonContains(b.Polygon, x, y) && !onOutline(b, x, y) {
			return true
		}
	}
	return false
}

func onOutline(e *Entry, x, y float64) bool {
	const eps = 1e-12
	for r := 0; r < e.Polygon.NumLinearRings(); r++ {
		flat := e.Polygon.LinearRing(r).FlatCoords()
		stride := e.Polygon.Stride()
		n := len(flat) / stride
		for i := 0; i+1 < n; i++ {
			x1, y1 := flat[i*stride], flat[i*stride+1]
			x2, y2 := flat[(i+1)*stride], flat[(i+1)*stride+1]
			cross := (x2-x1)*(y-y1) - (y2-y1)*(x-x1)
			if cross > eps || cross < -eps {
				continue
			}
			if x >= min(x1, x2)-eps && x <= max(x1, x2)+eps && y >= min(y1, y2)-eps && y <= max(y1, y2)+eps {
				return true
			}
		}
	}
	return false
}
