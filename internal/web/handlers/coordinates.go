package handlers

import (
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/cali-upid/internal/coords"
	"github.com/cali-upid/internal/spatial"
)

// CorrectionResponse describes one corrected coordinate pair
type CorrectionResponse struct {
	Lat       *float64      `json:"lat"`
	Lon       *float64      `json:"lon"`
	LatRepair coords.Repair `json:"lat_repair"`
	LonRepair coords.Repair `json:"lon_repair"`
	Valid     bool          `json:"valid"`
}

// CorrectCoordinates corrects the lat and lon query parameters. Values are
// passed to the normalizer as received, so comma decimals are accepted.
func (h *APIHandler) CorrectCoordinates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("lat") && !q.Has("lon") {
		writeError(w, r, http.StatusBadRequest, "lat and lon query parameters are required")
		return
	}

	c := h.Pipeline.Corrector()
	res := c.Correct(q.Get("lat"), q.Get("lon"))
	writeJSON(w, r, http.StatusOK, CorrectionResponse{
		Lat:       res.Lat,
		Lon:       res.Lon,
		LatRepair: res.LatRepair,
		LonRepair: res.LonRepair,
		Valid:     c.Valid(res.Lat, res.Lon),
	})
}

// MatchResponse is the outcome of matching one point against one set
type MatchResponse struct {
	Set    string   `json:"set"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Status string   `json:"status"`
	Value  string   `json:"value"`
}

// MatchPoint corrects lat/lon and locates the point in the named reference set
func (h *APIHandler) MatchPoint(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["set"]

	var set *spatial.ReferenceSet
	for _, ref := range h.Pipeline.References() {
		if ref.Name == name {
			set = ref.Set()
			break
		}
	}
	if set == nil {
		writeError(w, r, http.StatusNotFound, "unknown reference set "+name)
		return
	}

	c := h.Pipeline.Corrector()
	res := c.Correct(r.URL.Query().Get("lat"), r.URL.Query().Get("lon"))
	var pt *coords.Coordinate
	if p, ok := res.Coordinate(); ok {
		pt = &p
	}
	m := spatial.Match(pt, set, c.Envelope)

	writeJSON(w, r, http.StatusOK, MatchResponse{
		Set:    name,
		Lat:    res.Lat,
		Lon:    res.Lon,
		Status: m.Status.String(),
		Value:  m.Value(),
	})
}

// ReferenceInfo summarises one loaded reference set
type ReferenceInfo struct {
	Name        string            `json:"name"`
	LabelField  string            `json:"label_field"`
	OutputField string            `json:"output_field"`
	Polygons    int               `json:"polygons"`
	Labels      []string          `json:"labels"`
	Overlaps    []spatial.Overlap `json:"overlaps,omitempty"`
}

// ListReferences describes the reference sets records are matched against
func (h *APIHandler) ListReferences(w http.ResponseWriter, r *http.Request) {
	refs := h.Pipeline.References()
	infos := make([]ReferenceInfo, 0, len(refs))
	for _, ref := range refs {
		set := ref.Set()
		labels := set.Labels()
		sort.Strings(labels)
		infos = append(infos, ReferenceInfo{
			Name:        ref.Name,
			LabelField:  set.LabelField,
			OutputField: ref.OutputField,
			Polygons:    set.Len(),
			Labels:      labels,
			Overlaps:    ref.Overlaps,
		})
	}
	writeJSON(w, r, http.StatusOK, infos)
}
