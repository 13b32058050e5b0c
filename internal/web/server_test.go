package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cali-upid/internal/config"
	"github.com/cali-upid/internal/coords"
	"github.com/cali-upid/internal/etl"
	"github.com/cali-upid/internal/spatial"
)

const barriosJSON = `{"type":"FeatureCollection","features":[
  {"type":"Feature","properties":{"barrio_vereda":"San Antonio"},
   "geometry":{"type":"Polygon","coordinates":[[[-76.5,3.4],[-76.4,3.4],[-76.4,3.5],[-76.5,3.5],[-76.5,3.4]]]}}
]}`

func testConfig() *config.Config {
	return &config.Config{
		Envelope: coords.DefaultEnvelope(),
		Pipeline: config.PipelineConfig{Workers: 2, Precision: 10, LatField: "lat", LonField: "lon", IDField: "upid"},
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 8080, ReadTimeout: 5, WriteTimeout: 5, MaxBodyMB: 1, BatchTimeout: 10},
	}
}

func newHandler(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	rc := config.ReferenceConfig{Name: "barrios", File: "barrios.geojson", LabelField: "barrio_vereda", ExcludeLinear: true}
	rs, err := spatial.ParseReferenceSet(rc.Name, []byte(barriosJSON), rc.LabelField)
	if err != nil {
		t.Fatal(err)
	}
	refs := []etl.Reference{etl.NewReference(rc, rs, cfg.Envelope)}
	p := etl.NewPipeline(cfg.Envelope, refs, etl.Options{Workers: cfg.Pipeline.Workers, IDField: cfg.Pipeline.IDField})

	return NewServer(cfg, p, nil).Handler()
}

func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(newHandler(t, cfg))
	t.Cleanup(ts.Close)
	return ts
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestProcessAndStats(t *testing.T) {
	ts := newTestServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("stats before any batch: status %d, want 404", resp.StatusCode)
	}

	body := `[{"upid":"UNP-1","lat":"3,45","lon":"76.45"},{"upid":"UNP-2","lat":null,"lon":null}]`
	resp, err = http.Post(ts.URL+"/api/process", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("process status %d: %s", resp.StatusCode, data)
	}

	var out struct {
		Report struct {
			Total           int `json:"total"`
			WithoutLocation int `json:"without_location"`
		} `json:"report"`
		Data []map[string]interface{} `json:"data"`
	}
	decodeBody(t, resp, &out)

	if out.Report.Total != 2 || out.Report.WithoutLocation != 1 {
		t.Errorf("report = %+v", out.Report)
	}
	if len(out.Data) != 2 {
		t.Fatalf("data has %d records, want 2", len(out.Data))
	}
	if out.Data[0]["lon"] != -76.45 || out.Data[0]["barrio_vereda_val"] != "San Antonio" {
		t.Errorf("first record = %v", out.Data[0])
	}
	if out.Data[1]["lat"] != nil || out.Data[1]["barrio_vereda_val"] != spatial.Revisar {
		t.Errorf("second record = %v", out.Data[1])
	}

	resp, err = http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	var stats struct {
		Origin string `json:"origin"`
		Report struct {
			Total int `json:"total"`
		} `json:"report"`
	}
	decodeBody(t, resp, &stats)
	if stats.Origin != "memory" || stats.Report.Total != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestProcessErrors(t *testing.T) {
	ts := newTestServer(t, testConfig())

	tests := []struct {
		name   string
		body   string
		url    string
		status int
	}{
		{"empty array", `[]`, "/api/process", http.StatusBadRequest},
		{"not json", `hello`, "/api/process", http.StatusBadRequest},
		{"save without database", `[{"lat":3.45,"lon":-76.45}]`, "/api/process?save=true", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+tt.url, "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestProcessBodyTooLarge(t *testing.T) {
	h := newHandler(t, testConfig())
	body := `[` + strings.Repeat(`{"lat":3.45,"lon":-76.45},`, 60000) + `{}]`

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/process", strings.NewReader(body)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestCorrectCoordinates(t *testing.T) {
	ts := newTestServer(t, testConfig())

	tests := []struct {
		query  string
		status int
		lat    interface{}
		lon    interface{}
		repair string
		valid  bool
	}{
		{"lat=3,45&lon=76.45", http.StatusOK, 3.45, -76.45, "sign_inverted", true},
		{"lat=3.45&lon=-6.45", http.StatusOK, 3.45, -76.45, "truncated_digit", true},
		{"lat=34550800868900000&lon=-76.45", http.StatusOK, nil, -76.45, "none", false},
		{"", http.StatusBadRequest, nil, nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/api/coordinates/correct?" + tt.query)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.status {
				resp.Body.Close()
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if tt.status != http.StatusOK {
				resp.Body.Close()
				return
			}
			var got map[string]interface{}
			decodeBody(t, resp, &got)
			if got["lat"] != tt.lat || got["lon"] != tt.lon || got["lon_repair"] != tt.repair || got["valid"] != tt.valid {
				t.Errorf("response = %v", got)
			}
		})
	}
}

func TestMatchPoint(t *testing.T) {
	ts := newTestServer(t, testConfig())

	tests := []struct {
		path   string
		status int
		value  string
	}{
		{"/api/match/barrios?lat=3.45&lon=-76.45", http.StatusOK, "San Antonio"},
		{"/api/match/barrios?lat=3,45&lon=76.45", http.StatusOK, "San Antonio"},
		{"/api/match/barrios?lat=3.6&lon=-76.45", http.StatusOK, spatial.Revisar},
		{"/api/match/barrios", http.StatusOK, spatial.Revisar},
		{"/api/match/comunas?lat=3.45&lon=-76.45", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.status {
				resp.Body.Close()
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if tt.status != http.StatusOK {
				resp.Body.Close()
				return
			}
			var got struct {
				Value string `json:"value"`
			}
			decodeBody(t, resp, &got)
			if got.Value != tt.value {
				t.Errorf("value = %q, want %q", got.Value, tt.value)
			}
		})
	}
}

func TestReferenceHealthMetrics(t *testing.T) {
	ts := newTestServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/api/reference")
	if err != nil {
		t.Fatal(err)
	}
	var refs []struct {
		Name        string   `json:"name"`
		OutputField string   `json:"output_field"`
		Polygons    int      `json:"polygons"`
		Labels      []string `json:"labels"`
	}
	decodeBody(t, resp, &refs)
	if len(refs) != 1 || refs[0].Name != "barrios" || refs[0].OutputField != "barrio_vereda_val" || refs[0].Polygons != 1 {
		t.Errorf("references = %+v", refs)
	}

	resp, err = http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var health struct {
		Status     string `json:"status"`
		References int    `json:"references"`
	}
	decodeBody(t, resp, &health)
	if health.Status != "ok" || health.References != 1 {
		t.Errorf("health = %+v", health)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(data), "upid_http_requests_total") {
		t.Error("metrics output missing upid_http_requests_total")
	}
}

func TestAPIKeyAndCORS(t *testing.T) {
	cfg := testConfig()
	cfg.Server.APIKey = "secret"
	ts := newTestServer(t, cfg)

	resp, err := http.Get(ts.URL + "/api/reference")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("without key: status %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/reference", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("with key: status %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health should not need a key: status %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodOptions, ts.URL+"/api/process", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight: status %d origin %q", resp.StatusCode, resp.Header.Get("Access-Control-Allow-Origin"))
	}
}
