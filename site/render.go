package site

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/capsule/tripoverview/catz"
	"github.com/capsule/tripoverview/common"
	"github.com/capsule/tripoverview/params"
	"github.com/dustin/go-humanize"
)

// Map kinds, rendered with different tile servers.
const (
	MapOffline = "offline"
	MapOnline  = "online"
)

const (
	SavesDir        = "saves"
	GeoJSONFileName = "trace.geojson"
)

//go:embed map.html.tmpl
var templates embed.FS

var mapTemplate = template.Must(template.New("map.html.tmpl").
	Funcs(template.FuncMap{"join": strings.Join}).
	ParseFS(templates, "map.html.tmpl"))

type mapData struct {
	Title        string
	TileURL      string
	Attribution  string
	Days         int
	Km           string
	Countries    []string
	CountryCount int
	LastUpdate   string
	GeoJSON      template.JS
	CenterLat    float64
	CenterLon    float64
	Zoom         common.SlippyZoomLevelT
}

// Result lists the files written by Render.
type Result struct {
	Files []string
}

// Render writes the maps and GeoJSON of view into cfg.OutputDir:
// saves/<kind>_<YYYY_MM_DD>.html and <kind>_index.html for the offline
// and online maps, trace.geojson, and a gzipped dated copy of it in saves/.
// The offline map is skipped when no offline tile URL is configured.
func Render(ctx context.Context, view View, cfg *params.SiteConfig, loc *time.Location, now time.Time) (*Result, error) {
	if cfg == nil {
		cfg = params.DefaultSiteConfig()
	}
	if loc == nil {
		loc = time.UTC
	}
	logger := slog.With("site", cfg.OutputDir)
	root := catz.NewDir(cfg.OutputDir)
	saves := root.Sub(SavesDir)
	if err := saves.MkdirAll(); err != nil {
		return nil, err
	}

	fc := FeatureCollection(view, loc)
	gj, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("encode geojson: %w", err)
	}

	res := &Result{}
	write := func(dir *catz.Dir, name string, data []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := dir.WriteFile(name, data); err != nil {
			return err
		}
		logger.Debug("Wrote", "file", name, "size", humanize.Bytes(uint64(len(data))))
		res.Files = append(res.Files, dir.Path(name))
		return nil
	}

	if err := write(root, GeoJSONFileName, gj); err != nil {
		return nil, err
	}
	dated := now.In(loc).Format("2006_01_02")
	gzName := fmt.Sprintf("trace_%s.geojson.gz", dated)
	gzw, err := saves.CreateGZ(gzName, catz.Truncate)
	if err != nil {
		return nil, err
	}
	if _, err := gzw.Write(gj); err != nil {
		gzw.Close()
		return nil, err
	}
	if err := gzw.Close(); err != nil {
		return nil, err
	}
	res.Files = append(res.Files, saves.Path(gzName))

	data := mapData{
		Title:        cfg.Title,
		Days:         view.Summary.DurationDays,
		Km:           common.FormatFixed(common.DecimalToFixed(view.Summary.TotalKm, 1)),
		Countries:    view.Summary.Countries,
		CountryCount: view.Summary.CountryCount(),
		LastUpdate:   now.In(loc).Format("02 Jan 2006 15:04"),
		GeoJSON:      template.JS(gj),
		Zoom:         common.SlippyZoomLevel10,
	}
	if c, ok := center(view.Trace); ok {
		data.CenterLat, data.CenterLon = c.Lat(), c.Lon()
	} else {
		data.Zoom = common.SlippyZoomLevel3
	}

	kinds := []struct {
		kind, url, attribution string
	}{
		{MapOffline, cfg.OfflineTileURL, "Capsule map"},
		{MapOnline, cfg.OnlineTileURL, "&copy; OpenStreetMap contributors"},
	}
	for _, k := range kinds {
		if k.url == "" {
			logger.Debug("No tile URL, skipping map", "kind", k.kind)
			continue
		}
		data.TileURL = k.url
		data.Attribution = k.attribution
		var buf strings.Builder
		if err := mapTemplate.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("render %s map: %w", k.kind, err)
		}
		html := []byte(buf.String())
		if err := write(saves, fmt.Sprintf("%s_%s.html", k.kind, dated), html); err != nil {
			return nil, err
		}
		if err := write(root, k.kind+"_index.html", html); err != nil {
			return nil, err
		}
	}
	logger.Info("Rendered site", "files", len(res.Files), "dir", filepath.Clean(cfg.OutputDir))
	return res, nil
}
