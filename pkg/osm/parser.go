// Package osm extracts facility nodes from an OpenStreetMap PBF extract and
// tags each with the class of the nearest drivable road.
package osm

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"golang.org/x/exp/slog"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/dataset"
	"github.com/acaxoxo/gis-rs-kotkup/pkg/geo"
)

// carHighways ranks highway tag values accessible by car. Higher wins when
// a node is shared by several ways.
var carHighways = map[string]int{
	"motorway":       10,
	"motorway_link":  10,
	"trunk":          9,
	"trunk_link":     9,
	"primary":        8,
	"primary_link":   8,
	"secondary":      7,
	"secondary_link": 7,
	"tertiary":       6,
	"tertiary_link":  6,
	"unclassified":   5,
	"residential":    4,
	"living_street":  3,
	"service":        2,
}

// DefaultAmenities are the amenity values treated as facilities.
var DefaultAmenities = []string{"hospital", "clinic"}

// isCarAccessible returns true if the way is drivable by car.
func isCarAccessible(tags osm.Tags) bool {
	if _, ok := carHighways[tags.Find("highway")]; !ok {
		return false
	}

	// Skip area highways (pedestrian plazas).
	if tags.Find("area") == "yes" {
		return false
	}

	// Skip restricted access.
	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}
	if tags.Find("motor_vehicle") == "no" {
		return false
	}

	return true
}

// roadClass strips the _link suffix so ramps report their parent class.
func roadClass(highway string) string {
	return strings.TrimSuffix(highway, "_link")
}

// ExtractOptions configures Extract.
type ExtractOptions struct {
	// Region keeps only facilities inside it when non-zero.
	Region geo.Region

	// Amenities overrides DefaultAmenities.
	Amenities []string

	// MaxRoadMeters leaves RoadClass empty for facilities farther than this
	// from any drivable road node. Zero means unbounded.
	MaxRoadMeters float64

	Logger *slog.Logger
}

// Extract reads a PBF extract and returns facilities as dataset nodes with
// ids 0..N-1 in name order. The reader is consumed twice, so it must
// implement io.ReadSeeker.
func Extract(ctx context.Context, rs io.ReadSeeker, opts ExtractOptions) ([]dataset.RawNode, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := newCollector(opts)

	// Pass 1: ways give road classes per node and facility outlines.
	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		if w, ok := scanner.Object().(*osm.Way); ok {
			c.addWay(w)
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	scanner.Close()
	logger.Info("ways scanned", "road_nodes", len(c.nodeClass), "facility_outlines", len(c.outlines))

	// Pass 2: nodes give coordinates and point facilities.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}
	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		if n, ok := scanner.Object().(*osm.Node); ok {
			c.addNode(n)
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()

	nodes := c.facilities()
	logger.Info("facilities extracted", "count", len(nodes), "road_points", len(c.roads))
	return nodes, nil
}

type facility struct {
	name    string
	amenity string
	lat     float64
	lng     float64
}

// outline is an amenity mapped as a closed way; its position is the mean of
// its node coordinates.
type outline struct {
	name    string
	amenity string
	refs    []osm.NodeID
}

type roadPoint struct {
	lat, lng float64
	class    string
}

// collector accumulates what the two scans see.
type collector struct {
	opts      ExtractOptions
	amenities map[string]bool

	nodeClass map[osm.NodeID]string
	outlines  []outline
	outlineOf map[osm.NodeID]struct{}

	points []facility
	coords map[osm.NodeID][2]float64 // outline nodes only
	roads  []roadPoint
}

func newCollector(opts ExtractOptions) *collector {
	list := opts.Amenities
	if len(list) == 0 {
		list = DefaultAmenities
	}
	amenities := make(map[string]bool, len(list))
	for _, a := range list {
		amenities[a] = true
	}
	return &collector{
		opts:      opts,
		amenities: amenities,
		nodeClass: make(map[osm.NodeID]string),
		outlineOf: make(map[osm.NodeID]struct{}),
		coords:    make(map[osm.NodeID][2]float64),
	}
}

func (c *collector) addWay(w *osm.Way) {
	if amenity := w.Tags.Find("amenity"); c.amenities[amenity] && len(w.Nodes) > 0 {
		o := outline{name: w.Tags.Find("name"), amenity: amenity}
		for _, wn := range w.Nodes {
			o.refs = append(o.refs, wn.ID)
			c.outlineOf[wn.ID] = struct{}{}
		}
		c.outlines = append(c.outlines, o)
		return
	}

	if !isCarAccessible(w.Tags) || len(w.Nodes) < 2 {
		return
	}
	hw := w.Tags.Find("highway")
	for _, wn := range w.Nodes {
		if cur, ok := c.nodeClass[wn.ID]; !ok || carHighways[hw] > carHighways[cur] {
			c.nodeClass[wn.ID] = hw
		}
	}
}

func (c *collector) addNode(n *osm.Node) {
	if _, ok := c.outlineOf[n.ID]; ok {
		c.coords[n.ID] = [2]float64{n.Lat, n.Lon}
	}
	if hw, ok := c.nodeClass[n.ID]; ok && c.inRegion(n.Lat, n.Lon, 0.05) {
		c.roads = append(c.roads, roadPoint{lat: n.Lat, lng: n.Lon, class: roadClass(hw)})
	}
	if amenity := n.Tags.Find("amenity"); c.amenities[amenity] && c.inRegion(n.Lat, n.Lon, 0) {
		c.points = append(c.points, facility{name: n.Tags.Find("name"), amenity: amenity, lat: n.Lat, lng: n.Lon})
	}
}

// inRegion tests the configured region grown by margin degrees.
func (c *collector) inRegion(lat, lng, margin float64) bool {
	r := c.opts.Region
	if r.IsZero() {
		return true
	}
	return lat >= r.MinLat-margin && lat <= r.MaxLat+margin &&
		lng >= r.MinLng-margin && lng <= r.MaxLng+margin
}

func (c *collector) facilities() []dataset.RawNode {
	all := append([]facility(nil), c.points...)
	for _, o := range c.outlines {
		var lat, lng float64
		var n int
		for _, ref := range o.refs {
			if ll, ok := c.coords[ref]; ok {
				lat += ll[0]
				lng += ll[1]
				n++
			}
		}
		if n == 0 {
			continue
		}
		lat, lng = lat/float64(n), lng/float64(n)
		if c.inRegion(lat, lng, 0) {
			all = append(all, facility{name: o.name, amenity: o.amenity, lat: lat, lng: lng})
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].name < all[j].name })

	nodes := make([]dataset.RawNode, len(all))
	for i, f := range all {
		name := f.name
		if name == "" {
			name = fmt.Sprintf("%s %d", f.amenity, i)
		}
		nodes[i] = dataset.RawNode{
			ID:        i,
			Name:      name,
			Lat:       f.lat,
			Lng:       f.lng,
			Type:      f.amenity,
			RoadClass: c.nearestClass(f.lat, f.lng),
		}
	}
	return nodes
}

func (c *collector) nearestClass(lat, lng float64) string {
	best, class := math.Inf(1), ""
	for _, r := range c.roads {
		if d := geo.Haversine(lat, lng, r.lat, r.lng); d < best {
			best, class = d, r.class
		}
	}
	if c.opts.MaxRoadMeters > 0 && best > c.opts.MaxRoadMeters {
		return ""
	}
	return class
}
