package dataset

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const (
	facilitiesQuery = `
		MATCH (f:Facility)
		RETURN f.id AS id, f.name AS name, f.lat AS lat, f.lng AS lng,
		       f.type AS type, f.road_class AS road_class
		ORDER BY id`

	roadsQuery = `
		MATCH (a:Facility)-[r:ROAD]->(b:Facility)
		RETURN a.id AS from, b.id AS to, r.distance_m AS distance_m, r.duration_s AS duration_s`
)

// Neo4jConfig holds connection settings for the graph database.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Neo4jSource reads (:Facility) nodes and [:ROAD] relationships and
// materializes them as dense matrices.
type Neo4jSource struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jSource connects and verifies connectivity.
func NewNeo4jSource(ctx context.Context, cfg Neo4jConfig) (*Neo4jSource, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("could not create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("%w: verify neo4j connection: %v", ErrSource, err)
	}
	return &Neo4jSource{driver: driver, database: cfg.Database}, nil
}

// Close releases the driver.
func (s *Neo4jSource) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Load implements Source.
func (s *Neo4jSource) Load(ctx context.Context) (*Raw, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithReadersRouting()}
	if s.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(s.database))
	}

	facilities, err := neo4j.ExecuteQuery(ctx, s.driver, facilitiesQuery, nil, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: query facilities: %v", ErrSource, err)
	}
	var nodes []RawNode
	for _, rec := range facilities.Records {
		n, err := nodeFromRecord(rec)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}

	roads, err := neo4j.ExecuteQuery(ctx, s.driver, roadsQuery, nil, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: query roads: %v", ErrSource, err)
	}
	var edges []RoadEdge
	for _, rec := range roads.Records {
		e, err := edgeFromRecord(rec)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}

	return Assemble(nodes, edges)
}

// RoadEdge is one directed relationship between two facilities. A nil
// weight leaves that metric without a direct edge.
type RoadEdge struct {
	From, To int
	Distance *float64
	Duration *float64
}

// Assemble builds dense matrices from a node list and a sparse edge list.
// Pairs without an edge get MissingEdge; the diagonal is 0.
func Assemble(nodes []RawNode, edges []RoadEdge) (*Raw, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: no facilities", ErrIncomplete)
	}
	n := len(nodes)
	dist := newSentinelMatrix(n)
	dur := newSentinelMatrix(n)

	for _, e := range edges {
		if e.From < 0 || e.From >= n || e.To < 0 || e.To >= n {
			return nil, fmt.Errorf("dataset: road %d->%d references unknown facility", e.From, e.To)
		}
		if e.From == e.To {
			continue
		}
		if e.Distance != nil {
			dist[e.From][e.To] = *e.Distance
		}
		if e.Duration != nil {
			dur[e.From][e.To] = *e.Duration
		}
	}

	return &Raw{Nodes: nodes, Distances: dist, Durations: dur}, nil
}

func newSentinelMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			if i != j {
				m[i][j] = MissingEdge
			}
		}
	}
	return m
}

func nodeFromRecord(rec *neo4j.Record) (RawNode, error) {
	id, ok := intValue(rec, "id")
	if !ok {
		return RawNode{}, fmt.Errorf("%w: facility without integer id", ErrIncomplete)
	}
	lat, okLat := floatValue(rec, "lat")
	lng, okLng := floatValue(rec, "lng")
	if !okLat || !okLng {
		return RawNode{}, fmt.Errorf("%w: facility %d without coordinates", ErrIncomplete, id)
	}
	return RawNode{
		ID:        id,
		Name:      stringValue(rec, "name"),
		Lat:       lat,
		Lng:       lng,
		Type:      stringValue(rec, "type"),
		RoadClass: stringValue(rec, "road_class"),
	}, nil
}

func edgeFromRecord(rec *neo4j.Record) (RoadEdge, error) {
	from, okFrom := intValue(rec, "from")
	to, okTo := intValue(rec, "to")
	if !okFrom || !okTo {
		return RoadEdge{}, fmt.Errorf("%w: road without endpoint ids", ErrIncomplete)
	}
	e := RoadEdge{From: from, To: to}
	if v, ok := floatValue(rec, "distance_m"); ok {
		e.Distance = &v
	}
	if v, ok := floatValue(rec, "duration_s"); ok {
		e.Duration = &v
	}
	return e, nil
}

func intValue(rec *neo4j.Record, key string) (int, bool) {
	v, ok := rec.Get(key)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case int64:
		return int(x), true
	case float64:
		if x == float64(int(x)) {
			return int(x), true
		}
	}
	return 0, false
}

func floatValue(rec *neo4j.Record, key string) (float64, bool) {
	v, ok := rec.Get(key)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	}
	return 0, false
}

func stringValue(rec *neo4j.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}
