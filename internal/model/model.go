// Package model defines the cluster/hit result document served by clusterview.
package model

import (
	"fmt"
)

// Hit is a single sequence match.
type Hit struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Start    int     `json:"start"`
	End      int     `json:"end"`
	Strand   int     `json:"strand"`
	Identity float64 `json:"identity"` // Percent identity (0-100)
	Coverage float64 `json:"coverage"` // Percent query coverage
	Bitscore float64 `json:"bitscore"`
	Evalue   float64 `json:"evalue"`
}

// Cluster is a genomic region grouping hits per query.
type Cluster struct {
	ID             int     `json:"id"`
	OrganismName   string  `json:"organism_name"`
	OrganismStrain string  `json:"organism_strain"`
	Scaffold       string  `json:"scaffold"`
	Start          int     `json:"start"`
	End            int     `json:"end"`
	Score          float64 `json:"score"`
	// Hits holds one list of hit IDs per query column.
	Hits [][]int `json:"hits"`
}

// Length returns the size of the cluster region.
func (c Cluster) Length() int {
	return c.End - c.Start
}

// HitIDs returns every referenced hit ID in column order, without duplicates.
func (c Cluster) HitIDs() []int {
	seen := make(map[int]struct{})
	var ids []int
	for _, column := range c.Hits {
		for _, id := range column {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// Query is the presentational metadata for one column of the hit-pattern grid.
type Query struct {
	Name string `json:"name"`
}

// QuerySection wraps the query list as it appears in the result document.
type QuerySection struct {
	Queries []Query `json:"queries"`
}

// Meta is a free-form bag of whole-dataset metadata.
type Meta map[string]any

// Document is the raw result document produced by a search run.
type Document struct {
	Hits       []Hit        `json:"hits"`
	Clusters   []Cluster    `json:"clusters"`
	Clustering [][]int      `json:"clustering"`
	Query      QuerySection `json:"query"`
	Meta       Meta         `json:"meta,omitempty"`
}

// Queries returns the query columns in order.
func (d *Document) Queries() []Query {
	return d.Query.Queries
}

// Validate checks identifier uniqueness and that every cluster carries one hit
// list per query. Clustering groups are not checked for partitioning.
func (d *Document) Validate() error {
	hitIDs := make(map[int]struct{}, len(d.Hits))
	for _, h := range d.Hits {
		if _, dup := hitIDs[h.ID]; dup {
			return fmt.Errorf("duplicate hit id %d", h.ID)
		}
		hitIDs[h.ID] = struct{}{}
	}

	nQueries := len(d.Query.Queries)
	clusterIDs := make(map[int]struct{}, len(d.Clusters))
	for _, c := range d.Clusters {
		if _, dup := clusterIDs[c.ID]; dup {
			return fmt.Errorf("duplicate cluster id %d", c.ID)
		}
		clusterIDs[c.ID] = struct{}{}
		if len(c.Hits) != nQueries {
			return fmt.Errorf("cluster %d has %d hit columns, expected %d", c.ID, len(c.Hits), nQueries)
		}
	}
	return nil
}
