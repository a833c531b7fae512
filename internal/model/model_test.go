package model

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

const sampleDocument = `{
  "hits": [
    {"id": 1, "name": "geneA", "start": 100, "end": 400, "strand": 1, "identity": 87.5, "coverage": 99.1, "bitscore": 512, "evalue": 1e-50},
    {"id": 2, "name": "geneB", "start": 500, "end": 900, "strand": -1, "identity": 40, "coverage": 70, "bitscore": 120, "evalue": 0.001}
  ],
  "clusters": [
    {"id": 10, "organism_name": "Escherichia coli", "organism_strain": "K-12", "scaffold": "NC_000913.3",
     "start": 50, "end": 1000, "score": 0.75, "hits": [[1], [2, 1]]}
  ],
  "clustering": [[10]],
  "query": {"queries": [{"name": "QA"}, {"name": "QB"}]}
}`

func TestDocumentDecode(t *testing.T) {
	var doc Document
	if err := json.Unmarshal([]byte(sampleDocument), &doc); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if err := doc.Validate(); err != nil {
		t.Fatalf("expected valid document, got %v", err)
	}
	if len(doc.Queries()) != 2 || doc.Queries()[1].Name != "QB" {
		t.Fatalf("unexpected queries: %#v", doc.Queries())
	}
	c := doc.Clusters[0]
	if c.Length() != 950 {
		t.Errorf("expected length 950, got %d", c.Length())
	}
	if got := c.HitIDs(); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("unexpected hit ids: %v", got)
	}
	if doc.Hits[1].Strand != -1 {
		t.Errorf("expected strand -1, got %d", doc.Hits[1].Strand)
	}
}

func TestValidate(t *testing.T) {
	t.Run("columnMismatch", func(t *testing.T) {
		doc := Document{
			Clusters: []Cluster{{ID: 1, Hits: [][]int{{1}}}},
			Query:    QuerySection{Queries: []Query{{Name: "a"}, {Name: "b"}}},
		}
		err := doc.Validate()
		if err == nil || !strings.Contains(err.Error(), "hit columns") {
			t.Fatalf("expected column mismatch error, got %v", err)
		}
	})

	t.Run("duplicateHit", func(t *testing.T) {
		doc := Document{Hits: []Hit{{ID: 3}, {ID: 3}}}
		if err := doc.Validate(); err == nil {
			t.Fatal("expected duplicate hit error")
		}
	})

	t.Run("duplicateCluster", func(t *testing.T) {
		doc := Document{Clusters: []Cluster{{ID: 3}, {ID: 3}}}
		if err := doc.Validate(); err == nil {
			t.Fatal("expected duplicate cluster error")
		}
	})
}
