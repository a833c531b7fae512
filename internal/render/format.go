package render

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ShortenOrganismName abbreviates "Genus species ..." to "G. species".
// Names with fewer than two space-separated parts are returned unchanged.
func ShortenOrganismName(name string) string {
	parts := strings.Split(name, " ")
	if len(parts) < 2 {
		return name
	}
	genus, species := parts[0], parts[1]
	if genus == "" {
		return name
	}
	r := []rune(genus)
	return string(r[0]) + ". " + species
}

// ScaffoldURL links a scaffold region to the NCBI nucleotide graphical view.
func ScaffoldURL(scaffold string, start, end int) string {
	q := url.Values{}
	q.Set("report", "graph")
	q.Set("from", strconv.Itoa(start))
	q.Set("to", strconv.Itoa(end))
	return "https://www.ncbi.nlm.nih.gov/nuccore/" + url.PathEscape(scaffold) + "?" + q.Encode()
}

func fixed2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func toggleLabel(size int, expanded bool) string {
	if expanded {
		return fmt.Sprintf("▲ %d", size)
	}
	return fmt.Sprintf("▼ %d", size)
}
