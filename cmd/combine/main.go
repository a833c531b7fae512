// Package main writes a self-contained HTML report: the rendered grid with
// every group's member rows, the page script, and the result document
// embedded as a JSON script element.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/klauspost/compress/gzip"

	"github.com/clusterview/server/internal/config"
	"github.com/clusterview/server/internal/loader"
	"github.com/clusterview/server/internal/render"
	"github.com/clusterview/server/internal/store"
)

func main() {
	_ = godotenv.Load()

	dataPath := flag.String("data", "", "Result document (file or http(s) URL); defaults to the configured default dataset")
	configPath := flag.String("config", envOr("CLUSTERVIEW_CONFIG", "config/server.yaml"), "Path to configuration file")
	title := flag.String("title", "", "Report title")
	compress := flag.Bool("gzip", false, "Gzip the report")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] OUTPUT\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	output := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	source := *dataPath
	if source == "" {
		source = cfg.Data.Datasets[cfg.Data.DefaultDataset].Source
	}
	if *title == "" {
		*title = cfg.Server.Title
	}

	if err := run(context.Background(), source, output, *title, *compress); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
	log.Printf("Report written to %s", output)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, source, output, title string, compress bool) error {
	doc, err := loader.Load(ctx, source)
	if err != nil {
		return err
	}

	st := store.NewMemory()
	defer st.Close()
	if err := loader.Bootstrap(ctx, st, doc); err != nil {
		return err
	}

	engine := render.NewEngine(render.EngineConfig{
		DatasetID:  "report",
		Store:      st,
		Queries:    doc.Queries(),
		Clustering: doc.Clustering,
	})
	view, err := engine.NewView(ctx, "report")
	if err != nil {
		return err
	}
	if err := view.ExpandAll(ctx); err != nil {
		return err
	}
	page, err := view.RenderPage(ctx, render.PageOptions{Title: title, Static: true})
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := loader.EmbedDocument(&buf, page, doc); err != nil {
		return err
	}
	return writeReport(output, buf.Bytes(), compress)
}

func writeReport(path string, data []byte, compress bool) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.WriteCloser = nopCloser{f}
	if compress {
		w = gzip.NewWriter(f)
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return f.Close()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
