package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fpang/interview-coach/internal/behavior"
)

type fakeAnalyzer struct {
	chunk behavior.Chunk
	video behavior.VideoInput
}

func (f *fakeAnalyzer) AnalyzeSession(_ context.Context, in behavior.VideoInput) (*behavior.SessionScoreReport, error) {
	f.video = in
	return &behavior.SessionScoreReport{ConfidenceScore: 64, Source: behavior.SourceLocal}, nil
}

func (f *fakeAnalyzer) AnalyzeChunk(_ context.Context, chunk behavior.Chunk) (*behavior.ChunkMetrics, error) {
	f.chunk = chunk
	m := behavior.InertChunkMetrics()
	return m, nil
}

func TestAnalyzeSessionTool(t *testing.T) {
	fa := &fakeAnalyzer{}
	tl := &tools{analyzer: fa}
	dir := t.TempDir()
	path := filepath.Join(dir, "answer.webm")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, report, err := tl.analyzeSession(context.Background(), nil, sessionInput{Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.ConfidenceScore != 64 || fa.video.MIMEType != "video/webm" {
		t.Errorf("report %+v, input %+v", report, fa.video)
	}

	for _, in := range []sessionInput{{}, {Path: filepath.Join(dir, "missing.mp4")}, {Path: dir}} {
		if _, _, err := tl.analyzeSession(context.Background(), nil, in); err == nil {
			t.Errorf("expected error for %+v", in)
		}
	}
}

func TestAnalyzeChunkTool(t *testing.T) {
	fa := &fakeAnalyzer{}
	tl := &tools{analyzer: fa}
	path := filepath.Join(t.TempDir(), "frame.png")
	png := []byte("\x89PNG\r\n\x1a\n0000")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		t.Fatal(err)
	}

	_, m, err := tl.analyzeChunk(context.Background(), nil, chunkInput{ImagePath: path, Transcript: "Situation"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fa.chunk.ImageMIME != "image/png" || fa.chunk.Transcript != "Situation" {
		t.Errorf("analyzer saw %+v", fa.chunk)
	}
	if m.Source != behavior.SourceLocal {
		t.Errorf("source %q", m.Source)
	}

	if _, _, err := tl.analyzeChunk(context.Background(), nil, chunkInput{ImagePath: "/nonexistent/frame.jpg"}); err == nil {
		t.Error("expected error for missing image")
	}
}

func TestServerListsTools(t *testing.T) {
	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	server := newServer(&fakeAnalyzer{})
	ss, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cs.Close()

	res, err := cs.ListTools(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	if !names["analyze_session"] || !names["analyze_chunk"] {
		t.Errorf("tools: %v", names)
	}
}
