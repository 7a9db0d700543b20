package spec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/assetgraph/internal/ctxlog"
	"github.com/vk/assetgraph/internal/fsutil"
	"gopkg.in/yaml.v3"
)

// Format identifies the encoding of a specification document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// extensions lists the file suffixes recognised when walking a directory.
var extensions = []string{".json", ".yaml", ".yml", ".hcl"}

// FormatFromPath infers the document format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", fmt.Errorf("unsupported specification file extension: %q", path)
	}
}

// Parse decodes a single specification document. The filename is only used
// in diagnostics.
func Parse(data []byte, format Format, filename string) (*GraphSpec, error) {
	switch format {
	case FormatJSON:
		return parseJSON(data, filename)
	case FormatYAML:
		var g GraphSpec
		if err := yaml.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("failed to parse YAML specification %s: %w", filename, err)
		}
		return &g, nil
	case FormatHCL:
		return parseHCL(data, filename, os.Environ())
	default:
		return nil, fmt.Errorf("unknown specification format %q", format)
	}
}

func parseJSON(data []byte, filename string) (*GraphSpec, error) {
	var g GraphSpec
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse JSON specification %s: %w", filename, err)
	}
	return &g, nil
}

// Load reads every path (file or directory) and merges the results into one
// specification. Directory contents are merged in lexical path order.
func Load(ctx context.Context, paths ...string) (*GraphSpec, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Specification loader started.", "path_count", len(paths))

	files, err := collectFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no specification files found in %v", paths)
	}
	logger.Debug("Discovered specification files.", "files", files)

	merged := &GraphSpec{}
	for _, file := range files {
		g, err := LoadFile(file)
		if err != nil {
			return nil, err
		}
		merged.Merge(g)
		logger.Debug("Loaded specification file.", "file", file, "nodes", len(g.Nodes), "edges", len(g.Edges))
	}

	logger.Info("Specification loaded.", "nodes", len(merged.Nodes), "edges", len(merged.Edges))
	return merged, nil
}

// LoadFile reads and parses a single specification file.
func LoadFile(path string) (*GraphSpec, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read specification file: %w", err)
	}
	return Parse(data, format, path)
}

func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to access specification path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		found, err := fsutil.FindFilesByExtension(path, extensions...)
		if err != nil {
			return nil, fmt.Errorf("failed to walk specification directory %s: %w", path, err)
		}
		files = append(files, found...)
	}
	return files, nil
}
