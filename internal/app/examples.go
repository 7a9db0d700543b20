package app

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/vk/assetgraph/internal/spec"
)

//go:embed examples/*.json
var examplesFS embed.FS

// Examples returns the names of the embedded example graphs, sorted.
func Examples() []string {
	entries, err := fs.ReadDir(examplesFS, "examples")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	slices.Sort(names)
	return names
}

func exampleFile(name string) (string, error) {
	if !slices.Contains(Examples(), name) {
		return "", fmt.Errorf("unknown example %q. Available examples: [%s]", name, strings.Join(Examples(), ", "))
	}
	return path.Join("examples", name+".json"), nil
}

// loadExample parses the embedded example graph name.
func loadExample(name string) (*spec.GraphSpec, error) {
	file, err := exampleFile(name)
	if err != nil {
		return nil, err
	}
	data, err := examplesFS.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return spec.Parse(data, spec.FormatJSON, file)
}
