package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/etlgrid/internal/config"
	"github.com/vk/etlgrid/internal/fsutil"
	"github.com/vk/etlgrid/internal/hcl"
	"github.com/vk/etlgrid/internal/yamlcfg"
)

// loadModel discovers definition files under the configured path and loads
// them through the loader matching each file's extension, merging everything
// into one model.
func loadModel(ctx context.Context, path string) (*config.Model, error) {
	files, err := fsutil.FindFiles(path, ".hcl", ".yaml", ".yml")
	if err != nil {
		return nil, fmt.Errorf("discovering definition files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no definition files found under %s", path)
	}

	var hclFiles, yamlFiles []string
	for _, f := range files {
		if strings.HasSuffix(f, ".hcl") {
			hclFiles = append(hclFiles, f)
		} else {
			yamlFiles = append(yamlFiles, f)
		}
	}

	model := &config.Model{}
	if len(hclFiles) > 0 {
		m, err := hcl.NewLoader().Load(ctx, hclFiles...)
		if err != nil {
			return nil, err
		}
		if err := model.Merge(m); err != nil {
			return nil, err
		}
	}
	if len(yamlFiles) > 0 {
		m, err := yamlcfg.NewLoader().Load(ctx, yamlFiles...)
		if err != nil {
			return nil, err
		}
		if err := model.Merge(m); err != nil {
			return nil, err
		}
	}
	return model, nil
}
