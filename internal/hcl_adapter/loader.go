package hcl_adapter

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/stepgrid/internal/config"
	"github.com/specialistvlad/stepgrid/internal/ctxlog"
	"github.com/specialistvlad/stepgrid/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{lookupEnv: os.LookupEnv}
}

var _ config.Loader = (*Loader)(nil)

// Load parses every .hcl file under paths and merges the blocks into one
// model. Singleton blocks (pipeline, cache, params, artifacts, metadata)
// may appear in one file only.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(hclFiles) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	model := config.Default()
	parser := hclparse.NewParser()
	evalCtx := l.evalContext()
	declared := make(map[string]string)

	once := func(block, file string) error {
		if prev, ok := declared[block]; ok {
			return fmt.Errorf("block '%s' is declared in both %s and %s", block, prev, file)
		}
		declared[block] = file
		return nil
	}

	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		if root.Pipeline != nil {
			if err := once("pipeline", file); err != nil {
				return nil, err
			}
			model.Engine = translatePipeline(root.Pipeline)
		}
		if root.Cache != nil {
			if err := once("cache", file); err != nil {
				return nil, err
			}
			if model.Cache, err = translateCache(root.Cache); err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
		}
		if root.Params != nil {
			if err := once("params", file); err != nil {
				return nil, err
			}
			if model.Params, err = translateParams(root.Params, evalCtx); err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
		}
		if root.Artifacts != nil {
			if err := once("artifacts", file); err != nil {
				return nil, err
			}
			model.Artifacts = translateArtifacts(root.Artifacts)
		}
		if root.Metadata != nil {
			if err := once("metadata", file); err != nil {
				return nil, err
			}
			model.Metadata = translateMetadata(root.Metadata)
		}
		for _, o := range root.Observers {
			model.Observers = append(model.Observers, translateObserver(o))
		}
		for _, s := range root.Steps {
			step, err := translateStep(ctx, s, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			model.Steps = append(model.Steps, step)
		}
	}

	logger.Debug("HCL loading complete.",
		"pipeline", model.Engine.Name,
		"steps", len(model.Steps),
		"observers", len(model.Observers),
		"params", len(model.Params),
	)
	return model, nil
}

// evalContext exposes env(name) to every expression. An unset variable
// evaluates to the empty string.
func (l *Loader) evalContext() *hcl.EvalContext {
	env := function.New(&function.Spec{
		Params: []function.Parameter{{Name: "name", Type: cty.String}},
		Type:   function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			v, _ := l.lookupEnv(args[0].AsString())
			return cty.StringVal(v), nil
		},
	})
	return &hcl.EvalContext{
		Functions: map[string]function.Function{"env": env},
	}
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl files found.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue // It's not an error if a configured path doesn't exist.
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		candidates := []string{path}
		if info.IsDir() {
			candidates, err = fsutil.FindFiles(path, ".hcl")
			if err != nil {
				return nil, err
			}
		} else if !fsutil.HasExtension(path, ".hcl") {
			continue
		}
		for _, f := range candidates {
			if _, wasSeen := seen[f]; !wasSeen {
				allFiles = append(allFiles, f)
				seen[f] = struct{}{}
			}
		}
	}
	return allFiles, nil
}
