package stage

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

var (
	//go:embed schema.cue
	schemaSrc string

	//go:embed catalog.cue
	defaultSrc []byte
)

var ErrInvalidCatalog = errors.New("invalid stage catalog")

// Rules are the per-stage variations consumed by the rate model.
type Rules struct {
	NoUpgrades      bool    `json:"noUpgrades,omitempty"`
	NoLoopUpgrade   bool    `json:"noLoopUpgrade,omitempty"`
	NoLoopMult      bool    `json:"noLoopMult,omitempty"`
	HighRingPenalty bool    `json:"highRingPenalty,omitempty"`
	CostScale       float64 `json:"costScale,omitempty"`
	BaseThreshold   float64 `json:"baseThreshold,omitempty"`
	FixedThreshold  float64 `json:"fixedThreshold,omitempty"`
}

// CostScaleOrDefault returns the growth scale, 1 when unset.
func (r Rules) CostScaleOrDefault() float64 {
	if r.CostScale <= 0 {
		return 1
	}
	return r.CostScale
}

type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Loops       int    `json:"loops"`
	Reward      int64  `json:"reward"`
	Final       bool   `json:"final,omitempty"`
	Rules       Rules  `json:"rules,omitempty"`
}

// Catalog is the ordered, externally swappable stage table.
type Catalog struct {
	Stages []Definition `json:"stages"`
}

var defaultCatalog = sync.OnceValues(func() (Catalog, error) {
	return Parse(defaultSrc, "catalog.cue")
})

// Default returns the embedded catalog. It panics if the embedded file is
// broken, which the package tests guard against.
func Default() Catalog {
	c, err := defaultCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a catalog file, falling back to the embedded one for an empty path.
func Load(path string) (Catalog, error) {
	if path == "" {
		return defaultCatalog()
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read stage catalog: %w", err)
	}
	return Parse(content, path)
}

// Parse compiles CUE source, validates it against the schema and decodes it.
func Parse(src []byte, filename string) (Catalog, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString("close({" + schemaSrc + "})")
	if err := schema.Err(); err != nil {
		return Catalog{}, fmt.Errorf("compile stage schema: %w", err)
	}
	value := ctx.CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	var c Catalog
	if err := unified.LookupPath(cue.ParsePath("stages")).Decode(&c.Stages); err != nil {
		return Catalog{}, fmt.Errorf("%w: decode: %v", ErrInvalidCatalog, err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate checks the structural rules the game relies on: at least two
// stages and exactly one final stage, placed last.
func (c Catalog) Validate() error {
	if len(c.Stages) < 2 {
		return fmt.Errorf("%w: need at least 2 stages, got %d", ErrInvalidCatalog, len(c.Stages))
	}
	for i, def := range c.Stages {
		last := i == len(c.Stages)-1
		if def.Final != last {
			return fmt.Errorf("%w: stage %d final=%v, only the last stage is final", ErrInvalidCatalog, i, def.Final)
		}
		if def.Loops < 1 {
			return fmt.Errorf("%w: stage %d needs at least one loop", ErrInvalidCatalog, i)
		}
	}
	return nil
}
