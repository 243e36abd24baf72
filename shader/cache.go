package shader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/richinsley/gofsr/graphics"
	"github.com/richinsley/gofsr/log"
)

var logger = log.New("shader")

// Cache compiles and owns the programs used by the pipeline, one per stage.
type Cache struct {
	dev        graphics.Device
	translator Translator
	isGLES     bool
	programs   map[StageID]*Program
}

// NewCache returns an empty cache. A nil translator passes sources through.
func NewCache(dev graphics.Device, translator Translator, isGLES bool) *Cache {
	if translator == nil {
		translator = Passthrough{}
	}
	return &Cache{
		dev:        dev,
		translator: translator,
		isGLES:     isGLES,
		programs:   make(map[StageID]*Program),
	}
}

// Get returns the program compiled for stage.
func (c *Cache) Get(stage StageID) (*Program, bool) {
	p, ok := c.programs[stage]
	return p, ok
}

// Len returns the number of cached programs.
func (c *Cache) Len() int { return len(c.programs) }

// Stages lists the cached stages in name order.
func (c *Cache) Stages() []StageID {
	stages := make([]StageID, 0, len(c.programs))
	for stage := range c.programs {
		stages = append(stages, stage)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i] < stages[j] })
	return stages
}

// Load compiles the built-in sources for stage unless it is already cached. A
// failed compile is retried once; the second error is returned.
func (c *Cache) Load(stage StageID) (*Program, error) {
	if p, ok := c.programs[stage]; ok {
		return p, nil
	}
	fragment, ok := FragmentSource(stage)
	if !ok {
		return nil, fmt.Errorf("%w: no built-in stage %q", ErrMissingResource, stage)
	}
	vertex := GenerateVertexShader(c.isGLES)

	p, err := c.Compile(stage, vertex, fragment, Uniforms(stage)...)
	if err != nil {
		logger.Warningf("compile of %s failed, retrying once: %v", stage, err)
		p, err = c.Compile(stage, vertex, fragment, Uniforms(stage)...)
	}
	return p, err
}

// Compile builds a program for stage from a vertex source in the context dialect
// and a WebGL2 fragment source. A stage already in the cache must be discarded
// first. Intermediate shader objects are released on every path, and the
// program object too on failure.
func (c *Cache) Compile(stage StageID, vertexSource, fragmentSource string, uniforms ...string) (*Program, error) {
	if _, exists := c.programs[stage]; exists {
		return nil, fmt.Errorf("shader: stage %s is already compiled", stage)
	}
	if strings.TrimSpace(vertexSource) == "" {
		return nil, fmt.Errorf("%w: %s vertex source is empty", ErrMissingResource, stage)
	}
	if strings.TrimSpace(fragmentSource) == "" {
		return nil, fmt.Errorf("%w: %s fragment source is empty", ErrMissingResource, stage)
	}

	translated, err := c.translator.TranslateFragment(fragmentSource)
	if err != nil {
		return nil, &CompileError{Stage: stage, Kind: graphics.FragmentShader, Err: fmt.Errorf("fragment shader translation failed: %w", err)}
	}

	vs, err := c.compileShader(stage, graphics.VertexShader, vertexSource)
	if err != nil {
		return nil, err
	}
	defer c.dev.DeleteShader(vs)

	fs, err := c.compileShader(stage, graphics.FragmentShader, translated.Code)
	if err != nil {
		return nil, err
	}
	defer c.dev.DeleteShader(fs)

	id := c.dev.CreateProgram()
	c.dev.AttachShader(id, vs)
	c.dev.AttachShader(id, fs)
	ok, linkLog := c.dev.LinkProgram(id)
	c.dev.DetachShader(id, vs)
	c.dev.DetachShader(id, fs)
	if !ok {
		c.dev.DeleteProgram(id)
		return nil, &LinkError{Stage: stage, Log: linkLog}
	}

	p := &Program{
		ID:       id,
		Stage:    stage,
		Valid:    true,
		dev:      c.dev,
		uniforms: make(map[string]int32, len(uniforms)),
	}
	if ok, validateLog := c.dev.ValidateProgram(id); !ok {
		p.Valid = false
		logger.Warningf("program %s did not validate: %s", stage, validateLog)
	}
	for _, name := range uniforms {
		p.uniforms[name] = c.dev.UniformLocation(id, translated.MappedName(name))
	}

	c.programs[stage] = p
	logger.Debugf("compiled %s program %d", stage, id)
	return p, nil
}

func (c *Cache) compileShader(stage StageID, kind graphics.ShaderKind, source string) (uint32, error) {
	shader := c.dev.CreateShader(kind)
	if ok, compileLog := c.dev.CompileShader(shader, source); !ok {
		c.dev.DeleteShader(shader)
		return 0, &CompileError{Stage: stage, Kind: kind, Log: compileLog}
	}
	return shader, nil
}

// Discard deletes the program of one stage so it can be compiled again.
func (c *Cache) Discard(stage StageID) {
	if p, ok := c.programs[stage]; ok {
		c.dev.DeleteProgram(p.ID)
		delete(c.programs, stage)
	}
}

// Release deletes every cached program.
func (c *Cache) Release() {
	for stage := range c.programs {
		c.Discard(stage)
	}
}
