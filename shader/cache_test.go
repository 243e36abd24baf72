package shader

import (
	"errors"
	"strings"
	"testing"

	"github.com/richinsley/gofsr/graphics"
	"github.com/richinsley/gofsr/graphics/graphicstest"
)

type mappingTranslator struct {
	calls int
	err   error
}

func (m *mappingTranslator) TranslateFragment(source string) (Translation, error) {
	m.calls++
	if m.err != nil {
		return Translation{}, m.err
	}
	return Translation{
		Code:  strings.ReplaceAll(source, "u_sharpness", "_uu_sharpness"),
		Names: map[string]string{"u_sharpness": "_uu_sharpness"},
	}, nil
}

func TestLoadBuiltins(t *testing.T) {
	dev := graphicstest.New(64, 64)
	cache := NewCache(dev, nil, false)

	for _, stage := range []StageID{StageEASU, StageRCAS, StageFSR1, StageFrameGen} {
		p, err := cache.Load(stage)
		if err != nil {
			t.Fatalf("unexpected error loading %s: %v", stage, err)
		}
		if !p.Valid || p.Stage != stage {
			t.Fatalf("expected valid %s program; got %+v", stage, p)
		}
		for _, name := range Uniforms(stage) {
			if !p.Has(name) {
				t.Fatalf("expected %s to resolve uniform %s", stage, name)
			}
		}
	}

	live := dev.Live()
	if live.Shaders != 0 {
		t.Fatalf("expected intermediate shaders to be released; %d still live", live.Shaders)
	}
	if live.Programs != 4 || cache.Len() != 4 {
		t.Fatalf("expected 4 programs; got %d live, %d cached", live.Programs, cache.Len())
	}

	again, _ := cache.Load(StageEASU)
	if p, _ := cache.Get(StageEASU); again != p {
		t.Fatal("expected Load to return the cached program")
	}

	cache.Release()
	if got := dev.Live().Total(); got != 0 {
		t.Fatalf("expected release to free everything; %d objects live", got)
	}
}

func TestCompileFailuresReleaseObjects(t *testing.T) {
	vertex := GenerateVertexShader(false)
	fragment, _ := FragmentSource(StageRCAS)

	specs := []struct {
		setup  func(*graphicstest.Device)
		vs, fs string
		check  func(error) bool
	}{
		{
			setup: func(d *graphicstest.Device) {},
			vs:    "",
			fs:    fragment,
			check: func(err error) bool { return errors.Is(err, ErrMissingResource) },
		},
		{
			setup: func(d *graphicstest.Device) {},
			vs:    vertex,
			fs:    "  ",
			check: func(err error) bool { return errors.Is(err, ErrMissingResource) },
		},
		{
			setup: func(d *graphicstest.Device) { d.CompileFailures = 1 },
			vs:    vertex,
			fs:    fragment,
			check: func(err error) bool {
				var ce *CompileError
				return errors.As(err, &ce) && ce.Kind == graphics.VertexShader && strings.Contains(ce.Log, "injected")
			},
		},
		{
			setup: func(d *graphicstest.Device) { d.LinkFailures = 1 },
			vs:    vertex,
			fs:    fragment,
			check: func(err error) bool {
				var le *LinkError
				return errors.As(err, &le) && le.Stage == StageRCAS && le.Log != ""
			},
		},
	}

	for specIndex, spec := range specs {
		dev := graphicstest.New(16, 16)
		spec.setup(dev)
		cache := NewCache(dev, nil, false)

		_, err := cache.Compile(StageRCAS, spec.vs, spec.fs, Uniforms(StageRCAS)...)
		if err == nil || !spec.check(err) {
			t.Fatalf("[spec %d] unexpected error %v", specIndex, err)
		}
		if got := dev.Live().Total(); got != 0 {
			t.Fatalf("[spec %d] expected no leaked objects; got %+v", specIndex, dev.Live())
		}
		if cache.Len() != 0 {
			t.Fatalf("[spec %d] failed compile must not be cached", specIndex)
		}
	}
}

func TestLoadRetriesOnce(t *testing.T) {
	dev := graphicstest.New(16, 16)
	dev.CompileFailures = 1
	cache := NewCache(dev, nil, false)
	if _, err := cache.Load(StageEASU); err != nil {
		t.Fatalf("expected the retry to succeed; got %v", err)
	}

	dev = graphicstest.New(16, 16)
	dev.LinkFailures = 2
	cache = NewCache(dev, nil, false)
	if _, err := cache.Load(StageEASU); err == nil {
		t.Fatal("expected two link failures to exhaust the retry")
	}
	if dev.LinkFailures != 0 {
		t.Fatalf("expected exactly two attempts; %d injected failures left", dev.LinkFailures)
	}
	if got := dev.Live().Total(); got != 0 {
		t.Fatalf("expected no leaked objects; got %+v", dev.Live())
	}
}

func TestValidateWarningIsNotFatal(t *testing.T) {
	dev := graphicstest.New(16, 16)
	dev.ValidateFailures = 1
	cache := NewCache(dev, nil, false)

	p, err := cache.Load(StageRCAS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Valid {
		t.Fatal("expected validity flag to record the validate failure")
	}
}

func TestTranslatedUniformNames(t *testing.T) {
	dev := graphicstest.New(16, 16)
	tr := &mappingTranslator{}
	cache := NewCache(dev, tr, false)

	p, err := cache.Load(StageRCAS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Has("u_sharpness") {
		t.Fatal("expected declared name to resolve through the translated name")
	}
	p.Use()
	p.Float("u_sharpness").Set1f(0.25)
	if v := dev.UniformValue(p.ID, "_uu_sharpness"); len(v) != 1 || v[0] != 0.25 {
		t.Fatalf("expected uniform value 0.25; got %v", v)
	}
	p.Float("u_missing").Set1f(1)

	tr.err = errors.New("boom")
	if _, err := cache.Compile(StageEASU, GenerateVertexShader(false), "void main(){}"); err == nil {
		t.Fatal("expected translation failure")
	}
}

func TestCompileRefusesCachedStage(t *testing.T) {
	dev := graphicstest.New(16, 16)
	cache := NewCache(dev, nil, false)
	if _, err := cache.Load(StageRCAS); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fragment, _ := FragmentSource(StageRCAS)
	if _, err := cache.Compile(StageRCAS, GenerateVertexShader(false), fragment); err == nil {
		t.Fatal("expected recompiling a cached stage to fail")
	}
	cache.Discard(StageRCAS)
	if _, err := cache.Compile(StageRCAS, GenerateVertexShader(false), fragment); err != nil {
		t.Fatalf("expected compile after discard to succeed; got %v", err)
	}
}
