package shader

import "github.com/richinsley/gofsr/graphics"

// Program is a linked program and its resolved uniform locations. It is not
// modified after Compile returns it.
type Program struct {
	ID       uint32
	Stage    StageID
	Valid    bool
	dev      graphics.Device
	uniforms map[string]int32
}

// Uniform is a typed setter for one uniform of a bound program. Setters on a
// uniform the linker dropped are no-ops.
type Uniform struct {
	dev graphics.Device
	loc int32
}

func (p *Program) uniform(name string) Uniform {
	loc, ok := p.uniforms[name]
	if !ok {
		loc = -1
	}
	return Uniform{dev: p.dev, loc: loc}
}

func (p *Program) Float(name string) Uniform   { return p.uniform(name) }
func (p *Program) Vec2(name string) Uniform    { return p.uniform(name) }
func (p *Program) Int(name string) Uniform     { return p.uniform(name) }
func (p *Program) Sampler(name string) Uniform { return p.uniform(name) }

// Has reports whether the uniform survived linking.
func (p *Program) Has(name string) bool {
	loc, ok := p.uniforms[name]
	return ok && loc >= 0
}

// Use binds the program.
func (p *Program) Use() {
	p.dev.UseProgram(p.ID)
}

func (u Uniform) Location() int32 { return u.loc }

func (u Uniform) Set1f(v float32) {
	if u.loc >= 0 {
		u.dev.Uniform1f(u.loc, v)
	}
}

func (u Uniform) Set2f(x, y float32) {
	if u.loc >= 0 {
		u.dev.Uniform2f(u.loc, x, y)
	}
}

func (u Uniform) Set1i(v int32) {
	if u.loc >= 0 {
		u.dev.Uniform1i(u.loc, v)
	}
}

// SetUnit points a sampler uniform at a texture unit.
func (u Uniform) SetUnit(unit int) {
	u.Set1i(int32(unit))
}
