package shader

// Translation is a fragment shader rewritten for the current GL dialect.
type Translation struct {
	Code string
	// Names maps declared uniform names to the names used in Code.
	Names map[string]string
}

// Translator rewrites WebGL2 fragment sources for the running context.
type Translator interface {
	TranslateFragment(source string) (Translation, error)
}

// Passthrough hands sources to the driver unchanged.
type Passthrough struct{}

func (Passthrough) TranslateFragment(source string) (Translation, error) {
	return Translation{Code: source}, nil
}

// MappedName returns the translated name for a uniform, or name itself.
func (t Translation) MappedName(name string) string {
	if mapped, ok := t.Names[name]; ok && mapped != "" {
		return mapped
	}
	return name
}
