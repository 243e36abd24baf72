// Package translator converts WebGL2 fragment shaders to the dialect of the
// running GL context through goshadertranslator.
package translator

import (
	"context"
	"fmt"
	"sync"

	"github.com/richinsley/gofsr/shader"
	gst "github.com/richinsley/goshadertranslator"
)

var (
	translator     *gst.ShaderTranslator
	translatorErr  error
	translatorOnce sync.Once
)

// GetTranslator returns the process-wide translator, creating it on first use.
func GetTranslator() (*gst.ShaderTranslator, error) {
	translatorOnce.Do(func() {
		translator, translatorErr = gst.NewShaderTranslator(context.Background())
	})
	return translator, translatorErr
}

// GLSL translates for a desktop 4.1 core context, or for GLES when IsGLES is set.
type GLSL struct {
	IsGLES bool
}

func (g GLSL) TranslateFragment(source string) (shader.Translation, error) {
	tr, err := GetTranslator()
	if err != nil {
		return shader.Translation{}, fmt.Errorf("failed to create shader translator: %w", err)
	}
	outputFormat := gst.OutputFormatGLSL410
	if g.IsGLES {
		outputFormat = gst.OutputFormatESSL
	}
	fsShader, err := tr.TranslateShader(source, "fragment", gst.ShaderSpecWebGL2, outputFormat)
	if err != nil {
		return shader.Translation{}, err
	}
	names := make(map[string]string, len(fsShader.Variables))
	for name, v := range fsShader.Variables {
		names[name] = v.MappedName
	}
	return shader.Translation{Code: fsShader.Code, Names: names}, nil
}

var _ shader.Translator = GLSL{}
