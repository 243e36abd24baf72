package shader

// StageID names a built-in program.
type StageID string

const (
	StageEASU     StageID = "easu"
	StageRCAS     StageID = "rcas"
	StageFSR1     StageID = "fsr1"
	StageFrameGen StageID = "framegen"
)

// ────────────────────────────────── Vertex ──────────────────────────────────

const vertexShaderSourceGL = `#version 410 core
layout (location = 0) in vec2 a_position;
layout (location = 1) in vec2 a_texCoord;
out vec2 v_texCoord;
void main() {
    v_texCoord = a_texCoord;
    gl_Position = vec4(a_position, 0.0, 1.0);
}
`

const vertexShaderSourceGLES = `#version 300 es
layout (location = 0) in vec2 a_position;
layout (location = 1) in vec2 a_texCoord;
out vec2 v_texCoord;
void main() {
    v_texCoord = a_texCoord;
    gl_Position = vec4(a_position, 0.0, 1.0);
}
`

// ───────────────────────── Fragment (WebGL2 dialect) ─────────────────────────
// Fragment sources derive texture coordinates from gl_FragCoord so they do not
// depend on varying names surviving translation.

const fragmentPreamble = `#version 300 es
precision highp float;
precision highp int;
out vec4 fragColor;
`

const easuFunctions = `
uniform sampler2D u_input;
uniform vec2 u_inputSize;
uniform vec2 u_outputSize;

float luma(vec3 c) { return dot(c, vec3(0.299, 0.587, 0.114)); }

vec3 easuTap(vec2 texel, vec2 base, float x, float y) {
    return texture(u_input, (base + vec2(x, y) + 0.5) * texel).rgb;
}

// Edge-adaptive 4x4 Lanczos-2 approximation. The kernel is stretched along the
// local edge direction and the result is clamped to the nearest 2x2 texels.
vec3 FsrEasu(vec2 uv) {
    vec2 texel = 1.0 / u_inputSize;
    vec2 pos = uv * u_inputSize - 0.5;
    vec2 base = floor(pos);
    vec2 f = pos - base;

    float la = luma(easuTap(texel, base, 0.0, 0.0));
    float lb = luma(easuTap(texel, base, 1.0, 0.0));
    float lc = luma(easuTap(texel, base, 0.0, 1.0));
    float ld = luma(easuTap(texel, base, 1.0, 1.0));
    vec2 grad = vec2(lb + ld - la - lc, lc + ld - la - lb);
    float glen = length(grad);
    float edge = clamp(glen * 4.0, 0.0, 1.0);
    vec2 dir = glen > 1e-5 ? grad / glen : vec2(1.0, 0.0);
    vec2 along = vec2(-dir.y, dir.x);
    vec2 stretch = vec2(mix(1.0, 0.5, edge), mix(1.0, 1.5, edge));

    vec3 sum = vec3(0.0);
    float wsum = 0.0;
    vec3 lo = vec3(1e9);
    vec3 hi = vec3(-1e9);
    for (int j = -1; j <= 2; j++) {
        for (int i = -1; i <= 2; i++) {
            vec2 off = vec2(float(i), float(j)) - f;
            vec2 r = vec2(dot(off, along), dot(off, dir)) * stretch;
            float d2 = min(dot(r, r), 4.0);
            float wa = 0.4 * d2 - 1.0;
            float wb = 0.25 * d2 - 1.0;
            float w = (1.5625 * wa * wa - 0.5625) * wb * wb;
            vec3 s = easuTap(texel, base, float(i), float(j));
            if (i >= 0 && i <= 1 && j >= 0 && j <= 1) {
                lo = min(lo, s);
                hi = max(hi, s);
            }
            sum += s * w;
            wsum += w;
        }
    }
    return clamp(sum / max(wsum, 1e-5), lo, hi);
}
`

const rcasFunctions = `
uniform float u_sharpness;

// Contrast-adaptive sharpening over a 5-tap cross. Sharpness 1 is the strongest.
vec3 FsrRcasResolve(vec3 b, vec3 d, vec3 e, vec3 f, vec3 h) {
    vec3 mn4 = min(min(b, d), min(f, h));
    vec3 mx4 = max(max(b, d), max(f, h));
    vec3 hitMin = mn4 / (4.0 * mx4 + 1e-5);
    vec3 hitMax = (1.0 - mx4) / (4.0 * mn4 - 4.0 - 1e-5);
    vec3 lobeRGB = max(-hitMin, hitMax);
    float sharp = exp2(-(1.0 - clamp(u_sharpness, 0.0, 1.0)) * 2.0);
    float lobe = max(-0.1875, min(max(lobeRGB.r, max(lobeRGB.g, lobeRGB.b)), 0.0)) * sharp;
    return clamp((lobe * (b + d + f + h) + e) / (4.0 * lobe + 1.0), 0.0, 1.0);
}
`

const easuMain = `
void main() {
    vec2 uv = gl_FragCoord.xy / u_outputSize;
    fragColor = vec4(FsrEasu(uv), 1.0);
}
`

const rcasMain = `
uniform sampler2D u_input;

vec3 rcasFetch(ivec2 p) {
    ivec2 size = textureSize(u_input, 0);
    return texelFetch(u_input, clamp(p, ivec2(0), size - 1), 0).rgb;
}

void main() {
    ivec2 p = ivec2(gl_FragCoord.xy);
    vec3 b = rcasFetch(p + ivec2(0, -1));
    vec3 d = rcasFetch(p + ivec2(-1, 0));
    vec3 e = rcasFetch(p);
    vec3 f = rcasFetch(p + ivec2(1, 0));
    vec3 h = rcasFetch(p + ivec2(0, 1));
    fragColor = vec4(FsrRcasResolve(b, d, e, f, h), 1.0);
}
`

// The combined pass sharpens the EASU result against bilinear neighbours taken
// one output pixel away.
const fsr1Main = `
void main() {
    vec2 px = 1.0 / u_outputSize;
    vec2 uv = gl_FragCoord.xy * px;
    vec3 e = FsrEasu(uv);
    vec3 b = texture(u_input, uv + vec2(0.0, -px.y)).rgb;
    vec3 d = texture(u_input, uv + vec2(-px.x, 0.0)).rgb;
    vec3 f = texture(u_input, uv + vec2(px.x, 0.0)).rgb;
    vec3 h = texture(u_input, uv + vec2(0.0, px.y)).rgb;
    fragColor = vec4(FsrRcasResolve(b, d, e, f, h), 1.0);
}
`

const frameGenMain = `
uniform sampler2D u_current;
uniform sampler2D u_history;
uniform sampler2D u_motion;
uniform vec2 u_outputSize;
uniform float u_historyWeight;

// Blends the reprojected previous frame into the current one. History is
// clamped to the current 3x3 neighbourhood to limit ghosting.
vec4 FrameInterpolate(vec2 uv) {
    vec2 px = 1.0 / u_outputSize;
    vec3 cur = texture(u_current, uv).rgb;
    vec2 motion = texture(u_motion, uv).rg;
    vec3 prev = texture(u_history, uv - motion).rgb;
    vec3 lo = cur;
    vec3 hi = cur;
    for (int j = -1; j <= 1; j++) {
        for (int i = -1; i <= 1; i++) {
            vec3 s = texture(u_current, uv + vec2(float(i), float(j)) * px).rgb;
            lo = min(lo, s);
            hi = max(hi, s);
        }
    }
    return vec4(mix(cur, clamp(prev, lo, hi), u_historyWeight), 1.0);
}

void main() {
    fragColor = FrameInterpolate(gl_FragCoord.xy / u_outputSize);
}
`

type stageSource struct {
	fragment string
	uniforms []string
}

var stageSources = map[StageID]stageSource{
	StageEASU: {
		fragment: fragmentPreamble + easuFunctions + easuMain,
		uniforms: []string{"u_input", "u_inputSize", "u_outputSize"},
	},
	StageRCAS: {
		fragment: fragmentPreamble + rcasFunctions + rcasMain,
		uniforms: []string{"u_input", "u_sharpness"},
	},
	StageFSR1: {
		fragment: fragmentPreamble + easuFunctions + rcasFunctions + fsr1Main,
		uniforms: []string{"u_input", "u_inputSize", "u_outputSize", "u_sharpness"},
	},
	StageFrameGen: {
		fragment: fragmentPreamble + frameGenMain,
		uniforms: []string{"u_current", "u_history", "u_motion", "u_outputSize", "u_historyWeight"},
	},
}

// ────────────────────────────────── Public API ─────────────────────────────────

func GenerateVertexShader(isGLES bool) string {
	if isGLES {
		return vertexShaderSourceGLES
	}
	return vertexShaderSourceGL
}

// FragmentSource returns the WebGL2 fragment source of a built-in stage.
func FragmentSource(stage StageID) (string, bool) {
	src, ok := stageSources[stage]
	return src.fragment, ok
}

// Uniforms lists the uniforms a built-in stage resolves at compile time.
func Uniforms(stage StageID) []string {
	return stageSources[stage].uniforms
}
