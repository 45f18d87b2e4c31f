//go:build !purego

// Package glrender implements render.Offscreen on an OpenGL 4.1 core context.
package glrender

import (
	"errors"
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/cadmatch/internal/engine/framebuffer"
	"github.com/Faultbox/cadmatch/internal/engine/model"
	"github.com/Faultbox/cadmatch/internal/engine/render"
	"github.com/Faultbox/cadmatch/internal/engine/shader"
	"github.com/Faultbox/cadmatch/internal/engine/window"
	"github.com/Faultbox/cadmatch/internal/imaging"
	"github.com/Faultbox/cadmatch/internal/logger"
)

const vertexShader = `#version 410 core
layout(location = 0) in vec3 aPosition;
layout(location = 1) in vec3 aNormal;
uniform mat4 uMVP;
out vec3 vNormal;
void main() {
    gl_Position = uMVP * vec4(aPosition, 1.0);
    vNormal = aNormal;
}
`

const fragmentShader = `#version 410 core
in vec3 vNormal;
out vec4 fragColor;
const vec3 ambient = vec3(0.2);
const vec3 kd = vec3(0.4);
const vec3 light1 = vec3(0.0, 0.0, 1.0);
const vec3 light2 = normalize(vec3(1.0, 1.0, 1.0));
void main() {
    vec3 n = normalize(vNormal);
    float diff = max(dot(n, light1), 0.0) + max(dot(n, light2), 0.0);
    fragColor = vec4(clamp(ambient + diff * kd, 0.0, 1.0), 1.0);
}
`

// Renderer draws into a DEPTH_COMPONENT16 framebuffer. All methods must be
// called on the goroutine (locked OS thread) that created it.
type Renderer struct {
	win     *window.Window
	ownsWin bool

	program uint32
	mvpLoc  int32

	vao, vbo, ebo uint32
	indexCount    int32

	fb *framebuffer.Framebuffer

	width, height int
	log           *zap.Logger
}

// New creates a hidden window to own the GL context and sets up the
// program and render target.
func New(opts render.Options) (*Renderer, error) {
	win, err := window.New(window.Config{Title: "cadmatch offscreen", Width: 1, Height: 1, Hidden: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", render.ErrSurfaceUnavailable, err)
	}
	r, err := NewWithWindow(win, opts)
	if err != nil {
		win.Close()
		return nil, err
	}
	r.ownsWin = true
	return r, nil
}

// NewWithWindow renders with the context of an existing window, such as
// the preview display.
func NewWithWindow(win *window.Window, opts render.Options) (*Renderer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid size %dx%d", render.ErrSurfaceUnavailable, opts.Width, opts.Height)
	}
	if err := win.MakeCurrent(); err != nil {
		return nil, fmt.Errorf("%w: %w", render.ErrSurfaceUnavailable, err)
	}
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("%w: initializing OpenGL: %w", render.ErrSurfaceUnavailable, err)
	}

	r := &Renderer{
		win:    win,
		width:  opts.Width,
		height: opts.Height,
		log:    logger.Named("render.gl"),
	}
	r.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))))

	program, err := shader.CompileProgram(vertexShader, fragmentShader)
	if err != nil {
		return nil, mapShaderError(err)
	}
	r.program = program
	r.mvpLoc = shader.Uniform(program, "uMVP")

	r.fb, err = framebuffer.New(int32(opts.Width), int32(opts.Height), gl.DEPTH_COMPONENT16)
	if err != nil {
		gl.DeleteProgram(r.program)
		return nil, fmt.Errorf("%w: %w", render.ErrFramebufferIncomplete, err)
	}
	return r, nil
}

func mapShaderError(err error) error {
	switch {
	case errors.Is(err, shader.ErrCompile):
		return fmt.Errorf("%w: %w", render.ErrShaderCompile, err)
	case errors.Is(err, shader.ErrLink):
		return fmt.Errorf("%w: %w", render.ErrShaderLink, err)
	}
	return err
}

// Size implements render.Offscreen.
func (r *Renderer) Size() (int, int) { return r.width, r.height }

// Upload implements render.Offscreen. Positions and normals go into one
// interleaved buffer; triangles into an element buffer.
func (r *Renderer) Upload(mesh *model.Mesh) error {
	if r.fb == nil {
		return fmt.Errorf("%w: renderer closed", render.ErrSurfaceUnavailable)
	}
	if mesh == nil || len(mesh.Triangles) == 0 {
		return fmt.Errorf("%w: nothing to upload", render.ErrSurfaceUnavailable)
	}
	if err := r.win.MakeCurrent(); err != nil {
		return fmt.Errorf("%w: %w", render.ErrSurfaceUnavailable, err)
	}
	r.deleteBuffers()

	vertices := mesh.Interleaved()
	indices := mesh.Indices()

	gl.GenVertexArrays(1, &r.vao)
	gl.BindVertexArray(r.vao)

	gl.GenBuffers(1, &r.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)

	stride := int32(6 * 4)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, stride, uintptr(3*4))

	gl.GenBuffers(1, &r.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, gl.Ptr(indices), gl.STATIC_DRAW)

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, 0)

	r.indexCount = int32(len(indices))
	r.log.Debug("mesh uploaded",
		zap.Int("vertices", mesh.VertexCount()),
		zap.Int("triangles", mesh.TriangleCount()))
	return nil
}

// Render implements render.Offscreen.
func (r *Renderer) Render(vp render.Viewpoint) (*render.RenderedView, error) {
	if r.fb == nil {
		return nil, fmt.Errorf("%w: renderer closed", render.ErrSurfaceUnavailable)
	}
	if r.vao == 0 {
		return nil, fmt.Errorf("%w: no mesh uploaded", render.ErrSurfaceUnavailable)
	}
	if err := r.win.MakeCurrent(); err != nil {
		return nil, fmt.Errorf("%w: %w", render.ErrSurfaceUnavailable, err)
	}

	r.fb.Bind()
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Disable(gl.CULL_FACE)
	r.fb.Clear(0, 0, 0, 1)

	mvp := vp.MVP()
	gl.UseProgram(r.program)
	gl.UniformMatrix4fv(r.mvpLoc, 1, false, mvp.Ptr())

	gl.BindVertexArray(r.vao)
	gl.DrawElements(gl.TRIANGLES, r.indexCount, gl.UNSIGNED_INT, nil)
	gl.BindVertexArray(0)
	gl.Finish()

	pixels := r.fb.ReadPixels()
	r.fb.Unbind()

	if code := gl.GetError(); code != gl.NO_ERROR {
		r.log.Warn("GL error after draw", zap.Uint32("code", code), zap.Int("view", vp.Index))
	}

	return &render.RenderedView{
		Index:   vp.Index,
		Azimuth: vp.Azimuth,
		Image:   imaging.FromRGBA(pixels, r.width, r.height, true),
	}, nil
}

func (r *Renderer) deleteBuffers() {
	if r.ebo != 0 {
		gl.DeleteBuffers(1, &r.ebo)
		r.ebo = 0
	}
	if r.vbo != 0 {
		gl.DeleteBuffers(1, &r.vbo)
		r.vbo = 0
	}
	if r.vao != 0 {
		gl.DeleteVertexArrays(1, &r.vao)
		r.vao = 0
	}
}

// Close releases the framebuffer and its attachments, the vertex buffers,
// the program, and finally the hidden window if the renderer created it.
func (r *Renderer) Close() error {
	if r.fb == nil {
		return nil
	}
	if err := r.win.MakeCurrent(); err != nil {
		r.log.Warn("context lost before release", zap.Error(err))
	}

	r.fb.Destroy()
	r.fb = nil
	r.deleteBuffers()
	if r.program != 0 {
		gl.DeleteProgram(r.program)
		r.program = 0
	}
	if r.ownsWin {
		r.win.Close()
	}
	r.log.Debug("GL renderer released")
	return nil
}

var _ render.Offscreen = (*Renderer)(nil)
