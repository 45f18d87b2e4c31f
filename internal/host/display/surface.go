//go:build !purego

package display

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/cadmatch/internal/engine/render"
	"github.com/Faultbox/cadmatch/internal/engine/shader"
	"github.com/Faultbox/cadmatch/internal/engine/window"
	"github.com/Faultbox/cadmatch/internal/logger"
	"github.com/Faultbox/cadmatch/internal/pipeline"
)

const quadVertex = `#version 410 core
layout(location = 0) in vec2 aPos;
layout(location = 1) in vec2 aUV;
out vec2 vUV;
void main() {
    gl_Position = vec4(aPos, 0.0, 1.0);
    vUV = aUV;
}
`

const quadFragment = `#version 410 core
in vec2 vUV;
uniform sampler2D uFrame;
out vec4 fragColor;
void main() {
    fragColor = vec4(texture(uFrame, vUV).rgb, 1.0);
}
`

// Texture row 0 is the top image row, so v grows downwards.
var quadVertices = []float32{
	// x, y, u, v
	-1, -1, 0, 1,
	1, -1, 1, 1,
	1, 1, 1, 0,
	-1, -1, 0, 1,
	1, 1, 1, 0,
	-1, 1, 0, 0,
}

// Surface shows camera frames letterboxed in an SDL window.
// All methods must be called on the window's goroutine.
type Surface struct {
	win *window.Window

	program  uint32
	frameLoc int32
	vao, vbo uint32
	texture  uint32

	texW, texH    int
	width, height int
	log           *zap.Logger
}

// New creates the preview quad in win's GL context.
func New(win *window.Window) (*Surface, error) {
	if err := win.MakeCurrent(); err != nil {
		return nil, fmt.Errorf("%w: %w", render.ErrSurfaceUnavailable, err)
	}
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("%w: initializing OpenGL: %w", render.ErrSurfaceUnavailable, err)
	}

	program, err := shader.CompileProgram(quadVertex, quadFragment)
	if err != nil {
		return nil, fmt.Errorf("preview shader: %w", err)
	}

	s := &Surface{
		win:      win,
		program:  program,
		frameLoc: shader.Uniform(program, "uFrame"),
		log:      logger.Named("display"),
	}
	s.width, s.height = win.Size()

	gl.GenVertexArrays(1, &s.vao)
	gl.BindVertexArray(s.vao)
	gl.GenBuffers(1, &s.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, s.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(quadVertices)*4, gl.Ptr(quadVertices), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 2, gl.FLOAT, false, 4*4, 0)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, 4*4, 2*4)
	gl.BindVertexArray(0)

	gl.GenTextures(1, &s.texture)
	gl.BindTexture(gl.TEXTURE_2D, s.texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	s.log.Debug("preview surface ready", zap.Uint32("texture", s.texture))
	return s, nil
}

// CameraTexture implements pipeline.DisplaySurface.
func (s *Surface) CameraTexture() uint32 { return s.texture }

// Resize implements pipeline.DisplaySurface.
func (s *Surface) Resize(width, height int) {
	s.width, s.height = width, height
}

// Size implements pipeline.DisplaySurface.
func (s *Surface) Size() (int, int) { return s.width, s.height }

// Blit implements pipeline.DisplaySurface: it uploads the frame into the
// camera texture and draws it preserving the aspect ratio.
func (s *Surface) Blit(f *pipeline.Frame) error {
	rgb, err := f.RGB()
	if err != nil {
		return err
	}
	if err := s.win.MakeCurrent(); err != nil {
		return fmt.Errorf("%w: %w", render.ErrSurfaceUnavailable, err)
	}
	w, h := rgb.Width(), rgb.Height()
	pix := rgb.Pix
	if rgb.Stride != w*3 || rgb.Rect.Min.X != 0 || rgb.Rect.Min.Y != 0 {
		pix = make([]byte, 0, w*h*3)
		for y := 0; y < h; y++ {
			pix = append(pix, rgb.Row(y)...)
		}
	}

	gl.BindTexture(gl.TEXTURE_2D, s.texture)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	if w != s.texW || h != s.texH {
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGB8, int32(w), int32(h), 0, gl.RGB, gl.UNSIGNED_BYTE, gl.Ptr(pix))
		s.texW, s.texH = w, h
	} else {
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(w), int32(h), gl.RGB, gl.UNSIGNED_BYTE, gl.Ptr(pix))
	}

	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, int32(s.width), int32(s.height))
	gl.Disable(gl.DEPTH_TEST)
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)

	vx, vy, vw, vh := letterbox(s.width, s.height, w, h)
	gl.Viewport(int32(vx), int32(vy), int32(vw), int32(vh))

	gl.UseProgram(s.program)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.Uniform1i(s.frameLoc, 0)
	gl.BindVertexArray(s.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
	gl.BindVertexArray(0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return nil
}

// Present swaps the window buffers.
func (s *Surface) Present() { s.win.SwapBuffers() }

// SetStatus shows text in the window title.
func (s *Surface) SetStatus(text string) { s.win.SetTitle(text) }

// Close deletes the texture, buffers and program.
func (s *Surface) Close() {
	if s.texture != 0 {
		gl.DeleteTextures(1, &s.texture)
		s.texture = 0
	}
	if s.vbo != 0 {
		gl.DeleteBuffers(1, &s.vbo)
		s.vbo = 0
	}
	if s.vao != 0 {
		gl.DeleteVertexArrays(1, &s.vao)
		s.vao = 0
	}
	if s.program != 0 {
		gl.DeleteProgram(s.program)
		s.program = 0
	}
}
