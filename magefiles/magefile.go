//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binDir = "bin"

type Build mg.Namespace

// Native builds cadmatch and objgen with OpenCV, SDL2 and OpenGL.
func (Build) Native() error {
	return build("")
}

// Pure builds without cgo: software renderer, Go toolkit, headless only.
func (Build) Pure() error {
	return build("purego")
}

func build(tags string) error {
	if err := os.MkdirAll(binDir, 0755); err != nil {
		return err
	}
	env := map[string]string{}
	args := []string{"build"}
	if tags != "" {
		env["CGO_ENABLED"] = "0"
		args = append(args, "-tags", tags)
	}
	for _, cmd := range []string{"cadmatch", "objgen"} {
		out := fmt.Sprintf("%s/%s", binDir, cmd)
		if err := sh.RunWithV(env, "go", append(args, "-o", out, "./cmd/"+cmd)...); err != nil {
			return err
		}
	}
	return nil
}

type Test mg.Namespace

// Unit runs the short test suite with the Go toolkit only.
func (Test) Unit() error {
	return sh.RunWithV(map[string]string{"CGO_ENABLED": "0"}, "go", "test", "-tags", "purego", "-short", "./...")
}

// All runs every test, including the round-trip match and the cgo
// backends.
func (Test) All() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Fixtures writes the reference meshes into testdata/.
func Fixtures() error {
	if err := os.MkdirAll("testdata", 0755); err != nil {
		return err
	}
	if err := sh.RunV("go", "run", "./cmd/objgen", "bracket", "-o", "testdata/bracket.obj"); err != nil {
		return err
	}
	return sh.RunV("go", "run", "./cmd/objgen", "flange", "-o", "testdata/flange.obj")
}

// Clean removes build output.
func Clean() error {
	return sh.Rm(binDir)
}
