// objgen writes reference OBJ meshes: the built-in bracket and parametric
// solids meshed with marching cubes.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/Faultbox/cadmatch/internal/fixtures"
	"github.com/Faultbox/cadmatch/pkg/formats"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var (
		obj *formats.OBJ
		out string
		err error
	)
	switch command {
	case "bracket":
		out, err = parseOut("bracket", args, nil)
		obj = fixtures.Bracket()
	case "flange":
		var p FlangeParams
		out, err = parseOut("flange", args, func(fs *flag.FlagSet) {
			p = DefaultFlange()
			fs.Float64Var(&p.Radius, "radius", p.Radius, "outer radius")
			fs.Float64Var(&p.Height, "height", p.Height, "plate thickness")
			fs.Float64Var(&p.BoreRadius, "bore", p.BoreRadius, "centre bore radius")
			fs.IntVar(&p.Holes, "holes", p.Holes, "bolt holes")
			fs.IntVar(&p.Cells, "cells", p.Cells, "marching cubes resolution")
		})
		if err == nil {
			obj, err = Flange(p)
		}
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := write(out, obj); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", out, err)
		os.Exit(1)
	}
	fmt.Printf("%s: %d vertices, %d triangles\n", out, len(obj.Positions), len(obj.Faces))
}

func parseOut(name string, args []string, extra func(*flag.FlagSet)) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	out := fs.String("o", name+".obj", "output file")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	return *out, nil
}

func write(path string, obj *formats.OBJ) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := formats.WriteOBJ(w, obj); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printUsage() {
	fmt.Println(`objgen - reference mesh generator

Usage:
  objgen <command> [options]

Commands:
  bracket [-o file]                  Built-in L bracket (flat shaded boxes)
  flange  [-o file] [-radius r] [-height h] [-bore r] [-holes n] [-cells n]
                                     Bolted flange, marching cubes

Examples:
  objgen bracket -o bracket.obj
  objgen flange -holes 6 -cells 96`)
}
