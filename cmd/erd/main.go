// Command erd is a CLI tool for laying out and exporting entity-relationship diagrams.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/ha1tch/erd-toolkit/pkg/config"
	"github.com/ha1tch/erd-toolkit/pkg/erd"
	"github.com/ha1tch/erd-toolkit/pkg/erdfile"
	"github.com/ha1tch/erd-toolkit/pkg/schema"
)

const usage = `erd - Entity-relationship diagram toolkit

Usage:
  erd <command> [options]

Commands:
  dot        Export Graphviz DOT
  info       Show diagram information
  layout     Compute positions and write them back as JSON
  png        Export a PNG image
  svg        Export an SVG document
  validate   Validate a diagram file

Inputs are diagram JSON files or SQLite databases (.db, .sqlite, .sqlite3).

Examples:
  erd info school.db
  erd layout school.db -o school.json --pretty
  erd layout school.json -a circular
  erd svg school.json -o school.svg
  erd dot school.db | dot -Tpdf -o school.pdf
  erd png school.json --width 1600

Use "erd <command> -h" for more information about a command.
`

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(15)
	keyStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	fieldStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boxStyle   = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

var (
	cfg config.Config
	log *slog.Logger
)

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	_ = godotenv.Load()
	var err error
	cfg, err = config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	log = cfg.Logger(os.Stderr)

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "dot":
		cmdDOT(args)
	case "info":
		cmdInfo(args)
	case "layout":
		cmdLayout(args)
	case "png":
		cmdPNG(args)
	case "svg":
		cmdSVG(args)
	case "validate":
		cmdValidate(args)
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}

func wantsHelp(args []string) bool {
	return len(args) < 1 || args[0] == "-h" || args[0] == "--help"
}

func cmdInfo(args []string) {
	if wantsHelp(args) {
		fmt.Fprintln(os.Stderr, "Usage: erd info <input>")
		os.Exit(1)
	}

	input := args[0]
	d := mustLoad(input)
	fmt.Println(describe(input, d))
}

// describe renders the info report.
func describe(input string, d *erd.Diagram) string {
	var b strings.Builder

	name := d.Name
	if name == "" {
		name = filepath.Base(input)
	}
	b.WriteString(titleStyle.Render(name) + "\n")

	keys := 0
	for _, e := range d.Entities {
		for _, f := range e.Fields {
			if f.IsKey {
				keys++
			}
		}
	}
	drawn := erdfile.ResolveEdges(d)

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}
	row("Entities", strconv.Itoa(len(d.Entities)))
	row("Relationships", strconv.Itoa(len(d.Relationships)))
	if skipped := len(d.Relationships) - len(drawn); skipped > 0 {
		row("Not drawn", warnStyle.Render(fmt.Sprintf("%d (missing endpoint or self-reference)", skipped)))
	}
	row("Key fields", strconv.Itoa(keys))
	if box, ok := erdfile.Bounds(d.Entities); ok {
		row("Bounds", fmt.Sprintf("%.0f x %.0f at (%.0f, %.0f)", box.W, box.H, box.X, box.Y))
	}
	if n := overlaps(d); n > 0 {
		row("Overlaps", warnStyle.Render(strconv.Itoa(n)))
	} else {
		row("Overlaps", "0")
	}

	for _, e := range d.Entities {
		var lines []string
		lines = append(lines, titleStyle.Render(strings.ToUpper(e.Label)))
		for _, f := range e.Fields {
			if f.IsKey {
				lines = append(lines, keyStyle.Render("# "+f.Name))
			} else {
				lines = append(lines, fieldStyle.Render("  "+f.Name))
			}
		}
		b.WriteString("\n" + boxStyle.Render(strings.Join(lines, "\n")))
	}
	if len(drawn) > 0 {
		b.WriteString("\n\n")
		for _, r := range drawn {
			b.WriteString(fmt.Sprintf("  %s -> %s\n", r.From, r.To))
		}
	}
	return b.String()
}

// overlaps counts pairs of entity boxes that intersect.
func overlaps(d *erd.Diagram) int {
	n := 0
	for i := range d.Entities {
		a := erdfile.EntityRect(d.Entities[i])
		for j := i + 1; j < len(d.Entities); j++ {
			if erdfile.RectOverlap(a, erdfile.EntityRect(d.Entities[j])) > 0 {
				n++
			}
		}
	}
	return n
}

func cmdValidate(args []string) {
	if wantsHelp(args) {
		fmt.Fprintln(os.Stderr, "Usage: erd validate <input>")
		os.Exit(1)
	}

	input := args[0]
	d := mustLoad(input)
	if err := d.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s: valid diagram with %d entities, %d relationships\n",
		input, len(d.Entities), len(d.Relationships))
}

func cmdLayout(args []string) {
	if wantsHelp(args) {
		fmt.Fprintln(os.Stderr, "Usage: erd layout <input> [-o output] [-a force|grid|circular|layered] [-n iterations] [--pretty]")
		os.Exit(1)
	}

	input := args[0]
	var output string
	pretty := false
	algorithm := cfg.LayoutAlgorithm
	opts := erdfile.DefaultLayoutOptions()
	opts.Iterations = cfg.LayoutIterations

	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "-o", "--output":
			if i+1 < len(args) {
				output = args[i+1]
				i++
			}
		case "-a", "--algorithm":
			if i+1 < len(args) {
				algorithm = args[i+1]
				i++
			}
		case "-n", "--iterations":
			if i+1 < len(args) {
				n, err := strconv.Atoi(args[i+1])
				if err != nil || n < 0 {
					fmt.Fprintf(os.Stderr, "Invalid iteration count: %s\n", args[i+1])
					os.Exit(1)
				}
				opts.Iterations = n
				i++
			}
		case "--pretty":
			pretty = true
		}
	}

	alg, ok := erdfile.ParseLayoutAlgorithm(algorithm)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown layout algorithm: %s\n", algorithm)
		os.Exit(1)
	}

	d := mustLoad(input)
	d.Apply(erdfile.AutoLayout(d, alg, opts))
	log.Debug("layout computed", "algorithm", alg.String(), "entities", len(d.Entities), "iterations", opts.Iterations)

	data, err := erdfile.ToJSON(d, pretty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}

	if output == "" {
		fmt.Println(string(data))
		return
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", output, err)
		os.Exit(1)
	}
	fmt.Printf("Written: %s\n", output)
}

func cmdSVG(args []string) {
	if wantsHelp(args) {
		fmt.Fprintln(os.Stderr, "Usage: erd svg <input> [-o output] [-t title]")
		os.Exit(1)
	}

	input := args[0]
	var output string
	opts := erdfile.DefaultSVGOptions()

	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "-o", "--output":
			if i+1 < len(args) {
				output = args[i+1]
				i++
			}
		case "-t", "--title":
			if i+1 < len(args) {
				opts.Title = args[i+1]
				i++
			}
		}
	}

	d := mustLoad(input)
	if output == "" {
		if _, err := erdfile.RenderSVG(d, os.Stdout, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error rendering SVG: %v\n", err)
			os.Exit(1)
		}
		return
	}

	doc, err := erdfile.GenerateSVG(d, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering SVG: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(output, []byte(doc), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", output, err)
		os.Exit(1)
	}
	fmt.Printf("Written: %s\n", output)
}

func cmdDOT(args []string) {
	if wantsHelp(args) {
		fmt.Fprintln(os.Stderr, "Usage: erd dot <input> [-o output]")
		os.Exit(1)
	}

	input := args[0]
	var output string
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "-o", "--output":
			if i+1 < len(args) {
				output = args[i+1]
				i++
			}
		}
	}

	dot := erdfile.GenerateDOT(mustLoad(input))
	if output == "" {
		fmt.Print(dot)
		return
	}
	if err := os.WriteFile(output, []byte(dot), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", output, err)
		os.Exit(1)
	}
	fmt.Printf("Written: %s\n", output)
}

func cmdPNG(args []string) {
	if wantsHelp(args) {
		fmt.Fprintln(os.Stderr, "Usage: erd png <input> [-o output] [--width pixels] [--scale factor]")
		os.Exit(1)
	}

	input := args[0]
	var output string
	opts := cfg.ExportOptions(log)

	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "-o", "--output":
			if i+1 < len(args) {
				output = args[i+1]
				i++
			}
		case "-w", "--width":
			if i+1 < len(args) {
				w, err := strconv.Atoi(args[i+1])
				if err != nil || w <= 0 {
					fmt.Fprintf(os.Stderr, "Invalid width: %s\n", args[i+1])
					os.Exit(1)
				}
				opts.PNG.MaxWidth = w
				i++
			}
		case "-s", "--scale":
			if i+1 < len(args) {
				s, err := strconv.ParseFloat(args[i+1], 64)
				if err != nil || s <= 0 {
					fmt.Fprintf(os.Stderr, "Invalid scale: %s\n", args[i+1])
					os.Exit(1)
				}
				opts.PNG.Supersample = s
				i++
			}
		}
	}

	d := mustLoad(input)

	if output == "" {
		path, err := erdfile.ExportPNG(d, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Written: %s\n", path)
		return
	}

	f, err := os.Create(output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", output, err)
		os.Exit(1)
	}
	if err := erdfile.RenderPNG(d, f, opts.PNG); err != nil {
		f.Close()
		os.Remove(output)
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", output, err)
		os.Exit(1)
	}
	fmt.Printf("Written: %s\n", output)
}

func mustLoad(path string) *erd.Diagram {
	d, err := schema.LoadDiagram(context.Background(), path, schema.DefaultOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", path, err)
		os.Exit(1)
	}
	log.Debug("diagram loaded", "path", path, "entities", len(d.Entities), "relationships", len(d.Relationships))
	return d
}
