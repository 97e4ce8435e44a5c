// Command meshc is the mesh index-mapping localization CLI.
//
// Usage:
//
//	meshc [options] <kernel.json>
//
// Examples:
//
//	meshc kernel.json                       # Localize and print the IR
//	meshc -o kernel.ir kernel.json          # Write the IR to a file
//	meshc -simulate kernel.json             # Also compare before/after on synthetic data
//	meshc -mappings verts.l2g,edges.l2g k.json
//
// Option defaults can be set in the environment: MESHC_OUTPUT,
// MESHC_LOG_LEVEL, MESHC_MAPPINGS, MESHC_SIMULATE, MESHC_NO_VALIDATE.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/xyproto/env/v2"

	"github.com/gogpu/meshc"
	"github.com/gogpu/meshc/ir"
	"github.com/gogpu/meshc/transform"
)

var (
	output   = flag.String("o", env.Str("MESHC_OUTPUT"), "output file (default: stdout)")
	logLevel = flag.String("log", env.Str("MESHC_LOG_LEVEL", "warn"), "log level: debug, info, warn, error")
	mappings = flag.String("mappings", env.Str("MESHC_MAPPINGS", "verts.l2g"), "comma-separated mappings to localize")
	simulate = flag.Bool("simulate", env.Bool("MESHC_SIMULATE"), "simulate before and after on synthetic data")
	validate = flag.Bool("validate", !env.Bool("MESHC_NO_VALIDATE"), "validate IR")
	version  = flag.Bool("version", false, "print version")
)

const meshcVersion = "0.1.0-dev"

func main() {
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Printf("meshc version %s\n", meshcVersion)
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		usage()
		os.Exit(1)
	}

	if err := run(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(inputPath string) error {
	level, err := parseLevel(*logLevel)
	if err != nil {
		return err
	}
	transform.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	selector, err := parseMappings(*mappings)
	if err != nil {
		return err
	}

	source, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	opts := meshc.DefaultOptions()
	opts.Validate = *validate
	opts.Transform.Selector = selector

	prog, err := meshc.CompileDescription(bytes.NewReader(source), opts)
	if err != nil {
		return fmt.Errorf("compilation error: %w", err)
	}

	var out bytes.Buffer
	if err := ir.Fprint(&out, prog.Kernel); err != nil {
		return err
	}
	if *simulate {
		if err := compare(&out, source, prog); err != nil {
			return fmt.Errorf("simulation: %w", err)
		}
	}

	if *output != "" {
		if err := os.WriteFile(*output, out.Bytes(), 0644); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		fmt.Printf("Successfully localized %s to %s (%d tasks)\n", inputPath, *output, len(prog.Kernel.Tasks))
		return nil
	}
	_, err = os.Stdout.Write(out.Bytes())
	return err
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: meshc [options] <kernel.json>\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  meshc kernel.json               Print localized IR to stdout\n")
	fmt.Fprintf(os.Stderr, "  meshc -o kernel.ir kernel.json  Write localized IR to file\n")
	fmt.Fprintf(os.Stderr, "  meshc -simulate kernel.json     Compare before/after on synthetic data\n")
}
