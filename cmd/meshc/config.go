package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gogpu/meshc/ir"
	"github.com/gogpu/meshc/transform"
)

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// parseMappings parses "verts.l2g,edges.l2r" into a fixed selector.
func parseMappings(s string) (transform.MappingSelector, error) {
	var sel transform.FixedSelector
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		elemName, convName, ok := strings.Cut(part, ".")
		if !ok {
			return nil, fmt.Errorf("invalid mapping %q, want <element>.<conv>", part)
		}
		elem, err := ir.ParseElementType(elemName)
		if err != nil {
			return nil, err
		}
		conv, err := ir.ParseConvType(convName)
		if err != nil {
			return nil, err
		}
		sel = append(sel, transform.Mapping{Element: elem, Conv: conv})
	}
	return sel, nil
}
