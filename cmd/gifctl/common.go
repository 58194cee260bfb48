package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/maauso/vid2gif/internal/crop"
)

// parseRect parses "x,y,width,height" in source pixels.
func parseRect(s string) (crop.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return crop.Rect{}, fmt.Errorf("crop must be x,y,width,height: %q", s)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return crop.Rect{}, fmt.Errorf("crop value %q: %w", p, err)
		}
		vals[i] = v
	}
	return crop.Rect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}

func isRemote(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
