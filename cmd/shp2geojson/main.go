// Command shp2geojson converts a Natural Earth admin-0 shapefile into a
// GeoJSON FeatureCollection keyed by the canonical numeric country id.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"wandermap/pkg/geometry"
)

func main() {
	inputPath := flag.String("input", "", "Path to input .shp file")
	outputPath := flag.String("output", "", "Path to output .geojson file")
	indent := flag.Bool("indent", false, "Indent the output")
	flag.Parse()

	if *inputPath == "" || *outputPath == "" {
		flag.Usage()
		log.Fatal("Input and output paths are required")
	}

	n, err := run(context.Background(), *inputPath, *outputPath, *indent)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Successfully converted %d countries to %s\n", n, *outputPath)
}

func run(ctx context.Context, inputPath, outputPath string, indent bool) (int, error) {
	countries, err := geometry.ReadShapefile(ctx, inputPath)
	if err != nil {
		return 0, err
	}

	fc := geometry.EncodeGeoJSON(countries)

	var data []byte
	if indent {
		data, err = json.MarshalIndent(fc, "", "  ")
	} else {
		data, err = json.Marshal(fc)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write output file: %w", err)
	}
	return len(fc.Features), nil
}
