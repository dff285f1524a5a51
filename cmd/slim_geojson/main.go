// Command slim_geojson reduces a Natural Earth admin-0 GeoJSON to what the
// map needs: id, name and alpha-3 code per country, with coordinates
// rounded to a fixed precision. Excluded ids are dropped.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/paulmach/orb"

	"wandermap/pkg/country"
	"wandermap/pkg/geometry"
)

func main() {
	precision := flag.Int("precision", 3, "Decimal places kept in coordinates")
	exclude := flag.String("exclude", "010", "Comma-separated ids to drop")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <input.geojson> <output.geojson>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	stats, err := run(flag.Arg(0), flag.Arg(1), *precision, parseExclude(*exclude))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Input: %d features, %d bytes\n", stats.inFeatures, stats.inBytes)
	fmt.Printf("Output: %d features, %d bytes (%.1f%% reduction)\n",
		stats.outFeatures, stats.outBytes, 100*(1-float64(stats.outBytes)/float64(stats.inBytes)))
}

type slimStats struct {
	inFeatures, outFeatures int
	inBytes, outBytes       int
}

func run(inputPath, outputPath string, precision int, exclude []country.ID) (slimStats, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return slimStats{}, fmt.Errorf("failed to read input: %w", err)
	}

	countries, err := geometry.DecodeGeoJSON(data)
	if err != nil {
		return slimStats{}, err
	}
	snap := geometry.NewSnapshot(countries, exclude)

	factor := int(math.Pow(10, float64(precision)))
	slim := make([]geometry.Country, 0, snap.Len())
	for _, c := range snap.Countries() {
		c.Shape = orb.Round(c.Shape, factor).(orb.MultiPolygon)
		slim = append(slim, c)
	}

	outData, err := json.Marshal(geometry.EncodeGeoJSON(slim))
	if err != nil {
		return slimStats{}, fmt.Errorf("failed to marshal: %w", err)
	}
	if err := os.WriteFile(outputPath, outData, 0o644); err != nil {
		return slimStats{}, fmt.Errorf("failed to write output: %w", err)
	}

	return slimStats{
		inFeatures:  len(countries),
		outFeatures: len(slim),
		inBytes:     len(data),
		outBytes:    len(outData),
	}, nil
}

func parseExclude(s string) []country.ID {
	var out []country.ID
	for _, part := range strings.Split(s, ",") {
		if id := country.Normalize(part); id != "" {
			out = append(out, id)
		}
	}
	return out
}
