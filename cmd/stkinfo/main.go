package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/pspoerri/geocode/internal/raster"
)

func main() {
	var keys []string
	pflag.StringSliceVarP(&keys, "keys", "k", nil, "only print these attributes (comma separated)")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: stkinfo [flags] <file.stk>...\n\n")
		fmt.Fprintf(os.Stderr, "Print the attributes and datasets of raster containers.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(1)
	}

	failed := false
	for i, path := range pflag.Args() {
		if i > 0 {
			fmt.Println()
		}
		if err := printInfo(path, keys); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func printInfo(path string, keys []string) error {
	r, err := raster.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Printf("File: %s\n", path)

	meta := r.Attributes()
	if len(keys) == 0 {
		keys = meta.Keys()
	}
	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}
	fmt.Printf("Attributes (%d):\n", meta.Len())
	for _, k := range keys {
		v, ok := meta.Get(k)
		if !ok {
			v = "<missing>"
		}
		fmt.Printf("  %-*s = %s\n", width, k, v)
	}

	infos := r.Datasets()
	fmt.Printf("Datasets (%d):\n", len(infos))
	for _, info := range infos {
		dims := make([]string, len(info.Shape))
		for i, d := range info.Shape {
			dims[i] = fmt.Sprint(d)
		}
		fmt.Printf("  %-32s %s\n", info.Name, strings.Join(dims, " x "))
	}
	return nil
}
