// Command lsxfel summarizes EuXFEL run data: train counts, detector modules
// and device inventories across a set of container files.
//
// Usage:
//
//	lsxfel [-select sel.yaml] [-train id] <run-dir | file.h5 ...>
//
// A directory argument expands to the *.h5 files it contains. With -train,
// the devices contributing to that train are listed instead of the run
// summary; adding -select reads the train and lists the selected parameters.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-euxfel/euxfel"
)

func main() {
	selPath := flag.String("select", "", "YAML file mapping device addresses to parameter lists")
	trainID := flag.Uint64("train", 0, "show one train instead of the run summary")
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: lsxfel [-select sel.yaml] [-train id] <run-dir | file.h5 ...>")
		os.Exit(1)
	}

	paths, err := expandArgs(flag.Args())
	if err != nil {
		fatal(err)
	}

	var sel euxfel.Selection
	if *selPath != "" {
		sel, err = loadSelection(*selPath)
		if err != nil {
			fatal(err)
		}
	}

	run, err := euxfel.OpenRun(paths...)
	if err != nil {
		fatal(err)
	}
	defer run.Close()

	if *trainID != 0 {
		if err := printTrain(run, *trainID, sel); err != nil {
			fatal(err)
		}
		return
	}
	printRun(run.Info())
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "lsxfel:", err)
	os.Exit(1)
}

// expandArgs turns directory arguments into their *.h5 entries.
func expandArgs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var files []string
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".h5") {
				files = append(files, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(files)
		paths = append(paths, files...)
	}
	return paths, nil
}

func loadSelection(path string) (euxfel.Selection, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sel euxfel.Selection
	if err := yaml.Unmarshal(raw, &sel); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return sel, nil
}

var heading = color.New(color.Bold)

func printRun(info *euxfel.RunInfo) {
	heading.Println("Run information")
	fmt.Println("# of trains:   ", info.TrainCount)
	fmt.Println("Duration:      ", info.Duration)
	fmt.Println("First train ID:", info.FirstTrainID)
	fmt.Println("Last train ID: ", info.LastTrainID)
	fmt.Println()

	heading.Printf("%d detector modules (%s)\n", len(info.Modules), info.DetectorName)
	for _, m := range info.Modules {
		if m.Info == nil {
			fmt.Printf("  - %s module %d\n", m.Detector, m.Module)
			continue
		}
		fmt.Printf("  - %s module %d: %d × %d pixels, %d frames per train, %d total frames\n",
			m.Detector, m.Module, m.Info.Dims[0], m.Info.Dims[1],
			m.Info.FramesPerTrain, m.Info.TotalFrames)
	}
	fmt.Println()

	heading.Printf("%d instrument channels (excluding detectors):\n", len(info.InstrumentChannels))
	for _, d := range info.InstrumentChannels {
		fmt.Println("  -", d)
	}
	fmt.Println()

	heading.Printf("%d control devices:\n", len(info.ControlDevices))
	for _, d := range info.ControlDevices {
		fmt.Println("  -", d)
	}
}

func printTrain(run *euxfel.Run, id uint64, sel euxfel.Selection) error {
	heading.Printf("Train %d\n", id)

	if sel == nil {
		td, err := run.TrainInfo(id)
		if err != nil {
			return err
		}
		heading.Println("Instrument channels")
		for _, d := range td.InstrumentChannels {
			fmt.Println("  -", d)
		}
		heading.Println("Control devices")
		for _, d := range td.ControlDevices {
			fmt.Println("  -", d)
		}
		return nil
	}

	train, err := run.TrainFromID(id, sel)
	if err != nil {
		return err
	}
	devices := make([]string, 0, len(train.Data))
	for dev := range train.Data {
		devices = append(devices, dev)
	}
	sort.Strings(devices)
	for _, dev := range devices {
		heading.Println(dev)
		params := make([]string, 0, len(train.Data[dev].Parameters))
		for p := range train.Data[dev].Parameters {
			params = append(params, p)
		}
		sort.Strings(params)
		for _, p := range params {
			v := train.Data[dev].Parameters[p]
			if s, ok := v.Scalar(); ok {
				fmt.Printf("  %s = %v\n", p, s)
			} else {
				fmt.Printf("  %s: shape %v\n", p, v.Shape())
			}
		}
	}
	return nil
}
