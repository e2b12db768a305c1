package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fumin/arcode"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("compress")

var adaptive = flag.Bool("adaptive", false, "use an adaptive model instead of a static one")
var verbose = flag.Bool("verbose", false, "verbosity")

func startLogging(verbose bool) {
	backend := logging.NewLogBackend(os.Stderr, "compress: ", 0)
	formatter := logging.MustStringFormatter("%{level:8s} %{module:-10s} | %{message}")
	leveled := logging.AddModuleLevel(logging.NewBackendFormatter(backend, formatter))
	leveled.SetLevel(logging.WARNING, "")
	if verbose {
		leveled.SetLevel(logging.DEBUG, "")
	}
	logging.SetBackend(leveled)
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] filename\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	startLogging(*verbose)
	name := flag.Arg(0)
	if name == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg := arcode.DefaultConfig()
	cfg.Static = !*adaptive
	if err := arcode.Compress(os.Stdout, name, cfg); err != nil {
		log.Fatalf("%+v", err)
	}
}
