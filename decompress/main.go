package main

import (
	"flag"
	"os"

	"github.com/fumin/arcode"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("decompress")

var adaptive = flag.Bool("adaptive", false, "the input was compressed with an adaptive model")
var verbose = flag.Bool("verbose", false, "verbosity")

func main() {
	flag.Parse()
	backend := logging.NewLogBackend(os.Stderr, "decompress: ", 0)
	formatter := logging.MustStringFormatter("%{level:8s} %{module:-10s} | %{message}")
	leveled := logging.AddModuleLevel(logging.NewBackendFormatter(backend, formatter))
	leveled.SetLevel(logging.WARNING, "")
	if *verbose {
		leveled.SetLevel(logging.DEBUG, "")
	}
	logging.SetBackend(leveled)

	cfg := arcode.DefaultConfig()
	cfg.Static = !*adaptive
	if err := arcode.Decompress(os.Stdout, os.Stdin, cfg); err != nil {
		log.Fatalf("%+v", err)
	}
}
