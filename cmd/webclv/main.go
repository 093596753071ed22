// Command webclv runs the WebCL Validator core over one OpenCL C
// translation unit and writes the instrumented source to stdout or a
// named output file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"github.com/webclvalidator/webclv"
)

type args struct {
	input   *string
	output  *string
	forceCL *bool
}

func readArgs() *args {
	a := &args{
		input:   flag.String("input", "", "Path to the OpenCL C source file to validate"),
		output:  flag.String("output", "", "Path to write the instrumented source to (default: stdout)"),
		forceCL: flag.Bool("x-cl", false, "Treat the input as OpenCL C regardless of its extension"),
	}
	flag.Parse()
	return a
}

func main() {
	os.Exit(run())
}

func run() int {
	defer glog.Flush()
	a := readArgs()

	if *a.input == "" {
		fmt.Fprintln(os.Stderr, "webclv: -input is required")
		return int(webclv.ExitFailureSetup)
	}

	src, err := os.ReadFile(*a.input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "webclv: cannot read %s: %v\n", *a.input, err)
		return int(webclv.ExitFailureSetup)
	}

	glog.V(1).Infof("validating %s (%d bytes)", *a.input, len(src))

	driver := webclv.NewDriver(webclv.NewConfig(), webclv.NewBuiltinRegistry())
	result := driver.Run(webclv.Options{File: *a.input, ForceOpenCL: *a.forceCL}, src)

	webclv.WriteDiagnostics(os.Stderr, result.Diagnostics)

	if result.Code != webclv.ExitSuccess {
		glog.V(1).Infof("%s: validation stopped with %d diagnostics", *a.input, len(result.Diagnostics))
		return int(result.Code)
	}

	glog.V(1).Infof("%s: instrumented, %d bytes out", *a.input, len(result.Output))

	if *a.output == "" {
		os.Stdout.Write(result.Output)
		return int(webclv.ExitSuccess)
	}
	if err := os.WriteFile(*a.output, result.Output, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "webclv: cannot write %s: %v\n", *a.output, err)
		return int(webclv.ExitFailureSetup)
	}
	return int(webclv.ExitSuccess)
}
