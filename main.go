package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jcorbin/golox/internal/fileinput"
	"github.com/jcorbin/golox/internal/logio"
)

const (
	exitUsage   = 64
	exitCompile = 65
	exitRuntime = 70
	exitIOErr   = 74
)

func main() {
	var (
		timeout  time.Duration
		trace    bool
		dump     bool
		gcStress bool
	)
	flag.DurationVar(&timeout, "timeout", 0, "abort execution after the given duration")
	flag.BoolVar(&trace, "trace", false, "log each executed instruction")
	flag.BoolVar(&dump, "dump", false, "disassemble compiled chunks before running")
	flag.BoolVar(&gcStress, "gc-stress", false, "collect garbage on every allocation")
	flag.Parse()

	log := logio.Logger{}
	log.SetOutput(os.Stderr)

	var exitCode int
	defer func() { os.Exit(exitCode) }()

	opts := []VMOption{
		WithOutput(os.Stdout),
		WithLogf(log.Leveledf("TRACE")),
		WithTrace(trace),
		WithGCStressTest(gcStress),
	}

	args := flag.Args()
	switch len(args) {
	case 0:
		exitCode = runREPL(log, opts, timeout, dump)
	case 1:
		exitCode = runFile(log, opts, timeout, dump, args[0])
	default:
		fmt.Fprintln(os.Stderr, "Usage: golox [script]")
		exitCode = exitUsage
	}
}

func runFile(log logio.Logger, opts []VMOption, timeout time.Duration, dump bool, path string) int {
	f, err := os.Open(path)
	if err != nil {
		log.Errorf("%v", err)
		return exitIOErr
	}
	defer f.Close()

	var in fileinput.Input
	in.Queue = append(in.Queue, f)
	source, err := readAll(&in)
	if err != nil {
		log.Errorf("%v", err)
		return exitIOErr
	}

	vm := New(opts...)
	return interpret(vm, log, timeout, dump, source)
}

func runREPL(log logio.Logger, opts []VMOption, timeout time.Duration, dump bool) int {
	vm := New(opts...)

	for {
		fmt.Print("> ")
		line, ok := readLine(os.Stdin)
		if !ok {
			fmt.Println()
			return 0
		}

		if code := interpret(vm, log, timeout, dump, line); code == exitIOErr {
			return code
		}
	}
}

func interpret(vm *VM, log logio.Logger, timeout time.Duration, dump bool, source string) int {
	ctx := context.Background()
	if timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if dump {
		if fn, err := Compile(vm, source); err == nil {
			disassembleChunk(log.Leveledf("DUMP"), &fn.Chunk, "<script>")
		}
	}

	err := vm.Run(ctx, source)
	log.ErrorIf(err)
	switch {
	case err == nil:
		return 0
	case isCompileError(err):
		return exitCompile
	default:
		return exitRuntime
	}
}

func isCompileError(err error) bool {
	_, ok := err.(interface{ CompileError() })
	return ok
}

func readAll(in *fileinput.Input) (string, error) {
	var sb strings.Builder
	for {
		r, _, err := in.ReadRune()
		if r != 0 {
			sb.WriteRune(r)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return sb.String(), nil
			}
			return sb.String(), err
		}
	}
}

func readLine(f *os.File) (string, bool) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				return sb.String(), true
			}
			sb.WriteByte(buf[0])
		}
		if err != nil {
			if sb.Len() > 0 {
				return sb.String(), true
			}
			return "", false
		}
	}
}
