// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/ezrec/chip8/cpu"
	"github.com/ezrec/chip8/emulator"
	"github.com/ezrec/chip8/frontend"
	"github.com/ezrec/chip8/translate"
)

func main() {
	var rom string
	var compile string
	var output string
	var disassemble bool
	var ui string
	var hz int
	var indexOverflow bool
	var indexIncrement bool
	var lang string
	var verbose bool

	flag.StringVar(&rom, "r", "", ".ch8 ROM (or .c8s source) to run")
	flag.StringVar(&compile, "c", "", ".c8s file to assemble")
	flag.StringVar(&output, "o", "", "Save the ROM image to a file, do not execute")
	flag.BoolVar(&disassemble, "d", false, "Disassemble the ROM image, do not execute")
	flag.StringVar(&ui, "ui", "window", "User interface: window or term")
	flag.IntVar(&hz, "hz", emulator.CYCLE_HZ, "Instruction cycles per second")
	flag.BoolVar(&indexOverflow, "quirk-index-overflow", false, "FX1E sets VF on index overflow")
	flag.BoolVar(&indexIncrement, "quirk-index-increment", false, "FX55 and FX65 advance I")
	flag.StringVar(&lang, "lang", "", "Diagnostic language (BCP 47 tag)")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	if len(lang) != 0 {
		err := translate.SetLanguage(lang)
		if err != nil {
			log.Fatalf("%v: %v", lang, err)
		}
	}

	cfg := emulator.DefaultConfig()
	cfg.CycleHz = hz
	cfg.Quirks = cpu.Quirks{
		IndexOverflow:  indexOverflow,
		IndexIncrement: indexIncrement,
	}
	cfg.Verbose = verbose

	emu, err := emulator.NewEmulator(cfg)
	if err != nil {
		log.Fatalf("%v: %v", os.Args[0], err)
	}

	name := rom
	switch {
	case len(compile) != 0 && len(rom) != 0:
		log.Fatalf("%v: -c and -r are exclusive", os.Args[0])
	case len(compile) != 0:
		// Assemble a new program.
		name = compile
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		prog, err := emu.Assemble(inf)
		inf.Close()
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		err = emu.LoadProgram(prog)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
	case len(rom) != 0:
		err = emu.LoadFile(os.DirFS(filepath.Dir(rom)), filepath.Base(rom))
		if err != nil {
			log.Fatalf("%v: %v", rom, err)
		}
	default:
		log.Fatalf("%v: one of -r or -c is required", os.Args[0])
	}

	if len(output) != 0 {
		err = os.WriteFile(output, emu.Rom(), 0o644)
		if err != nil {
			log.Fatalf("%v: %v", output, err)
		}
		return
	}

	if disassemble {
		for addr, inst := range cpu.Disassemble(emu.Rom()) {
			fmt.Printf("%03X: %04X  %v\n", addr, inst.Word, inst)
		}
		return
	}

	switch ui {
	case "window":
		var beeper *frontend.Beeper
		beeper, err = frontend.NewBeeper()
		if err != nil {
			log.Printf("audio: %v", err)
			beeper = nil
		}
		err = frontend.NewWindow(emu, beeper).Run()
		if beeper != nil {
			beeper.Close()
		}
	case "term":
		var term *frontend.Terminal
		term, err = frontend.NewTerminal(os.Stdin, os.Stdout)
		if err != nil {
			log.Fatalf("%v: %v", ui, err)
		}
		term.Verbose = verbose

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		err = emu.Run(ctx, term)
		stop()
		term.Close()
	default:
		log.Fatalf("%v: unknown user interface, expected window or term", ui)
	}

	if err != nil {
		log.Fatalf("%v: %v", name, err)
	}
}
