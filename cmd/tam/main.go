// Package main provides the TAM emulator command-line driver.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nottsknight/triangle-abstract-machine/disasm"
	"github.com/nottsknight/triangle-abstract-machine/emu"
	"github.com/nottsknight/triangle-abstract-machine/loader"
)

func main() {
	var disassemble bool
	var trace bool

	rootCmd := &cobra.Command{
		Use:          "tam <bytecode>",
		Short:        "Triangle Abstract Machine emulator",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := loader.Load(args[0])
			if err != nil {
				return err
			}

			if disassemble {
				return disasm.Fprint(os.Stdout, prog.Words)
			}

			var opts []emu.Option
			if trace {
				opts = append(opts, emu.WithTrace())
			}

			machine := emu.NewMachine(opts...)
			machine.LoadWords(prog.Words)
			if err := machine.Run(); err != nil {
				if emu.IsTrap(err) {
					fmt.Println(err)
					return nil
				}
				return err
			}
			return nil
		},
	}

	rootCmd.Flags().BoolVarP(&disassemble, "disassemble", "d", false,
		"Print the disassembly of the given code instead of running it")
	rootCmd.Flags().BoolVarP(&trace, "trace", "t", false,
		"Print each instruction before executing them")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
