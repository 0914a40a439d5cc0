// Package main provides the TAM assembler command-line driver.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nottsknight/triangle-abstract-machine/asm"
	"github.com/nottsknight/triangle-abstract-machine/loader"
)

func main() {
	var outfile string

	rootCmd := &cobra.Command{
		Use:          "tasm <source>",
		Short:        "Assemble TAM assembly source into bytecode",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			words, err := asm.Assemble(string(src))
			if err != nil {
				return err
			}

			out, err := os.Create(outfile)
			if err != nil {
				return err
			}
			defer out.Close()

			prog := loader.Program{Words: words}
			return prog.Write(out)
		},
	}

	rootCmd.Flags().StringVarP(&outfile, "output", "o", "a.out",
		"Name of bytecode file to create")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
