package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	// Flags globales
	memoryIP   string
	memoryPort int
	verbose    bool
	jsonOut    bool
)

var rootCmd = &cobra.Command{
	Use:   "ksmctl",
	Short: "Cliente del módulo de memoria con KSM",
	Long: `ksmctl dispara pasadas de KSM sobre el módulo de memoria, muestra las tablas
de frames compartidos y edita los archivos de configuración.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&memoryIP, "ip", "127.0.0.1", "IP del módulo de memoria")
	rootCmd.PersistentFlags().IntVar(&memoryPort, "port", 8002, "Puerto del módulo de memoria")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Salida detallada")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Salida en JSON")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// printer formatea los números con separador de miles.
var printer = message.NewPrinter(language.Spanish)

func printInfo(format string, args ...any) {
	printer.Fprintf(os.Stdout, format, args...)
}

func printVerbose(format string, args ...any) {
	if verbose {
		printer.Fprintf(os.Stdout, format, args...)
	}
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
