package main

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/utils/web/client"
)

var ksmPID int

func init() {
	cmd := newKsmCmd()
	cmd.Flags().IntVar(&ksmPID, "pid", 0, "PID del proceso que invoca la syscall")
	_ = cmd.MarkFlagRequired("pid")
	rootCmd.AddCommand(cmd)
}

func newKsmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ksm",
		Short: "Corre una pasada de KSM",
		Long: `El comando ksm invoca la syscall ksm en nombre de un proceso: escanea todas las
páginas de los procesos elegibles, fusiona las iguales e informa los contadores.

Ejemplo:
  ksmctl ksm --pid 3
  ksmctl ksm --pid 3 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKsm()
		},
	}
}

func runKsm() error {
	printVerbose("Pidiendo una pasada a %s:%d en nombre del PID %d\n", memoryIP, memoryPort, ksmPID)

	var resp models.KsmResponse
	err := client.DoJSON(memoryPort, memoryIP, http.MethodPost, "memoria/ksm", models.KsmRequest{PID: ksmPID}, &resp)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(resp)
	}
	printInfo("ksm: scanned=%d, merged=%d, freemem=%d\n", resp.Scanned, resp.Merged, resp.FreeMem)
	return nil
}
