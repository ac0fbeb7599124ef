package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/services"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/utils/config"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/utils/log"
)

var demoConfig string

func init() {
	cmd := newDemoCmd()
	cmd.Flags().StringVar(&demoConfig, "config", "", "Config de memoria a usar (por defecto la de fábrica)")
	rootCmd.AddCommand(cmd)
}

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Corre el escenario de dos procesos sobre una memoria local",
		Long: `El comando demo levanta una memoria en el propio proceso y corre el escenario
clásico: A escribe "D", B es un fork de A, una pasada de KSM los fusiona y cuando A
reescribe su página vuelve a tener una copia privada mientras B sigue leyendo "D".

Ejemplo:
  ksmctl demo
  ksmctl demo --config memoria/configs/memoria.json --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo()
		},
	}
}

// DemoMapping es el estado de la página 0 de un proceso en un momento del escenario.
type DemoMapping struct {
	PID         int             `json:"pid"`
	PA          models.PhysAddr `json:"pa"`
	Permissions string          `json:"permissions"`
	Content     string          `json:"content"`
}

type DemoStep struct {
	Name     string              `json:"name"`
	Ksm      *models.KsmResponse `json:"ksm,omitempty"`
	Mappings []DemoMapping       `json:"mappings"`
}

func runDemo() error {
	level := "WARN"
	if verbose {
		level = "DEBUG"
	}
	handler, err := log.NewHandler(os.Stderr, level)
	if err != nil {
		return err
	}
	previous := slog.Default()
	slog.SetDefault(slog.New(handler))
	defer slog.SetDefault(previous)

	cfg := models.DefaultConfig()
	if demoConfig != "" {
		if err := config.LoadConfig(demoConfig, cfg); err != nil {
			return err
		}
	}
	memory, err := services.NewMemory(cfg)
	if err != nil {
		return err
	}
	defer memory.Close()

	steps, err := demoScenario(memory)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(steps)
	}
	for _, step := range steps {
		printInfo("%s\n", headerStyle.Render(step.Name))
		if step.Ksm != nil {
			printInfo("ksm: scanned=%d, merged=%d, freemem=%d\n", step.Ksm.Scanned, step.Ksm.Merged, step.Ksm.FreeMem)
		}
		printInfo("%s\n\n", mappingTable(step.Mappings))
	}
	return nil
}

func demoScenario(memory *services.Memory) ([]DemoStep, error) {
	a, err := memory.CreateProcess("A", models.PageSize)
	if err != nil {
		return nil, err
	}
	if err := memory.Write(a.PID, 0, []byte("D")); err != nil {
		return nil, err
	}
	b, err := memory.Fork(a.PID)
	if err != nil {
		return nil, err
	}
	caller, err := memory.CreateProcess("ksm", models.PageSize)
	if err != nil {
		return nil, err
	}
	pids := []int{a.PID, b.PID}

	var steps []DemoStep
	snapshot := func(name string, ksm *models.KsmResponse) error {
		mappings, err := demoMappings(memory, pids)
		if err != nil {
			return err
		}
		steps = append(steps, DemoStep{Name: name, Ksm: ksm, Mappings: mappings})
		return nil
	}
	pass := func(name string) error {
		resp, err := memory.Ksm(models.KsmRequest{PID: caller.PID})
		if err != nil {
			return err
		}
		return snapshot(name, &resp)
	}

	if err := snapshot("Antes de KSM", nil); err != nil {
		return nil, err
	}
	if err := pass("Después de la primera pasada"); err != nil {
		return nil, err
	}
	if err := memory.Write(a.PID, 0, []byte("d")); err != nil {
		return nil, err
	}
	if err := snapshot(fmt.Sprintf("PID %d escribe \"d\"", a.PID), nil); err != nil {
		return nil, err
	}
	if err := pass("Después de la segunda pasada"); err != nil {
		return nil, err
	}
	return steps, nil
}

func demoMappings(memory *services.Memory, pids []int) ([]DemoMapping, error) {
	mappings := make([]DemoMapping, 0, len(pids))
	for _, pid := range pids {
		pte, err := memory.PTE(pid, 0)
		if err != nil {
			return nil, err
		}
		content, err := memory.Read(pid, 0, 1)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, DemoMapping{
			PID:         pid,
			PA:          pte.Addr(),
			Permissions: pte.Permissions(),
			Content:     string(content),
		})
	}
	return mappings, nil
}

func mappingTable(mappings []DemoMapping) string {
	rows := make([][]string, 0, len(mappings))
	for i, m := range mappings {
		pa := m.PA.String()
		if shared(mappings, i) {
			pa = sharedStyle.Render(pa)
		}
		rows = append(rows, []string{fmt.Sprint(m.PID), pa, m.Permissions, m.Content})
	}
	return renderTable([]string{"PID", "PA", "URWX", "DATO"}, rows)
}

func shared(mappings []DemoMapping, i int) bool {
	for j, other := range mappings {
		if j != i && other.PA == mappings[i].PA {
			return true
		}
	}
	return false
}
