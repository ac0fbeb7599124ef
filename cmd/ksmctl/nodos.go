package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/memoria/models"
	"github.com/sisoputnfrba/tp-ksm-Los-magiOS/utils/web/client"
)

func init() {
	rootCmd.AddCommand(newNodosCmd())
}

func newNodosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nodos",
		Short: "Muestra las tablas de nodos estables e inestables",
		Long: `El comando nodos muestra el registro de KSM del módulo de memoria: cada frame
compartido con su contador de referencias, su hash y sus mapeos inversos, y los
candidatos de la tabla inestable.

Ejemplo:
  ksmctl nodos
  ksmctl nodos --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodos()
		},
	}
}

func runNodos() error {
	var nodes models.NodesResponse
	if err := client.DoJSON(memoryPort, memoryIP, http.MethodGet, "memoria/ksm/nodos", nil, &nodes); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(nodes)
	}
	printInfo("%s\n", headerStyle.Render(fmt.Sprintf("Nodos estables (%d)", len(nodes.Stable))))
	printInfo("%s\n\n", nodeTable(nodes.Stable))
	printInfo("%s\n", headerStyle.Render(fmt.Sprintf("Nodos inestables (%d)", len(nodes.Unstable))))
	if len(nodes.Unstable) == 0 {
		printInfo("%s\n", mutedStyle.Render("(vacía)"))
		return nil
	}
	printInfo("%s\n", nodeTable(nodes.Unstable))
	return nil
}

func nodeTable(nodes []models.NodeInfo) string {
	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, []string{
			n.PA.String(),
			strconv.Itoa(n.RefCount),
			fmt.Sprintf("%#016x", n.Hash),
			reverseColumn(n),
			n.Permissions,
		})
	}
	return renderTable([]string{"PA", "RC", "HASH", "MAPEOS", "URWX"}, rows)
}

func reverseColumn(n models.NodeInfo) string {
	if n.Zero {
		return mutedStyle.Render("página cero")
	}
	mappings := make([]string, 0, len(n.Reverse))
	for _, rm := range n.Reverse {
		mappings = append(mappings, fmt.Sprintf("%d@%v", rm.PID, rm.VA))
	}
	return strings.Join(mappings, " ")
}
