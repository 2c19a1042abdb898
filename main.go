// MODUL: main
// ZWECK: Einstiegspunkt fuer das camme CLI-Tool
// INPUT: CLI-Argumente
// OUTPUT: Exit-Code
// NEBENEFFEKTE: Prozess-Exit bei Fehler
// ABHAENGIGKEITEN: cmd
// HINWEISE: Gesamte Logik liegt in cmd, main bleibt minimal

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Magnet300/CAMME/cmd"
)

func main() {
	if err := cmd.NewCLI().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Fehler: %v\n", err)
		os.Exit(1)
	}
}
