// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/Magnet300/CAMME/envconfig"
)

// Version wird beim Release-Build via ldflags gesetzt.
var Version = "dev"

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "camme",
		Short:         "Multimodale Deepfake-Evaluation (CLIP + DCT + Text-Fusion)",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				fmt.Fprintf(os.Stdout, "camme version %s\n", Version)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	evaluateCmd := newEvaluateCmd()

	envVars := envconfig.AsMap()
	appendEnvDocs(evaluateCmd, []envconfig.EnvVar{
		envVars["CAMME_DEBUG"],
		envVars["CAMME_DEVICE"],
		envVars["CAMME_WORKERS"],
		envVars["CAMME_BATCH_SIZE"],
		envVars["CAMME_BACKBONE"],
		envVars["CAMME_TOKENIZER"],
	})

	rootCmd.AddCommand(evaluateCmd)

	return rootCmd
}
