// MODUL: report
// ZWECK: Ausgabe der Metriken und Timing-Statistiken auf stdout
// INPUT: Result und optionales ProbeResult
// OUTPUT: Tabellarischer Bericht plus Slash-Zusammenfassungszeile
// NEBENEFFEKTE: Schreibt auf den uebergebenen Writer
// ABHAENGIGKEITEN: tablewriter
// HINWEISE: Metriken werden als Prozentwerte berichtet; die Slash-Zeile
// ist fuer maschinelles Abgreifen gedacht (Precision/Recall/F1/Accuracy)

package evaluate

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// Report schreibt den kompletten Evaluationsbericht.
func Report(w io.Writer, res *Result, probe *ProbeResult) {
	tableRender := func(header string, rows [][]string) {
		fmt.Fprintln(w, " ", header)
		table := tablewriter.NewWriter(w)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetBorder(false)
		table.SetNoWhiteSpace(true)
		table.SetTablePadding("    ")
		table.AppendBulk(rows)
		table.Render()
		fmt.Fprintln(w)
	}

	c := res.Confusion
	tableRender("Metriken", [][]string{
		{"", "Precision", fmt.Sprintf("%.2f %%", c.Precision()*100)},
		{"", "Recall", fmt.Sprintf("%.2f %%", c.Recall()*100)},
		{"", "F1", fmt.Sprintf("%.2f %%", c.F1()*100)},
		{"", "Accuracy", fmt.Sprintf("%.2f %%", c.Accuracy()*100)},
		{"", "Loss", fmt.Sprintf("%.4f", res.Loss)},
	})

	tableRender("Konfusion (Label 0 = echt)", [][]string{
		{"", "TP", fmt.Sprintf("%d", c.TP)},
		{"", "TN", fmt.Sprintf("%d", c.TN)},
		{"", "FP", fmt.Sprintf("%d", c.FP)},
		{"", "FN", fmt.Sprintf("%d", c.FN)},
		{"", "Samples", fmt.Sprintf("%d", res.Samples)},
	})

	tableRender("Inferenz", [][]string{
		{"", "Gesamtzeit", fmt.Sprintf("%.2f s", res.Inference.Seconds())},
		{"", fmt.Sprintf("Pro Batch (Groesse %d)", res.BatchSize), fmt.Sprintf("%.2f ms", res.PerBatchMS())},
		{"", "Pro Sample", fmt.Sprintf("%.2f ms", res.PerSampleMS())},
		{"", "Durchsatz", fmt.Sprintf("%.1f Samples/s", res.Throughput())},
	})

	if probe != nil {
		tableRender(fmt.Sprintf("Timing-Probe (%d Laeufe, Batch %d)", probe.Runs, probe.BatchSize), [][]string{
			{"", "Mittel", fmt.Sprintf("%.2f ms", probe.MeanMS)},
			{"", "Std", fmt.Sprintf("%.2f ms", probe.StdMS)},
			{"", "Median", fmt.Sprintf("%.2f ms", probe.MedianMS)},
			{"", "Pro Sample", fmt.Sprintf("%.2f ms", probe.PerSampleMS)},
			{"", "Durchsatz", fmt.Sprintf("%.1f Samples/s", probe.Throughput)},
		})
	}

	// Kompakte Zeile: Precision / Recall / F1 / Accuracy in Prozent
	fmt.Fprintf(w, "%.2f / %.2f / %.2f / %.2f\n",
		c.Precision()*100, c.Recall()*100, c.F1()*100, c.Accuracy()*100)
}
