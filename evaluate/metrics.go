// MODUL: metrics
// ZWECK: Konfusionszaehler, abgeleitete Metriken und Cross-Entropy
// INPUT: Harte Vorhersagen, wahre Labels, rohe Logits
// OUTPUT: Precision/Recall/F1/Accuracy (epsilon-stabilisiert), Loss
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: Nur Standardbibliothek (math)
// HINWEISE: Label 0 ("echt") zaehlt als positive Klasse; Nenner werden
// mit 1e-8 stabilisiert statt bei Null-Vorhersagen zu fehlschlagen

package evaluate

import "math"

// eps stabilisiert Nenner, wenn eine Klasse nie vorhergesagt wird.
const eps = 1e-8

// Confusion akkumuliert Zaehler mit Label 0 als positiver Klasse.
type Confusion struct {
	TP int // pred 0, true 0
	TN int // pred 1, true 1
	FP int // pred 0, true 1
	FN int // pred 1, true 0
}

// Add ordnet eine Vorhersage dem passenden Zaehler zu.
func (c *Confusion) Add(pred, label int) {
	switch {
	case pred == 0 && label == 0:
		c.TP++
	case pred == 1 && label == 1:
		c.TN++
	case pred == 0 && label == 1:
		c.FP++
	default:
		c.FN++
	}
}

// Total gibt die Zahl der gezaehlten Samples zurueck.
func (c Confusion) Total() int {
	return c.TP + c.TN + c.FP + c.FN
}

func (c Confusion) Precision() float64 {
	return float64(c.TP) / (float64(c.TP+c.FP) + eps)
}

func (c Confusion) Recall() float64 {
	return float64(c.TP) / (float64(c.TP+c.FN) + eps)
}

func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	return 2 * p * r / (p + r + eps)
}

// Accuracy ist (tp+tn)/total ohne eps; nur leere Zaehler brauchen den Schutz.
func (c Confusion) Accuracy() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.TP+c.TN) / float64(total)
}

// Argmax gibt den Index des groessten Logits zurueck.
func Argmax(logits []float32) int {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	return best
}

// CrossEntropy berechnet -log softmax(logits)[label], numerisch
// stabil ueber Log-Sum-Exp.
func CrossEntropy(logits []float32, label int) float64 {
	maxLogit := float64(logits[0])
	for _, v := range logits[1:] {
		if float64(v) > maxLogit {
			maxLogit = float64(v)
		}
	}

	var sum float64
	for _, v := range logits {
		sum += math.Exp(float64(v) - maxLogit)
	}
	return math.Log(sum) - (float64(logits[label]) - maxLogit)
}
