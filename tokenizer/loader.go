// MODUL: loader
// ZWECK: Laden des CLIP-Vokabulars aus vocab.json + merges.txt
// INPUT: Verzeichnispfad
// OUTPUT: Einsatzbereiter Tokenizer
// NEBENEFFEKTE: Dateisystem-Lesezugriff
// ABHAENGIGKEITEN: encoding/json, os (stdlib)
// HINWEISE: merges.txt Kopfzeilen (#...) werden uebersprungen

package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load laedt einen Tokenizer aus einem Verzeichnis mit
// vocab.json (Token -> ID) und merges.txt (eine Merge-Regel pro Zeile).
func Load(dir string) (*Tokenizer, error) {
	vocabPath := filepath.Join(dir, "vocab.json")
	mergesPath := filepath.Join(dir, "merges.txt")

	vocabData, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("vocab.json lesen: %w", err)
	}

	vocab := make(map[string]int32)
	if err := json.Unmarshal(vocabData, &vocab); err != nil {
		return nil, fmt.Errorf("vocab.json parsen: %w", err)
	}

	mergesData, err := os.ReadFile(mergesPath)
	if err != nil {
		return nil, fmt.Errorf("merges.txt lesen: %w", err)
	}

	var merges []string
	for _, line := range strings.Split(string(mergesData), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		merges = append(merges, line)
	}

	return New(vocab, merges)
}
