// MODUL: tokenizer
// ZWECK: Byte-Level BPE Tokenizer im CLIP-Format mit fester Kontextlaenge
// INPUT: Caption-Strings, Vokabular (vocab.json) und Merges (merges.txt)
// OUTPUT: Token-ID-Sequenzen der Laenge ContextLength
// NEBENEFFEKTE: keine nach dem Laden
// ABHAENGIGKEITEN: github.com/dlclark/regexp2 (extern)
// HINWEISE: Captions werden kleingeschrieben und Whitespace bereinigt;
// Woerter enden auf dem </w>-Marker wie im open_clip Vokabular

package tokenizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// ContextLength ist die feste Sequenzlaenge des Text-Encoders.
const ContextLength = 77

// Spezial-Tokens des CLIP-Vokabulars.
const (
	StartToken = "<|startoftext|>"
	EndToken   = "<|endoftext|>"
)

// clipPattern ist das Pretokenisierungs-Muster von CLIP.
const clipPattern = `<\|startoftext\|>|<\|endoftext\|>|'s|'t|'re|'ve|'m|'ll|'d|[\p{L}]+|[\p{N}]|[^\s\p{L}\p{N}]+`

var (
	ErrMissingStartToken = errors.New("tokenizer: vocabulary missing " + StartToken)
	ErrMissingEndToken   = errors.New("tokenizer: vocabulary missing " + EndToken)
)

// byteToRune ist die GPT-2 Byte-zu-Unicode-Tabelle: druckbare Bytes
// bleiben erhalten, alle anderen werden ab U+0100 verschoben, damit
// jedes Byte ein eindeutiges, sichtbares Zeichen im Vokabular hat.
var byteToRune [256]rune

func init() {
	n := 0
	for b := 0; b < 256; b++ {
		printable := (b >= '!' && b <= '~') || (b >= 0xa1 && b <= 0xac) || (b >= 0xae && b <= 0xff)
		if printable {
			byteToRune[b] = rune(b)
		} else {
			byteToRune[b] = rune(256 + n)
			n++
		}
	}
}

// Tokenizer encodiert Captions fuer den Text-Zweig des Backbones.
// Nach dem Laden rein lesend und damit nebenlaeufig nutzbar.
type Tokenizer struct {
	vocab   map[string]int32
	merges  map[string]int
	pattern *regexp2.Regexp
	sot     int32
	eot     int32
}

// New erstellt einen Tokenizer aus Vokabular und Merge-Liste.
// Jede Merge-Zeile hat das Format "links rechts" in Prioritaets-Reihenfolge.
func New(vocab map[string]int32, merges []string) (*Tokenizer, error) {
	sot, ok := vocab[StartToken]
	if !ok {
		return nil, ErrMissingStartToken
	}
	eot, ok := vocab[EndToken]
	if !ok {
		return nil, ErrMissingEndToken
	}

	mergeRanks := make(map[string]int, len(merges))
	for i, m := range merges {
		mergeRanks[m] = i
	}

	return &Tokenizer{
		vocab:   vocab,
		merges:  mergeRanks,
		pattern: regexp2.MustCompile(clipPattern, regexp2.IgnoreCase),
		sot:     sot,
		eot:     eot,
	}, nil
}

// VocabSize gibt die Groesse des Vokabulars zurueck.
func (t *Tokenizer) VocabSize() int {
	return len(t.vocab)
}

// EncodeContext encodiert eine Caption auf exakt n Token:
// <|startoftext|> tokens... <|endoftext|> gefolgt von Null-Padding.
// Laengere Sequenzen werden gekappt, das letzte Token bleibt EOT.
func (t *Tokenizer) EncodeContext(text string, n int) []int32 {
	ids := t.Encode(text)

	out := make([]int32, n)
	out[0] = t.sot

	pos := 1
	for _, id := range ids {
		if pos >= n-1 {
			break
		}
		out[pos] = id
		pos++
	}
	out[pos] = t.eot

	return out
}

// EncodeBatch encodiert mehrere Captions mit fester Kontextlaenge.
func (t *Tokenizer) EncodeBatch(captions []string, n int) [][]int32 {
	out := make([][]int32, len(captions))
	for i, c := range captions {
		out[i] = t.EncodeContext(c, n)
	}
	return out
}

// Encode encodiert Text ohne Rahmen-Tokens und ohne Padding.
func (t *Tokenizer) Encode(text string) []int32 {
	text = cleanText(text)

	var ids []int32
	m, _ := t.pattern.FindStringMatch(text)
	for m != nil {
		ids = t.encodeChunk(m.String(), ids)
		m, _ = t.pattern.FindNextMatch(m)
	}
	return ids
}

// cleanText bereinigt Whitespace und schreibt klein.
func cleanText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// encodeChunk encodiert ein Pretokenizer-Stueck via BPE-Merges.
func (t *Tokenizer) encodeChunk(chunk string, ids []int32) []int32 {
	if chunk == "" {
		return ids
	}

	// Bytes in Vokabular-Zeichen uebersetzen
	var sb strings.Builder
	sb.Grow(len(chunk) * 2)
	for i := 0; i < len(chunk); i++ {
		sb.WriteRune(byteToRune[chunk[i]])
	}
	encoded := sb.String()

	// Startzustand: einzelne Zeichen, letztes mit Wortende-Marker
	runes := []rune(encoded)
	parts := make([]string, len(runes))
	for i, r := range runes {
		parts[i] = string(r)
	}
	parts[len(parts)-1] += "</w>"

	// Schneller Pfad: ganzes Stueck ist ein Token
	if len(parts) == 1 {
		if id, ok := t.vocab[parts[0]]; ok {
			return append(ids, id)
		}
	}

	parts = t.mergeParts(parts)

	for _, part := range parts {
		if id, ok := t.vocab[part]; ok {
			ids = append(ids, id)
		}
		// Unbekannte Teile werden verworfen; das CLIP-Vokabular
		// deckt jedes Byte ab, der Fall tritt nur bei Test-Vokabularen auf
	}
	return ids
}

// mergeParts fuehrt wiederholt den Merge mit dem niedrigsten Rang aus.
func (t *Tokenizer) mergeParts(parts []string) []string {
	for len(parts) > 1 {
		minRank := int(^uint(0) >> 1)
		minIdx := -1

		for i := 0; i < len(parts)-1; i++ {
			key := parts[i] + " " + parts[i+1]
			if rank, ok := t.merges[key]; ok && rank < minRank {
				minRank = rank
				minIdx = i
			}
		}

		if minIdx < 0 {
			break
		}

		parts[minIdx] = parts[minIdx] + parts[minIdx+1]
		parts = append(parts[:minIdx+1], parts[minIdx+2:]...)
	}
	return parts
}

// String beschreibt den Tokenizer.
func (t *Tokenizer) String() string {
	return fmt.Sprintf("clip-bpe(vocab=%d, merges=%d)", len(t.vocab), len(t.merges))
}
