// MODUL: checkpoint
// ZWECK: Laden der Fusions-Kopf-Gewichte aus PyTorch- oder Safetensors-Dateien
// INPUT: Checkpoint-Pfad (.pt/.pth oder .safetensors)
// OUTPUT: Validierter Params-Satz (float32)
// NEBENEFFEKTE: Datei-Lesen, Debug-Logs fuer uebersprungene Tensoren
// ABHAENGIGKEITEN: gopickle (Pickle/Torch), x448/float16, d4l3k/go-bfloat16
// HINWEISE: Backbone-Gewichte (Prefix "CLIP_model.") liegen im selben
// Checkpoint, werden hier aber nicht gebraucht und bleiben ungelesen

package fusion

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/d4l3k/go-bfloat16"
	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
	"github.com/x448/float16"
)

var (
	ErrMissingParam  = errors.New("fusion: missing parameter in checkpoint")
	ErrBadCheckpoint = errors.New("fusion: unsupported checkpoint format")
)

// paramSpecs bildet Checkpoint-Schluessel auf Params-Felder ab.
// size -1 bedeutet: Breite kommt aus dem Checkpoint (DCT-Projektor),
// Validate prueft sie anschliessend.
var paramSpecs = []struct {
	key    string
	size   int
	assign func(p *Params, data []float32)
}{
	{"DCT_Embedder.weight", -1, func(p *Params, d []float32) { p.DCTWeight = d }},
	{"TransformerModel.attn.in_proj_weight", 3 * EmbedDim * EmbedDim, func(p *Params, d []float32) { p.InProjWeight = d }},
	{"TransformerModel.attn.in_proj_bias", 3 * EmbedDim, func(p *Params, d []float32) { p.InProjBias = d }},
	{"TransformerModel.attn.out_proj.weight", EmbedDim * EmbedDim, func(p *Params, d []float32) { p.OutProjWeight = d }},
	{"TransformerModel.attn.out_proj.bias", EmbedDim, func(p *Params, d []float32) { p.OutProjBias = d }},
	{"TransformerModel.classifier.weight", NumClasses * EmbedDim, func(p *Params, d []float32) { p.ClassifierWeight = d }},
	{"TransformerModel.classifier.bias", NumClasses, func(p *Params, d []float32) { p.ClassifierBias = d }},
}

// Load laedt einen Checkpoint und waehlt das Format anhand der Endung.
func Load(path string) (*Params, error) {
	var (
		p   *Params
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pt", ".pth", ".bin":
		p, err = loadTorch(path)
	case ".safetensors":
		p, err = loadSafetensors(path)
	default:
		return nil, fmt.Errorf("%w: extension %q", ErrBadCheckpoint, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", path, err)
	}
	slog.Debug("checkpoint geladen", "path", path, "params", p.Count(), "size_mb", fmt.Sprintf("%.1f", p.SizeMB()))
	return p, nil
}

// ============================================================
// PyTorch (.pt)
// ============================================================

func loadTorch(path string) (*Params, error) {
	raw, err := pytorch.Load(path)
	if err != nil {
		return nil, err
	}

	get := dictGetter(raw)

	// Manche Checkpoints verpacken das State-Dict unter "state_dict"
	if v, ok := get("state_dict"); ok {
		get = dictGetter(v)
	}

	p := &Params{}
	for _, spec := range paramSpecs {
		v, ok := get(spec.key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingParam, spec.key)
		}
		t, ok := v.(*pytorch.Tensor)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a tensor", ErrBadCheckpoint, spec.key)
		}
		data, err := tensorFloats(t)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", spec.key, err)
		}
		if spec.size >= 0 && len(data) != spec.size {
			return nil, fmt.Errorf("%w: %s has %d values, want %d", ErrBadParamShape, spec.key, len(data), spec.size)
		}
		spec.assign(p, data)
	}
	return p, nil
}

// dictGetter abstrahiert den Schluessel-Zugriff ueber die beiden
// Dict-Typen, die gopickle fuer State-Dicts liefert.
func dictGetter(raw any) func(key string) (any, bool) {
	return func(key string) (any, bool) {
		switch d := raw.(type) {
		case *types.OrderedDict:
			e, ok := d.Map[key]
			if !ok {
				return nil, false
			}
			return e.Value, true
		case *types.Dict:
			return d.Get(key)
		default:
			return nil, false
		}
	}
}

// tensorFloats flacht einen zusammenhaengenden Tensor zu float32 ab.
func tensorFloats(t *pytorch.Tensor) ([]float32, error) {
	n := 1
	for _, s := range t.Size {
		n *= s
	}
	off := t.StorageOffset

	switch s := t.Source.(type) {
	case *pytorch.FloatStorage:
		out := make([]float32, n)
		copy(out, s.Data[off:off+n])
		return out, nil
	case *pytorch.HalfStorage:
		out := make([]float32, n)
		copy(out, s.Data[off:off+n])
		return out, nil
	case *pytorch.BFloat16Storage:
		out := make([]float32, n)
		copy(out, s.Data[off:off+n])
		return out, nil
	case *pytorch.DoubleStorage:
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			out[i] = float32(s.Data[off+i])
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: storage type %T", ErrBadCheckpoint, t.Source)
	}
}

// ============================================================
// Safetensors
// ============================================================

type safetensorEntry struct {
	DType   string   `json:"dtype"`
	Shape   []int64  `json:"shape"`
	Offsets [2]int64 `json:"data_offsets"`
}

func loadSafetensors(path string) (*Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var headerLen uint64
	if err := binary.Read(f, binary.LittleEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCheckpoint, err)
	}
	headerJSON := make([]byte, headerLen)
	if _, err := io.ReadFull(f, headerJSON); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCheckpoint, err)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCheckpoint, err)
	}

	dataStart := int64(8 + headerLen)
	p := &Params{}
	for _, spec := range paramSpecs {
		raw, ok := header[spec.key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingParam, spec.key)
		}
		var entry safetensorEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadCheckpoint, spec.key, err)
		}
		data, err := readSafetensor(f, dataStart, entry)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", spec.key, err)
		}
		if spec.size >= 0 && len(data) != spec.size {
			return nil, fmt.Errorf("%w: %s has %d values, want %d", ErrBadParamShape, spec.key, len(data), spec.size)
		}
		spec.assign(p, data)
	}
	return p, nil
}

func readSafetensor(f *os.File, dataStart int64, e safetensorEntry) ([]float32, error) {
	buf := make([]byte, e.Offsets[1]-e.Offsets[0])
	if _, err := f.ReadAt(buf, dataStart+e.Offsets[0]); err != nil {
		return nil, err
	}

	switch e.DType {
	case "F32":
		out := make([]float32, len(buf)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		}
		return out, nil
	case "F16":
		out := make([]float32, len(buf)/2)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(buf[i*2:])).Float32()
		}
		return out, nil
	case "BF16":
		out := make([]float32, len(buf)/2)
		for i := range out {
			out[i] = bfloat16.ToFloat32(bfloat16.BF16(binary.LittleEndian.Uint16(buf[i*2:])))
		}
		return out, nil
	case "F64":
		out := make([]float32, len(buf)/8)
		for i := range out {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:])))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: dtype %q", ErrBadCheckpoint, e.DType)
	}
}
