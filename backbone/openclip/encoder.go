// MODUL: openclip/encoder
// ZWECK: Go-Bindings fuer den LAION OpenCLIP Encoder via CGO
// INPUT: Modell-Pfad (GGUF), CHW-Bild-Tensoren, Token-Sequenzen
// OUTPUT: Float32 Embeddings (768)
// NEBENEFFEKTE: Laedt das OpenCLIP-Modell, alloziert C-Speicher
// ABHAENGIGKEITEN: backbone (Interface), openclip.h (C-Bindings)
// HINWEISE: Deckt den Bild- und den Text-Zweig des ConvNeXt-Large-320
// Checkpoints ab; die Hub-Referenz steht in backbone.HubRef.
// Benoetigt libopenclip samt openclip.h: Build mit -tags openclip

//go:build openclip && cgo

package openclip

/*
#cgo CFLAGS: -I${SRCDIR}
#cgo LDFLAGS: -L${SRCDIR} -lopenclip
#include "openclip.h"
#include <stdlib.h>
*/
import "C"

import (
	"errors"
	"unsafe"

	"github.com/Magnet300/CAMME/backbone"
)

// ============================================================================
// Fehler-Definitionen
// ============================================================================

var (
	ErrNullContext  = errors.New("openclip: null context")
	ErrEncodeFailed = errors.New("openclip: encoding failed")
	ErrAllocFailed  = errors.New("openclip: memory allocation failed")
)

func init() {
	backbone.RegisterToDefault("openclip", func(modelPath string, opts backbone.LoadOptions) (backbone.Encoder, error) {
		return NewEncoder(modelPath, opts)
	})
}

// ============================================================================
// Encoder - Hauptstruktur
// ============================================================================

// Encoder implementiert backbone.Encoder fuer LAION OpenCLIP-Modelle.
type Encoder struct {
	ctx  *C.openclip_ctx
	info backbone.ModelInfo
}

// NewEncoder laedt ein OpenCLIP-Modell aus einer GGUF-Datei.
func NewEncoder(modelPath string, opts backbone.LoadOptions) (*Encoder, error) {
	params := C.openclip_default_params()
	params.n_threads = C.int32_t(opts.Threads)
	params.n_gpu_layers = C.int32_t(opts.GPULayers)
	params.main_gpu = C.int32_t(opts.MainGPU)
	params.use_mmap = boolToInt8(opts.UseMmap)

	cPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cPath))

	ctx := C.openclip_init(cPath, params)
	if ctx == nil {
		return nil, ErrNullContext
	}

	cInfo := C.openclip_get_model_info(ctx)

	return &Encoder{
		ctx: ctx,
		info: backbone.ModelInfo{
			Name:          C.GoString(cInfo.name),
			Type:          "openclip",
			EmbeddingDim:  int(cInfo.embedding_dim),
			ImageSize:     int(cInfo.image_size),
			ContextLength: int(cInfo.context_length),
		},
	}, nil
}

// ============================================================================
// backbone.Encoder Interface
// ============================================================================

// EncodeImageBatch konvertiert vorverarbeitete CHW-Tensoren zu Embeddings.
func (e *Encoder) EncodeImageBatch(images [][]float32) ([][]float32, error) {
	if e.ctx == nil {
		return nil, backbone.ErrClosed
	}
	if len(images) == 0 {
		return nil, backbone.ErrEmptyBatch
	}

	dim := e.info.EmbeddingDim
	want := 3 * e.info.ImageSize * e.info.ImageSize
	flat := make([]float32, 0, len(images)*want)
	for _, img := range images {
		if len(img) != want {
			return nil, backbone.ErrBadTensorSize
		}
		flat = append(flat, img...)
	}

	embeddings := make([]float32, len(images)*dim)
	result := C.openclip_encode_image_batch(
		e.ctx,
		(*C.float)(unsafe.Pointer(&flat[0])),
		C.int32_t(len(images)),
		(*C.float)(unsafe.Pointer(&embeddings[0])),
		C.int32_t(dim),
	)
	if err := mapCError(int(result)); err != nil {
		return nil, err
	}

	return reshape(embeddings, len(images), dim), nil
}

// EncodeTextBatch konvertiert Token-Sequenzen zu Embeddings.
func (e *Encoder) EncodeTextBatch(tokens [][]int32) ([][]float32, error) {
	if e.ctx == nil {
		return nil, backbone.ErrClosed
	}
	if len(tokens) == 0 {
		return nil, backbone.ErrEmptyBatch
	}

	dim := e.info.EmbeddingDim
	ctxLen := e.info.ContextLength
	flat := make([]int32, 0, len(tokens)*ctxLen)
	for _, seq := range tokens {
		if len(seq) != ctxLen {
			return nil, backbone.ErrBadTensorSize
		}
		flat = append(flat, seq...)
	}

	embeddings := make([]float32, len(tokens)*dim)
	result := C.openclip_encode_text_batch(
		e.ctx,
		(*C.int32_t)(unsafe.Pointer(&flat[0])),
		C.int32_t(len(tokens)),
		(*C.float)(unsafe.Pointer(&embeddings[0])),
		C.int32_t(dim),
	)
	if err := mapCError(int(result)); err != nil {
		return nil, err
	}

	return reshape(embeddings, len(tokens), dim), nil
}

// Synchronize blockiert bis alle eingereihten Kernel fertig sind.
func (e *Encoder) Synchronize() {
	if e.ctx != nil {
		C.openclip_synchronize(e.ctx)
	}
}

// Close gibt den Context und zugehoerigen C-Speicher frei.
func (e *Encoder) Close() error {
	if e.ctx == nil {
		return backbone.ErrClosed
	}
	C.openclip_free(e.ctx)
	e.ctx = nil
	return nil
}

// Info gibt Metadaten ueber das geladene Modell zurueck.
func (e *Encoder) Info() backbone.ModelInfo {
	return e.info
}

// ============================================================================
// Hilfsfunktionen
// ============================================================================

// reshape konvertiert ein flaches Array zu einem 2D-Slice.
func reshape(flat []float32, batch, dim int) [][]float32 {
	out := make([][]float32, batch)
	for i := 0; i < batch; i++ {
		out[i] = flat[i*dim : (i+1)*dim]
	}
	return out
}

// mapCError konvertiert C-Fehlercodes zu Go-Errors.
func mapCError(code int) error {
	switch code {
	case 0:
		return nil
	case -1:
		return ErrNullContext
	case -5:
		return ErrAllocFailed
	default:
		return ErrEncodeFailed
	}
}

// boolToInt8 konvertiert bool zu C.int8_t.
func boolToInt8(b bool) C.int8_t {
	if b {
		return 1
	}
	return 0
}
