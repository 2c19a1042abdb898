// MODUL: normalize
// ZWECK: Normalisierung und Tensor-Konvertierung fuer den Vision-Zweig
// INPUT: ImageInput, Normalisierungs-Parameter (mean, std)
// OUTPUT: float32-Tensoren im CHW Layout
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: keine (nur Standardbibliothek)
// HINWEISE: CLIP-Preset entspricht den open_clip Standardkonstanten

package vision

// Standard-Normalisierungswerte
var (
	// CLIP Default (open_clip)
	ClipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	ClipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// Luma-Gewichte nach ITU-R 601 (entspricht torchvision rgb_to_grayscale)
const (
	lumaR = 0.2989
	lumaG = 0.587
	lumaB = 0.114
)

// NormalizeCHW normalisiert ein Bild mit gegebenen mean/std Werten
// Gibt einen float32-Slice im CHW Format zurueck (Channel-First)
func NormalizeCHW(img *ImageInput, mean, std [3]float32) []float32 {
	bounds := img.Image.Bounds()
	h := bounds.Dy()
	w := bounds.Dx()
	size := h * w

	result := make([]float32, size*3)
	rOffset := 0
	gOffset := size
	bOffset := size * 2

	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b := extractRGB(img, x, y)

			result[rOffset+idx] = (r - mean[0]) / std[0]
			result[gOffset+idx] = (g - mean[1]) / std[1]
			result[bOffset+idx] = (b - mean[2]) / std[2]
			idx++
		}
	}

	return result
}

// extractRGB holt RGB-Werte als float32 im Bereich [0,1]
func extractRGB(img *ImageInput, x, y int) (float32, float32, float32) {
	c := img.Image.RGBAAt(x, y)
	return float32(c.R) / 255.0, float32(c.G) / 255.0, float32(c.B) / 255.0
}

// GrayscaleCHW reduziert einen CHW-Tensor auf einen Graustufen-Kanal.
// Wird auf den bereits normalisierten Tensor angewendet, danach auf
// [-1,1] reskaliert -- exakt die Pipeline des trainierten Modells.
func GrayscaleCHW(chw []float32, width, height int) []float32 {
	size := width * height
	gray := make([]float32, size)

	for i := 0; i < size; i++ {
		g := lumaR*chw[i] + lumaG*chw[size+i] + lumaB*chw[2*size+i]
		gray[i] = g*2 - 1
	}

	return gray
}
