package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nfnt/resize"

	"github.com/example/braincheck/internal/classifier"
)

// ErrInvalidImage reports an upload that could not be sniffed or decoded as
// a supported raster format. It is a terminal outcome for the request, never
// a reason to retry.
var ErrInvalidImage = errors.New("invalid image")

// Preprocessor converts raw image bytes into the tensor the model artifact
// was trained on. The target resolution, channel layout and value range all
// come from the artifact's metadata, so a different artifact only needs a
// different metadata file.
type Preprocessor struct {
	size   int
	layout string
	scale  float32
}

// New builds a preprocessor for the given artifact contract.
func New(meta classifier.Metadata) *Preprocessor {
	return &Preprocessor{
		size:   meta.ImageSize,
		layout: meta.Layout,
		scale:  meta.PixelScale,
	}
}

// Prepare decodes, resizes and normalizes an image into a flat float tensor.
// Output length is always size*size*3 for any valid input.
func (p *Preprocessor) Prepare(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	mime := mimetype.Detect(data)
	if !mime.Is("image/jpeg") && !mime.Is("image/png") && !mime.Is("image/gif") {
		return nil, fmt.Errorf("%w: unsupported content type %s", ErrInvalidImage, mime.String())
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	return p.toTensor(img), nil
}

// toTensor resizes to the fixed square resolution (aspect ratio is not
// preserved) and fills the tensor in the configured layout. Pixel values are
// scaled so a full-intensity channel equals the metadata's pixel scale.
func (p *Preprocessor) toTensor(img image.Image) []float32 {
	resized := resize.Resize(uint(p.size), uint(p.size), img, resize.Lanczos3)

	width, height := p.size, p.size
	out := make([]float32, 3*width*height)
	plane := width * height

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()

			rv := float32(r) / 65535.0 * p.scale
			gv := float32(g) / 65535.0 * p.scale
			bv := float32(b) / 65535.0 * p.scale

			pixel := y*width + x
			if p.layout == classifier.LayoutNCHW {
				out[pixel] = rv
				out[plane+pixel] = gv
				out[2*plane+pixel] = bv
			} else {
				out[pixel*3] = rv
				out[pixel*3+1] = gv
				out[pixel*3+2] = bv
			}
		}
	}

	return out
}
