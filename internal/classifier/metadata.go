package classifier

import (
	"encoding/json"
	"fmt"
	"os"
)

// Tensor layouts the preprocessor can produce.
const (
	LayoutNHWC = "nhwc"
	LayoutNCHW = "nchw"
)

// Metadata describes the contract of a serialized model artifact: the tensor
// shapes it was exported with, the label table its output indices map to, and
// the pixel representation it was trained on. It is bundled next to the
// artifact as a JSON file.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	Layout      string   `json:"layout"`
	PixelScale  float32  `json:"pixel_scale"`
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
}

// LoadMetadata reads and validates a metadata file.
func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("read model metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parse model metadata: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

// Validate fills defaults and checks the label table against the declared
// output shape. A mismatch means the artifact and metadata were packaged
// from different trainings and must never reach inference.
func (m *Metadata) Validate() error {
	if m.Layout == "" {
		m.Layout = LayoutNHWC
	}
	if m.Layout != LayoutNHWC && m.Layout != LayoutNCHW {
		return fmt.Errorf("model metadata: unknown tensor layout %q", m.Layout)
	}
	if m.PixelScale == 0 {
		m.PixelScale = 255
	}
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if m.ImageSize <= 0 {
		return fmt.Errorf("model metadata: image_size must be positive, got %d", m.ImageSize)
	}
	if len(m.Classes) == 0 {
		return fmt.Errorf("model metadata: empty class list")
	}
	if len(m.InputShape) == 0 || len(m.OutputShape) == 0 {
		return fmt.Errorf("model metadata: missing tensor shapes")
	}
	if got := m.OutputShape[len(m.OutputShape)-1]; got != int64(len(m.Classes)) {
		return fmt.Errorf("%w: output dimension %d does not match %d classes",
			ErrModelContract, got, len(m.Classes))
	}
	if want, got := int64(m.ImageSize)*int64(m.ImageSize)*3, m.InputElements(); got != want {
		return fmt.Errorf("model metadata: input shape holds %d elements, expected %d for %dx%dx3",
			got, want, m.ImageSize, m.ImageSize)
	}
	return nil
}

// InputElements returns the number of float values a single input tensor holds.
func (m Metadata) InputElements() int64 {
	total := int64(1)
	for _, dim := range m.InputShape {
		total *= dim
	}
	return total
}
