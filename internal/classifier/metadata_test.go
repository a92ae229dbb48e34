package classifier

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func validMetadata() Metadata {
	return Metadata{
		InputShape:  []int64{1, 224, 224, 3},
		OutputShape: []int64{1, 4},
		Classes:     []string{"MildDemented", "ModerateDemented", "NonDemented", "VeryMildDemented"},
		ImageSize:   224,
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	meta := validMetadata()
	if err := meta.Validate(); err != nil {
		t.Fatalf("expected valid metadata, got error: %v", err)
	}
	if meta.Layout != LayoutNHWC {
		t.Fatalf("expected default layout nhwc, got %s", meta.Layout)
	}
	if meta.PixelScale != 255 {
		t.Fatalf("expected default pixel scale 255, got %f", meta.PixelScale)
	}
	if meta.InputName != "input" || meta.OutputName != "output" {
		t.Fatalf("expected default tensor names, got %s/%s", meta.InputName, meta.OutputName)
	}
}

func TestValidateRejectsLabelTableMismatch(t *testing.T) {
	meta := validMetadata()
	meta.Classes = meta.Classes[:3]

	err := meta.Validate()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrModelContract) {
		t.Fatalf("expected ErrModelContract, got %v", err)
	}
}

func TestValidateRejectsUnknownLayout(t *testing.T) {
	meta := validMetadata()
	meta.Layout = "hwcn"

	if err := meta.Validate(); err == nil {
		t.Fatal("expected error for unknown layout, got nil")
	}
}

func TestValidateRejectsInconsistentInputShape(t *testing.T) {
	meta := validMetadata()
	meta.InputShape = []int64{1, 128, 128, 3}

	if err := meta.Validate(); err == nil {
		t.Fatal("expected error for inconsistent input shape, got nil")
	}
}

func TestLoadMetadataFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	payload := `{
		"input_shape": [1, 224, 224, 3],
		"output_shape": [1, 4],
		"classes": ["MildDemented", "ModerateDemented", "NonDemented", "VeryMildDemented"],
		"image_size": 224,
		"layout": "nhwc",
		"pixel_scale": 255
	}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("failed to write metadata file: %v", err)
	}

	meta, err := LoadMetadata(path)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if meta.ImageSize != 224 {
		t.Fatalf("expected image size 224, got %d", meta.ImageSize)
	}
	if meta.InputElements() != 1*224*224*3 {
		t.Fatalf("unexpected input element count: %d", meta.InputElements())
	}
}

func TestLoadMetadataRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("failed to write metadata file: %v", err)
	}

	if _, err := LoadMetadata(path); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestLoadMetadataMissingFile(t *testing.T) {
	if _, err := LoadMetadata(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error, got nil")
	}
}
