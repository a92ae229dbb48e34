package classifier

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Model wraps a loaded ONNX artifact. It is created once at process start
// and is safe for concurrent use: the preallocated tensors are per-session
// scratch buffers, so forward passes are serialized by a mutex.
type Model struct {
	meta   Metadata
	mu     sync.Mutex
	sess   *ort.AdvancedSession
	input  *ort.Tensor[float32]
	output *ort.Tensor[float32]
}

// Load initializes the ONNX runtime, validates the artifact's metadata and
// opens an inference session. Any error here must be treated as fatal by the
// caller: a process without a model cannot serve requests.
func Load(modelPath, metadataPath string) (*Model, error) {
	meta, err := LoadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize ONNX environment: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	sess, err := ort.NewAdvancedSession(modelPath,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("open ONNX session %s: %w", modelPath, err)
	}

	return &Model{
		meta:   meta,
		sess:   sess,
		input:  inputTensor,
		output: outputTensor,
	}, nil
}

// Metadata returns the contract the loaded artifact was packaged with.
func (m *Model) Metadata() Metadata {
	return m.meta
}

// Classify runs one forward pass and maps the arg-max score onto the label
// table. Deterministic for a fixed tensor and artifact.
func (m *Model) Classify(ctx context.Context, tensor []float32) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if int64(len(tensor)) != m.meta.InputElements() {
		return nil, fmt.Errorf("tensor holds %d values, model expects %d", len(tensor), m.meta.InputElements())
	}

	scores, err := m.run(tensor)
	if err != nil {
		return nil, err
	}
	return decide(scores, m.meta.Classes)
}

func (m *Model) run(tensor []float32) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.input.GetData(), tensor)
	if err := m.sess.Run(); err != nil {
		return nil, fmt.Errorf("forward pass: %w", err)
	}

	out := m.output.GetData()
	scores := make([]float32, len(out))
	copy(scores, out)
	return scores, nil
}

// Close tears the session down. Call exactly once, at process exit.
func (m *Model) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.input != nil {
		m.input.Destroy()
	}
	if m.output != nil {
		m.output.Destroy()
	}
	if m.sess != nil {
		m.sess.Destroy()
	}
	ort.DestroyEnvironment()
}
