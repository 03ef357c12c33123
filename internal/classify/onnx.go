package classify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	modelFileName     = "model_optimized_quantized.onnx"
	tokenizerFileName = "tokenizer.json"
	labelsFileName    = "config.json"

	// maxSequenceLength matches the position embedding size of the model
	maxSequenceLength = 512
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// initRuntime initializes the shared ONNX Runtime environment once per
// process. The shared library path can be overridden through
// ONNXRUNTIME_SHARED_LIBRARY when the default lookup fails.
func initRuntime() error {
	ortInitOnce.Do(func() {
		if path := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY"); path != "" {
			ort.SetSharedLibraryPath(path)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// modelConfig is the subset of the transformer config file we need
type modelConfig struct {
	ID2Label map[string]string `json:"id2label"`
}

// ONNX is the primary classifier: a quantized transformer scored through
// ONNX Runtime, with text prepared by the model's own tokenizer.
type ONNX struct {
	session *ort.DynamicAdvancedSession
	tk      *tokenizer.Tokenizer
	labels  []string
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewONNX loads the model, tokenizer and label mapping from modelDir. All
// three assets are required; any missing or unreadable asset fails the
// whole load so the caller falls back cleanly.
func NewONNX(modelDir string, logger *slog.Logger) (*ONNX, error) {
	modelPath := filepath.Join(modelDir, modelFileName)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	tokenizerPath := filepath.Join(modelDir, tokenizerFileName)
	tk, err := pretrained.FromFile(tokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	labels, err := loadLabels(filepath.Join(modelDir, labelsFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}

	if err := initRuntime(); err != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &ONNX{
		session: session,
		tk:      tk,
		labels:  labels,
		logger:  logger,
	}, nil
}

// loadLabels reads the id2label mapping and flattens it into a slice
// indexed by class position. Indices missing from the mapping get a
// synthetic label so the output vector always zips cleanly.
func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg modelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	if len(cfg.ID2Label) == 0 {
		return nil, fmt.Errorf("config file has no id2label mapping")
	}

	maxIdx := -1
	byIndex := make(map[int]string, len(cfg.ID2Label))
	for key, label := range cfg.ID2Label {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("invalid label index %q", key)
		}
		byIndex[idx] = label
		if idx > maxIdx {
			maxIdx = idx
		}
	}

	labels := make([]string, maxIdx+1)
	for i := range labels {
		if label, ok := byIndex[i]; ok {
			labels[i] = label
		} else {
			labels[i] = fmt.Sprintf("label_%d", i)
		}
	}
	return labels, nil
}

// Predict tokenizes the text, runs the model and returns sigmoid scores
// zipped with the label list. Any failure yields an empty ScoreMap; the
// caller treats that the same as a silent chunk.
func (o *ONNX) Predict(text string) ScoreMap {
	if isBlank(text) {
		return ScoreMap{}
	}

	ids, mask, err := o.encode(text)
	if err != nil {
		o.logger.Error("Tokenization failed", slog.String("error", err.Error()))
		return ScoreMap{}
	}

	logits, err := o.run(ids, mask)
	if err != nil {
		o.logger.Error("Model inference failed", slog.String("error", err.Error()))
		return ScoreMap{}
	}

	return o.scores(logits)
}

// Mode returns ModePrimary
func (o *ONNX) Mode() Mode {
	return ModePrimary
}

// Close releases the inference session
func (o *ONNX) Close() error {
	if o.session != nil {
		o.session.Destroy()
		o.session = nil
	}
	return nil
}

// encode runs the tokenizer and truncates to the model's sequence limit
func (o *ONNX) encode(text string) ([]int64, []int64, error) {
	en, err := o.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, nil, err
	}
	if len(en.Ids) == 0 {
		return nil, nil, fmt.Errorf("tokenizer produced no tokens")
	}

	n := len(en.Ids)
	if n > maxSequenceLength {
		n = maxSequenceLength
	}

	ids := make([]int64, n)
	mask := make([]int64, n)
	for i := 0; i < n; i++ {
		ids[i] = int64(en.Ids[i])
		mask[i] = 1
	}
	return ids, mask, nil
}

// run executes one forward pass. The session is not safe for concurrent
// Run calls, so inference is serialized.
func (o *ONNX) run(ids, mask []int64) ([]float32, error) {
	shape := ort.NewShape(1, int64(len(ids)))

	idsTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("failed to create mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	outputs := []ort.ArbitraryTensor{nil}

	o.mu.Lock()
	err = o.session.Run([]ort.ArbitraryTensor{idsTensor, maskTensor}, outputs)
	o.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	logitsTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}
	defer logitsTensor.Destroy()

	data := logitsTensor.GetData()
	logits := make([]float32, len(data))
	copy(logits, data)
	return logits, nil
}

// scores applies the sigmoid to each logit and zips with labels
// positionally. Every logit produces a score: indices beyond the label list
// get a synthetic positional label, never dropped. The model is
// multi-label, so scores are independent and do not sum to one.
func (o *ONNX) scores(logits []float32) ScoreMap {
	out := make(ScoreMap, 0, len(logits))
	for i, logit := range logits {
		label := fmt.Sprintf("label_%d", i)
		if i < len(o.labels) {
			label = o.labels[i]
		}
		out = append(out, Score{
			Label: label,
			Value: sigmoid(float64(logit)),
		})
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
