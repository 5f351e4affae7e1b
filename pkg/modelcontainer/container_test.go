package modelcontainer

import "testing"

func TestExtractInjectSymmetry(t *testing.T) {
	desc := DefaultRegistry()
	d, err := desc.Get("mlp_tabular_small")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	blob, err := Marshal(NewBlob(d))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	weights, err := ExtractWeights(blob)
	if err != nil {
		t.Fatalf("ExtractWeights: %v", err)
	}

	injected, err := InjectWeights(blob, weights)
	if err != nil {
		t.Fatalf("InjectWeights: %v", err)
	}

	again, err := ExtractWeights(injected)
	if err != nil {
		t.Fatalf("ExtractWeights after inject: %v", err)
	}

	for name, values := range weights {
		otherValues, ok := again[name]
		if !ok {
			t.Fatalf("layer %q missing after round trip", name)
		}
		for i, v := range values {
			if otherValues[i] != v {
				t.Errorf("layer %q index %d: got %v want %v", name, i, otherValues[i], v)
			}
		}
	}
}

func TestSetLearningRateRoundTrip(t *testing.T) {
	desc := DefaultRegistry()
	d, err := desc.Get("cnn_mnist")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	blob, err := Marshal(NewBlob(d))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	updated, err := SetLearningRate(blob, 0.0314)
	if err != nil {
		t.Fatalf("SetLearningRate: %v", err)
	}

	lr, err := LearningRate(updated)
	if err != nil {
		t.Fatalf("LearningRate: %v", err)
	}
	if lr != 0.0314 {
		t.Errorf("got %v want 0.0314", lr)
	}
}

func TestInjectLeavesUnmatchedTensorsUntouched(t *testing.T) {
	desc := DefaultRegistry()
	d, err := desc.Get("mlp_tabular_small")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	blob, err := Marshal(NewBlob(d))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	injected, err := InjectWeights(blob, map[string][]float32{"hidden_bias": {1, 2, 3, 4, 5, 6, 7, 8}})
	if err != nil {
		t.Fatalf("InjectWeights: %v", err)
	}

	weights, err := ExtractWeights(injected)
	if err != nil {
		t.Fatalf("ExtractWeights: %v", err)
	}
	if len(weights["output_bias"]) != 2 {
		t.Fatalf("expected untouched output_bias to retain its shape, got %v", weights["output_bias"])
	}
}
