package capops

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// SliderWeights is the serialisable calibration output for one slider: the
// weight per contributing dimension plus the bias term.
type SliderWeights struct {
	Slider  string    `yaml:"slider"`
	Weights []float64 `yaml:"weights"`
	Bias    float64   `yaml:"bias"`
}

// WeightTable is a complete calibrated parameter set. Calibration runs
// offline and rarely; the table is how its output travels to the processes
// that serve mapper requests. Tables are plain values passed into
// ApplyWeights, never process-wide state, so tests can substitute alternates
// without side effects.
type WeightTable struct {
	Sliders [NumSliders]SliderWeights `yaml:"sliders"`
}

// Weights exports the model's current parameters as a table.
func (m *SliderModel) Weights() WeightTable {
	var table WeightTable
	for i := range m.Specs {
		s := &m.Specs[i]
		table.Sliders[i] = SliderWeights{
			Slider:  s.Name,
			Weights: append([]float64(nil), s.Weights...),
			Bias:    s.Bias,
		}
	}
	return table
}

// ApplyWeights installs a calibrated table into the model. The table must
// name the sliders in model order and carry exactly one weight per
// contributing dimension; a shape mismatch means the table was produced
// against a different model structure, so nothing is applied.
func (m *SliderModel) ApplyWeights(table WeightTable) error {
	for i := range m.Specs {
		s := &m.Specs[i]
		w := table.Sliders[i]
		if w.Slider != s.Name {
			return fmt.Errorf("weight table: slider %d is %q, want %q", i, w.Slider, s.Name)
		}
		if len(w.Weights) != len(s.Weights) {
			return fmt.Errorf("weight table: slider %q has %d weights, want %d", w.Slider, len(w.Weights), len(s.Weights))
		}
	}
	for i := range m.Specs {
		copy(m.Specs[i].Weights, table.Sliders[i].Weights)
		m.Specs[i].Bias = table.Sliders[i].Bias
	}
	return nil
}

// WriteWeights serialises a table as YAML.
func WriteWeights(w io.Writer, table WeightTable) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(table); err != nil {
		return fmt.Errorf("encode weight table: %w", err)
	}
	return enc.Close()
}

// ReadWeights parses a YAML weight table.
func ReadWeights(r io.Reader) (WeightTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return WeightTable{}, fmt.Errorf("read weight table: %w", err)
	}
	var table WeightTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return WeightTable{}, fmt.Errorf("parse weight table: %w", err)
	}
	return table, nil
}
