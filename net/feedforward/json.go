package feedforward

import "encoding/json"
import "io"
import "os"
import "path/filepath"

import "github.com/klauspost/compress/zlib"
import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/layer"

// Weights is the serialized form of one parameter
type Weights struct {
	Name string    `json:"name"`
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// ExportWeights copies parameter values into their serialized form
func ExportWeights(params []*layer.Param) []Weights {
	o := make([]Weights, len(params))
	for i, p := range params {
		r, c := p.Value.Dims()
		o[i] = Weights{Name: p.Name, Rows: r, Cols: c, Data: mat.DenseCopyOf(p.Value).RawMatrix().Data}
	}
	return o
}

// ImportWeights loads serialized weights into params. Count, names and shapes must match.
func ImportWeights(params []*layer.Param, w []Weights) error {
	if len(w) != len(params) {
		return errors.Errorf("weights: have %d tensors, model needs %d", len(w), len(params))
	}
	for i, p := range params {
		r, c := p.Value.Dims()
		if w[i].Name != p.Name || w[i].Rows != r || w[i].Cols != c || len(w[i].Data) != r*c {
			return errors.Errorf("weights: tensor %d is %s %dx%d, model needs %s %dx%d",
				i, w[i].Name, w[i].Rows, w[i].Cols, p.Name, r, c)
		}
	}
	for i, p := range params {
		r, c := p.Value.Dims()
		p.Value.Copy(mat.NewDense(r, c, w[i].Data))
	}
	return nil
}

// WriteZlibJSON writes v as zlib compressed json
func WriteZlibJSON(w io.Writer, v interface{}) error {
	zw := zlib.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(v); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// ReadZlibJSON reads zlib compressed json into v
func ReadZlibJSON(r io.Reader, v interface{}) error {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return err
	}
	defer zr.Close()
	return json.NewDecoder(zr).Decode(v)
}

// WriteZlibWeights writes parameter values to a writer
func WriteZlibWeights(w io.Writer, params []*layer.Param) error {
	return WriteZlibJSON(w, ExportWeights(params))
}

// ReadZlibWeights reads parameter values from a reader
func ReadZlibWeights(r io.Reader, params []*layer.Param) error {
	var w []Weights
	if err := ReadZlibJSON(r, &w); err != nil {
		return err
	}
	return ImportWeights(params, w)
}

// WriteFile creates the parent directory, writes to a temporary sibling and renames it
// over name, so readers never observe a partially written file.
func WriteFile(name string, write func(io.Writer) error) error {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "create directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(name)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), name)
}

// WriteZlibWeightsToFile writes parameter values to a zlib file
func WriteZlibWeightsToFile(name string, params []*layer.Param) error {
	return WriteFile(name, func(w io.Writer) error {
		return WriteZlibWeights(w, params)
	})
}

// ReadZlibWeightsFromFile reads parameter values from a zlib file
func ReadZlibWeightsFromFile(name string, params []*layer.Param) error {
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()
	return ReadZlibWeights(file, params)
}

// WriteZlibWeightsToFile writes network weights to a zlib file
func (f FeedforwardNetwork) WriteZlibWeightsToFile(name string) error {
	return WriteZlibWeightsToFile(name, f.Params())
}

// ReadZlibWeightsFromFile reads network weights from a zlib file
func (f FeedforwardNetwork) ReadZlibWeightsFromFile(name string) error {
	return ReadZlibWeightsFromFile(name, f.Params())
}
