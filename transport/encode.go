package transport

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/gzip"

	"github.com/appinsights-go/agent/envelope"
)

// encodeBatch serializes a batch as newline-delimited JSON, one envelope
// per line, per the vendor wire format.
func encodeBatch(batch []envelope.Envelope) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range batch {
		if err := enc.Encode(newWireEnvelope(batch[i])); err != nil {
			return nil, fmt.Errorf("transport: encode envelope: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// wireEnvelope is the JSON shape sent over the wire: baseType/baseData
// nested under "data", matching the vendor's tagged-variant encoding.
type wireEnvelope struct {
	Ver        int               `json:"ver"`
	Name       string            `json:"name"`
	Time       string            `json:"time"`
	IKey       string            `json:"iKey"`
	Tags       map[string]string `json:"tags,omitempty"`
	SampleRate float64           `json:"sampleRate,omitempty"`
	Data       wireData          `json:"data"`
}

type wireData struct {
	BaseType string        `json:"baseType"`
	BaseData envelope.Data `json:"baseData"`
}

func newWireEnvelope(e envelope.Envelope) wireEnvelope {
	return wireEnvelope{
		Ver:        1,
		Name:       e.Name,
		Time:       e.Time,
		IKey:       e.IKey,
		Tags:       e.Tags,
		SampleRate: e.SampleRate,
		Data: wireData{
			BaseType: e.Data.BaseType(),
			BaseData: e.Data,
		},
	}
}

// gzipCompress compresses body with klauspost/compress's gzip writer,
// the faster drop-in for compress/gzip.
func gzipCompress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(body); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
