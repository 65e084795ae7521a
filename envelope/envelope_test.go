package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeneratesUniqueIDsAndName(t *testing.T) {
	e1 := New("ikey-1", "2024-01-01T00:00:00.000000+00:00", 100, nil, &RequestData{Name: "GET /"})
	e2 := New("ikey-1", "2024-01-01T00:00:00.000000+00:00", 100, nil, &RequestData{Name: "GET /"})

	assert.NotEmpty(t, e1.ID)
	assert.NotEqual(t, e1.ID, e2.ID)
	assert.Equal(t, "Microsoft.ApplicationInsights.Request", e1.Name)
}

func TestEnvelopeNamePerVariant(t *testing.T) {
	for _, tt := range []struct {
		data Data
		want string
	}{
		{&RequestData{}, "Microsoft.ApplicationInsights.Request"},
		{&RemoteDependencyData{}, "Microsoft.ApplicationInsights.RemoteDependency"},
		{&MessageData{}, "Microsoft.ApplicationInsights.Message"},
		{&ExceptionData{}, "Microsoft.ApplicationInsights.Exception"},
		{&EventData{}, "Microsoft.ApplicationInsights.Event"},
	} {
		e := New("ikey", "t", 100, nil, tt.data)
		assert.Equal(t, tt.want, e.Name)
		assert.Equal(t, tt.want[len("Microsoft.ApplicationInsights."):]+"Data", tt.data.BaseType())
	}
}

func TestValidateRequiresIKey(t *testing.T) {
	e := &Envelope{Data: &RequestData{Name: "GET /"}}
	err := Validate(e)
	require.Error(t, err)
}

func TestValidateDefaultsResponseCode(t *testing.T) {
	d := &RequestData{Name: "GET /"}
	e := &Envelope{IKey: "ikey", Data: d}
	require.NoError(t, Validate(e))
	assert.Equal(t, "200", d.ResponseCode)
}

func TestValidateRejectsMissingRequiredFields(t *testing.T) {
	for _, tt := range []struct {
		name string
		data Data
	}{
		{"request without name", &RequestData{}},
		{"dependency without name", &RemoteDependencyData{}},
		{"message without text", &MessageData{}},
		{"exception without details", &ExceptionData{}},
		{"event without name", &EventData{}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			e := &Envelope{IKey: "ikey", Data: tt.data}
			assert.Error(t, Validate(e))
		})
	}
}

func TestValidateNilDataFails(t *testing.T) {
	e := &Envelope{IKey: "ikey"}
	assert.Error(t, Validate(e))
}
