package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantity_Decimal(t *testing.T) {
	q := NewQuantity(3)
	assert.Equal(t, "3", q.Decimal().String())
	assert.Equal(t, "3.0000", q.String())

	half := NewQuantityFromDecimal(MustMoney("0.5"))
	assert.Equal(t, Quantity(5000), half)
	assert.True(t, MustMoney("0.5").Equal(half.Decimal()))
}

func TestParseQuantity(t *testing.T) {
	cases := map[string]Quantity{
		"7":       NewQuantity(7),
		"-2.5":    Quantity(-25000),
		"1.23456": Quantity(12345),
		"+0.1":    Quantity(1000),
	}
	for in, want := range cases {
		got, err := ParseQuantity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseQuantity("")
	assert.Error(t, err)
}

func TestParseQuantity_Bounds(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Quantity
		wantErr bool
	}{
		{name: "largest whole value", in: "922337203685477", want: Quantity(9223372036854770000)},
		{name: "largest value", in: "922337203685477.5807", want: Quantity(math.MaxInt64)},
		{name: "smallest negative value", in: "-922337203685477.5807", want: Quantity(-math.MaxInt64)},
		{name: "integer part overflows", in: "1844674407370956", wantErr: true},
		{name: "fraction tips over", in: "922337203685477.5808", wantErr: true},
		{name: "beyond uint64", in: "99999999999999999999999", wantErr: true},
		{name: "exponent", in: "1.5e2", want: NewQuantity(150)},
		{name: "negative exponent truncates", in: "1.23456E-1", want: Quantity(1234)},
		{name: "exponent out of range", in: "1e20", wantErr: true},
		{name: "negative exponent out of range", in: "-1e20", wantErr: true},
		{name: "double sign", in: "--5", wantErr: true},
		{name: "sign in fraction", in: "1.-5", wantErr: true},
		{name: "plus in fraction", in: "1.+5", wantErr: true},
		{name: "letters", in: "12a", wantErr: true},
		{name: "lone dot", in: ".", wantErr: true},
		{name: "lone sign", in: "-", wantErr: true},
		{name: "leading dot", in: ".25", want: Quantity(2500)},
		{name: "trailing dot", in: "3.", want: NewQuantity(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuantity(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuantity_JSONRejectsOverflow(t *testing.T) {
	var payload struct {
		Qty Quantity `json:"qty"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"qty":1844674407370956}`), &payload))
	assert.Error(t, json.Unmarshal([]byte(`{"qty":"1e20"}`), &payload))
	assert.Error(t, json.Unmarshal([]byte(`{"qty":"--5"}`), &payload))
	assert.Zero(t, payload.Qty)
}

func TestQuantity_JSON(t *testing.T) {
	var payload struct {
		Qty Quantity `json:"qty"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"qty":"12.5"}`), &payload))
	assert.Equal(t, Quantity(125000), payload.Qty)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"qty":12.5}`, string(out))
}

func TestMin(t *testing.T) {
	assert.Equal(t, NewQuantity(2), Min(NewQuantity(2), NewQuantity(5)))
	assert.Equal(t, NewQuantity(2), Min(NewQuantity(5), NewQuantity(2)))
}
