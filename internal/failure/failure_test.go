package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategory(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, ""},
		{Input("degiro", 4, "Cantidad", "bad"), KindInput},
		{Config("rate:USD@2023-12-29", "missing"), KindConfig},
		{Internal("normalize", "missing field"), KindInternal},
		{&LayoutError{Form: "aeat720", Field: "country"}, KindLayout},
		{errors.New("plain"), KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Category(tt.err), "Category(%v)", tt.err)
	}
}

func TestCategory_Wrapped(t *testing.T) {
	err := fmt.Errorf("generating form: %w", Config("threshold", "not set"))
	assert.Equal(t, KindConfig, Category(err))
}

func TestInputError_Message(t *testing.T) {
	assert.Equal(t, "ibkr: line 12: field Quantity: not a number",
		Input("ibkr", 12, "Quantity", "not a number").Error())
	assert.Equal(t, "ibkr: line 3: short row", Input("ibkr", 3, "", "short row").Error())
	assert.Equal(t, "zip: no csv member", Input("zip", 0, "", "no csv member").Error())
}

func TestLayoutError_Message(t *testing.T) {
	err := &LayoutError{Form: "aeat720", Line: 2, Record: "detail", Field: "country", Reason: "value \"ESP\" exceeds width 2"}
	assert.Contains(t, err.Error(), "country")
	assert.Contains(t, err.Error(), "line 2")
}
