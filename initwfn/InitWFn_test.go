package initwfn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreate(t *testing.T) {
	for _, typ := range []Type{GlorotU, GlorotN, HeU, HeN, Zeroes, ""} {
		fn, err := InitWFn{Type: typ}.Create()
		assert.NoError(t, err, typ)
		assert.NotNil(t, fn, typ)
	}

	_, err := InitWFn{Type: "Orthogonal"}.Create()
	assert.Error(t, err)
}
