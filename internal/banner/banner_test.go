package banner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetString(t *testing.T) {
	out := GetString("v1.2.3")
	assert.Contains(t, out, "v1.2.3")
	assert.Contains(t, out, "|___|")
}
