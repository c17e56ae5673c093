package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeFolderName(t *testing.T) {
	assert.Equal(t, "inbox", DecodeFolderName("inbox"))
	assert.Equal(t, "Спам", DecodeFolderName("&BCEEPwQwBDw-"))
	assert.Equal(t, "Отправленные", DecodeFolderName("&BB4EQgQ,BEAEMAQyBDsENQQ9BD0ESwQ1-"))
}
