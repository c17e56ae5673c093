package utils

import (
	"github.com/emersion/go-imap/utf7"
)

// DecodeFolderName turns a modified UTF-7 folder name such as
// "&BCEEPwQwBDw-" into readable text for logs. Names that do not decode are
// returned unchanged.
func DecodeFolderName(folder string) string {
	decoded, err := utf7.Encoding.NewDecoder().String(folder)
	if err != nil {
		return folder
	}
	return decoded
}
