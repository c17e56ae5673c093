package mock

import (
	"os"
	"strings"
)

// MockFileWriter is an in-memory utils.FileManager.
type MockFileWriter struct {
	Err    error
	Files  map[string][]byte
	Mkdirs map[string]os.FileMode

	// FailOn makes writes to any path containing the key fail with the value.
	FailOn map[string]error
}

func NewMockFileWriter() *MockFileWriter {
	return &MockFileWriter{
		Files:  map[string][]byte{},
		Mkdirs: map[string]os.FileMode{},
		FailOn: map[string]error{},
	}
}

func (m *MockFileWriter) MkdirAll(path string, perm os.FileMode) error {
	if m.Err != nil {
		return m.Err
	}
	m.Mkdirs[path] = perm
	return nil
}

func (m *MockFileWriter) WriteFile(filename string, data []byte, perm os.FileMode) error {
	if m.Err != nil {
		return m.Err
	}
	for fragment, err := range m.FailOn {
		if strings.Contains(filename, fragment) {
			return err
		}
	}
	m.Files[filename] = append([]byte(nil), data...)
	return nil
}
