package bf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	ErrNoExtension         = errors.New("no extension for the given file")
	ErrIncorrectFileFormat = errors.New("incorrect file format, expected a .bf or .brainfuck file")
)

// CheckExtension accepts paths ending in .bf or .brainfuck.
func CheckExtension(path string) error {
	switch filepath.Ext(path) {
	case ".bf", ".brainfuck":
		return nil
	case "":
		return fmt.Errorf("%s: %w", path, ErrNoExtension)
	default:
		return fmt.Errorf("%s: %w", path, ErrIncorrectFileFormat)
	}
}

func ReadSource(path string) (string, error) {
	if err := CheckExtension(path); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
