package ui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cli/go-gh/v2/pkg/term"
	"github.com/manifoldco/promptui"
)

// ConfirmOverwrite shows a y/N prompt; anything but yes keeps the file
func ConfirmOverwrite(path string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("%s already exists. Overwrite", path),
		IsConfirm: true,
	}

	_, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation failed: %w", err)
	}
	return true, nil
}

// SelectFormat shows format selection prompt
func SelectFormat(formats []string) (string, error) {
	if len(formats) == 0 {
		return "", fmt.Errorf("no output formats available")
	}

	prompt := promptui.Select{
		Label: "Select output format",
		Items: formats,
		Size:  len(formats),
		Searcher: func(input string, index int) bool {
			return strings.Contains(strings.ToLower(formats[index]), strings.ToLower(input))
		},
	}

	_, selected, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("format selection failed: %w", err)
	}
	return selected, nil
}

// IsInteractive reports whether stdin is a terminal
func IsInteractive() bool {
	return isInteractive(os.Stdin)
}

func isInteractive(f *os.File) bool {
	return term.IsTerminal(f)
}
