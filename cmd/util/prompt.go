package util

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// Confirm asks a yes/no question on the terminal. An interrupted prompt counts as no.
func Confirm(message string) (bool, error) {
	approved := false
	err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &approved)
	if errors.Is(err, terminal.InterruptErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read user input: %w", err)
	}
	return approved, nil
}
