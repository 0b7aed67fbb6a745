// Package prompt provides the interactive prompts used by "querykit init".
package prompt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// IsAborted returns true if err means the user aborted.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, ErrAborted)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}

func run(p promptui.Prompt) (string, error) {
	result, err := p.Run()
	return strings.TrimSpace(result), wrapError(err)
}

// Input prompts for text with a default.
func Input(label, defaultValue string) (string, error) {
	return run(promptui.Prompt{Label: label, Default: defaultValue})
}

// InputRequired prompts for non-empty text.
func InputRequired(label, defaultValue string) (string, error) {
	return run(promptui.Prompt{
		Label:    label,
		Default:  defaultValue,
		Validate: ValidateRequired,
	})
}

// InputPort prompts for a TCP port.
func InputPort(label string, defaultValue int) (int, error) {
	result, err := run(promptui.Prompt{
		Label:    label,
		Default:  strconv.Itoa(defaultValue),
		Validate: ValidatePort,
	})
	if err != nil {
		return 0, err
	}
	port, _ := strconv.Atoi(result)
	return port, nil
}

// InputDuration prompts for a Go duration such as "30s" or "5m".
func InputDuration(label string, defaultValue time.Duration) (time.Duration, error) {
	result, err := run(promptui.Prompt{
		Label:    label,
		Default:  defaultValue.String(),
		Validate: ValidateDuration,
	})
	if err != nil {
		return 0, err
	}
	return time.ParseDuration(result)
}

// Secret prompts for a masked value. An empty answer keeps the current
// value, so secrets can also come from the environment.
func Secret(label string) (string, error) {
	return run(promptui.Prompt{
		Label: label + " (leave empty to use the environment)",
		Mask:  '*',
	})
}

// Select prompts for one of items and returns it.
func Select(label string, items []string) (string, error) {
	p := promptui.Select{Label: label, Items: items, Size: len(items)}
	_, result, err := p.Run()
	return result, wrapError(err)
}

// Confirm asks a yes/no question.
func Confirm(label string, defaultYes bool) (bool, error) {
	def := "n"
	if defaultYes {
		def = "y"
	}
	result, err := run(promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Default:   def,
	})
	if errors.Is(err, ErrAborted) {
		return false, err
	}
	if err != nil {
		// promptui reports "no" as ErrAbort.
		return false, nil
	}
	if result == "" {
		return defaultYes, nil
	}
	return strings.EqualFold(result, "y") || strings.EqualFold(result, "yes"), nil
}

// ValidateRequired rejects blank input.
func ValidateRequired(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("value is required")
	}
	return nil
}

// ValidatePort accepts 1-65535.
func ValidatePort(input string) error {
	port, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return fmt.Errorf("must be a valid integer")
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("must be a valid port (1-65535)")
	}
	return nil
}

// ValidateDuration accepts non-negative Go durations.
func ValidateDuration(input string) error {
	d, err := time.ParseDuration(strings.TrimSpace(input))
	if err != nil {
		return fmt.Errorf("must be a duration such as 30s or 5m")
	}
	if d < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}
