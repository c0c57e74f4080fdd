// SPDX-License-Identifier: MPL-2.0

package cmd

import "fmt"

// ExitError carries a process exit code out of a RunE handler; Execute maps
// it to os.Exit after fang has printed the error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap exposes the wrapped error for errors.Is/As.
func (e *ExitError) Unwrap() error {
	return e.Err
}
