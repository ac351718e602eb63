// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package clierr carries the process exit code alongside an error so the
// CLI entry point can translate any returned error into the right exit
// status without every call site threading os.Exit calls through.
package clierr

import (
	"errors"
	"fmt"
)

// Exit codes per the CLI contract: 0 success, 1 generic error, 2 usage
// error, 3 safety refusal, 4 non-interactive prompt required.
const (
	ExitGeneric     = 1
	ExitUsage       = 2
	ExitSafety      = 3
	ExitInteractive = 4
)

// Error wraps an underlying cause with the exit code it should produce.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given exit code. A nil err returns nil.
func New(code int, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// Usagef builds a Usage-class error (exit code 2).
func Usagef(format string, args ...any) error {
	return &Error{Code: ExitUsage, Err: fmt.Errorf(format, args...)}
}

// Safetyf builds a Safety-class error (exit code 3) — locked migration
// without --unlock, non-linear history declined.
func Safetyf(format string, args ...any) error {
	return &Error{Code: ExitSafety, Err: fmt.Errorf(format, args...)}
}

// Interactivef builds an exit-code-4 error — a prompt was required but
// stdin is not a TTY and --yes was not given.
func Interactivef(format string, args ...any) error {
	return &Error{Code: ExitInteractive, Err: fmt.Errorf(format, args...)}
}

// CodeOf returns the exit code an error should produce: 0 for nil, the
// carried code for an *Error, or ExitGeneric for anything else.
func CodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ExitGeneric
}
