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
package migrate

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cchexcode/qop/internal/clierr"
)

// confirm runs the three-way {pending, diff-shown} prompt interaction
// over stdin/stderr: it accepts y/yes, n/no, and d/diff, re-prompting
// after printing diffText for a diff response. autoYes bypasses the
// prompt entirely (as if "y" had been typed). isTTY gates the
// non-interactive failure (exit code 4): a prompt required with a
// non-TTY stdin and autoYes unset is an error, not a silent "no".
func confirm(stdin io.Reader, stderr io.Writer, question, diffText string, autoYes, isTTY bool) (bool, error) {
	if autoYes {
		return true, nil
	}
	if !isTTY {
		return false, clierr.Interactivef("%s requires a y/n answer but stdin is not a terminal and --yes was not given", question)
	}

	reader := bufio.NewReader(stdin)
	for {
		fmt.Fprintf(stderr, "%s [y/n/d] ", question)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false, fmt.Errorf("failed to read operator response: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		case "d", "diff":
			fmt.Fprintln(stderr, diffText)
		default:
			fmt.Fprintln(stderr, "please answer y, n, or d")
		}
	}
}
