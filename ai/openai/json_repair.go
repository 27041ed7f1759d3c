// Copyright 2026 Corvid Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import "strings"

// repairJSON fixes the key-quoting damage small models most often produce:
// an object key whose opening quote is missing, e.g. `{ type": "x"}`. Other
// malformations pass through untouched for the decoder to reject.
func repairJSON(s string) string {
	in := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 16)

	for i := 0; i < len(in); {
		ch := in[i]
		b.WriteRune(ch)
		i++
		if ch != '{' && ch != ',' {
			continue
		}

		for i < len(in) && (in[i] == ' ' || in[i] == '\n' || in[i] == '\t') {
			b.WriteRune(in[i])
			i++
		}
		if i >= len(in) || !isASCIILetter(in[i]) {
			continue
		}

		// Candidate unquoted key. Only rewrite when it ends with the `":`
		// that a missing opening quote leaves behind.
		start := i
		for i < len(in) && (isASCIILetter(in[i]) || in[i] == '_' || in[i] == ' ') {
			i++
		}
		if i+1 < len(in) && in[i] == '"' && in[i+1] == ':' {
			b.WriteRune('"')
			b.WriteString(strings.TrimSpace(string(in[start:i])))
			continue
		}
		b.WriteString(string(in[start:i]))
	}
	return b.String()
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
