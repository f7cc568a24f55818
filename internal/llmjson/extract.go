// Package llmjson recovers JSON payloads from unreliable model output: prose
// around the payload, markdown fencing, and truncation mid-structure.
package llmjson

import "strings"

// ExtractObject returns the first balanced JSON object embedded in text.
// Markdown code fences are stripped first. The scan tracks brace depth while
// honoring quoted strings and escape sequences, so a literal "}" inside a
// string field does not terminate the scan early.
func ExtractObject(text string) (string, bool) {
	return extractBalanced(stripFence(text), '{', '}')
}

// ExtractArray returns the first balanced JSON array embedded in text.
func ExtractArray(text string) (string, bool) {
	return extractBalanced(stripFence(text), '[', ']')
}

// RepairTruncated attempts to structurally close a JSON fragment that was cut
// off mid-output: it terminates any open string literal, then appends the
// matching closers for every bracket or brace still open. The result is not
// guaranteed to parse, only to be balanced; callers should retry unmarshal.
func RepairTruncated(fragment string) string {
	fragment = stripFence(fragment)

	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(fragment); i++ {
		c := fragment[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{' || c == '[':
			stack = append(stack, c)
		case c == '}' || c == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(fragment)
	// A fragment ending mid-escape cannot close its string cleanly; drop the
	// trailing backslash before terminating the literal.
	if escaped {
		s := b.String()
		b.Reset()
		b.WriteString(s[:len(s)-1])
	}
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

// SalvageArrayObjects walks a JSON array item by item and returns the raw text
// of each structurally complete top-level object, stopping at the first
// incomplete one. Used to recover the leading valid items of an array whose
// tail was cut off for length.
func SalvageArrayObjects(text string) []string {
	text = stripFence(text)
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return nil
	}

	var objects []string
	i := start + 1
	for i < len(text) {
		// Skip to the next object start.
		for i < len(text) && text[i] != '{' && text[i] != ']' {
			i++
		}
		if i >= len(text) || text[i] == ']' {
			break
		}
		obj, ok := extractBalanced(text[i:], '{', '}')
		if !ok {
			break
		}
		objects = append(objects, obj)
		i += len(obj)
	}
	return objects
}

// stripFence removes a markdown code fence wrapper if present, returning the
// fenced body. Text without a fence is returned unchanged.
func stripFence(text string) string {
	trimmed := strings.TrimSpace(text)
	idx := strings.Index(trimmed, "```")
	if idx < 0 {
		return text
	}
	rest := trimmed[idx+3:]
	// Drop an optional language tag on the fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine == "json" || firstLine == "" {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// extractBalanced scans from the first open delimiter, tracking nesting depth
// while respecting quoted-string boundaries and escapes, and returns the
// substring up to the matching close delimiter.
func extractBalanced(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
