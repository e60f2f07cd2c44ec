package naturaltool

import (
	"regexp"
	"strings"
)

// toolCallTag matches a complete <tool_call name="...">BODY</tool_call>
// block; (?s) lets '.' span newlines since BODY is typically multi-line JSON.
var toolCallTag = regexp.MustCompile(`(?s)<tool_call name="([^"]*)">(.*?)</tool_call>`)

// chunk is one piece of a scanned buffer: either literal text or a detected
// tool-call invocation.
type chunk struct {
	isToolCall bool
	text       string // set when !isToolCall
	name       string // set when isToolCall
	body       string // set when isToolCall
}

// parseComplete runs the Complete Parser (spec §4.5.2.2 / §4.5.2 non-
// streaming path) over buf: every non-overlapping <tool_call> occurrence
// becomes a ToolCallChunk; every span of text around/between/after them
// becomes a TextChunk, including any trailing text after the last match.
func parseComplete(buf string) []chunk {
	matches := toolCallTag.FindAllStringSubmatchIndex(buf, -1)
	if len(matches) == 0 {
		return nil
	}
	var chunks []chunk
	pos := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > pos {
			chunks = append(chunks, chunk{text: buf[pos:start]})
		}
		name := buf[m[2]:m[3]]
		body := buf[m[4]:m[5]]
		chunks = append(chunks, chunk{isToolCall: true, name: name, body: body})
		pos = end
	}
	if pos < len(buf) {
		chunks = append(chunks, chunk{text: buf[pos:]})
	}
	return chunks
}

// hasToolCall reports whether chunks contains at least one ToolCallChunk.
func hasToolCall(chunks []chunk) bool {
	for _, c := range chunks {
		if c.isToolCall {
			return true
		}
	}
	return false
}

const openTag = "<tool_call"
const closeTag = "</tool_call"

func prefixesOf(full string) []string {
	out := make([]string, 0, len(full))
	for i := 1; i <= len(full); i++ {
		out = append(out, full[:i])
	}
	return out
}

var openTagPrefixes = prefixesOf(openTag)
var closeTagPrefixes = prefixesOf(closeTag)

// safePrefixLen implements the Safe-Text Extractor (spec §4.5.2.3): the
// length of the leading portion of buf that cannot possibly be, or become
// the start of, an incomplete <tool_call>...</tool_call> block. Everything
// from that position on must stay buffered.
func safePrefixLen(buf string) int {
	safe := len(buf)
	for _, p := range openTagPrefixes {
		if strings.HasSuffix(buf, p) {
			if pos := len(buf) - len(p); pos < safe {
				safe = pos
			}
		}
	}
	for _, p := range closeTagPrefixes {
		if strings.HasSuffix(buf, p) {
			if pos := len(buf) - len(p); pos < safe {
				safe = pos
			}
		}
	}
	if idx := strings.Index(buf, openTag); idx != -1 {
		if !strings.Contains(buf[idx:], "</tool_call>") {
			if idx < safe {
				safe = idx
			}
		}
	}
	return safe
}
