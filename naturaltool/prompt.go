package naturaltool

import (
	"fmt"
	"strings"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
	"goa.design/streampipe/registry"
)

// renderContracts renders contracts as the "# Tool Calls" Markdown section
// appended to (or used as) the system message, per spec §4.5.1.
func renderContracts(contracts []registry.FunctionContract) string {
	var b strings.Builder
	b.WriteString("# Tool Calls\n\n")
	b.WriteString("You can call the following functions by emitting a block of the exact form:\n\n")
	b.WriteString("```\n<tool_call name=\"FUNCTION_NAME\">\n{\"arg\": \"value\"}\n</tool_call>\n```\n\n")
	for _, c := range contracts {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", c.Name, c.Description)
		if len(c.Parameters) > 0 {
			b.WriteString("Parameters:\n\n")
			for _, p := range c.Parameters {
				req := "optional"
				if p.IsRequired {
					req = "required"
				}
				fmt.Fprintf(&b, "- `%s` (%s): %s\n", p.Name, req, p.Description)
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// injectPrompt returns a copy of messages with contracts rendered into the
// system message: merged into the first existing System message, or
// prepended as a new one when none exists. Mirrors the teacher's
// "merge into first system message, else prepend" reminder-injection idiom.
func injectPrompt(messages []message.Message, contracts []registry.FunctionContract) []message.Message {
	text := renderContracts(contracts)
	if len(messages) > 0 {
		if sys, ok := messages[0].(message.Text); ok && sys.Header.Role == message.RoleSystem {
			sys.Text = sys.Text + "\n\n" + text
			out := make([]message.Message, len(messages))
			out[0] = sys
			copy(out[1:], messages[1:])
			return out
		}
	}
	out := make([]message.Message, 0, len(messages)+1)
	out = append(out, message.Text{Header: message.Header{Role: message.RoleSystem}, Text: text})
	out = append(out, messages...)
	return out
}

// clearFunctions returns a copy of opts with Functions cleared: the natural
// tool-use parser takes over the tool interface entirely on first use, per
// spec §4.5.1.
func clearFunctions(opts *agent.Options) *agent.Options {
	if opts == nil {
		return nil
	}
	cp := *opts
	cp.Functions = nil
	return &cp
}
