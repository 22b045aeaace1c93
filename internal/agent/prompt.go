package agent

import (
	"slices"
	"strings"

	"warden/internal/tool"
)

const codePromptHeader = "You are an expert assistant who solves tasks using code. " +
	"You work in think-act cycles: at each step, write a short thought, then provide one code snippet in this exact format:\n" +
	"Code:\n```py\n# your code\n```<end_code>\n\n" +
	"The snippet runs in a sandboxed interpreter. Bindings persist from step to step. " +
	"Use print() to expose intermediate values: everything printed comes back to you in the next observation. " +
	"When the task is solved, call final_answer(answer) to end the run."

const codePromptRules = "Rules you must follow:\n" +
	"1. Always provide a thought and exactly one code snippet, ending with <end_code>.\n" +
	"2. Use only variables you defined yourself and only the tools listed above.\n" +
	"3. Pass tool arguments directly, never wrapped in a dict.\n" +
	"4. Never rebind a tool name and never import anything outside the allowed modules.\n" +
	"5. State persists between snippets: variables and definitions survive to the next step."

const toolCallPromptHeader = "You are an expert assistant who solves tasks by calling tools. " +
	"You work in think-act cycles: at each step, write a short thought, then provide exactly one action as a JSON object in this format:\n" +
	"Action:\n{\"name\": \"tool_name\", \"arguments\": {\"argument\": \"value\"}}\n\n" +
	"After each action you receive the observation it produced. " +
	"When the task is solved, call the final_answer tool with your answer."

const toolCallPromptRules = "Rules you must follow:\n" +
	"1. Always provide a thought and exactly one action object.\n" +
	"2. Call only the tools listed above, with exactly the arguments they declare.\n" +
	"3. Use each observation to decide your next action.\n" +
	"4. End the run by calling final_answer once the task is solved."

// BuildSystemPrompt renders the default system prompt: the action format
// contract for the chosen mode, the tool roster with typed arguments, and
// (in code mode) the module allow-list. Deterministic for a given input.
func BuildSystemPrompt(mode Mode, tools []tool.Tool, modules []string) string {
	var b strings.Builder
	if mode == ModeToolCall {
		b.WriteString(toolCallPromptHeader)
	} else {
		b.WriteString(codePromptHeader)
	}

	b.WriteString("\n\nYou can use these tools:\n")
	for _, t := range tools {
		renderToolSpec(&b, t)
	}

	if mode != ModeToolCall {
		b.WriteString("\n")
		if len(modules) == 0 {
			b.WriteString("No modules may be imported.")
		} else {
			sorted := append([]string(nil), modules...)
			slices.Sort(sorted)
			b.WriteString("You may only use these modules: ")
			b.WriteString(strings.Join(sorted, ", "))
			b.WriteString(". Access members as module.name or load them, e.g. load(\"math\", \"sqrt\").")
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if mode == ModeToolCall {
		b.WriteString(toolCallPromptRules)
	} else {
		b.WriteString(codePromptRules)
	}
	return b.String()
}

func renderToolSpec(b *strings.Builder, t tool.Tool) {
	args := t.Args()

	b.WriteString("- ")
	b.WriteString(t.Name())
	b.WriteString("(")
	for i, arg := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(arg.Name)
	}
	b.WriteString(") -> ")
	b.WriteString(t.OutputType())
	if desc := strings.TrimSpace(t.Description()); desc != "" {
		b.WriteString(": ")
		b.WriteString(desc)
	}
	b.WriteString("\n")

	for _, arg := range args {
		b.WriteString("    ")
		b.WriteString(arg.Name)
		b.WriteString(" (")
		b.WriteString(arg.Type)
		if arg.Optional {
			b.WriteString(", optional")
		}
		b.WriteString(")")
		if arg.Description != "" {
			b.WriteString(": ")
			b.WriteString(arg.Description)
		}
		b.WriteString("\n")
	}
}
