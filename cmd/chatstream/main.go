// Command chatstream is a terminal client for chatstreamd.
//
// Usage:
//
//	chatstream ask "What is a knowledge base?"
//	chatstream ask --sse --kb KB123 --model anthropic.claude-3-5-haiku-20241022-v1:0 < question.txt
//	chatstream ask --local --provider echo "hello"
//	chatstream models
//	chatstream cancel <session-id>
//
// The server address comes from --server or CHATSTREAM_SERVER.
package main

import (
	"fmt"
	"os"

	"github.com/kbukum/chatstream/cmd/chatstream/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
